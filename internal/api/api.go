package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/vaxboard/internal/api/handler"
	"github.com/jon4hz/vaxboard/internal/config"
	"github.com/jon4hz/vaxboard/internal/engine"
	"github.com/jon4hz/vaxboard/internal/session"
	"github.com/jon4hz/vaxboard/internal/static"
)

const sessionCookieName = "vaxboard_session"

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	engine    *engine.Engine
}

func New(cfg *config.Config, e *engine.Engine, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		ginEngine: gin.New(),
		engine:    e,
	}
	s.ginEngine.Use(gin.Logger(), gin.Recovery())

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions(sessionCookieName, store))
}

func (s *Server) setupRoutes() error {
	s.setupSession()
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression))

	h := handler.New(s.engine, s.cfg)

	tmpl, err := static.Templates(handler.TemplateFuncs())
	if err != nil {
		return err
	}
	s.ginEngine.SetHTMLTemplate(tmpl)

	assets, err := static.Assets()
	if err != nil {
		return err
	}
	s.ginEngine.StaticFS("/static", http.FS(assets))

	s.ginEngine.GET("/login", h.Login)
	s.ginEngine.POST("/login", h.LoginSubmit)
	s.ginEngine.GET("/signup", h.Signup)
	s.ginEngine.POST("/signup", h.SignupSubmit)

	protected := s.ginEngine.Group("/")
	protected.Use(session.RequireAuth("/login"))

	protected.GET("/", h.Home)
	protected.GET("/logout", h.Logout)
	protected.POST("/refresh", h.RefreshPage)

	api := protected.Group("/api")
	api.GET("/me", h.Me)
	api.GET("/status", h.Status)
	api.GET("/records", h.Records)
	api.GET("/summary", h.Summary)
	api.GET("/series", h.Series)
	api.GET("/boundary", h.Boundary)
	api.POST("/refresh", h.Refresh)

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves HTTP until ctx is cancelled and then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting API server", "listen", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	return nil
}

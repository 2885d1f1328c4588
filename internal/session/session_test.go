package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

type SessionTestSuite struct {
	suite.Suite
	router *gin.Engine
}

func (s *SessionTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()

	store := cookie.NewStore([]byte("test-secret"))
	s.router.Use(sessions.Sessions("vaxboard_session", store))

	s.router.GET("/signin/:name", func(c *gin.Context) {
		if err := Login(c, c.Param("name")); err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	s.router.GET("/signout", func(c *gin.Context) {
		if err := Logout(c); err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	s.router.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, FromContext(c))
	})

	protected := s.router.Group("/")
	protected.Use(RequireAuth("/login"))
	protected.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, FromContext(c))
	})
	protected.GET("/api/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, FromContext(c))
	})
}

func (s *SessionTestSuite) do(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *SessionTestSuite) decode(w *httptest.ResponseRecorder) Session {
	var got Session
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func (s *SessionTestSuite) TestAnonymous() {
	w := s.do("/state", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(Session{}, s.decode(w))
}

func (s *SessionTestSuite) TestRequireAuth_RedirectsPages() {
	w := s.do("/", nil)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/login", w.Header().Get("Location"))
}

func (s *SessionTestSuite) TestRequireAuth_RejectsAPI() {
	w := s.do("/api/me", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "Authentication required")
}

func (s *SessionTestSuite) TestLoginLogout() {
	login := s.do("/signin/alice", nil)
	s.Require().Equal(http.StatusNoContent, login.Code)
	cookies := login.Result().Cookies()
	s.Require().NotEmpty(cookies)

	w := s.do("/api/me", cookies)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(Session{Authenticated: true, Username: "alice"}, s.decode(w))

	logout := s.do("/signout", cookies)
	s.Require().Equal(http.StatusNoContent, logout.Code)

	w = s.do("/api/me", logout.Result().Cookies())
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *SessionTestSuite) TestSessionsAreIndependent() {
	alice := s.do("/signin/alice", nil).Result().Cookies()
	bob := s.do("/signin/bob", nil).Result().Cookies()

	s.Equal("alice", s.decode(s.do("/api/me", alice)).Username)
	s.Equal("bob", s.decode(s.do("/api/me", bob)).Username)
	s.Equal(Session{}, s.decode(s.do("/state", nil)))
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

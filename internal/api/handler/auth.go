package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/vaxboard/internal/database"
	"github.com/jon4hz/vaxboard/internal/session"
)

type authPageData struct {
	pageData
	Username    string
	Error       string
	Notice      string
	AllowSignup bool
}

func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

func (h *Handler) authPage(c *gin.Context, title string) authPageData {
	return authPageData{
		pageData:    pageData{Title: title, Session: session.Get(c)},
		AllowSignup: h.config.Auth.AllowSignup,
	}
}

// authFailed answers a failed login or signup with the form and an error message.
func (h *Handler) authFailed(c *gin.Context, status int, page, title, username, message string) {
	if wantsJSON(c) {
		c.JSON(status, gin.H{"success": false, "error": message})
		return
	}
	data := h.authPage(c, title)
	data.Username = username
	data.Error = message
	c.HTML(status, page, data)
}

func signedIn(c *gin.Context) {
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "redirect": "/"})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) Login(c *gin.Context) {
	if session.Get(c).Authenticated {
		c.Redirect(http.StatusFound, "/")
		return
	}
	data := h.authPage(c, "Sign in")
	if c.Query("registered") != "" {
		data.Notice = "Account created, please sign in."
	}
	c.HTML(http.StatusOK, "login.html", data)
}

func (h *Handler) LoginSubmit(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if strings.TrimSpace(username) == "" || password == "" {
		h.authFailed(c, http.StatusBadRequest, "login.html", "Sign in", username, "Username and password are required")
		return
	}

	ok, err := h.engine.Users().Authenticate(c.Request.Context(), username, password)
	if err != nil {
		log.Error("Failed to authenticate user", "error", err)
		h.authFailed(c, http.StatusInternalServerError, "login.html", "Sign in", username, "Sign in is unavailable, please try again later")
		return
	}
	if !ok {
		log.Debug("Rejected login", "username", username)
		h.authFailed(c, http.StatusUnauthorized, "login.html", "Sign in", username, "Invalid credentials")
		return
	}

	if err := session.Login(c, username); err != nil {
		log.Error("Failed to save session", "error", err)
		h.authFailed(c, http.StatusInternalServerError, "login.html", "Sign in", username, "Failed to save session")
		return
	}
	log.Info("User signed in", "username", username)
	signedIn(c)
}

func (h *Handler) Signup(c *gin.Context) {
	if !h.config.Auth.AllowSignup {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	if session.Get(c).Authenticated {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "signup.html", h.authPage(c, "Sign up"))
}

func (h *Handler) SignupSubmit(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if !h.config.Auth.AllowSignup {
		h.authFailed(c, http.StatusForbidden, "signup.html", "Sign up", username, "Sign up is disabled")
		return
	}
	if confirm, ok := c.GetPostForm("confirm"); ok && confirm != password {
		h.authFailed(c, http.StatusBadRequest, "signup.html", "Sign up", username, "Passwords do not match")
		return
	}

	_, err := h.engine.Users().Register(c.Request.Context(), username, password)
	switch {
	case errors.Is(err, database.ErrEmptyCredentials):
		h.authFailed(c, http.StatusBadRequest, "signup.html", "Sign up", username, "Username and password are required")
		return
	case errors.Is(err, database.ErrDuplicateUsername):
		h.authFailed(c, http.StatusConflict, "signup.html", "Sign up", username, "Username already exists")
		return
	case err != nil:
		log.Error("Failed to register user", "error", err)
		h.authFailed(c, http.StatusInternalServerError, "signup.html", "Sign up", username, "Sign up is unavailable, please try again later")
		return
	}

	if err := session.Login(c, username); err != nil {
		log.Error("Failed to save session", "error", err)
		c.Redirect(http.StatusSeeOther, "/login?registered=1")
		return
	}
	signedIn(c)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := session.Logout(c); err != nil {
		if err := c.AbortWithError(http.StatusInternalServerError, err); err != nil {
			log.Error("Failed to abort with error", "error", err)
		}
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

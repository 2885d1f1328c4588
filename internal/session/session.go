// Package session keeps the login state of a request in its cookie session.
package session

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	keyAuthenticated = "authenticated"
	keyUsername      = "username"

	contextKey = "session"
)

// Session is the login state of one request.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// Get reads the login state from the cookie session.
func Get(c *gin.Context) Session {
	store := sessions.Default(c)
	authenticated, _ := store.Get(keyAuthenticated).(bool)
	username, _ := store.Get(keyUsername).(string)
	if !authenticated || username == "" {
		return Session{}
	}
	return Session{Authenticated: true, Username: username}
}

// Login marks the cookie session of the request as signed in.
func Login(c *gin.Context, username string) error {
	store := sessions.Default(c)
	store.Clear()
	store.Set(keyAuthenticated, true)
	store.Set(keyUsername, username)
	return store.Save()
}

// Logout clears the cookie session of the request.
func Logout(c *gin.Context) error {
	store := sessions.Default(c)
	store.Clear()
	store.Options(sessions.Options{Path: "/", MaxAge: -1})
	return store.Save()
}

// RequireAuth rejects requests without a signed-in session. API requests get a 401,
// everything else is redirected to loginPath.
func RequireAuth(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := Get(c)
		if !s.Authenticated {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
				return
			}
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Set(contextKey, s)
		c.Next()
	}
}

// FromContext returns the session stored by RequireAuth, or the cookie state
// if the middleware did not run.
func FromContext(c *gin.Context) Session {
	if v, ok := c.Get(contextKey); ok {
		if s, ok := v.(Session); ok {
			return s
		}
	}
	return Get(c)
}

package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/warden-auth/warden/core"
)

// Cookie names for the two token kinds
const CookieAuthorization = "__at__"
const CookieRefresh = "__rt__"

// CookieWriter sets the token cookies on authenticated responses
type CookieWriter struct {
	domain           string
	secure           bool
	authorizationAge int
	refreshAge       int
}

// NewCookieWriter creates a cookie writer. secure should be false only
// in development.
func NewCookieWriter(domain string, secure bool, authorizationTTL, refreshTTL time.Duration) *CookieWriter {
	return &CookieWriter{
		domain:           domain,
		secure:           secure,
		authorizationAge: int(authorizationTTL / time.Second),
		refreshAge:       int(refreshTTL / time.Second),
	}
}

// SetTokens writes both token cookies
func (w *CookieWriter) SetTokens(c *gin.Context, token *core.SecurityToken) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieAuthorization, token.AuthorizationToken, w.authorizationAge, "/", w.domain, w.secure, true)
	c.SetCookie(CookieRefresh, token.RefreshToken, w.refreshAge, "/", w.domain, w.secure, true)
}

// ReadTokens returns the token pair carried by the request cookies.
// Missing cookies yield empty strings.
func ReadTokens(c *gin.Context) core.SecurityToken {
	authorization, _ := c.Cookie(CookieAuthorization)
	refresh, _ := c.Cookie(CookieRefresh)
	return core.SecurityToken{
		AuthorizationToken: authorization,
		RefreshToken:       refresh,
	}
}

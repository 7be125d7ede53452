package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridbase-io/gridbase/internal/shared/config"
)

const (
	// SessionTokenCookie carries the session token for browser-hosted UIs.
	SessionTokenCookie = "grid_session"
	// SessionTokenQueryParam is the query-parameter fallback used by hosts
	// that cannot set cookies on the websocket handshake.
	SessionTokenQueryParam = "token"
)

// SetSessionCookie stores the session token as an HttpOnly cookie.
func SetSessionCookie(c *gin.Context, cookieConfig config.CookieConfig, token string, maxAge int) {
	c.SetSameSite(parseSameSite(cookieConfig.SameSite))
	c.SetCookie(
		SessionTokenCookie,
		token,
		maxAge,
		cookieConfig.Path,
		cookieConfig.Domain,
		cookieConfig.Secure,
		true, // HttpOnly
	)
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(c *gin.Context, cookieConfig config.CookieConfig) {
	c.SetSameSite(parseSameSite(cookieConfig.SameSite))
	c.SetCookie(
		SessionTokenCookie,
		"",
		-1,
		cookieConfig.Path,
		cookieConfig.Domain,
		cookieConfig.Secure,
		true,
	)
}

// SessionTokenFrom extracts the session token from the cookie or, failing
// that, the query parameter. Returns "" when neither is present.
func SessionTokenFrom(c *gin.Context) string {
	if token, err := c.Cookie(SessionTokenCookie); err == nil && token != "" {
		return token
	}
	return c.Query(SessionTokenQueryParam)
}

func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "Strict":
		return http.SameSiteStrictMode
	case "Lax":
		return http.SameSiteLaxMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

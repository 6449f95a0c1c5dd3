package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/you/tradegate/domain"
	"github.com/you/tradegate/internal/config"
)

// ProxyHandlers serves the read-only passthrough routes from the route
// table. Each route relays one upstream GET with the caller's bearer token;
// cacheable routes are answered from the profile cache when warm.
type ProxyHandlers struct {
	fw       domain.UpstreamForwarder
	sessions domain.SessionRepository
	cache    domain.ProfileCache
	log      zerolog.Logger
}

// NewProxyHandlers creates new passthrough handlers.
func NewProxyHandlers(fw domain.UpstreamForwarder, sessions domain.SessionRepository, cache domain.ProfileCache, log zerolog.Logger) *ProxyHandlers {
	return &ProxyHandlers{fw: fw, sessions: sessions, cache: cache, log: log}
}

// bearer resolves the access token for the request: Authorization header
// first, then the token cookies, then the stored session.
func (h *ProxyHandlers) bearer(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	for _, name := range []string{"accessToken", "token"} {
		if tok, err := c.Cookie(name); err == nil && tok != "" {
			return tok
		}
	}
	if sessionID, ok := c.Get("session_id"); ok {
		sess, err := h.sessions.Find(c.Request.Context(), sessionID.(string))
		if err == nil {
			return sess.AccessToken
		}
	}
	return ""
}

// Handler builds the gin handler for one table entry.
func (h *ProxyHandlers) Handler(route config.ProxyRoute) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := h.bearer(c)
		if bearer == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
			return
		}

		if route.Cache && h.cache != nil {
			if payload, ok := h.cache.Get(c.Request.Context(), bearer); ok {
				c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
				return
			}
		}

		upstreamPath := route.Upstream
		if q := c.Request.URL.RawQuery; q != "" {
			upstreamPath += "?" + q
		}

		res, err := h.fw.Get(c.Request.Context(), upstreamPath, bearer)
		if err != nil {
			h.log.Error().Err(err).Str("route", route.Name).Msg("passthrough forward failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"message": "Failed to connect to authentication service",
			})
			return
		}

		if route.Cache && h.cache != nil && !res.Rejected() && len(res.Body) > 0 {
			if err := h.cache.Set(c.Request.Context(), bearer, res.Body); err != nil {
				h.log.Warn().Err(err).Str("route", route.Name).Msg("profile cache write failed")
			}
		}

		if len(res.Body) > 0 {
			c.Data(res.StatusCode, "application/json; charset=utf-8", res.Body)
			return
		}
		c.JSON(res.StatusCode, gin.H{"success": res.Success, "message": res.Message})
	}
}

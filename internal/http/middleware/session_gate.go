package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/you/tradegate/domain"
	"github.com/you/tradegate/internal/metrics"
)

// SessionGate decides, per request, whether a caller may reach a protected
// route. Decisions are synchronous: a request is allowed, told to retry, or
// redirected, never parked on a timer.
//
// Until the session store has answered its first health probe the gate is
// not hydrated. During a short grace window after startup a caller that
// presents a token is allowed through optimistically; after the window,
// unhydrated requests get a retryable 503 instead of a wrong redirect.
type SessionGate struct {
	sessions   domain.SessionRepository
	tokens     domain.TokenService
	refresher  domain.SessionService
	cookieName string
	loginPath  string
	grace      time.Duration
	skew       time.Duration
	started    time.Time
	hydrated   atomic.Bool
	log        zerolog.Logger
}

// NewSessionGate creates the gate. cookieName is the gateway session cookie.
// refresher may be nil to disable proactive token refresh.
func NewSessionGate(
	sessions domain.SessionRepository,
	tokens domain.TokenService,
	refresher domain.SessionService,
	cookieName, loginPath string,
	grace, skew time.Duration,
	log zerolog.Logger,
) *SessionGate {
	return &SessionGate{
		sessions:   sessions,
		tokens:     tokens,
		refresher:  refresher,
		cookieName: cookieName,
		loginPath:  loginPath,
		grace:      grace,
		skew:       skew,
		started:    time.Now(),
		log:        log,
	}
}

// hydrate probes the session store once per unhydrated request. Once the
// store has answered, the gate stays hydrated for the life of the process.
func (g *SessionGate) hydrate(c *gin.Context) bool {
	if g.hydrated.Load() {
		return true
	}
	if err := g.sessions.Ping(c.Request.Context()); err != nil {
		return false
	}
	g.hydrated.Store(true)
	return true
}

// bearerToken returns the token the caller presented, from the Authorization
// header or the access token cookie.
func (g *SessionGate) bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	if tok, err := c.Cookie("accessToken"); err == nil && tok != "" {
		return tok
	}
	if tok, err := c.Cookie("token"); err == nil && tok != "" {
		return tok
	}
	return ""
}

// Decide evaluates the gate for the current request.
func (g *SessionGate) Decide(c *gin.Context) domain.GateDecision {
	token := g.bearerToken(c)

	if !g.hydrated.Load() {
		if token != "" && time.Since(g.started) < g.grace {
			// Store not confirmed yet but the caller holds a token.
			// Letting them through without a store round-trip beats
			// bouncing them to login during startup.
			return domain.GateAllow
		}
		if !g.hydrate(c) {
			return domain.GatePending
		}
	}

	if sessionID, err := c.Cookie(g.cookieName); err == nil && sessionID != "" {
		sess, err := g.sessions.Find(c.Request.Context(), sessionID)
		if err == nil && sess.Authenticated() {
			c.Set("session_id", sessionID)
			if g.refresher != nil && g.skew > 0 && g.tokens.ExpiresWithin(sess.AccessToken, g.skew) {
				// Access token close to expiry; rotate it in the background
				// so the caller never sees a 401 mid-session.
				go g.refresher.Refresh(context.WithoutCancel(c.Request.Context()), sessionID, "")
			}
			if claims, err := g.tokens.Validate(sess.AccessToken); err == nil {
				c.Set("user_id", claims.UserID)
				c.Set("user_role", claims.Role)
			} else if sess.User != nil {
				c.Set("user_id", sess.User.ID)
				c.Set("user_role", sess.User.Role)
			}
			return domain.GateAllow
		}
	}

	if token != "" {
		claims, err := g.tokens.Validate(token)
		if err == nil {
			c.Set("user_id", claims.UserID)
			c.Set("user_role", claims.Role)
			if claims.SessionID != "" {
				c.Set("session_id", claims.SessionID)
			}
			return domain.GateAllow
		}
		g.log.Debug().Err(err).Msg("gate rejected presented token")
	}

	return domain.GateRedirect
}

// wantsHTML reports whether the caller is a browser navigation rather than an
// API client.
func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

// Middleware returns the gin handler enforcing the gate.
func (g *SessionGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := g.Decide(c)
		metrics.GateDecisionsTotal.WithLabelValues(string(decision)).Inc()

		switch decision {
		case domain.GateAllow:
			c.Next()

		case domain.GatePending:
			c.Header("Retry-After", strconv.Itoa(int(g.grace/time.Second)+1))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"message": "Session store warming up, retry shortly",
			})
			c.Abort()

		case domain.GateRedirect:
			ev := domain.NewAuditEvent(domain.GateRedirectEvent).WithError(domain.ErrUnauthorized)
			g.log.Info().Fields(ev.Fields()).Str("path", c.Request.URL.Path).Msg("audit")
			if wantsHTML(c) {
				c.Redirect(http.StatusTemporaryRedirect, g.loginPath)
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"message": "Authentication required",
				})
			}
			c.Abort()
		}
	}
}

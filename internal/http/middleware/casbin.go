package middleware

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/you/tradegate/domain"
)

// CasbinMW authorizes requests against the policy store. The gate must have
// run first so the role is already in the context.
type CasbinMW struct {
	enforcer *casbin.Enforcer
	log      zerolog.Logger
}

// NewCasbinMW creates a new CasbinMW instance.
func NewCasbinMW(enforcer *casbin.Enforcer, log zerolog.Logger) *CasbinMW {
	return &CasbinMW{enforcer: enforcer, log: log}
}

// Enforce returns the Casbin authorization middleware.
func (mw *CasbinMW) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, roleExists := c.Get("user_role")
		if !roleExists {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Role not found in session"})
			c.Abort()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		casbinRole := "role_" + userRole.(string)

		allowed, err := mw.enforcer.Enforce(casbinRole, path, c.Request.Method)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Authorization check failed"})
			c.Abort()
			return
		}
		if !allowed {
			ev := domain.NewAuditEvent(domain.AccessDeniedEvent).WithError(domain.ErrInsufficientRole)
			if userID, ok := c.Get("user_id"); ok {
				ev = ev.WithUser(userID.(string))
			}
			mw.log.Info().Fields(ev.Fields()).Str("path", path).Str("role", casbinRole).Msg("audit")
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Access denied"})
			c.Abort()
			return
		}

		c.Next()
	}
}

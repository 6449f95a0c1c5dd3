package httpx

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	corsgin "github.com/rs/cors/wrapper/gin"

	"github.com/you/tradegate/internal/config"
	"github.com/you/tradegate/internal/http/handlers"
	"github.com/you/tradegate/internal/http/middleware"
)

// BuildRouter assembles the gateway routes: the public auth proxy, the
// gate-protected passthroughs from the route table, and the casbin-guarded
// admin surface.
func BuildRouter(
	cfg *config.Config,
	ah *handlers.AuthHandlers,
	gh *handlers.GateHandlers,
	ph *handlers.PolicyHandlers,
	proxy *handlers.ProxyHandlers,
	gate *middleware.SessionGate,
	cb *middleware.CasbinMW,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics())

	if len(cfg.CORSOrigins) > 0 {
		r.Use(corsgin.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/api/auth")
	auth.POST("/send-otp", ah.SendOTP)
	auth.POST("/resend-otp", ah.ResendOTP)
	auth.POST("/verify-otp", ah.VerifyOTP)
	auth.POST("/check-user-exists", ah.CheckUserExists)
	auth.POST("/refresh-token", ah.RefreshToken)
	auth.POST("/logout", ah.Logout)

	r.POST("/api/gate/check", gh.Check)

	protected := r.Group("/", gate.Middleware())
	adm := r.Group("/api/admin", gate.Middleware(), cb.Enforce())

	for _, route := range cfg.ProxyRoutes {
		if route.Admin {
			adm.Handle(route.Method, trimAdminPrefix(route.Path), proxy.Handler(route))
		} else {
			protected.Handle(route.Method, route.Path, proxy.Handler(route))
		}
	}

	adm.GET("/policies", ph.List)
	adm.POST("/policies", ph.Add)
	adm.DELETE("/policies", ph.Remove)

	return r
}

// trimAdminPrefix strips the group prefix from table entries that are
// written as full paths.
func trimAdminPrefix(path string) string {
	const prefix = "/api/admin"
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return path[len(prefix):]
	}
	return path
}

package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/tradegate/internal/config"
	httpx "github.com/you/tradegate/internal/http"
	"github.com/you/tradegate/internal/http/handlers"
	"github.com/you/tradegate/internal/http/middleware"
	"github.com/you/tradegate/pkg/logger"
)

// Run wires the gateway together and serves until the process exits.
func Run(cfg *config.Config) error {
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	c, err := NewContainer(cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.RedisClient.Ping(context.Background()).Err(); err != nil {
		return err
	}

	// Abandoned OTP challenges are swept for the life of the process.
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go c.Flows.Run(sweepCtx)

	authH := handlers.NewAuthHandlers(c.SessionSvc, cfg.SessionCookie, cfg.TokenCookieTTL, cfg.CookieSecure, log)
	polH := handlers.NewPolicyHandlers(c.PolicySvc)
	gate := middleware.NewSessionGate(c.SessionRepo, c.TokenSvc, c.SessionSvc, cfg.SessionCookie, cfg.GateLoginPath, cfg.GateGraceWindow, cfg.RefreshSkew, log)
	gateH := handlers.NewGateHandlers(gate, cfg.GateLoginPath)
	proxyH := handlers.NewProxyHandlers(c.Forwarder, c.SessionRepo, c.ProfileCache, log)
	casbinMW := middleware.NewCasbinMW(c.Enforcer, log)

	r := httpx.BuildRouter(cfg, authH, gateH, polH, proxyH, gate, casbinMW)

	policies, _ := c.Enforcer.GetPolicy()
	if len(policies) == 0 {
		c.Enforcer.AddPolicy("role_admin", "/api/admin/*", "(GET|POST|PUT|DELETE)")
		c.Enforcer.AddPolicy("role_user", "/api/users/*", "GET")
		c.Enforcer.AddPolicy("role_user", "/api/wallet/*", "GET")
		_ = c.Enforcer.SavePolicy()
		log.Info().Msg("casbin: seeded default policies")
	}

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("upstream", cfg.UpstreamBaseURL).Msg("listening")
	return http.ListenAndServe(addr, r)
}

package app

import (
	"github.com/casbin/casbin/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/you/tradegate/domain"
	"github.com/you/tradegate/internal/config"
	"github.com/you/tradegate/internal/infrastructure/auth"
	"github.com/you/tradegate/internal/infrastructure/database"
	"github.com/you/tradegate/internal/infrastructure/repositories"
	"github.com/you/tradegate/internal/infrastructure/upstream"
	"github.com/you/tradegate/internal/services"
)

// Container holds all dependencies.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	// Infrastructure
	RedisClient *redis.Client
	Enforcer    *casbin.Enforcer
	Forwarder   domain.UpstreamForwarder

	// Repositories
	SessionRepo  domain.SessionRepository
	ProfileCache domain.ProfileCache

	// Services
	TokenSvc   domain.TokenService
	Throttle   domain.OTPThrottle
	Flows      *services.FlowRegistry
	SessionSvc domain.SessionService
	PolicySvc  domain.PolicyService
}

// NewContainer creates and initializes all dependencies.
func NewContainer(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}
	c.initRepositories()
	c.initServices()

	return c, nil
}

func (c *Container) initInfrastructure() error {
	c.RedisClient = database.NewRedis(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB).Client

	cas, err := auth.NewCasbinService(c.Config.CasbinModelPath, c.Config.CasbinPolicyPath)
	if err != nil {
		return err
	}
	c.Enforcer = cas.E

	c.Forwarder = upstream.NewClient(c.Config.UpstreamBaseURL, c.Config.UpstreamTimeout, c.Log)
	return nil
}

func (c *Container) initRepositories() {
	c.SessionRepo = repositories.NewSessionRepository(c.RedisClient, c.Config.SessionTTL)
	c.ProfileCache = repositories.NewProfileCache(c.RedisClient, c.Config.ProfileCacheTTL)
}

func (c *Container) initServices() {
	c.TokenSvc = auth.NewJWTService(c.Config.JWTSecret, c.Config.JWTIssuer)
	c.Throttle = services.NewRedisThrottle(c.RedisClient, c.Config.OTPResendWindow)
	c.Flows = services.NewFlowRegistry(c.Config.OTPResendWindow, c.Config.OTPChallengeTTL)
	c.SessionSvc = services.NewSessionService(
		c.Forwarder,
		c.SessionRepo,
		c.TokenSvc,
		c.Flows,
		c.Throttle,
		c.ProfileCache,
		c.Config.SessionTTL,
		c.Config.OTPCodeLength,
		c.Log,
	)
	c.PolicySvc = services.NewPolicyService(c.Enforcer)
}

// Close closes all connections.
func (c *Container) Close() error {
	if c.RedisClient != nil {
		return c.RedisClient.Close()
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port    int    `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

type UpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	Issuer      string `yaml:"issuer"`
	RefreshSkew string `yaml:"refresh_skew"`
}

type SessionConfig struct {
	TTL            string `yaml:"ttl"`
	CookieName     string `yaml:"cookie_name"`
	TokenCookieTTL string `yaml:"token_cookie_ttl"`
	CookieSecure   bool   `yaml:"cookie_secure"`
}

type OTPConfig struct {
	CodeLength   int    `yaml:"code_length"`
	ResendWindow string `yaml:"resend_window"`
	ChallengeTTL string `yaml:"challenge_ttl"`
}

type GateConfig struct {
	GraceWindow string `yaml:"grace_window"`
	LoginPath   string `yaml:"login_path"`
}

type CasbinConfig struct {
	ModelPath  string `yaml:"model_path"`
	PolicyPath string `yaml:"policy_path"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type CacheConfig struct {
	ProfileTTL string `yaml:"profile_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type ConfigFile struct {
	App      AppConfig      `yaml:"app"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Session  SessionConfig  `yaml:"session"`
	OTP      OTPConfig      `yaml:"otp"`
	Gate     GateConfig     `yaml:"gate"`
	Casbin   CasbinConfig   `yaml:"casbin"`
	CORS     CORSConfig     `yaml:"cors"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

type Config struct {
	Port             string
	GinMode          string
	UpstreamBaseURL  string
	UpstreamTimeout  time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	JWTSecret        string
	JWTIssuer        string
	RefreshSkew      time.Duration
	SessionTTL       time.Duration
	SessionCookie    string
	TokenCookieTTL   time.Duration
	CookieSecure     bool
	OTPCodeLength    int
	OTPResendWindow  time.Duration
	OTPChallengeTTL  time.Duration
	GateGraceWindow  time.Duration
	GateLoginPath    string
	CasbinModelPath  string
	CasbinPolicyPath string
	CORSOrigins      []string
	ProfileCacheTTL  time.Duration
	LogLevel         string
	LogPretty        bool
	ProxyRoutes      []ProxyRoute
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads the yaml config file, applies environment overrides, and parses
// all duration strings up front so the rest of the code never re-parses.
func Load() (*Config, error) {
	path := env("CONFIG_PATH", "config/config.yml")
	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	upstreamTimeout, err := parseDuration(configFile.Upstream.Timeout, 10*time.Second, "upstream timeout")
	if err != nil {
		return nil, err
	}
	refreshSkew, err := parseDuration(configFile.JWT.RefreshSkew, time.Minute, "jwt refresh skew")
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parseDuration(configFile.Session.TTL, 7*24*time.Hour, "session ttl")
	if err != nil {
		return nil, err
	}
	tokenCookieTTL, err := parseDuration(configFile.Session.TokenCookieTTL, 7*24*time.Hour, "token cookie ttl")
	if err != nil {
		return nil, err
	}
	resendWindow, err := parseDuration(configFile.OTP.ResendWindow, 30*time.Second, "otp resend window")
	if err != nil {
		return nil, err
	}
	challengeTTL, err := parseDuration(configFile.OTP.ChallengeTTL, 10*time.Minute, "otp challenge ttl")
	if err != nil {
		return nil, err
	}
	graceWindow, err := parseDuration(configFile.Gate.GraceWindow, 3*time.Second, "gate grace window")
	if err != nil {
		return nil, err
	}
	profileTTL, err := parseDuration(configFile.Cache.ProfileTTL, 30*time.Second, "profile cache ttl")
	if err != nil {
		return nil, err
	}

	routes, err := loadProxyRoutes(env("PROXY_ROUTES_PATH", "config/proxy_routes.yml"))
	if err != nil {
		return nil, err
	}

	codeLength := configFile.OTP.CodeLength
	if codeLength == 0 {
		codeLength = 6
	}
	loginPath := configFile.Gate.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	cookieName := configFile.Session.CookieName
	if cookieName == "" {
		cookieName = "pm_session"
	}

	return &Config{
		Port:             fmt.Sprintf("%d", configFile.App.Port),
		GinMode:          configFile.App.GinMode,
		UpstreamBaseURL:  env("UPSTREAM_BASE_URL", configFile.Upstream.BaseURL),
		UpstreamTimeout:  upstreamTimeout,
		RedisAddr:        env("REDIS_ADDR", configFile.Redis.Addr),
		RedisPassword:    configFile.Redis.Password,
		RedisDB:          configFile.Redis.DB,
		JWTSecret:        env("JWT_SECRET", configFile.JWT.Secret),
		JWTIssuer:        configFile.JWT.Issuer,
		RefreshSkew:      refreshSkew,
		SessionTTL:       sessionTTL,
		SessionCookie:    cookieName,
		TokenCookieTTL:   tokenCookieTTL,
		CookieSecure:     configFile.Session.CookieSecure,
		OTPCodeLength:    codeLength,
		OTPResendWindow:  resendWindow,
		OTPChallengeTTL:  challengeTTL,
		GateGraceWindow:  graceWindow,
		GateLoginPath:    loginPath,
		CasbinModelPath:  configFile.Casbin.ModelPath,
		CasbinPolicyPath: configFile.Casbin.PolicyPath,
		CORSOrigins:      configFile.CORS.AllowedOrigins,
		ProfileCacheTTL:  profileTTL,
		LogLevel:         configFile.Log.Level,
		LogPretty:        configFile.Log.Pretty,
		ProxyRoutes:      routes,
	}, nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

func parseDuration(s string, def time.Duration, what string) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", what, err)
	}
	return d, nil
}

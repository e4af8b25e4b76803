package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	SessionCookie = "cookie"
	SessionRedis  = "redis"
	SessionJWT    = "jwt"
)

// minSecretLen is the shortest SESSION_SECRET accepted outside development.
const minSecretLen = 32

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	StorageDriver string
	DatabaseURL   string

	SessionBackend string
	SessionSecret  string
	SessionTTL     time.Duration
	RedisAddr      string

	AdminUsername string
	AdminPassword string

	LoginRatePerMinute int
	LoginBurst         int
	// TrustProxyHeaders takes the client address from X-Forwarded-For /
	// X-Real-IP. Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	SeedFile string
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		Port:               fallback(os.Getenv("PORT"), "3000"),
		Env:                fallback(os.Getenv("APP_ENV"), "production"),
		LogLevel:           fallback(os.Getenv("LOG_LEVEL"), "info"),
		StorageDriver:      strings.ToLower(fallback(os.Getenv("STORAGE_DRIVER"), StoragePostgres)),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SessionBackend:     strings.ToLower(fallback(os.Getenv("SESSION_BACKEND"), SessionCookie)),
		SessionSecret:      strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionTTL:         time.Duration(positiveInt("SESSION_TTL_MINUTES", 24*60)) * time.Minute,
		RedisAddr:          fallback(os.Getenv("REDIS_ADDR"), "localhost:6379"),
		AdminUsername:      fallback(os.Getenv("ADMIN_USERNAME"), "admin"),
		AdminPassword:      adminPassword(),
		LoginRatePerMinute: nonNegativeInt("LOGIN_RATE_PER_MINUTE", 30),
		LoginBurst:         nonNegativeInt("LOGIN_BURST", 10),
		TrustProxyHeaders:  boolean("TRUST_PROXY_HEADERS"),
		SeedFile:           strings.TrimSpace(os.Getenv("SEED_FILE")),
	}

	switch cfg.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required for the postgres storage driver")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	switch cfg.SessionBackend {
	case SessionCookie, SessionRedis, SessionJWT:
	default:
		return Config{}, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}

	if len(cfg.SessionSecret) < minSecretLen && !cfg.Development() {
		return Config{}, fmt.Errorf("SESSION_SECRET must be at least %d characters", minSecretLen)
	}

	return cfg, nil
}

// Development reports whether APP_ENV selects local development behaviour.
func (c Config) Development() bool {
	return c.Env == "development"
}

// AdminBypassEnabled reports whether the fixed administrator login is active.
func (c Config) AdminBypassEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

// adminPassword distinguishes an unset variable (use the default) from one
// set to the empty string (bypass disabled).
func adminPassword() string {
	value, ok := os.LookupEnv("ADMIN_PASSWORD")
	if !ok {
		return "password"
	}
	return value
}

func boolean(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

func positiveInt(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n > 0 {
		return n
	}
	return def
}

func nonNegativeInt(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n >= 0 {
		return n
	}
	return def
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Account backends.
const (
	BackendPostgres   = "postgres"
	BackendHomeserver = "homeserver"
	BackendMemory     = "memory"
)

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr string

	// ServerName is the homeserver's own identity (the part after ':').
	ServerName string

	// Wiki OAuth provider
	Provider         ProviderConfig
	OAuthHTTPTimeout time.Duration

	// Account backend
	AccountBackend       string
	DBAddr               string
	DBDebug              bool
	HomeserverURL        string
	HomeserverAdminToken string

	// Infrastructure
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RabbitURL      string
	RabbitExchange string

	AccountCacheTTL     time.Duration
	RegistrationLockTTL time.Duration

	// Shared secret the homeserver presents on /auth/v1/check.
	InternalSecret string

	// Check-auth rate limit across all callers; 0 disables it. Each check
	// costs two calls to the wiki.
	CheckRateLimit  int
	CheckRateWindow time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		AccountBackend: getEnv("ACCOUNT_BACKEND", BackendPostgres),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "mwauth.events"),
	}

	cfg.ServerName = strings.TrimSpace(os.Getenv("SERVER_NAME"))
	if cfg.ServerName == "" {
		return nil, fmt.Errorf("missing required env var: SERVER_NAME")
	}

	// Provider keys are validated together so every missing one is reported.
	pc, err := ParseProviderConfig(map[string]string{
		KeyConsumerKey:    os.Getenv("MW_CONSUMER_KEY"),
		KeyConsumerSecret: os.Getenv("MW_CONSUMER_SECRET"),
		KeyOAuthEndpoint:  os.Getenv("MW_OAUTH_ENDPOINT"),
		KeyDomainSuffix:   os.Getenv("MW_DOMAIN_SUFFIX"),
	})
	if err != nil {
		return nil, err
	}
	cfg.Provider = pc

	if cfg.OAuthHTTPTimeout, err = getDuration("OAUTH_HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	switch cfg.AccountBackend {
	case BackendPostgres:
		cfg.DBAddr = os.Getenv("DB_ADDR")
		if cfg.DBAddr == "" {
			return nil, fmt.Errorf("missing required env var: DB_ADDR")
		}
		if !strings.HasPrefix(cfg.DBAddr, "postgres://") && !strings.HasPrefix(cfg.DBAddr, "postgresql://") {
			return nil, fmt.Errorf("DB_ADDR must be a postgres:// URL")
		}
		cfg.DBDebug = getEnv("DB_DEBUG", "false") == "true"
	case BackendHomeserver:
		cfg.HomeserverURL = strings.TrimRight(os.Getenv("HOMESERVER_URL"), "/")
		if cfg.HomeserverURL == "" {
			return nil, fmt.Errorf("missing required env var: HOMESERVER_URL")
		}
		cfg.HomeserverAdminToken = os.Getenv("HOMESERVER_ADMIN_TOKEN")
		if cfg.HomeserverAdminToken == "" {
			return nil, fmt.Errorf("missing required env var: HOMESERVER_ADMIN_TOKEN")
		}
	case BackendMemory:
		if cfg.Env != "dev" {
			return nil, fmt.Errorf("ACCOUNT_BACKEND=memory is only allowed in dev")
		}
	default:
		return nil, fmt.Errorf("invalid ACCOUNT_BACKEND: %q", cfg.AccountBackend)
	}

	// Redis and RabbitMQ are optional; bootstrap degrades to in-process
	// fallbacks when they are unset or unreachable.
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	cfg.RabbitURL = os.Getenv("RABBIT_URL")

	if cfg.AccountCacheTTL, err = getDuration("ACCOUNT_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RegistrationLockTTL, err = getDuration("REGISTRATION_LOCK_TTL", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.InternalSecret = os.Getenv("INTERNAL_SECRET")
	if cfg.InternalSecret == "" && cfg.Env != "dev" {
		return nil, fmt.Errorf("missing required env var: INTERNAL_SECRET")
	}

	if cfg.CheckRateLimit, err = getInt("CHECK_RATE_LIMIT", 600); err != nil {
		return nil, err
	}
	if cfg.CheckRateWindow, err = getDuration("CHECK_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}

	//Timeout values are optional and have a default value if not
	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Redacted returns a printable view with secrets masked.
func (c *Config) Redacted() map[string]string {
	return map[string]string{
		"env":              c.Env,
		"http_addr":        c.HTTPAddr,
		"server_name":      c.ServerName,
		"provider":         c.Provider.String(),
		"account_backend":  c.AccountBackend,
		"db_addr":          redactURL(c.DBAddr),
		"homeserver_url":   c.HomeserverURL,
		"redis_addr":       c.RedisAddr,
		"rabbit_url":       redactURL(c.RabbitURL),
		"rabbit_exchange":  c.RabbitExchange,
		"internal_secret":  redact(c.InternalSecret),
		"account_cache":    c.AccountCacheTTL.String(),
		"registration_ttl": c.RegistrationLockTTL.String(),
		"check_rate_limit": fmt.Sprintf("%d/%s", c.CheckRateLimit, c.CheckRateWindow),
	}
}

func redactURL(s string) string {
	at := strings.LastIndex(s, "@")
	scheme := strings.Index(s, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return s
	}
	return s[:scheme+3] + "***" + s[at:]
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

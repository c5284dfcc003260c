package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/application/provider"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/infrastructure/homeserver"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/infrastructure/memory"
	rabbitmq_pub "github.com/baechuer/real-time-ressys/services/mwauth-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/infrastructure/mwoauth"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/logger"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/metrics"
	http_handlers "github.com/baechuer/real-time-ressys/services/mwauth-service/internal/transport/http/handlers"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(dsn string, debug bool, lg zerolog.Logger) (*sql.DB, error)

	NewRedis func(addr, password string, db int) *redis.Client

	NewPublisher func(url, exchange string, lg zerolog.Logger) (Publisher, error)

	NewOAuthClient func(cfg config.ProviderConfig, timeout time.Duration) provider.OAuthClient

	NewRouter func(router.Deps) (http.Handler, error)

	Logger zerolog.Logger
}

type Publisher interface {
	provider.EventPublisher
	Ping(ctx context.Context) error
	Close() error
}

// accountBackend is what a configured backend hands to the service and to
// /readyz.
type accountBackend struct {
	accounts provider.AccountHandler
	health   []http_handlers.Dependency
	cleanup  []func()
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	lg := deps.Logger

	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	lg.Info().
		Str("server_name", cfg.ServerName).
		Str("account_backend", cfg.AccountBackend).
		Str("provider", cfg.Provider.String()).
		Msg("config loaded")

	// 1) account backend
	backend, err := newAccountBackend(cfg, deps, lg)
	if err != nil {
		return nil, nil, err
	}
	cleanupFns := backend.cleanup
	healthDeps := backend.health

	// 2) redis (best-effort): existence cache + cross-replica lock
	accounts := backend.accounts
	var lock provider.RegistrationLock
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		pingErr := c.Ping(ctx)
		cancel()

		if pingErr != nil {
			lg.Warn().Err(pingErr).Msg("redis unavailable; cache disabled, using in-process lock")
			_ = c.Close()
		} else {
			lg.Info().Msg("redis connected")
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			accounts = redis.NewCachedAccountRepo(accounts, c, cfg.AccountCacheTTL)
			lock = redis.NewRegistrationLock(c).WithFallback(memory.NewRegistrationLock(), lg)
			healthDeps = append(healthDeps, http_handlers.Dependency{Name: "redis", Pinger: c, Optional: true})
		}
	}
	if lock == nil {
		lock = memory.NewRegistrationLock()
	}

	// 3) publisher
	var pub provider.EventPublisher
	switch {
	case cfg.RabbitURL == "" || deps.NewPublisher == nil:
		lg.Info().Msg("RABBIT_URL not set; provisioning events are logged only")
		pub = memory.NewNoopPublisher(lg)
	default:
		p, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange, lg)
		if err != nil {
			if cfg.Env != "dev" {
				runCleanup(cleanupFns)
				return nil, nil, err
			}
			lg.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
			pub = memory.NewNoopPublisher(lg)
			break
		}
		pub = p
		cleanupFns = append(cleanupFns, func() { _ = p.Close() })
		healthDeps = append(healthDeps, http_handlers.Dependency{Name: "rabbitmq", Pinger: p, Optional: true})
	}

	// 4) oauth client
	var oauthClient provider.OAuthClient
	if deps.NewOAuthClient != nil {
		oauthClient = deps.NewOAuthClient(cfg.Provider, cfg.OAuthHTTPTimeout)
	} else {
		oauthClient = newOAuthClient(cfg.Provider, cfg.OAuthHTTPTimeout)
	}

	// 5) service
	svc := provider.NewService(
		oauthClient,
		accounts,
		lock,
		pub,
		provider.Config{
			ServerName: cfg.ServerName,
			Provider:   cfg.Provider,
			LockTTL:    cfg.RegistrationLockTTL,
		},
		lg,
	).WithAudit(audit.New(lg))

	// 6) handlers
	providerH := http_handlers.NewProviderHandler(svc, logger.Component(lg, "http"))
	healthH := http_handlers.NewHealthHandler(healthDeps...)

	// 7) router
	newRouter := deps.NewRouter
	if newRouter == nil {
		newRouter = router.New
	}
	mux, err := newRouter(router.Deps{
		Health:          healthH,
		Provider:        providerH,
		Metrics:         metrics.Handler(),
		InternalMW:      middleware.InternalAuth(cfg.InternalSecret),
		Logger:          logger.Component(lg, "access"),
		CheckRateLimit:  cfg.CheckRateLimit,
		CheckRateWindow: cfg.CheckRateWindow,
	})
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}
	if cfg.InternalSecret == "" {
		lg.Warn().Msg("INTERNAL_SECRET not set; /auth/v1/check is unauthenticated")
	}

	// 8) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return srv, cleanup, nil
}

func newAccountBackend(cfg *config.Config, deps Deps, lg zerolog.Logger) (accountBackend, error) {
	switch cfg.AccountBackend {
	case config.BackendPostgres:
		db, err := deps.NewDB(cfg.DBAddr, cfg.DBDebug, lg)
		if err != nil {
			return accountBackend{}, fmt.Errorf("bootstrap: connect db: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return accountBackend{}, err
		}
		repo := postgres.NewAccountRepo(db)
		return accountBackend{
			accounts: repo,
			health:   []http_handlers.Dependency{{Name: "postgres", Pinger: repo}},
			cleanup:  []func(){func() { _ = db.Close() }},
		}, nil

	case config.BackendHomeserver:
		hs := homeserver.NewClient(cfg.HomeserverURL, cfg.HomeserverAdminToken, cfg.OAuthHTTPTimeout)
		return accountBackend{
			accounts: hs,
			health:   []http_handlers.Dependency{{Name: "homeserver", Pinger: hs}},
		}, nil

	case config.BackendMemory:
		lg.Warn().Msg("using in-memory account backend; accounts are lost on restart")
		return accountBackend{accounts: memory.NewAccountRepo()}, nil
	}
	return accountBackend{}, fmt.Errorf("bootstrap: unknown account backend %q", cfg.AccountBackend)
}

func newOAuthClient(pc config.ProviderConfig, timeout time.Duration) provider.OAuthClient {
	return mwoauth.NewClient(pc, mwoauth.WithHTTPClient(&http.Client{Timeout: timeout}))
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		NewRedis:   redis.New,
		NewPublisher: func(url, exchange string, lg zerolog.Logger) (Publisher, error) {
			return rabbitmq_pub.NewPublisher(url, exchange, lg)
		},
		NewOAuthClient: newOAuthClient,
		NewRouter:      router.New,
		Logger:         logger.Logger,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/transport/http/response"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type ProviderHandler interface {
	LoginTypes(w http.ResponseWriter, r *http.Request)
	Check(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health   HealthHandler
	Provider ProviderHandler
	Metrics  http.Handler

	InternalMW func(http.Handler) http.Handler
	Logger     zerolog.Logger

	// Global limit on /auth/v1/check; 0 disables it.
	CheckRateLimit  int
	CheckRateWindow time.Duration
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("nil Provider handler")
	}
	if deps.InternalMW == nil {
		return nil, fmt.Errorf("nil Internal middleware")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AccessLog(deps.Logger))
	r.Use(middleware.Metrics)

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/auth/v1", func(r chi.Router) {
		r.Get("/login/types", deps.Provider.LoginTypes)

		r.Group(func(r chi.Router) {
			r.Use(deps.InternalMW)
			if deps.CheckRateLimit > 0 {
				r.Use(checkRateLimiter(deps.CheckRateLimit, deps.CheckRateWindow))
			}
			r.Post("/check", deps.Provider.Check)
		})
	})

	return r, nil
}

// checkRateLimiter bounds how hard a flood of logins can hit the wiki. All
// calls come from the homeserver, so the key is the endpoint, not the IP.
func checkRateLimiter(limit int, window time.Duration) func(http.Handler) http.Handler {
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			response.WriteError(w, r, domain.ErrRateLimited())
		}),
	)
}

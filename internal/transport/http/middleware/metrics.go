package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/metrics"
)

// Metrics records RED metrics per chi route pattern, so /auth/v1/check stays
// one series however many users log in.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		done := metrics.HTTPStarted()
		defer done()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		metrics.ObserveHTTP(r.Method, routePattern(r), sw.code(), time.Since(start))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

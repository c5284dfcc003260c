package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/transport/http/response"
)

const HeaderInternalSecret = "X-Internal-Secret"

// InternalAuth admits only callers presenting the shared secret. An empty
// secret (dev only, config refuses it elsewhere) disables the check.
func InternalAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		want := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(HeaderInternalSecret))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				response.WriteError(w, r, domain.ErrUnauthorized())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/pkg/reqctx"
)

const HeaderXRequestID = "X-Request-Id"

const maxRequestIDLen = 128

// RequestID adopts the homeserver's X-Request-Id so both sides log the same
// id. Ids that are too long or carry anything but [A-Za-z0-9._:-] are
// replaced, since they end up verbatim in log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderXRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderXRequestID, id)
		next.ServeHTTP(w, r.WithContext(reqctx.WithRequestID(r.Context(), id)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == ':', c == '-':
		default:
			return false
		}
	}
	return true
}

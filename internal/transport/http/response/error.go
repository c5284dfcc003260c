package response

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/pkg/reqctx"
)

// RetryAfter is advertised on 429 and 503 so the homeserver backs off
// instead of hammering the wiki.
const RetryAfter = 5 * time.Second

type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteError renders err as {"error":{...}}. Only domain errors reach the
// wire; anything else becomes an opaque 500 so causes never leak.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, payload := toPayload(err)
	payload.RequestID = reqctx.RequestID(r.Context())

	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(int(RetryAfter/time.Second)))
	}
	WriteJSON(w, status, ErrorBody{Error: payload})
}

func toPayload(err error) (int, ErrorPayload) {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, ErrorPayload{Code: "internal_error", Message: "internal error"}
	}
	return StatusFromKind(de.Kind), ErrorPayload{Code: de.Code, Message: de.Message, Meta: de.Meta}
}

var kindStatus = map[domain.ErrKind]int{
	domain.KindValidation:     http.StatusBadRequest,
	domain.KindAuth:           http.StatusUnauthorized,
	domain.KindForbidden:      http.StatusForbidden,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindConflict:       http.StatusConflict,
	domain.KindRateLimited:    http.StatusTooManyRequests,
	domain.KindInfrastructure: http.StatusServiceUnavailable,
}

// StatusFromKind maps an error kind to its HTTP status; unknown kinds are 500.
func StatusFromKind(kind domain.ErrKind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

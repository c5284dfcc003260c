package response

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

// MaxBodyBytes caps request bodies. A check-auth body is a few hundred bytes.
const MaxBodyBytes = 64 << 10

// DecodeJSON reads exactly one JSON value from the body into dst. A missing
// Content-Type is tolerated; any other type than application/json is not.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return domain.ErrInvalidJSON(errors.New("content type must be application/json"))
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidJSON(err)
	}
	if dec.More() {
		return domain.ErrInvalidJSON(errors.New("multiple JSON values"))
	}
	return nil
}

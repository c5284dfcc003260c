package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/pkg/reqctx"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestInternalAuth(t *testing.T) {
	handler := InternalAuth("super-secret")(okHandler)

	cases := map[string]struct {
		header string
		want   int
	}{
		"missing header": {header: "", want: http.StatusUnauthorized},
		"wrong secret":   {header: "wrong-secret", want: http.StatusUnauthorized},
		"prefix only":    {header: "super", want: http.StatusUnauthorized},
		"correct secret": {header: "super-secret", want: http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/v1/check", nil)
			if tc.header != "" {
				req.Header.Set(HeaderInternalSecret, tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tc.want, rr.Code)
			if tc.want == http.StatusUnauthorized {
				assert.Contains(t, rr.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestInternalAuth_EmptySecretDisablesCheck(t *testing.T) {
	rr := httptest.NewRecorder()
	InternalAuth("")(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqctx.RequestID(r.Context())
	}))

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderXRequestID, "hs-req-1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, "hs-req-1", seen)
		assert.Equal(t, "hs-req-1", rr.Header().Get(HeaderXRequestID))
	})

	t.Run("mints when absent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rr.Header().Get(HeaderXRequestID))
	})

	t.Run("replaces id with control characters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderXRequestID, "abc\ninjected=1")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Len(t, seen, 36)
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderXRequestID, strings.Repeat("x", 500))
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Len(t, seen, 36)
	})
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/things/{id}", okHandler)

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/"+id, nil))
	}

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	assert.Contains(t, body, `mwauth_http_requests_total{code="200",method="GET",route="/things/{id}"}`)
	assert.NotContains(t, body, `route="/things/1"`)
}

func TestAccessLog_WritesLine(t *testing.T) {
	var buf bytes.Buffer
	lg := zerolog.New(&buf)

	h := RequestID(AccessLog(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/check", nil)
	req.Header.Set(HeaderXRequestID, "rid-9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/auth/v1/check"`)
	assert.Contains(t, out, `"request_id":"rid-9"`)
}

func TestAccessLog_ProbesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	lg := zerolog.New(&buf).Level(zerolog.InfoLevel)

	AccessLog(lg)(okHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, buf.String())
}

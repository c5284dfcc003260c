package http_handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	pingOK   = pingFunc(func(context.Context) error { return nil })
	pingDown = pingFunc(func(context.Context) error { return errors.New("down") })
)

func TestHealthz_OK(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandler().Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestReadyz(t *testing.T) {
	cases := map[string]struct {
		deps       []Dependency
		wantCode   int
		wantStatus string
	}{
		"all up": {
			deps:       []Dependency{{Name: "postgres", Pinger: pingOK}, {Name: "redis", Pinger: pingOK, Optional: true}},
			wantCode:   http.StatusOK,
			wantStatus: `"status":"ready"`,
		},
		"optional down": {
			deps:       []Dependency{{Name: "postgres", Pinger: pingOK}, {Name: "redis", Pinger: pingDown, Optional: true}},
			wantCode:   http.StatusOK,
			wantStatus: `"status":"degraded"`,
		},
		"required down": {
			deps:       []Dependency{{Name: "postgres", Pinger: pingDown}, {Name: "redis", Pinger: pingDown, Optional: true}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: `"status":"unavailable"`,
		},
		"no deps": {
			wantCode:   http.StatusOK,
			wantStatus: `"status":"ready"`,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewHealthHandler(tc.deps...).Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tc.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.wantStatus)
		})
	}
}

type mockPinger struct{ mock.Mock }

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestReadyz_PingsEachDependencyOnce(t *testing.T) {
	db := &mockPinger{}
	db.On("Ping", mock.Anything).Return(nil).Once()
	cache := &mockPinger{}
	cache.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()

	rr := httptest.NewRecorder()
	NewHealthHandler(
		Dependency{Name: "postgres", Pinger: db},
		Dependency{Name: "redis", Pinger: cache, Optional: true},
	).Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"postgres":"ok","redis":"unavailable"}}`, rr.Body.String())
	db.AssertExpectations(t)
	cache.AssertExpectations(t)
}

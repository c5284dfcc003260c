package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCheckAuth_IncrementsByResult(t *testing.T) {
	before := testutil.ToFloat64(checkAuthTotal.WithLabelValues(ResultMismatch))

	RecordCheckAuth(ResultMismatch)
	RecordCheckAuth(ResultMismatch)

	assert.Equal(t, before+2, testutil.ToFloat64(checkAuthTotal.WithLabelValues(ResultMismatch)))
}

func TestRecordProvisioned(t *testing.T) {
	before := testutil.ToFloat64(accountsProvisionedTotal)
	RecordProvisioned()
	assert.Equal(t, before+1, testutil.ToFloat64(accountsProvisionedTotal))
}

func TestSetDependencyHealth(t *testing.T) {
	SetDependencyHealth("redis", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(dependencyHealth.WithLabelValues("redis")))

	SetDependencyHealth("redis", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(dependencyHealth.WithLabelValues("redis")))
}

func TestHandler_ExposesNamespace(t *testing.T) {
	RecordCheckAuth(ResultSuccess)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "mwauth_check_auth_total"))
}

func TestObserveHTTP(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/auth/v1/check", "401"))
	ObserveHTTP("POST", "/auth/v1/check", 401, 30*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/auth/v1/check", "401")))
}

func TestHTTPStarted_TracksInFlight(t *testing.T) {
	before := testutil.ToFloat64(httpInFlight)
	done := HTTPStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(httpInFlight))
	done()
	assert.Equal(t, before, testutil.ToFloat64(httpInFlight))
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mwauth"

// Check-auth outcomes.
const (
	ResultSuccess       = "success"
	ResultInvalid       = "invalid_request"
	ResultOAuthFailed   = "oauth_failed"
	ResultIdentifyFail  = "identify_failed"
	ResultMismatch      = "username_mismatch"
	ResultProvisionFail = "provisioning_failed"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern",
			// check-auth waits on two wiki round trips
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		},
	)

	checkAuthTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_auth_total",
			Help:      "Total number of check-auth calls by outcome",
		},
		[]string{"result"},
	)

	accountsProvisionedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_provisioned_total",
			Help:      "Total number of accounts created on first login",
		},
	)

	registrationRacesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_races_total",
			Help:      "Registrations that found the account already created by a concurrent login",
		},
	)

	// Dependency health metrics
	dependencyHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dependency_health",
			Help:      "Health status of dependencies (1 = healthy, 0 = unhealthy)",
		},
		[]string{"dependency"},
	)
)

// HTTPStarted marks a request in flight; call the returned func when it ends.
func HTTPStarted() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

func ObserveHTTP(method, route string, code int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordCheckAuth(result string) {
	checkAuthTotal.WithLabelValues(result).Inc()
}

func RecordProvisioned() {
	accountsProvisionedTotal.Inc()
}

func RecordRegistrationRace() {
	registrationRacesTotal.Inc()
}

// SetDependencyHealth sets the health status of a dependency
func SetDependencyHealth(dependency string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	dependencyHealth.WithLabelValues(dependency).Set(value)
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

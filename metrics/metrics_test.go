package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveRegistration("patient", OutcomeCreated, time.Now())
	m.ObserveRegistration("patient", OutcomeConflict, time.Now())
	m.ObserveRegistration("patient", OutcomeConflict, time.Now())
	m.IncrementConflict("email")
	m.IncrementCompensationFailure()
	m.ObserveProxyRequest(http.MethodGet, http.StatusOK, time.Now())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Registrations.WithLabelValues("patient", OutcomeCreated)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Registrations.WithLabelValues("patient", OutcomeConflict)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RegistrationConflict.WithLabelValues("email")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CompensationFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProxyRequests.WithLabelValues(http.MethodGet, "200")))

	t.Run("exposition", func(t *testing.T) {
		response := httptest.NewRecorder()
		m.Handler().ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, response.Code)
		assert.Contains(t, response.Body.String(), `beetamin_registrations_total{outcome="created",role="patient"} 1`)
		assert.Contains(t, response.Body.String(), "beetamin_registration_compensation_failures_total 1")
		assert.Contains(t, response.Body.String(), "go_goroutines")
	})
	t.Run("separate instances don't collide", func(t *testing.T) {
		assert.NotPanics(t, func() {
			New()
		})
	})
}

package metricsvc

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
	m.LoginAttempt(LoginSuccess)
	m.LoginAttempt(LoginInvalid)
	m.LoginAttempt(LoginInvalid)
	m.GateRejection("missing_token")
	m.ObserveRequest(http.MethodGet, "/api/perfil", http.StatusOK, 12*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues(LoginInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gateRejections.WithLabelValues("missing_token")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `escuela_login_attempts_total{outcome="invalid_credentials"} 2`)
}

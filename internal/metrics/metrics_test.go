package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.CredentialAttempt(OutcomeRejected)
	m.CredentialAttempt(OutcomeRejected)
	m.CredentialAttempt(OutcomeChallenged)
	m.SecondFactorAttempt(OutcomeFailure)
	m.SessionCreated()
	m.Logout()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.credentialAttempts.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.credentialAttempts.WithLabelValues(OutcomeChallenged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.secondFactorAttempts.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logouts))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CredentialAttempt(OutcomeAccepted)
	m.SecondFactorAttempt(OutcomeSuccess)
	m.SessionCreated()
	m.Logout()
	m.ObserveRequest("/", http.MethodGet, 200, time.Millisecond)
	m.RegisterAuditCounters(nil, nil)
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("/login", http.MethodPost, http.StatusFound, 5*time.Millisecond)
	m.RegisterAuditCounters(func() uint64 { return 3 }, func() uint64 { return 0 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `login_http_requests_total{method="POST",route="/login",status="302"} 1`)
	assert.Contains(t, string(body), "login_audit_dropped_total 3")
	assert.Contains(t, string(body), "go_goroutines")
}

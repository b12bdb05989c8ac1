package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersAndGauge(t *testing.T) {
	m := New()

	m.SetActiveConnections(3)
	m.MessageAppended()
	m.MessageAppended()
	m.PersistFailed()

	require.Equal(t, 3.0, testutil.ToFloat64(m.activeConnections))
	require.Equal(t, 2.0, testutil.ToFloat64(m.messagesTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SetActiveConnections(1)
	m.MessageAppended()
	m.LogCleared()
	m.AdmissionRejected()
	m.ConnectionEvicted()
	m.PersistFailed()
	m.PersistSucceeded()
	require.NotNil(t, m.Handler())
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.LogCleared()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "wirechat_clears_total 1"), string(body))
}

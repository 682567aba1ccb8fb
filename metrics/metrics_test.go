package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstancesDoNotCollide(t *testing.T) {
	a := New()
	b := New()
	a.SessionsStarted.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.SessionsStarted))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SessionsStarted))
}

func TestStopReasonsLabelled(t *testing.T) {
	m := New()
	m.SessionsStopped.WithLabelValues("silence").Inc()
	m.SessionsStopped.WithLabelValues("silence").Inc()
	m.SessionsStopped.WithLabelValues("requested").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsStopped.WithLabelValues("silence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsStopped.WithLabelValues("requested")))
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.TranscriptionRequests.Inc()
	m.TranscriptionDuration.Observe(0.4)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "medilingua_transcription_requests_total 1")
	assert.Contains(t, string(body), "medilingua_transcription_duration_seconds_count 1")

	resp, err = http.Get(srv.URL + "/debug/pprof/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

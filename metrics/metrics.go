// Package metrics exposes session and service counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	// Capture sessions
	SessionsStarted  prometheus.Counter
	StartFailures    *prometheus.CounterVec
	SessionsStopped  *prometheus.CounterVec
	RecordingSeconds prometheus.Histogram
	RecordingBytes   prometheus.Histogram
	Recording        prometheus.Gauge

	// Backend calls
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionEmpty    prometheus.Counter
	TranscriptionDuration prometheus.Histogram
	TranslationRequests   prometheus.Counter
	TranslationFailures   prometheus.Counter
	TranslationDuration   prometheus.Histogram
}

// New registers every metric on a fresh registry so tests and multiple
// instances never collide on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "medilingua_sessions_started_total",
			Help: "Capture sessions that acquired a stream",
		}),
		StartFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medilingua_session_start_failures_total",
			Help: "Capture sessions that failed to acquire a stream",
		}, []string{"cause"}),
		SessionsStopped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medilingua_sessions_stopped_total",
			Help: "Capture sessions finalized, by stop reason",
		}, []string{"reason"}),
		RecordingSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "medilingua_recording_duration_seconds",
			Help:    "Length of finalized recordings",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8 minutes
		}),
		RecordingBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "medilingua_recording_size_bytes",
			Help:    "Size of finalized recordings",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
		Recording: f.NewGauge(prometheus.GaugeOpts{
			Name: "medilingua_recording",
			Help: "1 while a capture session is recording",
		}),

		TranscriptionRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "medilingua_transcription_requests_total",
			Help: "Recordings uploaded for transcription",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "medilingua_transcription_failures_total",
			Help: "Transcription requests that failed",
		}),
		TranscriptionEmpty: f.NewCounter(prometheus.CounterOpts{
			Name: "medilingua_transcription_empty_total",
			Help: "Transcription requests that returned no text",
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "medilingua_transcription_duration_seconds",
			Help:    "Round trip of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),
		TranslationRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "medilingua_translation_requests_total",
			Help: "Translation requests sent",
		}),
		TranslationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "medilingua_translation_failures_total",
			Help: "Translation requests that failed",
		}),
		TranslationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "medilingua_translation_duration_seconds",
			Help:    "Round trip of translation requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}

// Handler serves /metrics and the pprof endpoints.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Serve runs the metrics endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

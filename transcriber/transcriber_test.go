package transcriber

import (
	"net/http"
	"testing"
	"time"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Request-Id", "abc")

	if got := firstNonEmpty(h, "X-Missing", "X-Request-Id"); got != "abc" {
		t.Errorf("got %q, want %q", got, "abc")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestHealthOK(t *testing.T) {
	for _, tt := range []struct {
		status string
		want   bool
	}{
		{"ok", true},
		{"warning", false},
		{"error", false},
	} {
		h := &Health{Status: tt.status}
		if got := h.OK(); got != tt.want {
			t.Errorf("Health{%q}.OK() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

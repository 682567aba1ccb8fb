package capture

import "time"

const (
	DefaultSampleInterval     = 100 * time.Millisecond
	DefaultSilenceDuration    = 2 * time.Second
	DefaultAmplitudeThreshold = 5.0
)

// silenceMonitor is a level-crossing debounce: it reports true once the
// amplitude has stayed below threshold for at least duration. Any sample at
// or above threshold resets the clock.
type silenceMonitor struct {
	threshold float64
	duration  time.Duration

	start time.Time // zero while not in silence
}

func newSilenceMonitor(threshold float64, duration time.Duration) *silenceMonitor {
	return &silenceMonitor{threshold: threshold, duration: duration}
}

func (m *silenceMonitor) Tick(amplitude float64, now time.Time) bool {
	if amplitude >= m.threshold {
		m.start = time.Time{}
		return false
	}
	if m.start.IsZero() {
		m.start = now
		return false
	}
	return now.Sub(m.start) >= m.duration
}

func (m *silenceMonitor) Reset() { m.start = time.Time{} }

// SilentFor reports how long the current silence has lasted.
func (m *silenceMonitor) SilentFor(now time.Time) time.Duration {
	if m.start.IsZero() {
		return 0
	}
	return now.Sub(m.start)
}

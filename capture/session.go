// Package capture records one microphone take at a time and ends it on its
// own once the speaker has been quiet long enough.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medilingua/audio"
)

var (
	ErrAcquire       = errors.New("acquire audio stream")
	ErrNotRecording  = errors.New("no recording in progress")
	ErrSessionClosed = errors.New("capture session already finished")
)

type StopReason int

const (
	StopRequested StopReason = iota
	StopSilence
)

func (r StopReason) String() string {
	switch r {
	case StopRequested:
		return "requested"
	case StopSilence:
		return "silence"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Recording is the finalized audio of one session: every fragment the
// stream produced, concatenated in arrival order.
type Recording struct {
	SessionID uuid.UUID
	Format    audio.Format
	Data      []byte
	Fragments int
	StartedAt time.Time
	StoppedAt time.Time
	Reason    StopReason
}

func (r *Recording) Duration() time.Duration {
	return r.StoppedAt.Sub(r.StartedAt)
}

type Options struct {
	SilenceDuration    time.Duration
	AmplitudeThreshold float64
	SampleInterval     time.Duration
	Constraints        audio.Constraints
	Clock              Clock
	Logger             *zerolog.Logger
	// OnStop runs once, after the recording is finalized, whichever way
	// the session ended.
	OnStop func(*Recording)
	// OnSample sees every amplitude the sampler computes. It runs on the
	// sampler goroutine and must not call Stop.
	OnSample func(amplitude float64)
}

// DefaultOptions returns the stock thresholds with every stream
// constraint enabled.
func DefaultOptions() Options {
	return Options{
		SilenceDuration:    DefaultSilenceDuration,
		AmplitudeThreshold: DefaultAmplitudeThreshold,
		SampleInterval:     DefaultSampleInterval,
		Constraints:        audio.DefaultConstraints(),
	}
}

func (o Options) withDefaults() Options {
	if o.SilenceDuration <= 0 {
		o.SilenceDuration = DefaultSilenceDuration
	}
	if o.AmplitudeThreshold <= 0 {
		o.AmplitudeThreshold = DefaultAmplitudeThreshold
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = DefaultSampleInterval
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

type state int

const (
	stateIdle state = iota
	stateStarting
	stateRecording
	stateStopping
	stateStopped
)

type Session struct {
	id       uuid.UUID
	provider audio.Provider
	opts     Options
	log      zerolog.Logger
	done     chan struct{}

	mu          sync.Mutex
	state       state
	stream      audio.Stream
	fragments   [][]byte
	monitor     *silenceMonitor
	startedAt   time.Time
	samplerStop chan struct{}
	samplerDone chan struct{}
	recording   *Recording
}

func NewSession(provider audio.Provider, opts Options) *Session {
	opts = opts.withDefaults()
	id := uuid.New()
	return &Session{
		id:       id,
		provider: provider,
		opts:     opts,
		log:      opts.Logger.With().Str("session", id.String()).Logger(),
		done:     make(chan struct{}),
		monitor:  newSilenceMonitor(opts.AmplitudeThreshold, opts.SilenceDuration),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

// Done is closed once the recording has been finalized.
func (s *Session) Done() <-chan struct{} { return s.done }

// Recording returns the finalized recording, or nil before Done.
func (s *Session) Recording() *Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *Session) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRecording
}

// Start acquires the input stream and begins buffering and sampling.
// Acquisition is the only step that waits on the outside world; it has no
// timeout of its own beyond ctx. On failure nothing stays acquired.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateStarting, stateRecording:
		s.mu.Unlock()
		s.log.Warn().Msg("recording already in progress")
		return nil
	case stateStopping, stateStopped:
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.state = stateStarting
	s.mu.Unlock()

	stream, err := s.provider.Acquire(ctx, s.opts.Constraints)
	if err != nil {
		s.reset()
		s.log.Error().Err(err).Msg("acquire_failed")
		return fmt.Errorf("%w: %w", ErrAcquire, err)
	}

	s.mu.Lock()
	s.stream = stream
	s.fragments = nil
	s.mu.Unlock()

	if err := stream.Start(s.onFragment); err != nil {
		err = errors.Join(err, stream.Stop())
		s.reset()
		s.log.Error().Err(err).Msg("stream_start_failed")
		return fmt.Errorf("%w: %w", ErrAcquire, err)
	}

	s.mu.Lock()
	s.state = stateRecording
	s.startedAt = s.opts.Clock.Now()
	s.monitor.Reset()
	s.samplerStop = make(chan struct{})
	s.samplerDone = make(chan struct{})
	go s.sample(stream, s.opts.Clock.NewTicker(s.opts.SampleInterval), s.samplerStop, s.samplerDone)
	s.mu.Unlock()

	s.log.Info().
		Str("format", stream.Format().MimeType).
		Dur("silence", s.opts.SilenceDuration).
		Float64("threshold", s.opts.AmplitudeThreshold).
		Msg("recording_start")
	return nil
}

func (s *Session) reset() {
	s.mu.Lock()
	s.state = stateIdle
	s.stream = nil
	s.fragments = nil
	s.mu.Unlock()
}

func (s *Session) onFragment(fragment []byte) {
	if len(fragment) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateStarting, stateRecording, stateStopping:
		s.fragments = append(s.fragments, fragment)
	}
}

func (s *Session) sample(stream audio.Stream, ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	bins := make([]byte, stream.FrequencyBinCount())
	for {
		var now time.Time
		select {
		case <-stop:
			return
		case now = <-ticker.C():
		}

		stream.FrequencyData(bins)
		amplitude := audio.Amplitude(bins)
		if s.opts.OnSample != nil {
			s.opts.OnSample(amplitude)
		}

		s.mu.Lock()
		if s.state != stateRecording {
			s.mu.Unlock()
			return
		}
		silent := s.monitor.Tick(amplitude, now)
		silentFor := s.monitor.SilentFor(now)
		s.mu.Unlock()

		if silent {
			s.log.Info().
				Dur("silence", s.opts.SilenceDuration).
				Dur("silent_for", silentFor).
				Msg("silence_auto_stop")
			s.stop(StopSilence, true)
			return
		}
	}
}

// Stop ends the recording and returns it once the device has confirmed.
// Only the first call does the teardown; any other call, including one
// racing with the silence auto-stop, gets ErrNotRecording.
func (s *Session) Stop() (*Recording, error) {
	return s.stop(StopRequested, false)
}

func (s *Session) stop(reason StopReason, fromSampler bool) (*Recording, error) {
	s.mu.Lock()
	if s.state != stateRecording {
		s.mu.Unlock()
		if !fromSampler {
			s.log.Warn().Msg("no recording in progress")
		}
		return nil, ErrNotRecording
	}
	s.state = stateStopping
	stream := s.stream
	samplerStop, samplerDone := s.samplerStop, s.samplerDone
	s.mu.Unlock()

	close(samplerStop)
	if !fromSampler {
		<-samplerDone
	}

	stopErr := stream.Stop()

	s.mu.Lock()
	rec := &Recording{
		SessionID: s.id,
		Format:    stream.Format(),
		Data:      bytes.Join(s.fragments, nil),
		Fragments: len(s.fragments),
		StartedAt: s.startedAt,
		StoppedAt: s.opts.Clock.Now(),
		Reason:    reason,
	}
	s.fragments = nil
	s.stream = nil
	s.monitor.Reset()
	s.state = stateStopped
	s.recording = rec
	s.mu.Unlock()
	close(s.done)

	ev := s.log.Info()
	if stopErr != nil {
		ev = s.log.Warn().Err(stopErr)
	}
	ev.Str("reason", reason.String()).
		Int("fragments", rec.Fragments).
		Int("bytes", len(rec.Data)).
		Dur("duration", rec.Duration()).
		Msg("recording_stop")

	if s.opts.OnStop != nil {
		s.opts.OnStop(rec)
	}
	if stopErr != nil {
		return rec, fmt.Errorf("stop stream: %w", stopErr)
	}
	return rec, nil
}

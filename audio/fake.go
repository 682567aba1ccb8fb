package audio

import (
	"context"
	"sync"
	"sync/atomic"
)

const fakeBinCount = 1024

// FakeProvider hands out FakeStreams. Amplitudes are replayed one per
// FrequencyData call; the last value repeats once the script runs out.
type FakeProvider struct {
	Err        error
	Amplitudes []byte
	Format     Format

	acquired atomic.Int32
	released atomic.Int32

	mu      sync.Mutex
	streams []*FakeStream
}

func NewFakeProvider(amplitudes ...byte) *FakeProvider {
	return &FakeProvider{Amplitudes: amplitudes, Format: PCM16()}
}

func (p *FakeProvider) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	p.acquired.Add(1)
	s := &FakeStream{
		provider:    p,
		constraints: c,
		format:      p.Format,
		amplitudes:  append([]byte(nil), p.Amplitudes...),
	}
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()
	return s, nil
}

func (p *FakeProvider) Acquired() int { return int(p.acquired.Load()) }
func (p *FakeProvider) Released() int { return int(p.released.Load()) }

// Last returns the most recently acquired stream.
func (p *FakeProvider) Last() *FakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streams) == 0 {
		return nil
	}
	return p.streams[len(p.streams)-1]
}

type FakeStream struct {
	provider    *FakeProvider
	constraints Constraints
	format      Format

	// StartErr makes Start fail after acquisition.
	StartErr error
	// Tail is emitted while Stop waits for the device to confirm.
	Tail [][]byte

	mu         sync.Mutex
	fn         FragmentFunc
	amplitudes []byte
	samples    int
	stopped    bool
}

func (s *FakeStream) Constraints() Constraints { return s.constraints }
func (s *FakeStream) Format() Format           { return s.format }
func (s *FakeStream) FrequencyBinCount() int   { return fakeBinCount }

func (s *FakeStream) Start(fn FragmentFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StartErr != nil {
		return s.StartErr
	}
	s.fn = fn
	return nil
}

// Emit delivers a fragment as if the device produced it.
func (s *FakeStream) Emit(fragment []byte) {
	s.mu.Lock()
	fn := s.fn
	stopped := s.stopped
	s.mu.Unlock()
	if fn == nil || stopped {
		return
	}
	fn(append([]byte(nil), fragment...))
}

func (s *FakeStream) FrequencyData(dst []byte) {
	s.mu.Lock()
	var level byte
	if n := len(s.amplitudes); n > 0 {
		level = s.amplitudes[min(s.samples, n-1)]
	}
	s.samples++
	s.mu.Unlock()
	for i := range dst {
		dst[i] = level
	}
}

// Samples reports how many snapshots were taken.
func (s *FakeStream) Samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

func (s *FakeStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	fn := s.fn
	tail := s.Tail
	s.mu.Unlock()

	if fn != nil {
		for _, f := range tail {
			fn(append([]byte(nil), f...))
		}
	}

	s.mu.Lock()
	s.stopped = true
	s.fn = nil
	s.mu.Unlock()
	s.provider.released.Add(1)
	return nil
}

func (s *FakeStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

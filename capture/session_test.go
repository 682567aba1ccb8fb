package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medilingua/audio"
)

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func newManualClock() *manualClock { return &manualClock{now: t0} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *manualClock) ticker(t *testing.T) *manualTicker {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.tickers, 1, "expected exactly one sampler")
	return c.tickers[0]
}

// tick delivers one sampler tick at the given offset. It returns false if
// the session finished instead of taking the tick. Because the ticker is
// unbuffered, a successful tick means the previous one was fully handled.
func (c *manualClock) tick(t *testing.T, s *Session, ms int) bool {
	t.Helper()
	now := at(ms)
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	select {
	case c.ticker(t).ch <- now:
		return true
	case <-s.Done():
		return false
	case <-time.After(2 * time.Second):
		t.Fatalf("sampler did not take tick at %dms", ms)
		return false
	}
}

func waitDone(t *testing.T, s *Session) *Recording {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
	rec := s.Recording()
	require.NotNil(t, rec)
	return rec
}

func newTestSession(p audio.Provider, clk *manualClock) *Session {
	opts := DefaultOptions()
	opts.Clock = clk
	return NewSession(p, opts)
}

func TestStartAcquiresWithConstraints(t *testing.T) {
	p := audio.NewFakeProvider(50)
	s := newTestSession(p, newManualClock())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRecording())
	assert.Equal(t, 1, p.Acquired())
	assert.Equal(t, audio.DefaultConstraints(), p.Last().Constraints())

	_, err := s.Stop()
	require.NoError(t, err)
}

func TestFragmentsConcatenateInOrder(t *testing.T) {
	p := audio.NewFakeProvider(50)
	s := newTestSession(p, newManualClock())
	require.NoError(t, s.Start(context.Background()))

	stream := p.Last()
	parts := [][]byte{[]byte("RIFF"), {}, []byte("abc"), []byte("0123456789")}
	for _, part := range parts {
		stream.Emit(part)
	}
	stream.Tail = [][]byte{[]byte("tail")}

	rec, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFabc0123456789tail"), rec.Data)
	assert.Equal(t, 4, rec.Fragments, "empty fragments are dropped")
	assert.Equal(t, StopRequested, rec.Reason)
	assert.Equal(t, s.ID(), rec.SessionID)
	assert.Equal(t, audio.PCM16(), rec.Format)
}

func TestFragmentsAfterStopIgnored(t *testing.T) {
	p := audio.NewFakeProvider(50)
	s := newTestSession(p, newManualClock())
	require.NoError(t, s.Start(context.Background()))
	stream := p.Last()
	stream.Emit([]byte("one"))

	rec, err := s.Stop()
	require.NoError(t, err)
	stream.Emit([]byte("two"))

	assert.Equal(t, []byte("one"), rec.Data)
	assert.Equal(t, []byte("one"), s.Recording().Data)
}

func TestStopTwiceReleasesOnce(t *testing.T) {
	p := audio.NewFakeProvider(50)
	s := newTestSession(p, newManualClock())
	require.NoError(t, s.Start(context.Background()))

	first, err := s.Stop()
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.Nil(t, second)
	assert.Equal(t, 1, p.Released())
	assert.True(t, p.Last().Stopped())
}

func TestConcurrentStopProducesOneRecording(t *testing.T) {
	p := audio.NewFakeProvider(50)
	var stops int
	var mu sync.Mutex
	opts := DefaultOptions()
	opts.Clock = newManualClock()
	opts.OnStop = func(*Recording) {
		mu.Lock()
		stops++
		mu.Unlock()
	}
	s := NewSession(p, opts)
	require.NoError(t, s.Start(context.Background()))

	var wg sync.WaitGroup
	recs := make(chan *Recording, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rec, err := s.Stop(); err == nil {
				recs <- rec
			}
		}()
	}
	wg.Wait()
	close(recs)

	assert.Len(t, recs, 1)
	assert.Equal(t, 1, stops)
	assert.Equal(t, 1, p.Released())
}

func TestStopWithoutStart(t *testing.T) {
	p := audio.NewFakeProvider()
	s := newTestSession(p, newManualClock())

	rec, err := s.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.Nil(t, rec)
	assert.Zero(t, p.Released())
}

func TestStartWhileRecordingIsNoop(t *testing.T) {
	p := audio.NewFakeProvider(50)
	clk := newManualClock()
	s := newTestSession(p, clk)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, 1, p.Acquired())
	clk.ticker(t) // still exactly one sampler

	_, err := s.Stop()
	require.NoError(t, err)
}

func TestCannotRestart(t *testing.T) {
	p := audio.NewFakeProvider(50)
	s := newTestSession(p, newManualClock())
	require.NoError(t, s.Start(context.Background()))
	_, err := s.Stop()
	require.NoError(t, err)

	assert.ErrorIs(t, s.Start(context.Background()), ErrSessionClosed)
	assert.Equal(t, 1, p.Acquired())
}

func TestPermissionDenied(t *testing.T) {
	p := audio.NewFakeProvider(2)
	p.Err = audio.ErrPermissionDenied
	clk := newManualClock()
	s := newTestSession(p, clk)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcquire)
	assert.ErrorIs(t, err, audio.ErrPermissionDenied)
	assert.False(t, s.IsRecording())
	assert.Zero(t, p.Acquired())
	assert.Empty(t, clk.tickers, "no sampler may be created")
	assert.Nil(t, s.Recording())

	_, err = s.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
}

type failingStartProvider struct {
	*audio.FakeProvider
}

func (p failingStartProvider) Acquire(ctx context.Context, c audio.Constraints) (audio.Stream, error) {
	st, err := p.FakeProvider.Acquire(ctx, c)
	if err != nil {
		return nil, err
	}
	fs := st.(*audio.FakeStream)
	fs.StartErr = errors.New("encoder unavailable")
	return fs, nil
}

func TestStreamStartFailureReleasesDevice(t *testing.T) {
	fake := audio.NewFakeProvider(50)
	clk := newManualClock()
	s := newTestSession(failingStartProvider{fake}, clk)

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrAcquire)
	assert.Equal(t, 1, fake.Acquired())
	assert.Equal(t, 1, fake.Released())
	assert.Empty(t, clk.tickers)
	assert.False(t, s.IsRecording())
}

func TestStartHonoursContext(t *testing.T) {
	p := audio.NewFakeProvider(50)
	s := newTestSession(p, newManualClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.Acquired())
}

func TestSustainedSilenceAutoStops(t *testing.T) {
	p := audio.NewFakeProvider(2)
	clk := newManualClock()
	s := newTestSession(p, clk)
	require.NoError(t, s.Start(context.Background()))
	p.Last().Emit([]byte("speech"))

	// 100ms sampling: silence starts at tick 1 (100ms); elapsed reaches
	// 2000ms at tick 21 (2100ms), which must be the one that stops.
	for i := 1; i <= 21; i++ {
		require.True(t, clk.tick(t, s, i*100), "session stopped before tick %d", i)
	}
	rec := waitDone(t, s)

	assert.False(t, clk.tick(t, s, 2200), "sampler kept running after auto stop")
	assert.Equal(t, StopSilence, rec.Reason)
	assert.Equal(t, []byte("speech"), rec.Data)
	assert.Equal(t, 21, p.Last().Samples())
	assert.Equal(t, 1, p.Released())
	assert.False(t, s.IsRecording())

	_, err := s.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.Equal(t, 1, p.Released())
}

func TestSilenceStopNotBeforeDuration(t *testing.T) {
	p := audio.NewFakeProvider(2)
	clk := newManualClock()
	s := newTestSession(p, clk)
	require.NoError(t, s.Start(context.Background()))

	for i := 1; i <= 20; i++ {
		require.True(t, clk.tick(t, s, i*100))
	}
	// Tick 21 being accepted proves tick 20 (1900ms of silence) did not stop.
	require.True(t, clk.tick(t, s, 2100))
	waitDone(t, s)
}

func TestIntermittentSoundKeepsRecording(t *testing.T) {
	levels := make([]byte, 0, 300)
	for i := 0; i < 300; i++ {
		if i%3 == 2 {
			levels = append(levels, 8)
		} else {
			levels = append(levels, 2)
		}
	}
	p := audio.NewFakeProvider(levels...)
	clk := newManualClock()
	s := newTestSession(p, clk)
	require.NoError(t, s.Start(context.Background()))

	for i := 1; i <= 300; i++ {
		require.True(t, clk.tick(t, s, i*100), "auto stop at tick %d", i)
	}
	assert.True(t, s.IsRecording())

	rec, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, StopRequested, rec.Reason)
	select {
	case <-clk.ticker(t).stopped:
	default:
		t.Fatal("sampler ticker not stopped")
	}
}

func TestSoundResetsSilenceClock(t *testing.T) {
	levels := append(bytes.Repeat([]byte{2}, 15), 40, 2)
	p := audio.NewFakeProvider(levels...)
	clk := newManualClock()
	s := newTestSession(p, clk)
	require.NoError(t, s.Start(context.Background()))

	// 1400ms of quiet, then one loud tick at 1600ms.
	for i := 1; i <= 16; i++ {
		require.True(t, clk.tick(t, s, i*100))
	}
	// New dip starts at 1700ms and must run the full two seconds.
	for ms := 1700; ms <= 3700; ms += 100 {
		require.True(t, clk.tick(t, s, ms), "stopped early at %dms", ms)
	}
	rec := waitDone(t, s)
	assert.Equal(t, StopSilence, rec.Reason)
	assert.Equal(t, 37, p.Last().Samples())
}

func TestOnStopSeesRecording(t *testing.T) {
	p := audio.NewFakeProvider(50)
	got := make(chan *Recording, 1)
	opts := DefaultOptions()
	opts.Clock = newManualClock()
	opts.OnStop = func(r *Recording) { got <- r }
	s := NewSession(p, opts)
	require.NoError(t, s.Start(context.Background()))
	p.Last().Emit(bytes.Repeat([]byte{1}, 32))

	rec, err := s.Stop()
	require.NoError(t, err)
	assert.Same(t, rec, <-got)
}

func TestOnSampleSeesEachAmplitude(t *testing.T) {
	p := audio.NewFakeProvider(9, 3, 7)
	clk := newManualClock()
	var mu sync.Mutex
	var seen []float64
	opts := DefaultOptions()
	opts.Clock = clk
	opts.OnSample = func(a float64) {
		mu.Lock()
		seen = append(seen, a)
		mu.Unlock()
	}
	s := NewSession(p, opts)
	require.NoError(t, s.Start(context.Background()))
	for ms := 100; ms <= 400; ms += 100 {
		require.True(t, clk.tick(t, s, ms))
	}
	_, err := s.Stop()
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{9, 3, 7}, seen[:3])
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 2*time.Second, o.SilenceDuration)
	assert.Equal(t, 5.0, o.AmplitudeThreshold)
	assert.Equal(t, 100*time.Millisecond, o.SampleInterval)
	assert.NotNil(t, o.Clock)
	assert.NotNil(t, o.Logger)
}

func TestStopReasonString(t *testing.T) {
	assert.Equal(t, "requested", StopRequested.String())
	assert.Equal(t, "silence", StopSilence.String())
}

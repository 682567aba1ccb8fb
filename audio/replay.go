package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	replayFrameSize     = 1024
	replayBytesPerFrame = 2 // 16-bit mono
)

// ReplayProvider streams a WAV file as if it were a microphone. Once the
// file is exhausted it keeps emitting silence until stopped.
type ReplayProvider struct {
	pcm      []byte
	realtime bool

	mu   sync.Mutex
	last *replayStream
}

func NewReplayProvider(wavPath string, realtime bool) (*ReplayProvider, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", wavPath)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", wavPath, err)
	}
	if d.SampleRate != SampleRate || d.NumChans != Channels || d.BitDepth != BitsPerSample {
		return nil, fmt.Errorf("%s: want %d Hz mono 16-bit, got %d Hz %d ch %d-bit",
			wavPath, SampleRate, d.SampleRate, d.NumChans, d.BitDepth)
	}
	return &ReplayProvider{pcm: intsToPCM16(buf), realtime: realtime}, nil
}

func intsToPCM16(buf *goaudio.IntBuffer) []byte {
	out := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}

func (p *ReplayProvider) Acquire(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &replayStream{
		pcm:       p.pcm,
		realtime:  p.realtime,
		analyser:  NewAnalyser(),
		audioDone: make(chan struct{}),
	}
	if len(s.pcm) == 0 {
		close(s.audioDone)
	}
	p.mu.Lock()
	p.last = s
	p.mu.Unlock()
	return s, nil
}

// AudioDone is closed once the most recent stream has emitted the whole
// file. It is nil before the first Acquire.
func (p *ReplayProvider) AudioDone() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	return p.last.audioDone
}

type replayStream struct {
	pcm       []byte
	realtime  bool
	analyser  *Analyser
	audioDone chan struct{}

	mu       sync.Mutex
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (s *replayStream) Format() Format            { return PCM16() }
func (s *replayStream) FrequencyBinCount() int    { return s.analyser.BinCount() }
func (s *replayStream) FrequencyData(dst []byte)  { s.analyser.FrequencyData(dst) }
func (s *replayStream) AudioDone() <-chan struct{} { return s.audioDone }

func (s *replayStream) Start(fn FragmentFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return fmt.Errorf("replay stream already started")
	}
	s.stopCh = make(chan struct{})
	s.feedDone = make(chan struct{})

	interval := time.Millisecond
	if s.realtime {
		interval = time.Duration(replayFrameSize) * time.Second / time.Duration(SampleRate)
	}
	chunkBytes := replayFrameSize * replayBytesPerFrame

	go func(stop <-chan struct{}) {
		defer close(s.feedDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		silence := make([]byte, chunkBytes)
		pos := 0
		for {
			var chunk []byte
			if pos < len(s.pcm) {
				end := min(pos+chunkBytes, len(s.pcm))
				chunk = append([]byte(nil), s.pcm[pos:end]...)
				pos = end
				if pos == len(s.pcm) {
					close(s.audioDone)
				}
			} else {
				chunk = append([]byte(nil), silence...)
			}
			s.analyser.WritePCM16(chunk)
			fn(chunk)

			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}(s.stopCh)
	return nil
}

func (s *replayStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return nil
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	<-s.feedDone
	return nil
}

//go:build linux

package beep

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"medilingua/log"
)

type pulsePlayer struct {
	client  *pulse.Client
	samples map[Cue][]int16

	mu sync.Mutex // one cue at a time
	wg sync.WaitGroup
}

// New connects to the PulseAudio (or PipeWire) server for playback.
func New() (Player, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("MediLingua"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulsePlayer{client: c, samples: cueSamples()}, nil
}

func (p *pulsePlayer) Play(c Cue) {
	samples := p.samples[c]
	if len(samples) == 0 {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := p.play(samples); err != nil {
			log.Warnf("beep %s: %v", c, err)
		}
	}()
}

func (p *pulsePlayer) play(samples []int16) error {
	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := p.client.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(cp *proto.CreatePlaybackStream) {
			cp.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return err
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
	return nil
}

// Close waits for cues in flight, then disconnects.
func (p *pulsePlayer) Close() {
	p.wg.Wait()
	p.client.Close()
}

//go:build !linux

package beep

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"medilingua/log"
)

type malgoPlayer struct {
	ctx     *malgo.AllocatedContext
	samples map[Cue][]byte

	mu     sync.Mutex
	device *malgo.Device

	// read from the audio callback
	playing atomic.Pointer[[]byte]
	pos     atomic.Uint32
}

// New opens the default playback device through miniaudio.
func New() (Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo: %w", err)
	}
	p := &malgoPlayer{ctx: ctx, samples: make(map[Cue][]byte)}
	for c, s := range cueSamples() {
		p.samples[c] = toBytes(s)
	}
	if err := p.initDevice(); err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("malgo playback device: %w", err)
	}
	return p, nil
}

func (p *malgoPlayer) initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	dev, err := malgo.InitDevice(p.ctx.Context, config, malgo.DeviceCallbacks{Data: p.fill})
	if err != nil {
		return err
	}
	p.device = dev
	return nil
}

func (p *malgoPlayer) fill(out, _ []byte, frameCount uint32) {
	clear(out)
	samples := p.playing.Load()
	if samples == nil {
		return
	}
	pos := p.pos.Load()
	remaining := uint32(len(*samples)) - pos
	if remaining == 0 {
		p.playing.Store(nil)
		return
	}
	n := min(frameCount*2, remaining)
	copy(out[:n], (*samples)[pos:pos+n])
	p.pos.Store(pos + n)
}

func (p *malgoPlayer) Play(c Cue) {
	samples := p.samples[c]
	if len(samples) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return
	}
	p.device.Stop()
	p.pos.Store(0)
	p.playing.Store(&samples)
	if err := p.device.Start(); err != nil {
		// The device can go stale across sleep/wake; rebuild it once.
		p.device.Uninit()
		p.device = nil
		if err := p.initDevice(); err != nil {
			p.playing.Store(nil)
			log.Warnf("beep %s: %v", c, err)
			return
		}
		if err := p.device.Start(); err != nil {
			p.playing.Store(nil)
			log.Warnf("beep %s: %v", c, err)
		}
	}
}

func (p *malgoPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	p.ctx.Uninit()
	p.ctx.Free()
}

//go:build !linux

package audio

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type malgoProvider struct {
	ctx *malgo.AllocatedContext

	mu     sync.Mutex
	device *DeviceInfo
}

func NewProvider() (DeviceProvider, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: malgo: %v", ErrUnsupported, err)
	}
	return &malgoProvider{ctx: ctx}, nil
}

func (m *malgoProvider) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	var result []DeviceInfo
	for _, d := range devices {
		result = append(result, DeviceInfo{
			ID:   hex.EncodeToString(d.ID[:]),
			Name: d.Name(),
		})
	}
	return result, nil
}

func (m *malgoProvider) Select(device *DeviceInfo) {
	m.mu.Lock()
	m.device = device
	m.mu.Unlock()
}

func (m *malgoProvider) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

func (m *malgoProvider) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	devices, err := m.Devices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}

	m.mu.Lock()
	device := m.device
	m.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = Channels
	deviceConfig.SampleRate = SampleRate

	if device != nil {
		idBytes, err := hex.DecodeString(device.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid device ID: %w", err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
	}

	// miniaudio exposes no capture-side echo or noise processing.
	planProcessing(c, false).report("miniaudio")
	s := &malgoStream{gain: gainFor(c), analyser: NewAnalyser()}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			s.deliver(data)
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		// miniaudio reports a denied microphone prompt as a failed device init.
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	s.device = dev
	return s, nil
}

type malgoStream struct {
	device   *malgo.Device
	gain     int32
	analyser *Analyser

	mu      sync.Mutex
	fn      FragmentFunc
	stopped bool
}

func (s *malgoStream) Format() Format           { return PCM16() }
func (s *malgoStream) FrequencyBinCount() int   { return s.analyser.BinCount() }
func (s *malgoStream) FrequencyData(dst []byte) { s.analyser.FrequencyData(dst) }

func (s *malgoStream) deliver(data []byte) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn == nil {
		return
	}
	pcm := make([]byte, len(data))
	copy(pcm, data)
	applyGain(pcm, s.gain)
	s.analyser.WritePCM16(pcm)
	fn(pcm)
}

func (s *malgoStream) Start(fn FragmentFunc) error {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
	return s.device.Start()
}

func (s *malgoStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	err := s.device.Stop()
	s.device.Uninit()

	s.mu.Lock()
	s.fn = nil
	s.mu.Unlock()
	return err
}

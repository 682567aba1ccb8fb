//go:build linux

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseProvider struct {
	client *pulse.Client

	mu     sync.Mutex
	device *DeviceInfo
}

func NewProvider() (DeviceProvider, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("%w: pulse: %v", ErrUnsupported, err)
	}
	return &pulseProvider{client: c}, nil
}

func (p *pulseProvider) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	var devices []DeviceInfo
	for _, s := range sources {
		devices = append(devices, DeviceInfo{
			ID:   s.ID(),
			Name: s.Name(),
		})
	}
	return devices, nil
}

func (p *pulseProvider) Select(device *DeviceInfo) {
	p.mu.Lock()
	p.device = device
	p.mu.Unlock()
}

func (p *pulseProvider) Close() {
	p.client.Close()
}

func (p *pulseProvider) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	device := p.device
	p.mu.Unlock()

	var source *pulse.Source
	var err error
	if device != nil {
		source, err = p.client.SourceByID(device.ID)
	} else {
		source, err = p.client.DefaultSource()
	}
	if err != nil || source == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	proc := planProcessing(c, true)
	proc.report("pulse")
	return &pulseStream{
		client:   p.client,
		source:   source,
		gain:     gainFor(c),
		props:    proc.props,
		analyser: NewAnalyser(),
	}, nil
}

type pulseStream struct {
	client   *pulse.Client
	source   *pulse.Source
	gain     int32
	props    map[string]string // stream properties, e.g. filter.want
	analyser *Analyser

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func (s *pulseStream) Format() Format           { return PCM16() }
func (s *pulseStream) FrequencyBinCount() int   { return s.analyser.BinCount() }
func (s *pulseStream) FrequencyData(dst []byte) { s.analyser.FrequencyData(dst) }

func (s *pulseStream) Start(fn FragmentFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return fmt.Errorf("pulse stream already started")
	}

	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		if len(buf) == 0 {
			return 0, nil
		}
		data := make([]byte, len(buf)*2)
		for i, v := range buf {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
		}
		applyGain(data, s.gain)
		s.analyser.WritePCM16(data)
		fn(data)
		return len(buf), nil
	})

	stream, err := s.client.NewRecord(writer,
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordLatency(0.05),
		pulse.RecordSource(s.source),
		pulse.RecordMediaName("MediLingua dictation"),
		pulse.RecordRawOption(func(r *proto.CreateRecordStream) {
			vol := uint32(proto.VolumeNorm) * 3
			r.ChannelVolumes = proto.ChannelVolumes{vol}
			for k, v := range s.props {
				r.Properties[k] = proto.PropListString(v)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		stream.Start()
		<-s.stop
		stream.Stop()
		stream.Close()
	}()
	return nil
}

func (s *pulseStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return nil
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
	return nil
}

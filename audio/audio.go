package audio

import (
	"context"
	"errors"
	"strings"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoDevice         = errors.New("no capture device available")
	ErrUnsupported      = errors.New("audio capture not supported")
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Constraints are the processing features requested when acquiring a stream.
type Constraints struct {
	EchoCancellation bool `yaml:"echo_cancellation"`
	NoiseSuppression bool `yaml:"noise_suppression"`
	AutoGainControl  bool `yaml:"auto_gain_control"`
}

func DefaultConstraints() Constraints {
	return Constraints{EchoCancellation: true, NoiseSuppression: true, AutoGainControl: true}
}

// Format describes the native encoding of the fragments a stream emits.
type Format struct {
	MimeType      string
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// PCM reports whether fragments are raw little-endian signed PCM.
func (f Format) PCM() bool {
	return strings.HasPrefix(f.MimeType, "audio/L16")
}

func PCM16() Format {
	return Format{
		MimeType:      "audio/L16;rate=16000;channels=1",
		SampleRate:    SampleRate,
		Channels:      Channels,
		BitsPerSample: BitsPerSample,
	}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// FragmentFunc receives each encoded fragment as it becomes available.
// The slice is owned by the receiver.
type FragmentFunc func(fragment []byte)

// Provider hands out live input streams.
type Provider interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is one acquired input stream. It holds the device until Stop.
type Stream interface {
	Format() Format
	// Start begins encoding the stream into fragments delivered to fn.
	Start(fn FragmentFunc) error
	FrequencyBinCount() int
	// FrequencyData copies the current byte frequency snapshot into dst.
	FrequencyData(dst []byte)
	// Stop blocks until the device confirms, then releases it. Fragments
	// produced before confirmation are delivered before Stop returns.
	Stop() error
}

// DeviceProvider is a Provider backed by real hardware.
type DeviceProvider interface {
	Provider
	Devices() ([]DeviceInfo, error)
	Select(device *DeviceInfo)
	Close()
}

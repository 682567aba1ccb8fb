package audio

import (
	"encoding/binary"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	FFTSize         = 2048
	minDecibels     = -100.0
	maxDecibels     = -30.0
	smoothingFactor = 0.8
)

// Analyser keeps the most recent FFTSize samples of a stream and produces
// byte frequency snapshots on demand, scaled the way a browser analyser node
// scales them: windowed magnitudes, smoothed over time, mapped from
// [minDecibels, maxDecibels] onto 0..255.
type Analyser struct {
	mu       sync.Mutex
	ring     []float64
	pos      int
	window   []float64
	frame    []float64
	coeffs   []complex128
	smoothed []float64
	fft      *fourier.FFT
}

func NewAnalyser() *Analyser {
	a := &Analyser{
		ring:     make([]float64, FFTSize),
		window:   make([]float64, FFTSize),
		frame:    make([]float64, FFTSize),
		smoothed: make([]float64, FFTSize/2),
		fft:      fourier.NewFFT(FFTSize),
	}
	for n := range a.window {
		x := 2 * math.Pi * float64(n) / FFTSize
		a.window[n] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return a
}

func (a *Analyser) BinCount() int { return FFTSize / 2 }

// WritePCM16 appends little-endian 16-bit samples.
func (a *Analyser) WritePCM16(data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(binary.LittleEndian.Uint16(data[i:]))
		a.ring[a.pos] = float64(s) / 32768.0
		a.pos = (a.pos + 1) % FFTSize
	}
}

func (a *Analyser) FrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for n := range a.frame {
		a.frame[n] = a.ring[(a.pos+n)%FFTSize] * a.window[n]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	bins := min(len(dst), len(a.smoothed))
	for k := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[k]) / FFTSize
		a.smoothed[k] = smoothingFactor*a.smoothed[k] + (1-smoothingFactor)*mag
	}
	for k := 0; k < bins; k++ {
		dst[k] = toByte(a.smoothed[k])
	}
}

func toByte(mag float64) byte {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	scaled := math.Floor(255 / (maxDecibels - minDecibels) * (db - minDecibels))
	switch {
	case scaled < 0:
		return 0
	case scaled > 255:
		return 255
	}
	return byte(scaled)
}

// Amplitude is the average magnitude across frequency bins.
func Amplitude(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins))
}

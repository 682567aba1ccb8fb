package audio

import (
	"encoding/binary"
	"math/rand"
	"testing"
)

func noisePCM(n int, level float64, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := int16((r.Float64()*2 - 1) * level * 32767)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestAnalyserSilenceIsZero(t *testing.T) {
	a := NewAnalyser()
	a.WritePCM16(make([]byte, FFTSize*2))

	bins := make([]byte, a.BinCount())
	a.FrequencyData(bins)
	if got := Amplitude(bins); got != 0 {
		t.Fatalf("Amplitude(silence) = %v, want 0", got)
	}
}

func TestAnalyserNoiseAboveThreshold(t *testing.T) {
	a := NewAnalyser()
	bins := make([]byte, a.BinCount())
	for i := 0; i < 5; i++ {
		a.WritePCM16(noisePCM(FFTSize, 0.3, int64(i)))
		a.FrequencyData(bins)
	}
	if got := Amplitude(bins); got < 5 {
		t.Fatalf("Amplitude(noise) = %v, want >= 5", got)
	}
}

func TestAnalyserDecaysAfterSound(t *testing.T) {
	a := NewAnalyser()
	bins := make([]byte, a.BinCount())
	a.WritePCM16(noisePCM(FFTSize, 0.3, 1))
	a.FrequencyData(bins)
	loud := Amplitude(bins)

	a.WritePCM16(make([]byte, FFTSize*2))
	for i := 0; i < 100; i++ {
		a.FrequencyData(bins)
	}
	if quiet := Amplitude(bins); quiet >= loud {
		t.Fatalf("amplitude did not decay: loud=%v quiet=%v", loud, quiet)
	}
}

func TestAmplitude(t *testing.T) {
	for _, tt := range []struct {
		name string
		bins []byte
		want float64
	}{
		{"empty", nil, 0},
		{"flat", []byte{4, 4, 4, 4}, 4},
		{"mixed", []byte{0, 10, 255, 255}, 130},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := Amplitude(tt.bins); got != tt.want {
				t.Errorf("Amplitude(%v) = %v, want %v", tt.bins, got, tt.want)
			}
		})
	}
}

func TestApplyGainClamps(t *testing.T) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint16(data[0:], uint16(int16(100)))
	v := int16(-20000)
	binary.LittleEndian.PutUint16(data[2:], uint16(v))

	applyGain(data, agcGain)

	if got := int16(binary.LittleEndian.Uint16(data[0:])); got != 800 {
		t.Errorf("sample 0 = %d, want 800", got)
	}
	if got := int16(binary.LittleEndian.Uint16(data[2:])); got != -32768 {
		t.Errorf("sample 1 = %d, want -32768", got)
	}
}

func TestIsBluetooth(t *testing.T) {
	if !IsBluetooth("AirPods Pro") {
		t.Error("AirPods Pro should be bluetooth")
	}
	if IsBluetooth("Built-in Microphone") {
		t.Error("Built-in Microphone should not be bluetooth")
	}
}

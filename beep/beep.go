// Package beep plays the short audible cues that mark the start and end of
// a dictation, so the user knows the microphone state without looking.
package beep

import "math"

// Cue names one of the sounds a Player knows.
type Cue int

const (
	Start    Cue = iota // recording began
	End                 // recording stopped by the user
	AutoStop            // recording stopped after trailing silence
)

func (c Cue) String() string {
	switch c {
	case Start:
		return "start"
	case End:
		return "end"
	case AutoStop:
		return "autostop"
	}
	return "unknown"
}

// Player plays cues without blocking the caller.
type Player interface {
	Play(c Cue)
	Close()
}

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Auto-stop: low pitch double-beep
	autoFreq   = 600
	autoVolume = 0.5
	autoDecay  = 30
)

// generateTick renders a decaying mono sine.
func generateTick(sampleRate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

// cueSamples renders every cue once.
func cueSamples() map[Cue][]int16 {
	return map[Cue][]int16{
		Start:    generateTick(sampleRate, startFreq, 0.05, startVolume, startDecay),
		End:      generateTick(sampleRate, endFreq, 0.08, endVolume, endDecay),
		AutoStop: generateDoubleBeep(sampleRate, autoFreq, 0.06, 0.05, autoVolume, autoDecay),
	}
}

// toBytes packs samples as signed 16-bit little endian.
func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

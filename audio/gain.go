package audio

import "encoding/binary"

// agcGain is the fixed software gain applied when AutoGainControl is on.
const agcGain = 8

func applyGain(data []byte, gain int32) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		amplified := int32(int16(binary.LittleEndian.Uint16(data[i:]))) * gain
		if amplified > 32767 {
			amplified = 32767
		} else if amplified < -32768 {
			amplified = -32768
		}
		binary.LittleEndian.PutUint16(data[i:], uint16(int16(amplified)))
	}
}

func gainFor(c Constraints) int32 {
	if c.AutoGainControl {
		return agcGain
	}
	return 1
}

package audio

import (
	"strings"

	"medilingua/log"
)

// processing is what a backend can do for the requested Constraints:
// stream properties that ask the platform for a feature, and the features
// it cannot provide at all. Gain control is always applied in software.
type processing struct {
	props       map[string]string
	unavailable []string
}

// planProcessing maps c onto a backend. echoFilter reports whether the
// platform can insert an echo-cancel filter, which on PulseAudio also
// carries noise suppression.
func planProcessing(c Constraints, echoFilter bool) processing {
	var p processing
	if !c.EchoCancellation && !c.NoiseSuppression {
		return p
	}
	if echoFilter {
		p.props = map[string]string{"filter.want": "echo-cancel"}
		return p
	}
	if c.EchoCancellation {
		p.unavailable = append(p.unavailable, "echo cancellation")
	}
	if c.NoiseSuppression {
		p.unavailable = append(p.unavailable, "noise suppression")
	}
	return p
}

func (p processing) report(backend string) {
	if len(p.unavailable) > 0 {
		log.Warnf("%s: %s unavailable, recording without it", backend, strings.Join(p.unavailable, " and "))
	}
}

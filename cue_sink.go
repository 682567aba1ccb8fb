package main

import (
	"sync/atomic"
	"time"

	"medilingua/beep"
)

type cuePlayer interface {
	Play(c beep.Cue)
}

// cueSink plays an audible cue around recordings and forwards every event
// to the wrapped sink. A silence auto-stop gets its own cue instead of the
// end cue that would otherwise follow it.
type cueSink struct {
	EventSink
	cues        cuePlayer
	autoStopped atomic.Bool
}

func newCueSink(inner EventSink, cues cuePlayer) *cueSink {
	return &cueSink{EventSink: inner, cues: cues}
}

func (s *cueSink) RecordingStart() {
	s.autoStopped.Store(false)
	s.cues.Play(beep.Start)
	s.EventSink.RecordingStart()
}

func (s *cueSink) SilenceAutoStop() {
	s.autoStopped.Store(true)
	s.cues.Play(beep.AutoStop)
	s.EventSink.SilenceAutoStop()
}

func (s *cueSink) RecordingStop(duration time.Duration) {
	if !s.autoStopped.Swap(false) {
		s.cues.Play(beep.End)
	}
	s.EventSink.RecordingStop(duration)
}

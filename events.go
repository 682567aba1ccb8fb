package main

import "time"

// EventSink abstracts the display layer so the console printer and the
// Bubble Tea TUI receive the same recording/transcription events.
type EventSink interface {
	RecordingStart()
	RecordingStop(duration time.Duration)
	RecordingTick(duration float64)
	AudioLevel(level float64)
	SilenceAutoStop()
	Transcribing()
	Transcription(text string, words string, copied bool)
	Translating(language string)
	Translation(language, translated, deidentified string)
	Error(text string)
	ModeLine(text string)
	DeviceLine(text string)
}

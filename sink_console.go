package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	consoleRec   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	consoleDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	consoleText  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	consoleTrans = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	consoleDeid  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	consoleErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

// consoleSink prints one line per event. Ticks and levels are dropped.
type consoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (c *consoleSink) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

func (c *consoleSink) RecordingStart() { c.println(consoleRec.Render("● REC")) }

func (c *consoleSink) RecordingStop(d time.Duration) {
	c.println(consoleDim.Render(fmt.Sprintf("○ stopped (%s)", formatClock(d))))
}

func (c *consoleSink) RecordingTick(float64) {}
func (c *consoleSink) AudioLevel(float64)    {}

func (c *consoleSink) SilenceAutoStop() {
	c.println(consoleDim.Render("silence detected, stopping"))
}

func (c *consoleSink) Transcribing() { c.println(consoleDim.Render("Transcribing audio...")) }

func (c *consoleSink) Transcription(text, words string, copied bool) {
	line := consoleText.Render(text) + " " + consoleDim.Render("("+words+")")
	if copied {
		line += " " + consoleTrans.Render("[copied]")
	}
	c.println(line)
}

func (c *consoleSink) Translating(language string) {
	c.println(consoleDim.Render("Translating to " + language + "..."))
}

func (c *consoleSink) Translation(language, translated, deidentified string) {
	c.println(consoleTrans.Render("["+language+"] ") + translated)
	c.println(consoleDeid.Render("[de-identified] ") + deidentified)
}

func (c *consoleSink) Error(text string)      { c.println(consoleErr.Render(text)) }
func (c *consoleSink) ModeLine(text string)   { c.println(consoleDim.Render(text)) }
func (c *consoleSink) DeviceLine(text string) { c.println(consoleDim.Render(text)) }

// formatClock renders a duration as m:ss.
func formatClock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{ Duration time.Duration }
type RecordingTickMsg struct{ Duration float64 }
type AudioLevelMsg struct{ Level float64 }
type SilenceAutoStopMsg struct{}
type TranscribingMsg struct{}
type TranscriptionMsg struct {
	Text   string
	Words  string
	Copied bool
}
type TranslatingMsg struct{ Language string }
type TranslationMsg struct {
	Language     string
	Translated   string
	Deidentified string
}
type ErrorMsg struct{ Text string }
type ModeLineMsg struct{ Text string }   // service and format
type DeviceLineMsg struct{ Text string } // microphone device name

type actionKind int

const (
	actionToggle actionKind = iota
	actionTranslate
	actionSelectDevice
)

// tuiAction is a user request from the keyboard, handled by the main loop.
type tuiAction struct {
	kind     actionKind
	language string
}

type tuiModel struct {
	actions chan<- tuiAction

	// recording, transcribing and translating are independent: a translation
	// may run while the next recording is open.
	recording         bool
	transcribing      bool
	translating       string // target language while a translation runs
	recordingDuration float64
	audioLevel        float64
	width, height     int
	modeLine          string
	deviceLine        string
	status            string
	errText           string

	transcript   string
	words        string
	copied       bool
	msgCount     int
	language     string
	editingLang  bool
	translated   string
	deidentified string
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleStandby = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleMeta    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleTitle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	styleText    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleTrans   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleDeid    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

func NewTUIProgram(actions chan<- tuiAction, language string) *tea.Program {
	m := tuiModel{actions: actions, language: language}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) send(a tuiAction) {
	select {
	case m.actions <- a:
	default:
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.editingLang {
			switch msg.Type {
			case tea.KeyEnter, tea.KeyEsc:
				m.editingLang = false
			case tea.KeyBackspace:
				if r := []rune(m.language); len(r) > 0 {
					m.language = string(r[:len(r)-1])
				}
			case tea.KeyRunes, tea.KeySpace:
				m.language += string(msg.Runes)
			}
			return m, nil
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case " ", "r":
			m.send(tuiAction{kind: actionToggle})
		case "t":
			m.send(tuiAction{kind: actionTranslate, language: m.language})
		case "l":
			m.editingLang = true
		case "ctrl+g":
			m.send(tuiAction{kind: actionSelectDevice})
		}

	case RecordingStartMsg:
		m.recording = true
		m.recordingDuration = 0
		m.audioLevel = 0
		m.status = ""
		m.errText = ""

	case RecordingStopMsg:
		m.recording = false
		m.audioLevel = 0

	case RecordingTickMsg:
		m.recordingDuration = msg.Duration

	case AudioLevelMsg:
		if m.recording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case SilenceAutoStopMsg:
		m.status = "silence detected, stopped"

	case TranscribingMsg:
		m.transcribing = true
		m.status = ""

	case TranscriptionMsg:
		m.transcribing = false
		m.msgCount++
		m.transcript = msg.Text
		m.words = msg.Words
		m.copied = msg.Copied
		m.translated = ""
		m.deidentified = ""

	case TranslatingMsg:
		m.translating = msg.Language

	case TranslationMsg:
		m.translating = ""
		m.translated = msg.Translated
		m.deidentified = msg.Deidentified

	case ErrorMsg:
		m.errText = msg.Text

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const leftWidth = 36
	var left []string

	if m.recording {
		left = append(left, styleRec.Render(fmt.Sprintf("● REC %s", formatClock(time.Duration(m.recordingDuration*float64(time.Second))))))
		left = append(left, renderLevel(m.audioLevel, leftWidth-2))
	} else if !m.transcribing && m.translating == "" {
		left = append(left, styleStandby.Render("○ STANDBY"))
		if m.status != "" {
			left = append(left, styleStandby.Render(m.status))
		}
	}
	if m.transcribing {
		left = append(left, styleMeta.Render("◌ Transcribing audio..."))
	}
	if m.translating != "" {
		left = append(left, styleMeta.Render("◌ Translating to "+m.translating+"..."))
	}
	if m.errText != "" {
		for _, line := range wrapText(m.errText, leftWidth-2) {
			left = append(left, styleWarn.Render(line))
		}
	}
	left = append(left, "")
	if m.modeLine != "" {
		left = append(left, styleMeta.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		left = append(left, styleStandby.Render(m.deviceLine))
	}
	lang := m.language
	if lang == "" {
		lang = "(none)"
	}
	if m.editingLang {
		lang = m.language + "▏"
	}
	left = append(left, styleStandby.Render("language: ")+styleMeta.Render(lang))

	left = append(left, "")
	left = append(left, styleHelpKey.Render("space")+styleHelp.Render(" record/stop"))
	left = append(left, styleHelpKey.Render("t")+styleHelp.Render(" translate  ")+styleHelpKey.Render("l")+styleHelp.Render(" language"))
	left = append(left, styleHelpKey.Render("ctrl+g")+styleHelp.Render(" mic  ")+styleHelpKey.Render("q")+styleHelp.Render(" quit"))
	left = append(left, styleHelp.Render("medilingua "+version))

	rightWidth := m.width - leftWidth - 1
	if rightWidth < 20 {
		rightWidth = 20
	}
	wrapWidth := rightWidth - 2

	var right strings.Builder
	if m.transcript == "" {
		right.WriteString(styleStandby.Render("No transcriptions yet"))
	} else {
		right.WriteString(styleTitle.Render(fmt.Sprintf("Transcription (#%d) · %s", m.msgCount, m.words)))
		if m.copied {
			right.WriteString(" " + styleTrans.Render("[✓ copied]"))
		}
		right.WriteString("\n\n")
		writeWrapped(&right, m.transcript, wrapWidth, styleText)

		if m.translated != "" {
			right.WriteString("\n" + styleTitle.Render("Translation") + "\n")
			writeWrapped(&right, m.translated, wrapWidth, styleTrans)
			right.WriteString("\n" + styleTitle.Render("HIPAA compliant version") + "\n")
			writeWrapped(&right, m.deidentified, wrapWidth, styleDeid)
		}
	}

	leftPanel := lipgloss.NewStyle().
		Width(leftWidth).
		Height(m.height).
		Render(strings.Join(left, "\n"))
	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

// renderLevel draws the 0-255 amplitude as a bar.
func renderLevel(level float64, width int) string {
	filled := int(level / 255 * float64(width))
	filled = max(0, min(filled, width))
	return styleRec.Render(strings.Repeat("█", filled)) + styleStandby.Render(strings.Repeat("░", width-filled))
}

func writeWrapped(b *strings.Builder, text string, width int, style lipgloss.Style) {
	for _, line := range wrapText(text, width) {
		b.WriteString(style.Render(line) + "\n")
	}
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink forwards events to the running program.
type tuiSink struct{}

func (tuiSink) RecordingStart()                 { tuiSend(RecordingStartMsg{}) }
func (tuiSink) RecordingStop(d time.Duration)   { tuiSend(RecordingStopMsg{Duration: d}) }
func (tuiSink) RecordingTick(d float64)         { tuiSend(RecordingTickMsg{Duration: d}) }
func (tuiSink) AudioLevel(level float64)        { tuiSend(AudioLevelMsg{Level: level}) }
func (tuiSink) SilenceAutoStop()                { tuiSend(SilenceAutoStopMsg{}) }
func (tuiSink) Transcribing()                   { tuiSend(TranscribingMsg{}) }
func (tuiSink) Translating(language string)     { tuiSend(TranslatingMsg{Language: language}) }
func (tuiSink) Error(text string)               { tuiSend(ErrorMsg{Text: text}) }
func (tuiSink) ModeLine(text string)            { tuiSend(ModeLineMsg{Text: text}) }
func (tuiSink) DeviceLine(text string)          { tuiSend(DeviceLineMsg{Text: text}) }

func (tuiSink) Transcription(text, words string, copied bool) {
	tuiSend(TranscriptionMsg{Text: text, Words: words, Copied: copied})
}

func (tuiSink) Translation(language, translated, deidentified string) {
	tuiSend(TranslationMsg{Language: language, Translated: translated, Deidentified: deidentified})
}

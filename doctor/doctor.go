package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"medilingua/audio"
	"medilingua/capture"
	"medilingua/clipboard"
	"medilingua/encoder"
	"medilingua/hotkey"
	"medilingua/shutdown"
	"medilingua/transcriber"
)

// Checker runs the diagnostics. Nil collaborators skip their check.
type Checker struct {
	Provider  audio.Provider
	Service   transcriber.Service
	Clipboard clipboard.Clipboard
	Hotkey    hotkey.Hotkey
	Format    string // upload container for the round trip

	// HotkeyDiagnose reports platform hotkey access before the key test.
	HotkeyDiagnose func() (string, error)

	In        io.Reader
	Out       io.Writer
	RecordFor time.Duration
	// Interactive resets the terminal between steps and exits on Ctrl+C.
	Interactive bool

	reader    *bufio.Reader
	recording *capture.Recording
}

// Run executes the checks in order and returns an exit code (0=all pass,
// 1=any fail). Later checks that depend on the microphone are skipped once
// it fails.
func (c *Checker) Run(ctx context.Context) int {
	if c.In == nil {
		c.In = os.Stdin
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	if c.RecordFor <= 0 {
		c.RecordFor = 3 * time.Second
	}
	if c.Format == "" {
		c.Format = "wav"
	}
	c.reader = bufio.NewReader(c.In)
	if c.Interactive {
		resetTerminal()
		setupInterruptHandler()
	}

	c.printf("medilingua doctor - interactive system diagnostics\n")
	c.printf("==================================================\n")

	checks := []struct {
		name string
		run  func(context.Context) bool
		skip bool
	}{
		{"Hotkey detection", c.checkHotkey, c.Hotkey == nil},
		{"Capture devices", c.checkDevices, c.Provider == nil},
		{"Microphone", c.checkMicrophone, c.Provider == nil},
		{"Transcription service", c.checkService, c.Service == nil},
		{"Clipboard", c.checkClipboard, c.Clipboard == nil},
	}

	allPass := true
	for i, ch := range checks {
		c.printf("\n[%d/%d] %s\n", i+1, len(checks), ch.name)
		if ch.skip {
			c.printf("  SKIP: not configured\n")
			continue
		}
		if !ch.run(ctx) {
			allPass = false
		}
	}

	c.printf("\n")
	if allPass {
		c.printf("All checks passed!\n")
		return 0
	}
	c.printf("Some checks failed. See details above.\n")
	return 1
}

func (c *Checker) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Checker) confirm(question string) bool {
	c.printf("%s [y/n]: ", question)
	answer, _ := c.reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func (c *Checker) checkHotkey(context.Context) bool {
	if c.HotkeyDiagnose != nil {
		info, err := c.HotkeyDiagnose()
		if err != nil {
			c.printf("  FAIL: %v\n", err)
			return false
		}
		c.printf("  %s\n", info)
	}
	c.printf("Press Ctrl+Shift+Space...\n")

	if err := c.Hotkey.Register(); err != nil {
		c.printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer c.Hotkey.Unregister()

	select {
	case <-c.Hotkey.Keydown():
		c.printf("  PASS: hotkey detected\n")
		select {
		case <-c.Hotkey.Keyup():
		case <-time.After(5 * time.Second):
		}
		if c.Interactive {
			resetTerminal()
		}
		return true
	case <-time.After(10 * time.Second):
		c.printf("  FAIL: timeout waiting for hotkey\n")
		return false
	}
}

func (c *Checker) checkDevices(context.Context) bool {
	dp, ok := c.Provider.(audio.DeviceProvider)
	if !ok {
		c.printf("  PASS: input is not a physical device\n")
		return true
	}
	devices, err := dp.Devices()
	if err != nil {
		c.printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		c.printf("  FAIL: no capture devices found\n")
		return false
	}
	for _, d := range devices {
		note := ""
		if audio.IsBluetooth(d.Name) {
			note = " (bluetooth, may switch the headset to low quality)"
		}
		c.printf("  - %s%s\n", d.Name, note)
	}
	c.printf("  PASS: %d device(s)\n", len(devices))
	return true
}

func (c *Checker) checkMicrophone(ctx context.Context) bool {
	c.printf("Speak for %s...\n", c.RecordFor)

	sess := capture.NewSession(c.Provider, capture.DefaultOptions())
	if err := sess.Start(ctx); err != nil {
		c.printf("  FAIL: %v\n", err)
		if errors.Is(err, audio.ErrPermissionDenied) {
			c.printf("  Grant microphone access to your terminal and retry.\n")
		}
		return false
	}

	select {
	case <-time.After(c.RecordFor):
	case <-sess.Done():
		c.printf("  (stopped early after silence)\n")
	case <-ctx.Done():
	}
	rec, err := sess.Stop()
	if errors.Is(err, capture.ErrNotRecording) {
		rec, err = sess.Recording(), nil
	}
	if err != nil {
		c.printf("  Warning: %v\n", err)
	}
	if rec == nil || len(rec.Data) == 0 {
		c.printf("  FAIL: no audio captured\n")
		return false
	}

	c.recording = rec
	c.printf("  PASS: recorded %.1f KB in %d fragments\n", float64(len(rec.Data))/1024, rec.Fragments)
	return true
}

func (c *Checker) checkService(ctx context.Context) bool {
	h, err := c.Service.Health(ctx)
	if err != nil {
		c.printf("  FAIL: %s unreachable: %v\n", c.Service.Name(), err)
		return false
	}
	c.printf("  status=%s ffmpeg=%t openai=%t\n", h.Status, h.FFmpegInstalled, h.OpenAIAPI)
	if !h.OK() {
		c.printf("  FAIL: service reports %q\n", h.Status)
		return false
	}

	if c.recording == nil {
		c.printf("  PASS: service healthy (no recording to transcribe)\n")
		return true
	}

	payload, err := encoder.Encode(c.recording.Data, c.recording.Format, c.Format)
	if err != nil {
		c.printf("  FAIL: encoding recording: %v\n", err)
		return false
	}
	res, err := c.Service.Transcribe(ctx, transcriber.Upload{
		Data:        payload.Data,
		ContentType: payload.ContentType,
		Ext:         payload.Ext,
	})
	switch {
	case errors.Is(err, transcriber.ErrNoTranscript):
		c.printf("\n  Transcribed text: (no speech detected)\n\n")
	case err != nil:
		c.printf("  FAIL: transcription error: %v\n", err)
		return false
	default:
		c.printf("\n  Transcribed text: %s\n\n", strings.TrimSpace(res.Text))
	}

	if c.confirm("Is this correct?") {
		c.printf("  PASS: transcription verified by user\n")
		return true
	}
	c.printf("  FAIL: transcription not confirmed\n")
	return false
}

func (c *Checker) checkClipboard(context.Context) bool {
	testStr := fmt.Sprintf("medilingua-doctor-%d", time.Now().UnixNano())
	if err := c.Clipboard.Copy(testStr); err != nil {
		c.printf("  FAIL: clipboard copy failed: %v\n", err)
		if errors.Is(err, clipboard.ErrUnavailable) {
			c.printf("  Install xclip, xsel or wl-clipboard.\n")
		}
		return false
	}

	r, ok := c.Clipboard.(interface{ Read() (string, error) })
	if !ok {
		c.printf("  PASS: copied (read-back not supported)\n")
		return true
	}
	got, err := r.Read()
	if err != nil {
		c.printf("  FAIL: clipboard read failed: %v\n", err)
		return false
	}
	if got != testStr {
		c.printf("  FAIL: clipboard read back %q, want %q\n", got, testStr)
		return false
	}
	c.printf("  PASS: clipboard round trip verified\n")
	return true
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		println("\nInterrupted")
		os.Exit(1)
	}()
}

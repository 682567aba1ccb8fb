package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"medilingua/audio"
	"medilingua/clipboard"
	"medilingua/config"
	"medilingua/hotkey"
	"medilingua/log"
	"medilingua/metrics"
	"medilingua/transcriber"
)

// runTestMode drives the app headlessly from stdin, replaying wavPath as the
// microphone. Commands, one per line:
//
//	START, STOP         tap the hotkey
//	WAIT                block until the current cycle has finished
//	WAIT_AUDIO_DONE     block until the whole file has been replayed
//	TRANSLATE <lang>    translate the last transcript
//	SLEEP <ms>
//	QUIT
func runTestMode(ctx context.Context, cfg *config.Config, service transcriber.Service, clip clipboard.Clipboard, m *metrics.Metrics, wavPath string) int {
	provider, err := audio.NewReplayProvider(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}

	rec := NewRecorder(RecorderConfig{
		Provider:  provider,
		Options:   cfg.Capture.Options(),
		Service:   service,
		Sink:      newConsoleSink(os.Stdout),
		Format:    cfg.Service.Format,
		Clipboard: clip,
		Metrics:   m,
	})
	log.SessionStart(service.Name(), cfg.Service.Format, cfg.Capture.SilenceDuration, cfg.Capture.AmplitudeThreshold)
	defer func() { log.SessionEnd(rec.Count()) }()

	return driveTestMode(ctx, newApp(ctx, rec, cfg.Service.Language, false), provider, os.Stdin)
}

func driveTestMode(ctx context.Context, a *app, provider *audio.ReplayProvider, in io.Reader) int {
	hk := hotkey.NewFake()
	toggle := hotkey.NewToggle(hk)
	defer toggle.Close()

	go func() {
		for {
			select {
			case <-toggle.Taps():
				a.toggle()
			case <-ctx.Done():
				return
			}
		}
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "START", cmd == "STOP":
			hk.SimTap()
		case cmd == "WAIT":
			select {
			case <-a.cycles:
			case <-ctx.Done():
			}
		case cmd == "WAIT_AUDIO_DONE":
			waitAudioDone(ctx, provider)
		case cmd == "QUIT":
			a.finish()
			return 0
		case strings.HasPrefix(cmd, "TRANSLATE "):
			a.rec.Translate(ctx, "", strings.TrimSpace(cmd[len("TRANSLATE "):]))
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(cmd[len("SLEEP "):]); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case cmd == "":
		default:
			log.Warnf("test mode: unknown command %q", cmd)
		}
		if ctx.Err() != nil {
			break
		}
	}
	a.finish()
	return 0
}

// waitAudioDone blocks until the replayed file has been fully emitted. The
// stream may not be acquired yet when the command arrives.
func waitAudioDone(ctx context.Context, provider *audio.ReplayProvider) {
	for {
		if done := provider.AudioDone(); done != nil {
			select {
			case <-done:
			case <-ctx.Done():
			}
			return
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
}

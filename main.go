package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"medilingua/audio"
	"medilingua/beep"
	"medilingua/clipboard"
	"medilingua/config"
	"medilingua/doctor"
	"medilingua/history"
	"medilingua/hotkey"
	"medilingua/log"
	"medilingua/metrics"
	"medilingua/shutdown"
	"medilingua/transcriber"
)

var version = "dev"

// app owns the toggle state: at most one recording cycle runs at a time.
type app struct {
	ctx           context.Context
	rec           *Recorder
	language      string
	autoTranslate bool

	mu   sync.Mutex
	stop chan struct{} // non-nil while recording
	busy bool          // true from start until transcription and translation finish
	wg   sync.WaitGroup
	// cycles receives one value after each record/transcribe cycle.
	cycles chan struct{}
}

func newApp(ctx context.Context, rec *Recorder, language string, autoTranslate bool) *app {
	return &app{
		ctx:           ctx,
		rec:           rec,
		language:      language,
		autoTranslate: autoTranslate,
		cycles:        make(chan struct{}, 1),
	}
}

func (a *app) recording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stop != nil
}

// toggle starts a cycle, or stops the running one. A tap while the last
// recording is still being transcribed is dropped.
func (a *app) toggle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.stop != nil:
		log.Info("toggle_stop")
		close(a.stop)
		a.stop = nil
		return
	case a.busy:
		log.Info("toggle_ignored_busy")
		a.rec.sink.Error(msgBusy)
		return
	}
	log.Info("toggle_start")
	stop := make(chan struct{})
	a.stop = stop
	a.busy = true
	a.wg.Add(1)
	go a.cycle(stop)
}

func (a *app) cycle(stop chan struct{}) {
	defer a.wg.Done()
	defer func() {
		select {
		case a.cycles <- struct{}{}:
		default:
		}
	}()
	defer func() {
		a.mu.Lock()
		a.busy = false
		a.mu.Unlock()
	}()

	rec, err := a.rec.Record(a.ctx, stop)

	a.mu.Lock()
	if a.stop == stop {
		a.stop = nil
	}
	a.mu.Unlock()

	if err != nil {
		log.Errorf("recording error: %v", err)
		return
	}
	text, err := a.rec.Transcribe(a.ctx, rec)
	if err != nil || text == "" {
		return
	}
	if a.autoTranslate && a.language != "" {
		a.rec.Translate(a.ctx, text, a.language)
	}
}

func (a *app) translate(language string) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.rec.Translate(a.ctx, "", language)
	}()
}

// wait blocks until every running cycle and translation has returned.
func (a *app) wait() { a.wg.Wait() }

// finish stops a running recording and waits for its cycle to complete.
func (a *app) finish() {
	a.mu.Lock()
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
	}
	a.mu.Unlock()
	a.wait()
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(service transcriber.Service, format string) string {
	return fmt.Sprintf("[%s | %s]", format, service.Name())
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "medilingua", "config.yaml")
}

func historyPath(cfg *config.Config) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return filepath.Join(log.Dir(), "history.db")
}

func run() {
	configFlag := flag.String("config", "", "Path to YAML config (default: user config dir, optional)")
	urlFlag := flag.String("url", "", "Transcription service base URL")
	formatFlag := flag.String("format", "", "Upload container for PCM capture: wav or flac")
	langFlag := flag.String("lang", "", "Target language for translation (e.g., Spanish). Empty = no translation")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	silenceFlag := flag.Duration("silence", 0, "Stop after this much continuous silence (e.g., 2s)")
	thresholdFlag := flag.Float64("threshold", 0, "Amplitude (0-255) above which input counts as sound")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	metricsFlag := flag.String("metrics", "", "Serve Prometheus metrics and pprof on this address (e.g., localhost:9090)")
	noHistoryFlag := flag.Bool("nohistory", false, "Do not store transcripts in the local history database")
	noCopyFlag := flag.Bool("nocopy", false, "Do not copy transcripts to the clipboard")
	noBeepFlag := flag.Bool("nobeep", false, "Disable the start/stop beeps")
	autoTranslateFlag := flag.Bool("autotranslate", false, "Translate every transcript into -lang")
	historyFlag := flag.Int("history", 0, "Print the N most recent transcriptions and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("medilingua %s\n", version)
		os.Exit(0)
	}

	cfgPath, optional := *configFlag, false
	if cfgPath == "" {
		cfgPath, optional = defaultConfigPath(), true
	}
	cfg, err := config.Load(cfgPath, optional)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.Service.URL = *urlFlag
		case "format":
			cfg.Service.Format = *formatFlag
		case "lang":
			cfg.Service.Language = *langFlag
		case "device":
			cfg.Capture.Device = *deviceFlag
		case "silence":
			cfg.Capture.SilenceDuration = *silenceFlag
		case "threshold":
			cfg.Capture.AmplitudeThreshold = *thresholdFlag
		case "logpath":
			cfg.Logging.Dir = *logPathFlag
		case "metrics":
			cfg.Metrics.Addr = *metricsFlag
		case "nohistory":
			cfg.History.Enabled = !*noHistoryFlag
		case "nocopy":
			cfg.Clipboard.Copy = !*noCopyFlag
		case "nobeep":
			cfg.Cues.Enabled = !*noBeepFlag
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(cfg.Logging.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog(log.Dir())

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if err := log.Init(cfg.Logging.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	service, err := transcriber.NewClient(cfg.Service.URL, cfg.Service.Timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			log.Info("metrics_listen: " + cfg.Metrics.Addr)
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	if *historyFlag > 0 {
		store, err := history.Open(historyPath(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		err = printHistory(os.Stdout, store, *historyFlag)
		store.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var clip clipboard.Clipboard
	if cfg.Clipboard.Copy {
		clip = clipboard.System{}
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: medilingua -test <wav-file>")
			os.Exit(1)
		}
		os.Exit(runTestMode(ctx, cfg, service, clip, m, args[0]))
	}

	provider, err := audio.NewProvider()
	if err != nil {
		log.Errorf("audio init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	if *doctorFlag {
		c := &doctor.Checker{
			Provider:       provider,
			Service:        service,
			Clipboard:      clipboard.System{},
			Hotkey:         hotkey.New(),
			HotkeyDiagnose: hotkey.Diagnose,
			Format:         cfg.Service.Format,
			Interactive:    true,
		}
		os.Exit(c.Run(ctx))
	}

	var selected *audio.DeviceInfo
	switch {
	case cfg.Capture.Device != "":
		selected, err = audio.FindDevice(provider, cfg.Capture.Device)
		if err != nil {
			log.Warnf("device lookup failed: %v", err)
			fmt.Printf("Warning: %v, using default device\n", err)
		}
	case *setupFlag:
		selected, err = audio.SelectDevice(provider, nil)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		}
	}
	provider.Select(selected)

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(historyPath(cfg))
		if err != nil {
			log.Warnf("history disabled: %v", err)
		} else {
			defer store.Close()
		}
	}

	var sink EventSink = newConsoleSink(os.Stdout)
	actions := make(chan tuiAction, 4)
	if *tuiFlag {
		sink = tuiSink{}
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(actions, cfg.Service.Language)
		tuiMu.Unlock()
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			cancel()
		}()
	}
	if cfg.Cues.Enabled {
		player, err := beep.New()
		if err != nil {
			log.Warnf("beeps disabled: %v", err)
		} else {
			defer player.Close()
			sink = newCueSink(sink, player)
		}
	}

	rec := NewRecorder(RecorderConfig{
		Provider:  provider,
		Options:   cfg.Capture.Options(),
		Service:   service,
		Sink:      sink,
		Format:    cfg.Service.Format,
		History:   store,
		Clipboard: clip,
		Metrics:   m,
	})
	a := newApp(ctx, rec, cfg.Service.Language, *autoTranslateFlag || !*tuiFlag)

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()
	toggle := hotkey.NewToggle(hk)
	defer toggle.Close()

	watch := newDeviceWatch(provider, sink, selected)
	go service.Warm()
	go watch.run(ctx, deviceWatchInterval)

	log.SessionStart(service.Name(), cfg.Service.Format, cfg.Capture.SilenceDuration, cfg.Capture.AmplitudeThreshold)
	sink.ModeLine(modeLineText(service, cfg.Service.Format))
	sink.DeviceLine(deviceLineText(selected))

loop:
	for {
		select {
		case <-toggle.Taps():
			a.toggle()
		case act := <-actions:
			switch act.kind {
			case actionToggle:
				a.toggle()
			case actionTranslate:
				a.translate(act.language)
			case actionSelectDevice:
				if a.recording() {
					sink.Error("Stop the recording before switching microphones.")
					continue
				}
				handleDeviceSwitch(provider, watch)
			}
		case <-ctx.Done():
			break loop
		}
	}

	a.finish()
	log.SessionEnd(rec.Count())
	tuiMu.Lock()
	if tuiProgram != nil {
		tuiProgram.Quit()
	}
	tuiMu.Unlock()
}

// handleDeviceSwitch hands the terminal to the microphone picker and
// applies the choice through the device watch.
func handleDeviceSwitch(p audio.DeviceProvider, w *deviceWatch) {
	tuiMu.Lock()
	prog := tuiProgram
	tuiMu.Unlock()
	if prog != nil {
		prog.ReleaseTerminal()
	}
	dev, err := audio.SelectDevice(p, w.current())
	if prog != nil {
		prog.RestoreTerminal()
	}
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		return
	}
	if dev == nil {
		return
	}
	log.Info("device_switch: " + dev.Name)
	w.choose(dev)
}

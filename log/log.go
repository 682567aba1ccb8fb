package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

type Metrics struct {
	AudioLengthS float64
	RawSizeKB    float64
	UploadSizeKB float64
	EncodeTimeMs float64
	DNSTimeMs    float64
	TLSTimeMs    float64
	TTFBMs       float64
	TotalTimeMs  float64
}

const (
	diagName       = "diagnostics_log.txt"
	transcriptName = "transcribe_log.txt"

	// maxLogBytes is the size past which a log is moved aside to .1 on Init.
	maxLogBytes = 10 << 20
)

// ResolveDir picks the log directory: the -logpath flag, then
// MEDILINGUA_LOG_PATH, then the platform default.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absDir(flagPath)
	}
	if envPath := os.Getenv("MEDILINGUA_LOG_PATH"); envPath != "" {
		return absDir(envPath)
	}
	return getDefaultDir()
}

func absDir(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// EnsureDir creates the log directory readable only by the current user,
// since the transcript log holds clinical text.
func EnsureDir() error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func openLog(name string) (*os.File, error) {
	path := filepath.Join(dir, name)
	if fi, err := os.Stat(path); err == nil && fi.Size() > maxLogBytes {
		if err := os.Rename(path, path+".1"); err != nil {
			return nil, fmt.Errorf("rotating %s: %w", name, err)
		}
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

// Init opens both log files in Dir. level is a zerolog level name; empty
// means info.
func Init(level string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		if lvl, err = zerolog.ParseLevel(level); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}

	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}
	pid = os.Getpid()

	var err error
	if diagFile, err = openLog(diagName); err != nil {
		return err
	}
	if transcribeFile, err = openLog(transcriptName); err != nil {
		diagFile.Close()
		return err
	}

	diagLog = zerolog.New(zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}).Level(lvl).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

// Logger returns the diagnostics logger for components that log structured
// events themselves. Before Init it discards everything.
func Logger() *zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady {
		nop := zerolog.Nop()
		return &nop
	}
	l := diagLog
	return &l
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func TranscriptionMetrics(m Metrics, format, service string, connReused bool, tlsProto string) {
	if !logReady {
		return
	}

	connStatus := "new"
	if connReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("format", format).
		Str("service", service).
		Str("conn", connStatus)
	if tlsProto != "" {
		ev = ev.Str("tls_proto", tlsProto)
	}
	ev.Float64("audio_s", m.AudioLengthS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("upload_kb", m.UploadSizeKB).
		Float64("encode_ms", m.EncodeTimeMs).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Msg("transcription")
}

func TranslationMetrics(language string, totalMs float64, translated, deidentified bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("language", language).
		Float64("total_ms", totalMs).
		Bool("translated", translated).
		Bool("deidentified", deidentified).
		Msg("translation")
}

func writeTranscript(tag, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, tag, text)
	transcribeFile.WriteString(line)
}

func TranscriptionText(text string) {
	writeTranscript("", text)
}

// TranslationText records a translation next to the transcripts, tagged
// with its language.
func TranslationText(language, text string) {
	writeTranscript("["+language+"]\t", text)
}

func SessionStart(service, format string, silence time.Duration, threshold float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("service", service).
		Str("format", format).
		Dur("silence", silence).
		Float64("threshold", threshold).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}

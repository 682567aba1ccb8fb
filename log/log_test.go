package log

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("MEDILINGUA_LOG_PATH", "/tmp/medilingua-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/medilingua-env-log" {
		t.Errorf("got %q, want /tmp/medilingua-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("MEDILINGUA_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(""); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "transcribe_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestTranscriptionText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(""); err != nil {
		t.Fatal(err)
	}

	TranscriptionText("hello world")

	data, err := os.ReadFile(filepath.Join(tmp, "transcribe_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "hello world") {
		t.Errorf("transcribe_log.txt missing text, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\ttext\n"
	if !strings.Contains(line, "\t") {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(""); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}

func TestTranslationTextTagged(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(""); err != nil {
		t.Fatal(err)
	}

	TranslationText("Spanish", "hola")

	data, err := os.ReadFile(filepath.Join(tmp, "transcribe_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[Spanish]\thola") {
		t.Errorf("translation line missing language tag, got: %q", data)
	}
}

func TestInitRejectsBadLevel(t *testing.T) {
	setupLogDir(t)

	if err := Init("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := os.Stat(filepath.Join(Dir(), transcriptName)); !os.IsNotExist(err) {
		t.Error("log files opened despite bad level")
	}
}

func TestInitRotatesLargeLog(t *testing.T) {
	tmp := setupLogDir(t)
	big := filepath.Join(tmp, transcriptName)
	if err := os.WriteFile(big, make([]byte, maxLogBytes+1), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Init(""); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(big + ".1"); err != nil || fi.Size() != maxLogBytes+1 {
		t.Fatalf("old log not rotated: %v", err)
	}
	if fi, err := os.Stat(big); err != nil || fi.Size() != 0 {
		t.Fatalf("fresh log not started: %v", err)
	}
}

func TestTranscriptLogPrivate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no unix permission bits")
	}
	tmp := setupLogDir(t)
	if err := Init(""); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(filepath.Join(tmp, transcriptName))
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("transcript log mode = %o, want owner-only", perm)
	}
}

func TestLoggerBeforeInit(t *testing.T) {
	Close()
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	l.Info().Msg("discarded") // must not panic
}

func TestLoggerWritesDiagnostics(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init("debug"); err != nil {
		t.Fatal(err)
	}
	Logger().Info().Str("session", "abc").Msg("recording_start")
	SessionStart("http://127.0.0.1:5000", "wav", 2*time.Second, 5)

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"recording_start", "session=abc", "session_start", "format=wav"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("diagnostics log missing %q, got: %q", want, data)
		}
	}
}

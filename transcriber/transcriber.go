// Package transcriber talks to the MediLingua backend, which turns an
// uploaded recording into text and text into a translation plus a
// de-identified copy.
package transcriber

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	ErrEmptyAudio    = errors.New("no audio to transcribe")
	ErrEmptyText     = errors.New("no text to translate")
	ErrNoLanguage    = errors.New("no target language")
	ErrNoTranscript  = errors.New("service returned no transcript")
	ErrServiceFailed = errors.New("service request failed")
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Upload is one encoded recording.
type Upload struct {
	Data        []byte
	ContentType string
	Ext         string
}

type Result struct {
	Text      string
	Metrics   *NetworkMetrics
	RequestID string
}

type Translation struct {
	TranslatedText   string
	DeidentifiedText string
	Metrics          *NetworkMetrics
}

type Health struct {
	Status          string `json:"status"`
	FFmpegInstalled bool   `json:"ffmpeg_installed"`
	OpenAIAPI       bool   `json:"openai_api"`
}

func (h *Health) OK() bool { return h.Status == "ok" }

type Service interface {
	Name() string
	Transcribe(ctx context.Context, u Upload) (*Result, error)
	Translate(ctx context.Context, text, language string) (*Translation, error)
	Health(ctx context.Context) (*Health, error)
}

package transcriber

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is an in-memory Service. Zero values answer with empty results.
type Fake struct {
	Text             string
	TranscribeErr    error
	TranslatedText   string
	DeidentifiedText string
	TranslateErr     error
	HealthStatus     string

	mu      sync.Mutex
	uploads []Upload
	texts   []string
	langs   []string
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, TranscribeErr: err, HealthStatus: "ok"}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(ctx context.Context, u Upload) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, u)
	f.mu.Unlock()
	if f.TranscribeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceFailed, f.TranscribeErr)
	}
	if strings.TrimSpace(f.Text) == "" {
		return nil, ErrNoTranscript
	}
	return &Result{Text: f.Text, Metrics: &NetworkMetrics{}}, nil
}

func (f *Fake) Translate(ctx context.Context, text, language string) (*Translation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.langs = append(f.langs, language)
	f.mu.Unlock()
	if f.TranslateErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceFailed, f.TranslateErr)
	}
	return &Translation{
		TranslatedText:   f.TranslatedText,
		DeidentifiedText: f.DeidentifiedText,
		Metrics:          &NetworkMetrics{},
	}, nil
}

func (f *Fake) Health(context.Context) (*Health, error) {
	return &Health{Status: f.HealthStatus, FFmpegInstalled: true, OpenAIAPI: true}, nil
}

func (f *Fake) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}

// Translated returns the (text, language) pairs sent to Translate.
func (f *Fake) Translated() (texts, langs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...), append([]string(nil), f.langs...)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medilingua/audio"
	"medilingua/capture"
	"medilingua/clipboard"
	"medilingua/encoder"
	"medilingua/history"
	"medilingua/log"
	"medilingua/metrics"
	"medilingua/transcriber"
)

const (
	msgNoResults          = "No transcription results available."
	msgTranscriptionError = "Error during transcription. Please try again."
	msgNoLanguage         = "Please enter a target language"
	msgNothingToTranslate = "No transcription available to translate"
	msgNoTranslation      = "No translation available."
	msgNoDeidentified     = "No deanonymized version available."
	msgTranslationError   = "Error during translation. Please try again."
	msgDeidentifyError    = "Error generating HIPAA compliant version. Please try again."
	msgBusy               = "Still transcribing the last recording. Please wait."
)

const tickInterval = 100 * time.Millisecond

// Recorder runs one recording at a time: capture, upload, and the optional
// translation of the result.
type Recorder struct {
	provider  audio.Provider
	opts      capture.Options
	service   transcriber.Service
	sink      EventSink
	format    string
	history   *history.Store    // nil disables
	clipboard clipboard.Clipboard // nil disables
	metrics   *metrics.Metrics
	logger    *zerolog.Logger

	mu             sync.Mutex
	lastTranscript string
	lastSession    string
	count          int
}

type RecorderConfig struct {
	Provider  audio.Provider
	Options   capture.Options
	Service   transcriber.Service
	Sink      EventSink
	Format    string
	History   *history.Store
	Clipboard clipboard.Clipboard
	Metrics   *metrics.Metrics
	Logger    *zerolog.Logger
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.Format == "" {
		cfg.Format = "wav"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Logger()
	}
	return &Recorder{
		provider:  cfg.Provider,
		opts:      cfg.Options,
		service:   cfg.Service,
		sink:      cfg.Sink,
		format:    cfg.Format,
		history:   cfg.History,
		clipboard: cfg.Clipboard,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Record runs one capture session until stop fires, ctx ends, or the
// speaker goes quiet. It returns the finalized recording.
func (r *Recorder) Record(ctx context.Context, stop <-chan struct{}) (*capture.Recording, error) {
	opts := r.opts
	opts.Logger = r.logger
	opts.OnSample = r.sink.AudioLevel
	sess := capture.NewSession(r.provider, opts)

	if err := sess.Start(ctx); err != nil {
		r.metrics.StartFailures.WithLabelValues(startCause(err)).Inc()
		r.sink.Error(startMessage(err))
		return nil, err
	}
	r.metrics.SessionsStarted.Inc()
	r.metrics.Recording.Set(1)
	defer r.metrics.Recording.Set(0)
	r.sink.RecordingStart()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	start := time.Now()

	var rec *capture.Recording
	var stopErr error
wait:
	for {
		select {
		case <-ticker.C:
			r.sink.RecordingTick(time.Since(start).Seconds())
			continue
		case <-sess.Done():
			r.sink.SilenceAutoStop()
		case <-stop:
			rec, stopErr = sess.Stop()
		case <-ctx.Done():
			rec, stopErr = sess.Stop()
		}
		break wait
	}

	// Stop lost the race with the silence auto-stop.
	if errors.Is(stopErr, capture.ErrNotRecording) {
		<-sess.Done()
		stopErr = nil
	}
	if rec == nil {
		rec = sess.Recording()
	}
	if stopErr != nil {
		log.Warnf("recording stop: %v", stopErr)
	}

	r.metrics.SessionsStopped.WithLabelValues(rec.Reason.String()).Inc()
	r.metrics.RecordingSeconds.Observe(rec.Duration().Seconds())
	r.metrics.RecordingBytes.Observe(float64(len(rec.Data)))
	r.sink.RecordingStop(rec.Duration())
	return rec, nil
}

func startCause(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return "permission"
	case errors.Is(err, audio.ErrNoDevice):
		return "no_device"
	case errors.Is(err, audio.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}

func startMessage(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return "Error accessing microphone. Please ensure you have granted permission."
	case errors.Is(err, audio.ErrNoDevice):
		return "No microphone found. Connect one and try again."
	default:
		return fmt.Sprintf("Error starting recording: %v", err)
	}
}

// Transcribe uploads rec and reports the transcript. Failures are shown as
// placeholders and never retried.
func (r *Recorder) Transcribe(ctx context.Context, rec *capture.Recording) (string, error) {
	r.sink.Transcribing()

	payload, err := encoder.Encode(rec.Data, rec.Format, r.format)
	if err != nil {
		log.Errorf("encode error: %v", err)
		r.metrics.TranscriptionFailures.Inc()
		r.sink.Transcription(msgTranscriptionError, wordCount(""), false)
		return "", err
	}

	r.metrics.TranscriptionRequests.Inc()
	start := time.Now()
	res, err := r.service.Transcribe(ctx, transcriber.Upload{
		Data:        payload.Data,
		ContentType: payload.ContentType,
		Ext:         payload.Ext,
	})
	r.metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, transcriber.ErrNoTranscript):
		log.Info("no_speech")
		r.metrics.TranscriptionEmpty.Inc()
		r.sink.Transcription(msgNoResults, wordCount(""), false)
		return "", nil
	case err != nil:
		log.Errorf("transcription error: %v", err)
		r.metrics.TranscriptionFailures.Inc()
		r.sink.Transcription(msgTranscriptionError, wordCount(""), false)
		return "", err
	}

	text := strings.TrimSpace(res.Text)
	r.logTranscription(rec, payload, res)

	r.mu.Lock()
	r.lastTranscript = text
	r.lastSession = rec.SessionID.String()
	r.count++
	r.mu.Unlock()

	if r.history != nil {
		if err := r.history.Add(&history.Entry{
			SessionID:    rec.SessionID.String(),
			Kind:         history.KindTranscription,
			Text:         text,
			AudioSeconds: rec.Duration().Seconds(),
		}); err != nil {
			log.Warnf("history: %v", err)
		}
	}

	r.sink.Transcription(text, wordCount(text), r.copy(text))
	return text, nil
}

func (r *Recorder) logTranscription(rec *capture.Recording, payload *encoder.Payload, res *transcriber.Result) {
	log.TranscriptionText(res.Text)
	m := log.Metrics{
		AudioLengthS: rec.Duration().Seconds(),
		RawSizeKB:    float64(len(rec.Data)) / 1024,
		UploadSizeKB: float64(len(payload.Data)) / 1024,
		EncodeTimeMs: float64(payload.EncodeTime.Microseconds()) / 1000,
	}
	var reused bool
	var tlsProto string
	if nm := res.Metrics; nm != nil {
		m.DNSTimeMs = float64(nm.DNS.Microseconds()) / 1000
		m.TLSTimeMs = float64(nm.TLS.Microseconds()) / 1000
		m.TTFBMs = float64(nm.TTFB.Microseconds()) / 1000
		m.TotalTimeMs = float64(nm.Total.Microseconds()) / 1000
		reused = nm.ConnReused
		tlsProto = nm.TLSProtocol
	}
	log.TranscriptionMetrics(m, payload.Ext, r.service.Name(), reused, tlsProto)
}

// Translate translates text, or the last transcript when text is empty,
// and reports both the translation and the de-identified copy.
func (r *Recorder) Translate(ctx context.Context, text, language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		r.sink.Error(msgNoLanguage)
		return transcriber.ErrNoLanguage
	}
	text = strings.TrimSpace(text)
	r.mu.Lock()
	session := r.lastSession
	if text == "" {
		text = r.lastTranscript
	}
	r.mu.Unlock()
	if text == "" {
		r.sink.Error(msgNothingToTranslate)
		return transcriber.ErrEmptyText
	}

	r.sink.Translating(language)
	r.metrics.TranslationRequests.Inc()
	start := time.Now()
	tr, err := r.service.Translate(ctx, text, language)
	elapsed := time.Since(start)
	r.metrics.TranslationDuration.Observe(elapsed.Seconds())
	if err != nil {
		log.Errorf("translation error: %v", err)
		r.metrics.TranslationFailures.Inc()
		r.sink.Translation(language, msgTranslationError, msgDeidentifyError)
		return err
	}

	translated := strings.TrimSpace(tr.TranslatedText)
	deidentified := strings.TrimSpace(tr.DeidentifiedText)
	log.TranslationMetrics(language, float64(elapsed.Microseconds())/1000, translated != "", deidentified != "")
	if translated != "" {
		log.TranslationText(language, translated)
		if r.history != nil {
			if err := r.history.Add(&history.Entry{
				SessionID:    session,
				Kind:         history.KindTranslation,
				Language:     language,
				Text:         translated,
				Deidentified: deidentified,
			}); err != nil {
				log.Warnf("history: %v", err)
			}
		}
	}
	if translated == "" {
		translated = msgNoTranslation
	}
	if deidentified == "" {
		deidentified = msgNoDeidentified
	}
	r.sink.Translation(language, translated, deidentified)
	return nil
}

func (r *Recorder) copy(text string) bool {
	if r.clipboard == nil || text == "" {
		return false
	}
	if err := r.clipboard.Copy(text); err != nil {
		log.Warnf("clipboard: %v", err)
		return false
	}
	return true
}

// LastTranscript returns the most recent successful transcript.
func (r *Recorder) LastTranscript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTranscript
}

// Count is the number of successful transcriptions so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func wordCount(text string) string {
	n := len(strings.Fields(text))
	if n == 1 {
		return "1 word"
	}
	return fmt.Sprintf("%d words", n)
}

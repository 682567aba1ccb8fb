package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the HTTP Service for a MediLingua backend.
type Client struct {
	client  *tracedHTTP
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("service url %q: scheme must be http or https", baseURL)
	}
	return &Client{
		client:  newTracedHTTP(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (c *Client) Name() string { return c.baseURL }

// Warm opens a connection ahead of the first upload.
func (c *Client) Warm() time.Duration {
	return c.client.warm(c.baseURL + "/health")
}

type transcribeResponse struct {
	TranscribedText string `json:"transcribed_text"`
	Error           string `json:"error"`
}

type translateRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type translateResponse struct {
	TranslatedText   string `json:"translated_text"`
	DeanonymizedText string `json:"deanonymized_text"`
	Error            string `json:"error"`
}

func (c *Client) Transcribe(ctx context.Context, u Upload) (*Result, error) {
	if len(u.Data) == 0 {
		return nil, ErrEmptyAudio
	}
	ext := u.Ext
	if ext == "" {
		ext = "wav"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", "recording."+ext)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(u.Data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceFailed, err)
	}

	var tResp transcribeResponse
	if err := decode(resp, &tResp, func() string { return tResp.Error }); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tResp.TranscribedText) == "" {
		return nil, ErrNoTranscript
	}
	return &Result{
		Text:      tResp.TranscribedText,
		Metrics:   resp.Metrics,
		RequestID: firstNonEmpty(resp.Header, "X-Request-Id", "X-Amzn-Trace-Id"),
	}, nil
}

func (c *Client) Translate(ctx context.Context, text, language string) (*Translation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if strings.TrimSpace(language) == "" {
		return nil, ErrNoLanguage
	}

	payload, err := json.Marshal(translateRequest{Text: text, Language: language})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceFailed, err)
	}

	var tResp translateResponse
	if err := decode(resp, &tResp, func() string { return tResp.Error }); err != nil {
		return nil, err
	}
	return &Translation{
		TranslatedText:   tResp.TranslatedText,
		DeidentifiedText: tResp.DeanonymizedText,
		Metrics:          resp.Metrics,
	}, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceFailed, err)
	}
	var h Health
	if err := decode(resp, &h, func() string { return "" }); err != nil {
		return nil, err
	}
	return &h, nil
}

// decode parses a JSON body into v. Non-2xx responses become errors carrying
// the backend's "error" field when it sent one.
func decode(resp *tracedResponse, v any, errField func() string) error {
	jsonErr := json.Unmarshal(resp.Body, v)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(resp.Body))
		if jsonErr == nil && errField() != "" {
			msg = errField()
		}
		return fmt.Errorf("%w: status %d: %s", ErrServiceFailed, resp.StatusCode, msg)
	}
	if jsonErr != nil {
		return fmt.Errorf("%w: response parse error: %w", ErrServiceFailed, jsonErr)
	}
	if msg := errField(); msg != "" {
		return fmt.Errorf("%w: %s", ErrServiceFailed, msg)
	}
	return nil
}

package transcriber

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// maxResponseBytes caps how much of a backend reply is buffered. Transcripts
// and translations are text; anything larger is a misbehaving server.
const maxResponseBytes = 4 << 20

const userAgent = "medilingua"

// tracedHTTP is a pooled client that records per-phase timings for every
// request it sends.
type tracedHTTP struct {
	client *http.Client
}

// newTracedHTTP returns a pooled client. A zero timeout leaves requests
// bounded only by their context.
func newTracedHTTP(timeout time.Duration) *tracedHTTP {
	return &tracedHTTP{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        2,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type tracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// phaseTimer fills a NetworkMetrics from httptrace callbacks.
type phaseTimer struct {
	m *NetworkMetrics

	getConn, dns, connect, handshake time.Time
	gotConn, wroteHeaders, wroteBody time.Time
	firstByte                        time.Time
}

func (p *phaseTimer) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { p.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			p.gotConn = time.Now()
			p.m.ConnWait = p.gotConn.Sub(p.getConn)
			p.m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { p.dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { p.m.DNS = time.Since(p.dns) },
		ConnectStart:      func(string, string) { p.connect = time.Now() },
		ConnectDone:       func(string, string, error) { p.m.TCP = time.Since(p.connect) },
		TLSHandshakeStart: func() { p.handshake = time.Now() },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			p.m.TLS = time.Since(p.handshake)
			p.m.TLSProtocol = tls.VersionName(cs.Version)
		},
		WroteHeaders: func() {
			p.wroteHeaders = time.Now()
			p.m.ReqHeaders = p.wroteHeaders.Sub(p.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.wroteBody = time.Now()
			p.m.ReqBody = p.wroteBody.Sub(p.wroteHeaders)
		},
		GotFirstResponseByte: func() {
			p.firstByte = time.Now()
			p.m.TTFB = p.firstByte.Sub(p.wroteBody)
		},
	}
}

func (c *tracedHTTP) do(req *http.Request) (*tracedResponse, error) {
	timer := &phaseTimer{m: &NetworkMetrics{}}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), timer.trace()))
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", req.URL.Path, maxResponseBytes)
	}
	if !timer.firstByte.IsZero() {
		timer.m.Download = time.Since(timer.firstByte)
	}
	timer.m.Total = time.Since(start)

	return &tracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    timer.m,
	}, nil
}

// warm sends a HEAD to url so the first upload reuses an established
// connection. It returns the TLS handshake time, zero for plain HTTP or on
// failure.
func (c *tracedHTTP) warm(url string) time.Duration {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return 0
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.do(req)
	if err != nil {
		return 0
	}
	return resp.Metrics.TLS
}

// Package httpclient provides the outbound HTTP session used by vendor
// adapters and the PDF downloader.
//
// All city-facing traffic goes through a Session: browser User-Agent,
// bounded timeouts, and retry on 5xx only. Rate-limit responses (429) are
// deliberately not retried; the conductor's vendor rate limiter is supposed
// to prevent them, so a 429 is a tuning bug to surface, not to paper over.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// BrowserUserAgent identifies adapter traffic as a modern desktop browser.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// PDFUserAgent identifies the PDF validator/downloader.
	PDFUserAgent = "Engagic-PDF-Validator/1.0"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	// HeadTimeout bounds HEAD existence checks.
	HeadTimeout = 10 * time.Second

	// MaxPDFBytes is the hard cap for PDFs submitted to the LLM API.
	MaxPDFBytes = 32 << 20

	maxAttempts = 3
)

// Session is a retrying HTTP client with a fixed User-Agent.
type Session struct {
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

// Option configures a Session
type Option func(*sessionConfig)

type sessionConfig struct {
	userAgent   string
	timeout     time.Duration
	insecureTLS bool
	log         *slog.Logger
}

// WithUserAgent overrides the default browser User-Agent
func WithUserAgent(ua string) Option {
	return func(c *sessionConfig) { c.userAgent = ua }
}

// WithTimeout overrides the default request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *sessionConfig) { c.timeout = d }
}

// WithInsecureTLS disables certificate verification. Only Granicus gets
// this (their S3 buckets serve a mismatched certificate); do not extend
// the exception to other vendors.
func WithInsecureTLS() Option {
	return func(c *sessionConfig) { c.insecureTLS = true }
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(c *sessionConfig) { c.log = log }
}

// NewSession creates a Session
func NewSession(opts ...Option) *Session {
	cfg := &sessionConfig{
		userAgent: BrowserUserAgent,
		timeout:   DefaultTimeout,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Session{
		client: &http.Client{
			Timeout:   cfg.timeout,
			Transport: transport,
		},
		userAgent: cfg.userAgent,
		log:       cfg.log,
	}
}

// Do executes the request with retry on 5xx. Backoff is 1s, 2s, 4s.
// 4xx responses (including 429) are returned to the caller immediately.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(delay):
			}
			s.log.Debug("retrying request",
				slog.String("url", req.URL.String()),
				slog.Int("attempt", attempt+1))
		}

		resp, err := s.client.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: HTTP %d", resp.StatusCode)
			resp.Body.Close()
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}

// Get fetches a URL, returning an error on any non-2xx status.
func (s *Session) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// GetBytes fetches a URL and reads the full body, capped at limit bytes
// (0 means no cap).
func (s *Session) GetBytes(ctx context.Context, url string, limit int64) ([]byte, error) {
	resp, err := s.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", url, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, limit)
	}
	return data, nil
}

// StatusError reports a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// IsClientError reports whether err is a 4xx StatusError. Adapters use this
// to decide when an API has refused them and an HTML fallback applies.
func IsClientError(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.StatusCode >= 400 && se.StatusCode < 500
}

// DownloadPDF fetches an arbitrary-URL PDF after SSRF validation, using the
// PDF validator identity and the 32 MB cap.
func DownloadPDF(ctx context.Context, url string) ([]byte, error) {
	if err := ValidateURL(url); err != nil {
		return nil, fmt.Errorf("refusing download: %w", err)
	}

	s := NewSession(WithUserAgent(PDFUserAgent))
	return s.GetBytes(ctx, url, MaxPDFBytes)
}

// Package transport performs single HTTP calls against the Pokéchat backend.
// It is a pure execution layer: one request in, one typed response or typed
// failure out. It never inspects authentication headers, never retries and
// never caches; those concerns belong to the auth interceptor above it.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pokedex-chat/console/internal/apierr"
	"github.com/pokedex-chat/console/internal/interfaces"
	"github.com/pokedex-chat/console/internal/logging"
)

// Timeout configuration for backend communication.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultIdleTimeout    = 30 * time.Second
)

// Statistics tracks communication metrics for the status bar and debugging.
type Statistics struct {
	TotalRequests       int
	SuccessfulRequests  int
	FailedRequests      int
	AverageResponseTime time.Duration
	LastRequestTime     time.Time
}

// HTTPTransport implements interfaces.Transport over net/http.
type HTTPTransport struct {
	httpClient *http.Client
	baseURL    *url.URL
	userAgent  string
	sessionID  string
	logger     *logging.Logger

	mu    sync.Mutex
	stats Statistics
}

// Option customizes a transport at construction time.
type Option func(*HTTPTransport)

// WithHTTPClient replaces the underlying http.Client (tests use this to
// inject short timeouts).
func WithHTTPClient(client *http.Client) Option {
	return func(t *HTTPTransport) { t.httpClient = client }
}

// New creates a transport targeting baseURL.
func New(baseURL string, opts ...Option) (*HTTPTransport, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	t := &HTTPTransport{
		httpClient: &http.Client{
			Timeout: DefaultRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     DefaultIdleTimeout,
				MaxIdleConnsPerHost: 2,
			},
		},
		baseURL:   parsed,
		userAgent: "Pokechat-Console/1.0",
		sessionID: uuid.NewString(),
		logger:    logging.GetTransportLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Execute performs the call described by desc and returns the typed response.
// Non-2xx statuses are returned as errors from the apierr taxonomy; the
// caller decides what to do with them.
func (t *HTTPTransport) Execute(ctx context.Context, desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
	req, err := t.buildRequest(ctx, desc)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	duration := time.Since(start)
	t.recordRequest(duration, err == nil)

	if err != nil {
		return nil, &apierr.NetworkError{
			Op:      desc.Method + " " + desc.Path,
			Cause:   err,
			Timeout: isTimeout(err),
			At:      time.Now(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apierr.NetworkError{
			Op:    desc.Method + " " + desc.Path,
			Cause: fmt.Errorf("reading response body: %w", err),
			At:    time.Now(),
		}
	}

	t.logger.LogHTTPRequest(desc.Method, desc.Path, resp.StatusCode, duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierr.FromStatus(resp.StatusCode, body)
	}

	return &interfaces.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   duration,
	}, nil
}

// Stats returns a snapshot of the request statistics.
func (t *HTTPTransport) Stats() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *HTTPTransport) buildRequest(ctx context.Context, desc interfaces.RequestDescriptor) (*http.Request, error) {
	target := t.resolve(desc.Path, desc.Query)

	var payload io.Reader
	if desc.Body != nil {
		data, err := json.Marshal(desc.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body for %s: %w", desc.Path, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, desc.Method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", desc.Path, err)
	}

	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Session-ID", t.sessionID)
	if desc.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range desc.Header {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	return req, nil
}

func (t *HTTPTransport) resolve(path string, query map[string]string) string {
	ref := &url.URL{Path: path}
	full := t.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		q := full.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		full.RawQuery = q.Encode()
	}
	return full.String()
}

func (t *HTTPTransport) recordRequest(duration time.Duration, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.stats
	s.TotalRequests++
	s.LastRequestTime = time.Now()
	if success {
		s.SuccessfulRequests++
	} else {
		s.FailedRequests++
	}
	if s.TotalRequests == 1 {
		s.AverageResponseTime = duration
	} else {
		total := s.AverageResponseTime * time.Duration(s.TotalRequests-1)
		s.AverageResponseTime = (total + duration) / time.Duration(s.TotalRequests)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

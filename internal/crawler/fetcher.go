package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// errTooLarge aborts the retry loop; a bigger body will not shrink on retry.
var errTooLarge = errors.New("body exceeds size limit")

// FetcherConfig holds the knobs for the HTTP fetcher.
type FetcherConfig struct {
	UserAgent        string
	Timeout          time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	MaxContentLength int64
}

// HTTPFetcher performs the raw page retrieval with timeout, retry/backoff,
// and a post-download size guard. HTTP error statuses are returned as-is;
// only transport-level failures are retried.
type HTTPFetcher struct {
	client  *http.Client
	cfg     FetcherConfig
	retry   RetryPolicy
	sleeper Sleeper
	logger  *zap.Logger
}

// NewHTTPFetcher constructs an HTTPFetcher. A nil sleeper uses real timers.
func NewHTTPFetcher(cfg FetcherConfig, sleeper Sleeper, logger *zap.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = 10 << 20
	}
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:     cfg,
		retry:   NewRetryPolicy(cfg.MaxRetries, cfg.RetryBaseDelay),
		sleeper: sleeper,
		logger:  logger,
	}
}

// Fetch implements Fetcher. It issues a GET with the fixed header set,
// following redirects, and retries transport errors with exponential
// backoff (2^attempt times the base delay, attempt indices from 0).
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < f.retry.MaxAttempts; attempt++ {
		resp, err := f.attempt(ctx, url)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		TotalFetchErrors.Inc()
		if errors.Is(err, errTooLarge) {
			break
		}
		if !f.retry.ShouldRetry(err, attempt) {
			break
		}
		delay := f.retry.Backoff(attempt)
		f.logger.Warn("fetch attempt failed; backing off",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		TotalFetchRetries.Inc()
		f.sleeper.Sleep(ctx, delay)
	}
	return nil, fmt.Errorf("%w: %v", ErrTransport, lastErr)
}

func (f *HTTPFetcher) attempt(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	TotalFetchRequests.Inc()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	// Length is unknown until the body is drained, so the size guard runs
	// post-download: read one byte past the limit to detect overflow.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxContentLength+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.cfg.MaxContentLength {
		TotalOversizedBodies.Inc()
		f.logger.Warn("content too large",
			zap.String("url", url), zap.Int("bytes", len(body)))
		return nil, fmt.Errorf("%w: limit %d bytes", errTooLarge, f.cfg.MaxContentLength)
	}

	contentType := resp.Header.Get("Content-Type")
	return &Response{
		URL:         url,
		StatusCode:  resp.StatusCode,
		Headers:     flattenHeaders(resp.Header),
		Body:        body,
		ContentType: strings.ToLower(contentType),
		Encoding:    charsetOf(contentType),
	}, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key := range h {
		out[key] = h.Get(key)
	}
	return out
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

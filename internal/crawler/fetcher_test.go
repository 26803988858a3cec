package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingSleeper captures backoff delays instead of waiting them out.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) {
	s.delays = append(s.delays, d)
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		require.Contains(t, r.Header.Get("Accept"), "text/html")
		w.Header().Set("Content-Type", "text/HTML; charset=UTF-8")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	t.Cleanup(srv.Close)

	fetcher := NewHTTPFetcher(FetcherConfig{
		UserAgent:      "test-agent",
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}, &recordingSleeper{}, zap.NewNop())

	resp, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	require.Equal(t, "utf-8", resp.Encoding)
	require.Contains(t, string(resp.Body), "hello")
	require.NotEmpty(t, resp.Headers["Content-Type"])
}

func TestFetchErrorStatusIsNotAnError(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	fetcher := NewHTTPFetcher(FetcherConfig{
		UserAgent:      "test-agent",
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}, &recordingSleeper{}, zap.NewNop())

	resp, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err, "an HTTP error status is a successful fetch")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "error statuses are not retried")
}

func TestFetchRetriesTransportErrorsWithBackoff(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)

	sleeper := &recordingSleeper{}
	fetcher := NewHTTPFetcher(FetcherConfig{
		UserAgent:      "test-agent",
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}, sleeper, zap.NewNop())

	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrTransport)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls), "three attempts in total")
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays,
		"backoff doubles and only runs between attempts")
}

func TestFetchRecoversMidRetry(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	t.Cleanup(srv.Close)

	sleeper := &recordingSleeper{}
	fetcher := NewHTTPFetcher(FetcherConfig{
		UserAgent:      "test-agent",
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}, sleeper, zap.NewNop())

	resp, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, sleeper.delays, 1)
}

func TestFetchRejectsOversizedBodyWithoutRetry(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	t.Cleanup(srv.Close)

	sleeper := &recordingSleeper{}
	fetcher := NewHTTPFetcher(FetcherConfig{
		UserAgent:        "test-agent",
		MaxRetries:       3,
		RetryBaseDelay:   time.Second,
		MaxContentLength: 1024,
	}, sleeper, zap.NewNop())

	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrTransport)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "an oversized body will not shrink on retry")
	require.Empty(t, sleeper.delays)
}

func TestFetchBodyAtLimitIsAccepted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	t.Cleanup(srv.Close)

	fetcher := NewHTTPFetcher(FetcherConfig{
		UserAgent:        "test-agent",
		MaxRetries:       3,
		RetryBaseDelay:   time.Second,
		MaxContentLength: 1024,
	}, &recordingSleeper{}, zap.NewNop())

	resp, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, resp.Body, 1024)
}

package crawler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPolicy struct {
	allowed bool
}

func (p stubPolicy) Allowed(context.Context, string) bool { return p.allowed }

type stubFetcher struct {
	resp *Response
	err  error
}

func (f stubFetcher) Fetch(context.Context, string) (*Response, error) { return f.resp, f.err }

type stubExtractor struct {
	out  Extraction
	err  error
	boom bool
}

func (e stubExtractor) Extract(*Response) (Extraction, error) {
	if e.boom {
		panic("extractor exploded")
	}
	return e.out, e.err
}

type stubClassifier struct {
	labels []string
}

func (c stubClassifier) Classify(string, string, string) []string { return c.labels }

func htmlResponse(url string) *Response {
	return &Response{
		URL:         url,
		StatusCode:  200,
		Body:        []byte("<html></html>"),
		ContentType: "text/html; charset=utf-8",
		Encoding:    "utf-8",
		Headers:     map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
}

func TestCrawlBlockedByPolicy(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator(
		stubPolicy{allowed: false},
		stubFetcher{},
		stubExtractor{},
		stubClassifier{},
		zap.NewNop(),
	)
	result := orch.Crawl(context.Background(), CrawlTarget{
		URL:     "https://example.com/private",
		Options: DefaultCrawlOptions(),
	})
	require.Equal(t, ResultBlocked, result.Status)
	require.Equal(t, ErrPolicyDenied.Error(), result.Error)
	require.False(t, result.Retryable)
}

func TestCrawlPolicyIgnoredWhenOptionDisabled(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator(
		stubPolicy{allowed: false},
		stubFetcher{resp: htmlResponse("https://example.com/private")},
		stubExtractor{out: Extraction{Title: "ok"}},
		stubClassifier{},
		zap.NewNop(),
	)
	opts := DefaultCrawlOptions()
	opts.RespectRobots = false
	result := orch.Crawl(context.Background(), CrawlTarget{
		URL:     "https://example.com/private",
		Options: opts,
	})
	require.Equal(t, ResultCompleted, result.Status)
}

func TestCrawlFetchFailureIsRetryable(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator(
		stubPolicy{allowed: true},
		stubFetcher{err: fmt.Errorf("%w: connection refused", ErrTransport)},
		stubExtractor{},
		stubClassifier{},
		zap.NewNop(),
	)
	result := orch.Crawl(context.Background(), CrawlTarget{
		URL:     "https://example.com/down",
		Options: DefaultCrawlOptions(),
	})
	require.Equal(t, ResultFailed, result.Status)
	require.True(t, result.Retryable)
	require.Contains(t, result.Error, "failed to fetch URL")
}

func TestCrawlExtractFailureKeepsHTTPMetadata(t *testing.T) {
	t.Parallel()

	resp := htmlResponse("https://example.com/pdf")
	resp.ContentType = "application/pdf"
	orch := NewOrchestrator(
		stubPolicy{allowed: true},
		stubFetcher{resp: resp},
		stubExtractor{err: fmt.Errorf("%w: not an HTML page", ErrContentType)},
		stubClassifier{},
		zap.NewNop(),
	)
	result := orch.Crawl(context.Background(), CrawlTarget{
		URL:     "https://example.com/pdf",
		Options: DefaultCrawlOptions(),
	})
	require.Equal(t, ResultFailed, result.Status)
	require.False(t, result.Retryable, "the same bytes come back on retry")
	require.Equal(t, 200, result.StatusCode)
	require.Equal(t, "application/pdf", result.ContentType)
	require.Equal(t, int64(len(resp.Body)), result.ContentLength)
	require.NotEmpty(t, result.Headers)
}

func TestCrawlCompletedCarriesExtractionAndTopics(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator(
		stubPolicy{allowed: true},
		stubFetcher{resp: htmlResponse("https://example.com/health")},
		stubExtractor{out: Extraction{
			Title:       "Health Tips",
			Description: "Daily wellness advice",
			Language:    "en",
			Content:     "<article>tips</article>",
			TextContent: "Health Tips Daily wellness advice",
		}},
		stubClassifier{labels: []string{"health"}},
		zap.NewNop(),
	)
	result := orch.Crawl(context.Background(), CrawlTarget{
		URL:     "https://example.com/health",
		Options: DefaultCrawlOptions(),
	})
	require.Equal(t, ResultCompleted, result.Status)
	require.Equal(t, "Health Tips", result.Title)
	require.Equal(t, []string{"health"}, result.Topics)
	require.Equal(t, 200, result.StatusCode)
	require.Equal(t, "utf-8", result.Encoding)
	require.Empty(t, result.Error)
}

func TestCrawlNilClassifierYieldsNoTopics(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator(
		stubPolicy{allowed: true},
		stubFetcher{resp: htmlResponse("https://example.com/page")},
		stubExtractor{out: Extraction{Title: "Page"}},
		nil,
		zap.NewNop(),
	)
	result := orch.Crawl(context.Background(), CrawlTarget{
		URL:     "https://example.com/page",
		Options: DefaultCrawlOptions(),
	})
	require.Equal(t, ResultCompleted, result.Status)
	require.Empty(t, result.Topics)
}

func TestCrawlRecoversPanicsAsFailedResults(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator(
		stubPolicy{allowed: true},
		stubFetcher{resp: htmlResponse("https://example.com/page")},
		stubExtractor{boom: true},
		stubClassifier{},
		zap.NewNop(),
	)
	result := orch.Crawl(context.Background(), CrawlTarget{
		URL:     "https://example.com/page",
		Options: DefaultCrawlOptions(),
	})
	require.Equal(t, ResultFailed, result.Status)
	require.Contains(t, result.Error, "unexpected crawl failure")
}

package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Orchestrator composes the robots check, fetch, extraction, and
// classification stages into a single per-URL operation. It returns one
// immutable result per invocation and never mutates shared state;
// persistence happens in the coordinator around it.
type Orchestrator struct {
	robots     RobotsPolicy
	fetcher    Fetcher
	extractor  Extractor
	classifier Classifier
	logger     *zap.Logger
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	robots RobotsPolicy,
	fetcher Fetcher,
	extractor Extractor,
	classifier Classifier,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		robots:     robots,
		fetcher:    fetcher,
		extractor:  extractor,
		classifier: classifier,
		logger:     logger,
	}
}

// Crawl runs the attempt state machine:
// started -> blocked | failed | completed. Anything unexpected is recovered
// at this boundary and converted to a failed result; Crawl never panics past
// its own interface.
func (o *Orchestrator) Crawl(ctx context.Context, target CrawlTarget) (result CrawlResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("crawl panic recovered",
				zap.String("url", target.URL), zap.Any("panic", r))
			result = CrawlResult{
				Status: ResultFailed,
				URL:    target.URL,
				Error:  fmt.Sprintf("unexpected crawl failure: %v", r),
			}
			AttemptsByOutcome.WithLabelValues(string(ResultFailed)).Inc()
		}
	}()

	if target.Options.RespectRobots && !o.robots.Allowed(ctx, target.URL) {
		AttemptsByOutcome.WithLabelValues(string(ResultBlocked)).Inc()
		return CrawlResult{
			Status: ResultBlocked,
			URL:    target.URL,
			Error:  ErrPolicyDenied.Error(),
		}
	}

	resp, err := o.fetcher.Fetch(ctx, target.URL)
	if err != nil {
		AttemptsByOutcome.WithLabelValues(string(ResultFailed)).Inc()
		return CrawlResult{
			Status:    ResultFailed,
			URL:       target.URL,
			Error:     fmt.Sprintf("failed to fetch URL: %v", err),
			Retryable: true,
		}
	}

	extraction, err := o.extractor.Extract(resp)
	if err != nil {
		// Content-type and parse failures keep the HTTP metadata; they
		// are terminal because a retry returns the same bytes.
		AttemptsByOutcome.WithLabelValues(string(ResultFailed)).Inc()
		return CrawlResult{
			Status:        ResultFailed,
			URL:           target.URL,
			Error:         err.Error(),
			StatusCode:    resp.StatusCode,
			ContentType:   resp.ContentType,
			ContentLength: int64(len(resp.Body)),
			Encoding:      resp.Encoding,
			Headers:       resp.Headers,
		}
	}

	// Topics are computed regardless of the classify option; the
	// coordinator decides whether they are persisted.
	var topics []string
	if o.classifier != nil {
		topics = o.classifier.Classify(extraction.Title, extraction.Description, extraction.TextContent)
	}

	AttemptsByOutcome.WithLabelValues(string(ResultCompleted)).Inc()
	return CrawlResult{
		Status:        ResultCompleted,
		URL:           target.URL,
		Title:         extraction.Title,
		Description:   extraction.Description,
		Keywords:      extraction.Keywords,
		Author:        extraction.Author,
		Language:      extraction.Language,
		Content:       extraction.Content,
		TextContent:   extraction.TextContent,
		Topics:        topics,
		StatusCode:    resp.StatusCode,
		ContentType:   resp.ContentType,
		ContentLength: int64(len(resp.Body)),
		Encoding:      resp.Encoding,
		Headers:       resp.Headers,
	}
}

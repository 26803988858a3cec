package crawler

import (
	"context"
	"time"
)

// Store is the persistence surface the core reads and writes through. The
// engine behind it is an external collaborator; implementations must be
// atomic at the single-record level and enforce the unique constraints on
// (url) and (page, topic).
type Store interface {
	GetOrCreateWebsite(ctx context.Context, domain string) (Website, error)
	UpdateWebsite(ctx context.Context, site Website) error
	ListWebsites(ctx context.Context) ([]Website, error)

	GetOrCreatePage(ctx context.Context, url, websiteID string) (Page, bool, error)
	GetPage(ctx context.Context, url string) (Page, error)
	// TryMarkCrawling transitions a page to crawling only when no other
	// attempt holds it; false means the caller must not proceed.
	TryMarkCrawling(ctx context.Context, pageID string) (bool, error)
	UpdatePageFields(ctx context.Context, pageID string, fields PageFields) error
	ListPagesByURL(ctx context.Context, urls []string) ([]Page, error)
	ListPagesByStatus(ctx context.Context, status PageStatus) ([]Page, error)
	ListPagesByWebsite(ctx context.Context, websiteID string) ([]Page, error)
	DeactivatePagesBefore(ctx context.Context, cutoff time.Time) (int, error)

	GetOrCreateTopic(ctx context.Context, name string) (Topic, error)
	UpdateTopic(ctx context.Context, topic Topic) error
	ListTopics(ctx context.Context) ([]Topic, error)
	UpsertPageTopic(ctx context.Context, pageID, topicID string, confidence float64, source TopicSource) error
	CountPagesForTopic(ctx context.Context, topicID string) (int, error)

	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	UpdateJobCounters(ctx context.Context, jobID string, completed, failed int, status JobStatus) error
}

// Fetcher retrieves a URL, applying its own retry and size policy. A nil
// response with a non-nil error means the fetch is unusable.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// RobotsPolicy answers whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, url string) bool
}

// Extractor turns a successful HTML response into structured metadata.
// Content-type and parse failures surface as errors; per-field failures are
// absorbed into defaults by the implementation.
type Extractor interface {
	Extract(resp *Response) (Extraction, error)
}

// Extraction holds the per-field outputs of the content extractor. Any field
// may be empty when its extraction degraded.
type Extraction struct {
	Title       string
	Description string
	Keywords    string
	Author      string
	Language    string
	Content     string
	TextContent string
}

// Classifier maps extracted text to at most three topic labels.
type Classifier interface {
	Classify(title, description, text string) []string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper waits out backoff delays; fakes record the delay sequence in tests.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

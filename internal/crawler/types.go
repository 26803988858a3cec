// Package crawler defines core types shared across subsystems.
package crawler

import (
	"time"
)

// PageStatus represents the lifecycle state of a crawled page.
type PageStatus string

// Page status values persisted in the page store.
const (
	PageStatusPending   PageStatus = "pending"
	PageStatusCrawling  PageStatus = "crawling"
	PageStatusCompleted PageStatus = "completed"
	PageStatusFailed    PageStatus = "failed"
	PageStatusBlocked   PageStatus = "blocked"
)

// Terminal reports whether the status ends the page lifecycle.
func (s PageStatus) Terminal() bool {
	switch s {
	case PageStatusCompleted, PageStatusFailed, PageStatusBlocked:
		return true
	default:
		return false
	}
}

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status ends the job lifecycle.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// TopicSource identifies how a page/topic edge was produced.
type TopicSource string

// Topic edge sources.
const (
	TopicSourceAutomatic TopicSource = "automatic"
	TopicSourceManual    TopicSource = "manual"
)

// Record carries the bookkeeping fields shared by every persisted entity:
// identity, timestamps, and the soft-delete flag. Entities embed it rather
// than inherit behavior from it.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Active    bool      `json:"active"`
}

// Website groups pages by domain.
type Website struct {
	Record
	Domain      string     `json:"domain"`
	Name        string     `json:"name"`
	TotalPages  int        `json:"total_pages"`
	LastCrawled *time.Time `json:"last_crawled,omitempty"`
}

// Page is the durable record for a single URL, keyed uniquely by URL.
type Page struct {
	Record
	URL        string     `json:"url"`
	WebsiteID  string     `json:"website_id"`
	Status     PageStatus `json:"status"`
	RetryCount int        `json:"retry_count"`
	LastError  string     `json:"last_error,omitempty"`
	Topics     []string   `json:"topics,omitempty"`
	CrawledAt  *time.Time `json:"crawled_at,omitempty"`

	Title         string            `json:"title,omitempty"`
	Description   string            `json:"description,omitempty"`
	Keywords      string            `json:"keywords,omitempty"`
	Author        string            `json:"author,omitempty"`
	Language      string            `json:"language,omitempty"`
	Content       string            `json:"content,omitempty"`
	TextContent   string            `json:"text_content,omitempty"`
	StatusCode    int               `json:"status_code,omitempty"`
	ContentType   string            `json:"content_type,omitempty"`
	ContentLength int64             `json:"content_length,omitempty"`
	Encoding      string            `json:"encoding,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// Job groups a batch of pages submitted together.
type Job struct {
	Record
	Name      string     `json:"name"`
	URLs      []string   `json:"urls"`
	Status    JobStatus  `json:"status"`
	Total     int        `json:"total_urls"`
	Completed int        `json:"completed_urls"`
	Failed    int        `json:"failed_urls"`
	Progress  float64    `json:"progress"`
	Started   *time.Time `json:"started_at,omitempty"`
	Finished  *time.Time `json:"finished_at,omitempty"`
}

// ProgressPercent computes (completed+failed)/total*100 clamped to [0,100].
// Progress is always recomputed from counts, never incremented, so concurrent
// attempts cannot drift it.
func ProgressPercent(completed, failed, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(completed+failed) / float64(total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Topic is a classification label created lazily the first time the
// classifier emits it.
type Topic struct {
	Record
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	PageCount int    `json:"page_count"`
}

// PageTopic is the labeled many-to-many edge between pages and topics,
// unique per (page, topic) pair.
type PageTopic struct {
	Record
	PageID     string      `json:"page_id"`
	TopicID    string      `json:"topic_id"`
	Confidence float64     `json:"confidence"`
	Source     TopicSource `json:"source"`
}

// CrawlOptions gates which result fields are computed and persisted for an
// attempt. Options are fixed once the attempt starts.
type CrawlOptions struct {
	ExtractContent bool `json:"extract_content"`
	ClassifyTopics bool `json:"classify_topics"`
	RespectRobots  bool `json:"respect_robots"`
}

// DefaultCrawlOptions enables every pipeline stage.
func DefaultCrawlOptions() CrawlOptions {
	return CrawlOptions{ExtractContent: true, ClassifyTopics: true, RespectRobots: true}
}

// CrawlTarget is one URL plus the options in force for its attempt.
type CrawlTarget struct {
	URL     string
	Options CrawlOptions
}

// ResultStatus is the outcome classification of a single crawl attempt.
type ResultStatus string

// Attempt outcomes.
const (
	ResultCompleted ResultStatus = "completed"
	ResultFailed    ResultStatus = "failed"
	ResultBlocked   ResultStatus = "blocked"
)

// CrawlResult is the immutable outcome of one crawl attempt. Error is set
// iff Status != ResultCompleted; individual metadata fields may be empty on
// a completed result when their extraction degraded.
type CrawlResult struct {
	Status        ResultStatus
	URL           string
	Title         string
	Description   string
	Keywords      string
	Author        string
	Language      string
	Content       string
	TextContent   string
	Topics        []string
	StatusCode    int
	ContentType   string
	ContentLength int64
	Encoding      string
	Headers       map[string]string
	Error         string
	// Retryable marks failures worth another attempt (transport-level).
	// Content-type, parse, and robots outcomes are never retryable.
	Retryable bool
}

// Response is the raw HTTP retrieval handed to the extractor.
type Response struct {
	URL         string
	StatusCode  int
	Headers     map[string]string
	Body        []byte
	ContentType string
	Encoding    string
}

// PageFields is a partial update applied to a page record. Nil members are
// left untouched by the store.
type PageFields struct {
	Status        *PageStatus
	RetryCount    *int
	LastError     *string
	Topics        []string
	CrawledAt     *time.Time
	Title         *string
	Description   *string
	Keywords      *string
	Author        *string
	Language      *string
	Content       *string
	TextContent   *string
	StatusCode    *int
	ContentType   *string
	ContentLength *int64
	Encoding      *string
	Headers       map[string]string
}

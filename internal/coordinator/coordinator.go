// Package coordinator fans crawl batches out to a worker pool and keeps the
// job-progress view consistent under concurrent attempt completions.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crawlware/topiccrawler/internal/crawler"
)

// Pipeline is the per-URL crawl operation the coordinator dispatches.
type Pipeline interface {
	Crawl(ctx context.Context, target crawler.CrawlTarget) crawler.CrawlResult
}

// Config controls coordinator behavior.
type Config struct {
	Concurrency       int
	QueueDepth        int
	RetryCeiling      int
	RetryBaseDelay    time.Duration
	InterRequestDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 64
	}
	if c.RetryCeiling <= 0 {
		c.RetryCeiling = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 60 * time.Second
	}
	return c
}

// attempt is one schedulable unit of work: a URL under a job's options.
// A retry is a brand-new attempt with a bumped retry index.
type attempt struct {
	jobID      string
	url        string
	options    crawler.CrawlOptions
	retryIndex int
}

// Coordinator owns the attempt queue, the worker pool, the retry policy for
// failed attempts, and job progress recomputation.
type Coordinator struct {
	store    crawler.Store
	pipeline Pipeline
	clock    crawler.Clock
	ids      crawler.IDGenerator
	sched    Scheduler
	sleeper  crawler.Sleeper
	logger   *zap.Logger
	cfg      Config

	queue    chan attempt
	jobLocks sync.Map // jobID -> *sync.Mutex
}

// New constructs a Coordinator. Nil scheduler/sleeper use real timers.
func New(
	store crawler.Store,
	pipeline Pipeline,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	sched Scheduler,
	sleeper crawler.Sleeper,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	cfg = cfg.withDefaults()
	if sched == nil {
		sched = TimerScheduler{}
	}
	if sleeper == nil {
		sleeper = crawler.TimerSleeper{}
	}
	return &Coordinator{
		store:    store,
		pipeline: pipeline,
		clock:    clock,
		ids:      ids,
		sched:    sched,
		sleeper:  sleeper,
		logger:   logger,
		cfg:      cfg,
		queue:    make(chan attempt, cfg.QueueDepth),
	}
}

// Run starts the worker pool and blocks until the context finishes.
func (c *Coordinator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			c.workerLoop(ctx, c.logger.Named("worker").With(zap.Int("index", index)))
		}(i)
	}
	wg.Wait()
}

func (c *Coordinator) workerLoop(ctx context.Context, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case att := <-c.queue:
			c.process(ctx, att, logger)
		}
	}
}

// Submit accepts a batch of URLs plus shared options, creates the job, and
// returns its ID immediately; dispatch happens asynchronously.
func (c *Coordinator) Submit(ctx context.Context, name string, urls []string, opts crawler.CrawlOptions) (string, error) {
	id, err := c.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("new job id: %w", err)
	}

	normalized := make([]string, 0, len(urls))
	for _, raw := range urls {
		if u, err := crawler.NormalizeURL(raw); err == nil {
			normalized = append(normalized, u)
		} else {
			// Unparsable URLs keep their raw form and fail at fetch
			// time, so the job total stays equal to the submitted count.
			c.logger.Warn("submitted url failed normalization", zap.String("url", raw), zap.Error(err))
			normalized = append(normalized, raw)
		}
	}

	now := c.clock.Now()
	job := crawler.Job{
		Record: crawler.Record{ID: id, CreatedAt: now, UpdatedAt: now, Active: true},
		Name:   name,
		URLs:   normalized,
		Status: crawler.JobStatusPending,
		Total:  len(normalized),
	}
	if err := c.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	go c.dispatch(ctx, job, opts)
	return id, nil
}

// dispatch marks the job running and feeds its URLs to the attempt queue.
func (c *Coordinator) dispatch(ctx context.Context, job crawler.Job, opts crawler.CrawlOptions) {
	if err := c.store.UpdateJobCounters(ctx, job.ID, 0, 0, crawler.JobStatusRunning); err != nil {
		c.logger.Error("mark job running failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	for _, url := range job.URLs {
		c.enqueue(ctx, attempt{jobID: job.ID, url: url, options: opts})
	}
	c.logger.Info("job dispatched",
		zap.String("job_id", job.ID),
		zap.String("name", job.Name),
		zap.Int("urls", len(job.URLs)))
}

func (c *Coordinator) enqueue(ctx context.Context, att attempt) {
	select {
	case <-ctx.Done():
	case c.queue <- att:
	}
}

// process runs one attempt end to end: claim the page, crawl, persist the
// outcome, schedule a retry when warranted, and recompute job progress.
func (c *Coordinator) process(ctx context.Context, att attempt, logger *zap.Logger) {
	if att.jobID != "" {
		job, err := c.store.GetJob(ctx, att.jobID)
		if err != nil {
			logger.Error("load job failed", zap.String("job_id", att.jobID), zap.Error(err))
			return
		}
		// Cancellation is cooperative: queued attempts for a cancelled
		// job are dropped without touching their pages.
		if job.Status == crawler.JobStatusCancelled {
			logger.Debug("attempt dropped for cancelled job",
				zap.String("job_id", att.jobID), zap.String("url", att.url))
			return
		}
	}

	// Recompute runs even when the attempt is deduplicated or skipped, so
	// a job referencing an already-crawled page still converges.
	defer c.RecomputeProgress(ctx, att.jobID)

	page, ok := c.claimPage(ctx, att, logger)
	if !ok {
		return
	}

	if c.cfg.InterRequestDelay > 0 {
		c.sleeper.Sleep(ctx, c.cfg.InterRequestDelay)
	}

	result := c.pipeline.Crawl(ctx, crawler.CrawlTarget{URL: att.url, Options: att.options})
	c.persistResult(ctx, att, page, result, logger)
}

// claimPage resolves the website and page records and claims the page for
// this attempt. It returns false when the attempt must not proceed: page
// already crawled, or another attempt is in flight.
func (c *Coordinator) claimPage(ctx context.Context, att attempt, logger *zap.Logger) (crawler.Page, bool) {
	domain, err := crawler.DomainOf(att.url)
	if err != nil {
		domain = ""
	}
	site, err := c.store.GetOrCreateWebsite(ctx, domain)
	if err != nil {
		logger.Error("get or create website failed", zap.String("url", att.url), zap.Error(err))
		return crawler.Page{}, false
	}

	page, created, err := c.store.GetOrCreatePage(ctx, att.url, site.ID)
	if err != nil {
		logger.Error("get or create page failed", zap.String("url", att.url), zap.Error(err))
		return crawler.Page{}, false
	}
	if !created && page.Status == crawler.PageStatusCompleted {
		logger.Info("page already crawled", zap.String("url", att.url))
		return crawler.Page{}, false
	}

	claimed, err := c.store.TryMarkCrawling(ctx, page.ID)
	if err != nil {
		logger.Error("claim page failed", zap.String("url", att.url), zap.Error(err))
		return crawler.Page{}, false
	}
	if !claimed {
		// Another attempt holds this page; at most one is in flight
		// per URL.
		logger.Warn("page already crawling; attempt deduplicated", zap.String("url", att.url))
		return crawler.Page{}, false
	}
	return page, true
}

func (c *Coordinator) persistResult(
	ctx context.Context,
	att attempt,
	page crawler.Page,
	result crawler.CrawlResult,
	logger *zap.Logger,
) {
	switch result.Status {
	case crawler.ResultCompleted:
		c.persistCompleted(ctx, att, page, result, logger)
	case crawler.ResultBlocked:
		status := crawler.PageStatusBlocked
		fields := crawler.PageFields{Status: &status, LastError: &result.Error}
		if err := c.store.UpdatePageFields(ctx, page.ID, fields); err != nil {
			logger.Error("persist blocked page failed", zap.String("url", att.url), zap.Error(err))
		}
	case crawler.ResultFailed:
		c.persistFailed(ctx, att, page, result, logger)
	}
}

func (c *Coordinator) persistCompleted(
	ctx context.Context,
	att attempt,
	page crawler.Page,
	result crawler.CrawlResult,
	logger *zap.Logger,
) {
	status := crawler.PageStatusCompleted
	now := c.clock.Now()
	empty := ""
	fields := crawler.PageFields{
		Status:        &status,
		LastError:     &empty,
		CrawledAt:     &now,
		Title:         &result.Title,
		Description:   &result.Description,
		Keywords:      &result.Keywords,
		Author:        &result.Author,
		Language:      &result.Language,
		StatusCode:    &result.StatusCode,
		ContentType:   &result.ContentType,
		ContentLength: &result.ContentLength,
		Encoding:      &result.Encoding,
		Headers:       result.Headers,
	}
	// The pipeline computes content and topics unconditionally; the
	// options decide what is persisted.
	if att.options.ExtractContent {
		fields.Content = &result.Content
		fields.TextContent = &result.TextContent
	}
	if att.options.ClassifyTopics {
		fields.Topics = result.Topics
	}
	if err := c.store.UpdatePageFields(ctx, page.ID, fields); err != nil {
		logger.Error("persist completed page failed", zap.String("url", att.url), zap.Error(err))
		return
	}

	if att.options.ClassifyTopics {
		c.linkTopics(ctx, page.ID, result.Topics, logger)
	}
	logger.Info("page crawled",
		zap.String("url", att.url),
		zap.Strings("topics", result.Topics),
		zap.Int("status_code", result.StatusCode))
}

// linkTopics lazily creates topics and upserts the (page, topic) edges.
func (c *Coordinator) linkTopics(ctx context.Context, pageID string, topics []string, logger *zap.Logger) {
	for _, name := range topics {
		topic, err := c.store.GetOrCreateTopic(ctx, name)
		if err != nil {
			logger.Error("get or create topic failed", zap.String("topic", name), zap.Error(err))
			continue
		}
		if err := c.store.UpsertPageTopic(ctx, pageID, topic.ID, 1.0, crawler.TopicSourceAutomatic); err != nil {
			logger.Error("upsert page topic failed", zap.String("topic", name), zap.Error(err))
		}
	}
}

func (c *Coordinator) persistFailed(
	ctx context.Context,
	att attempt,
	page crawler.Page,
	result crawler.CrawlResult,
	logger *zap.Logger,
) {
	// The retry counter tracks the retry path only; a terminal
	// non-retryable failure saves the result without touching it.
	retries := page.RetryCount
	if result.Retryable {
		retries++
	}
	retrying := result.Retryable && retries < c.cfg.RetryCeiling

	// A page awaiting a scheduled retry parks back in pending; only the
	// final failure is terminal, so job progress does not latch early.
	status := crawler.PageStatusFailed
	if retrying {
		status = crawler.PageStatusPending
	}
	fields := crawler.PageFields{
		Status:    &status,
		LastError: &result.Error,
	}
	if result.Retryable {
		fields.RetryCount = &retries
	}
	if result.StatusCode != 0 {
		fields.StatusCode = &result.StatusCode
		fields.ContentType = &result.ContentType
		fields.ContentLength = &result.ContentLength
		fields.Encoding = &result.Encoding
		fields.Headers = result.Headers
	}
	if err := c.store.UpdatePageFields(ctx, page.ID, fields); err != nil {
		logger.Error("persist failed page failed", zap.String("url", att.url), zap.Error(err))
		return
	}

	if retrying {
		delay := c.cfg.RetryBaseDelay << uint(att.retryIndex)
		logger.Warn("attempt failed; retry scheduled",
			zap.String("url", att.url),
			zap.Int("retry", retries),
			zap.Duration("delay", delay),
			zap.String("error", result.Error))
		next := attempt{
			jobID:      att.jobID,
			url:        att.url,
			options:    att.options,
			retryIndex: att.retryIndex + 1,
		}
		c.sched.Schedule(ctx, delay, func() {
			c.enqueue(ctx, next)
		})
		return
	}
	logger.Error("attempt failed permanently",
		zap.String("url", att.url),
		zap.Int("retries", retries),
		zap.String("error", result.Error))
}

// jobLock returns the mutex serializing counter updates for one job.
func (c *Coordinator) jobLock(jobID string) *sync.Mutex {
	lock, _ := c.jobLocks.LoadOrStore(jobID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// RecomputeProgress rescans the page states belonging to the job's URL set
// and replaces the job's counters. The rescan is the authoritative,
// idempotent mode: re-running it always yields the true counts and never
// compounds, which corrects any drift from concurrent explicit updates.
func (c *Coordinator) RecomputeProgress(ctx context.Context, jobID string) {
	if jobID == "" {
		return
	}
	lock := c.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		c.logger.Error("recompute: load job failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if job.Status == crawler.JobStatusCancelled {
		return
	}

	pages, err := c.store.ListPagesByURL(ctx, job.URLs)
	if err != nil {
		c.logger.Error("recompute: list pages failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	completed, failed, terminal := 0, 0, 0
	for _, page := range pages {
		switch page.Status {
		case crawler.PageStatusCompleted:
			completed++
			terminal++
		case crawler.PageStatusFailed, crawler.PageStatusBlocked:
			// Blocked pages count into the failed tally so progress
			// reaches 100 once every page is terminal.
			failed++
			terminal++
		}
	}

	status := crawler.JobStatusRunning
	if terminal == job.Total && job.Total > 0 {
		if completed == 0 {
			status = crawler.JobStatusFailed
		} else {
			status = crawler.JobStatusCompleted
		}
	}

	if err := c.store.UpdateJobCounters(ctx, jobID, completed, failed, status); err != nil {
		c.logger.Error("recompute: update counters failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	c.logger.Debug("job progress recomputed",
		zap.String("job_id", jobID),
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.Float64("progress", crawler.ProgressPercent(completed, failed, job.Total)))
}

// UpdateProgress applies caller-supplied counts as a fast-path hint. At
// quiescence it agrees with RecomputeProgress; mid-flight the rescan wins.
func (c *Coordinator) UpdateProgress(ctx context.Context, jobID string, completed, failed int) error {
	lock := c.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status.Terminal() {
		return nil
	}
	status := crawler.JobStatusRunning
	if completed+failed >= job.Total && job.Total > 0 {
		status = crawler.JobStatusCompleted
	}
	if err := c.store.UpdateJobCounters(ctx, jobID, completed, failed, status); err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	return nil
}

// Cancel moves a job to cancelled. In-flight attempts finish on their own;
// queued attempts are dropped at pickup and bookkeeping stops counting
// toward completion.
func (c *Coordinator) Cancel(ctx context.Context, jobID string) error {
	lock := c.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status.Terminal() {
		return nil
	}
	if err := c.store.UpdateJobCounters(ctx, jobID, job.Completed, job.Failed, crawler.JobStatusCancelled); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	c.logger.Info("job cancelled", zap.String("job_id", jobID))
	return nil
}

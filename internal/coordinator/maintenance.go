package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crawlware/topiccrawler/internal/crawler"
)

// Maintenance operations run outside any job's dispatch loop. They only
// read other jobs' in-flight state; the records they mutate (failed pages,
// topic counts, website stats) are not contended by running attempts.

// RequeueFailed is the explicit external re-queue: every failed page goes
// back to pending with its retry counter reset to zero and is submitted as a
// fresh attempt.
func (c *Coordinator) RequeueFailed(ctx context.Context, opts crawler.CrawlOptions) (int, error) {
	pages, err := c.store.ListPagesByStatus(ctx, crawler.PageStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("list failed pages: %w", err)
	}

	requeued := 0
	for _, page := range pages {
		status := crawler.PageStatusPending
		zero := 0
		empty := ""
		fields := crawler.PageFields{Status: &status, RetryCount: &zero, LastError: &empty}
		if err := c.store.UpdatePageFields(ctx, page.ID, fields); err != nil {
			c.logger.Error("requeue: reset page failed", zap.String("url", page.URL), zap.Error(err))
			continue
		}
		c.enqueue(ctx, attempt{url: page.URL, options: opts})
		requeued++
	}
	c.logger.Info("failed pages requeued", zap.Int("count", requeued))
	return requeued, nil
}

// CleanupOldPages soft-deletes pages older than the retention window.
func (c *Coordinator) CleanupOldPages(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := c.clock.Now().Add(-retention)
	count, err := c.store.DeactivatePagesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate old pages: %w", err)
	}
	c.logger.Info("old pages cleaned up", zap.Int("count", count), zap.Time("cutoff", cutoff))
	return count, nil
}

// SyncTopicCounts recomputes each topic's page count from its live edges.
func (c *Coordinator) SyncTopicCounts(ctx context.Context) error {
	topics, err := c.store.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	for _, topic := range topics {
		count, err := c.store.CountPagesForTopic(ctx, topic.ID)
		if err != nil {
			c.logger.Error("sync: count pages failed", zap.String("topic", topic.Name), zap.Error(err))
			continue
		}
		topic.PageCount = count
		if err := c.store.UpdateTopic(ctx, topic); err != nil {
			c.logger.Error("sync: update topic failed", zap.String("topic", topic.Name), zap.Error(err))
		}
	}
	return nil
}

// RefreshWebsiteStats recomputes per-website page totals and the most recent
// crawl timestamp.
func (c *Coordinator) RefreshWebsiteStats(ctx context.Context) error {
	sites, err := c.store.ListWebsites(ctx)
	if err != nil {
		return fmt.Errorf("list websites: %w", err)
	}
	for _, site := range sites {
		pages, err := c.store.ListPagesByWebsite(ctx, site.ID)
		if err != nil {
			c.logger.Error("stats: list pages failed", zap.String("domain", site.Domain), zap.Error(err))
			continue
		}
		site.TotalPages = len(pages)
		var last *time.Time
		for _, page := range pages {
			if page.Status != crawler.PageStatusCompleted || page.CrawledAt == nil {
				continue
			}
			if last == nil || page.CrawledAt.After(*last) {
				last = page.CrawledAt
			}
		}
		site.LastCrawled = last
		if err := c.store.UpdateWebsite(ctx, site); err != nil {
			c.logger.Error("stats: update website failed", zap.String("domain", site.Domain), zap.Error(err))
		}
	}
	return nil
}

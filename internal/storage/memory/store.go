// Package memory provides an in-memory Store for development and testing.
// The production persistence engine is an external collaborator; this
// implementation honors the same contract: single-record atomicity and
// unique constraints on (url) and (page, topic).
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/crawlware/topiccrawler/internal/crawler"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store implements crawler.Store with mutex-guarded maps.
type Store struct {
	mu        sync.RWMutex
	clock     crawler.Clock
	ids       crawler.IDGenerator
	websites  map[string]crawler.Website   // domain -> website
	pages     map[string]crawler.Page      // url -> page
	pagesByID map[string]string            // id -> url
	topics    map[string]crawler.Topic     // name -> topic
	edges     map[string]crawler.PageTopic // pageID + "\x00" + topicID
	jobs      map[string]crawler.Job       // id -> job
}

// NewStore constructs a Store.
func NewStore(clock crawler.Clock, ids crawler.IDGenerator) *Store {
	return &Store{
		clock:     clock,
		ids:       ids,
		websites:  make(map[string]crawler.Website),
		pages:     make(map[string]crawler.Page),
		pagesByID: make(map[string]string),
		topics:    make(map[string]crawler.Topic),
		edges:     make(map[string]crawler.PageTopic),
		jobs:      make(map[string]crawler.Job),
	}
}

func (s *Store) newRecord() (crawler.Record, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.Record{}, fmt.Errorf("new record id: %w", err)
	}
	now := s.clock.Now()
	return crawler.Record{ID: id, CreatedAt: now, UpdatedAt: now, Active: true}, nil
}

// GetOrCreateWebsite returns the website for domain, creating it on first
// reference.
func (s *Store) GetOrCreateWebsite(_ context.Context, domain string) (crawler.Website, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if site, ok := s.websites[domain]; ok {
		return site, nil
	}
	rec, err := s.newRecord()
	if err != nil {
		return crawler.Website{}, err
	}
	site := crawler.Website{Record: rec, Domain: domain, Name: domain}
	s.websites[domain] = site
	return site, nil
}

// UpdateWebsite replaces a website record.
func (s *Store) UpdateWebsite(_ context.Context, site crawler.Website) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.websites[site.Domain]; !ok {
		return ErrNotFound
	}
	site.UpdatedAt = s.clock.Now()
	s.websites[site.Domain] = site
	return nil
}

// ListWebsites returns every website record.
func (s *Store) ListWebsites(_ context.Context) ([]crawler.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Website, 0, len(s.websites))
	for _, site := range s.websites {
		out = append(out, site)
	}
	return out, nil
}

// GetOrCreatePage returns the page keyed by url, creating it pending on
// first reference. The second return reports whether it was created.
func (s *Store) GetOrCreatePage(_ context.Context, url, websiteID string) (crawler.Page, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page, ok := s.pages[url]; ok {
		return page, false, nil
	}
	rec, err := s.newRecord()
	if err != nil {
		return crawler.Page{}, false, err
	}
	page := crawler.Page{
		Record:    rec,
		URL:       url,
		WebsiteID: websiteID,
		Status:    crawler.PageStatusPending,
	}
	s.pages[url] = page
	s.pagesByID[page.ID] = url
	return page, true, nil
}

// GetPage fetches a page by URL.
func (s *Store) GetPage(_ context.Context, url string) (crawler.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[url]
	if !ok {
		return crawler.Page{}, ErrNotFound
	}
	return page, nil
}

// TryMarkCrawling atomically claims a page for an attempt. A page already
// crawling cannot be claimed again, which keeps attempts single-flight per
// URL.
func (s *Store) TryMarkCrawling(_ context.Context, pageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url, ok := s.pagesByID[pageID]
	if !ok {
		return false, ErrNotFound
	}
	page := s.pages[url]
	if page.Status == crawler.PageStatusCrawling {
		return false, nil
	}
	page.Status = crawler.PageStatusCrawling
	page.UpdatedAt = s.clock.Now()
	s.pages[url] = page
	return true, nil
}

// UpdatePageFields applies a partial update; nil members are untouched.
func (s *Store) UpdatePageFields(_ context.Context, pageID string, fields crawler.PageFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	url, ok := s.pagesByID[pageID]
	if !ok {
		return ErrNotFound
	}
	page := s.pages[url]
	applyFields(&page, fields)
	page.UpdatedAt = s.clock.Now()
	s.pages[url] = page
	return nil
}

func applyFields(page *crawler.Page, f crawler.PageFields) {
	if f.Status != nil {
		page.Status = *f.Status
	}
	if f.RetryCount != nil {
		page.RetryCount = *f.RetryCount
	}
	if f.LastError != nil {
		page.LastError = *f.LastError
	}
	if f.Topics != nil {
		page.Topics = f.Topics
	}
	if f.CrawledAt != nil {
		page.CrawledAt = f.CrawledAt
	}
	if f.Title != nil {
		page.Title = *f.Title
	}
	if f.Description != nil {
		page.Description = *f.Description
	}
	if f.Keywords != nil {
		page.Keywords = *f.Keywords
	}
	if f.Author != nil {
		page.Author = *f.Author
	}
	if f.Language != nil {
		page.Language = *f.Language
	}
	if f.Content != nil {
		page.Content = *f.Content
	}
	if f.TextContent != nil {
		page.TextContent = *f.TextContent
	}
	if f.StatusCode != nil {
		page.StatusCode = *f.StatusCode
	}
	if f.ContentType != nil {
		page.ContentType = *f.ContentType
	}
	if f.ContentLength != nil {
		page.ContentLength = *f.ContentLength
	}
	if f.Encoding != nil {
		page.Encoding = *f.Encoding
	}
	if f.Headers != nil {
		page.Headers = f.Headers
	}
}

// ListPagesByURL returns the pages for the given URL set, skipping unknown
// URLs.
func (s *Store) ListPagesByURL(_ context.Context, urls []string) ([]crawler.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Page, 0, len(urls))
	for _, url := range urls {
		if page, ok := s.pages[url]; ok {
			out = append(out, page)
		}
	}
	return out, nil
}

// ListPagesByStatus returns active pages in the given status.
func (s *Store) ListPagesByStatus(_ context.Context, status crawler.PageStatus) ([]crawler.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.Page
	for _, page := range s.pages {
		if page.Active && page.Status == status {
			out = append(out, page)
		}
	}
	return out, nil
}

// ListPagesByWebsite returns active pages belonging to one website.
func (s *Store) ListPagesByWebsite(_ context.Context, websiteID string) ([]crawler.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.Page
	for _, page := range s.pages {
		if page.Active && page.WebsiteID == websiteID {
			out = append(out, page)
		}
	}
	return out, nil
}

// DeactivatePagesBefore soft-deletes active pages created before cutoff and
// returns how many were touched.
func (s *Store) DeactivatePagesBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	now := s.clock.Now()
	for url, page := range s.pages {
		if page.Active && page.CreatedAt.Before(cutoff) {
			page.Active = false
			page.UpdatedAt = now
			s.pages[url] = page
			count++
		}
	}
	return count, nil
}

// GetOrCreateTopic returns the topic named name, creating it lazily with a
// derived slug.
func (s *Store) GetOrCreateTopic(_ context.Context, name string) (crawler.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if topic, ok := s.topics[name]; ok {
		return topic, nil
	}
	rec, err := s.newRecord()
	if err != nil {
		return crawler.Topic{}, err
	}
	topic := crawler.Topic{Record: rec, Name: name, Slug: crawler.Slugify(name)}
	s.topics[name] = topic
	return topic, nil
}

// UpdateTopic replaces a topic record.
func (s *Store) UpdateTopic(_ context.Context, topic crawler.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[topic.Name]; !ok {
		return ErrNotFound
	}
	topic.UpdatedAt = s.clock.Now()
	s.topics[topic.Name] = topic
	return nil
}

// ListTopics returns every topic record.
func (s *Store) ListTopics(_ context.Context) ([]crawler.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Topic, 0, len(s.topics))
	for _, topic := range s.topics {
		out = append(out, topic)
	}
	return out, nil
}

// UpsertPageTopic creates or refreshes the unique (page, topic) edge.
func (s *Store) UpsertPageTopic(_ context.Context, pageID, topicID string, confidence float64, source crawler.TopicSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pageID + "\x00" + topicID
	if edge, ok := s.edges[key]; ok {
		edge.Confidence = confidence
		edge.Source = source
		edge.UpdatedAt = s.clock.Now()
		s.edges[key] = edge
		return nil
	}
	rec, err := s.newRecord()
	if err != nil {
		return err
	}
	s.edges[key] = crawler.PageTopic{
		Record:     rec,
		PageID:     pageID,
		TopicID:    topicID,
		Confidence: confidence,
		Source:     source,
	}
	return nil
}

// CountPagesForTopic counts edges to active pages for one topic.
func (s *Store) CountPagesForTopic(_ context.Context, topicID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, edge := range s.edges {
		if edge.TopicID != topicID {
			continue
		}
		url, ok := s.pagesByID[edge.PageID]
		if !ok {
			continue
		}
		if s.pages[url].Active {
			count++
		}
	}
	return count, nil
}

// CreateJob stores a new job.
func (s *Store) CreateJob(_ context.Context, job crawler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(_ context.Context, jobID string) (crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.Job{}, ErrNotFound
	}
	return job, nil
}

// UpdateJobCounters replaces the job's counters and recomputes progress from
// them. A job already in a terminal state keeps that state; counters still
// refresh so a cancelled job reports its final tallies.
func (s *Store) UpdateJobCounters(_ context.Context, jobID string, completed, failed int, status crawler.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Completed = completed
	job.Failed = failed
	job.Progress = crawler.ProgressPercent(completed, failed, job.Total)
	now := s.clock.Now()
	if !job.Status.Terminal() {
		job.Status = status
		if status == crawler.JobStatusRunning && job.Started == nil {
			job.Started = &now
		}
		if status.Terminal() {
			job.Finished = &now
		}
	}
	job.UpdatedAt = now
	s.jobs[jobID] = job
	return nil
}

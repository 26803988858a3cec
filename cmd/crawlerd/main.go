// Package main wires together the crawl service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crawlware/topiccrawler/internal/classify"
	"github.com/crawlware/topiccrawler/internal/clock/system"
	"github.com/crawlware/topiccrawler/internal/config"
	"github.com/crawlware/topiccrawler/internal/coordinator"
	"github.com/crawlware/topiccrawler/internal/crawler"
	"github.com/crawlware/topiccrawler/internal/extract"
	"github.com/crawlware/topiccrawler/internal/id/uuid"
	"github.com/crawlware/topiccrawler/internal/logging"
	memorystorage "github.com/crawlware/topiccrawler/internal/storage/memory"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	jobName := flag.String("job", "", "Submit the URL arguments as a named crawl job on startup")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	ids := uuid.New()
	store := memorystorage.NewStore(clock, ids)

	robots := crawler.NewRobotsEnforcer(cfg.Crawler.RespectRobots, cfg.Crawler.UserAgent, logger.Named("robots"))
	fetcher := crawler.NewHTTPFetcher(crawler.FetcherConfig{
		UserAgent:        cfg.Crawler.UserAgent,
		Timeout:          cfg.RequestTimeout(),
		MaxRetries:       cfg.HTTP.MaxRetries,
		RetryBaseDelay:   cfg.BackoffBase(),
		MaxContentLength: cfg.Crawler.MaxContentBytes,
	}, nil, logger.Named("fetcher"))
	extractor := extract.New(logger.Named("extract"))
	classifier := classify.New(cfg.Topics, logger.Named("classify"))
	pipeline := crawler.NewOrchestrator(robots, fetcher, extractor, classifier, logger.Named("pipeline"))

	coord := coordinator.New(store, pipeline, clock, ids, nil, nil, coordinator.Config{
		Concurrency:       cfg.Jobs.Concurrency,
		QueueDepth:        cfg.Jobs.QueueDepth,
		RetryCeiling:      cfg.Jobs.RetryCeiling,
		RetryBaseDelay:    cfg.RetryBase(),
		InterRequestDelay: cfg.InterRequestDelay(),
	}, logger.Named("coordinator"))

	go func() {
		logger.Info("coordinator started", zap.Int("concurrency", cfg.Jobs.Concurrency))
		coord.Run(ctx)
	}()

	go maintenanceLoop(ctx, coord, logger.Named("maintenance"))

	if urls := flag.Args(); len(urls) > 0 {
		name := *jobName
		if name == "" {
			name = "startup"
		}
		opts := crawler.CrawlOptions{
			ExtractContent: cfg.Crawler.ExtractContent,
			ClassifyTopics: cfg.Crawler.ClassifyTopics,
			RespectRobots:  cfg.Crawler.RespectRobots,
		}
		jobID, err := coord.Submit(ctx, name, urls, opts)
		if err != nil {
			logger.Error("startup job submit failed", zap.Error(err))
		} else {
			logger.Info("startup job submitted", zap.String("job_id", jobID), zap.Int("urls", len(urls)))
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// maintenanceLoop periodically reconciles derived stats. These operations
// only read in-flight job state and mutate records no attempt contends on.
func maintenanceLoop(ctx context.Context, coord *coordinator.Coordinator, logger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := coord.SyncTopicCounts(ctx); err != nil {
				logger.Error("sync topic counts failed", zap.Error(err))
			}
			if err := coord.RefreshWebsiteStats(ctx); err != nil {
				logger.Error("refresh website stats failed", zap.Error(err))
			}
		}
	}
}

package engine

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/jon4hz/farsisweep/internal/scheduler"
)

const (
	// CrawlJobID is the id of the scheduled crawl job.
	CrawlJobID = "crawl"
	// ClearLinkCacheJobID is the id of the weekly link cache purge.
	ClearLinkCacheJobID = "clear_link_cache"
)

// GetScheduler returns the scheduler instance for API access.
func (e *Engine) GetScheduler() *scheduler.Scheduler {
	return e.scheduler
}

// Run starts the scheduler and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	e.scheduler.Start()

	<-ctx.Done()
	return nil
}

// Close stops the engine and cleans up resources.
func (e *Engine) Close() error {
	return e.scheduler.Stop()
}

// setupJobs configures all scheduled jobs.
func (e *Engine) setupJobs() error {
	// a run that is still going when the next one is due is rescheduled
	if err := e.scheduler.AddSingletonJob(
		CrawlJobID,
		"Crawl",
		"Refreshes the sitemap, crawls new pages, exports and notifies",
		e.cfg.Schedule,
		gocron.CronJob(e.cfg.Schedule, false),
		e.runCrawlJob,
		true,
	); err != nil {
		return fmt.Errorf("failed to add crawl job: %w", err)
	}

	const weekly = "0 0 * * 0"
	if err := e.scheduler.AddSingletonJob(
		ClearLinkCacheJobID,
		"Clear Link Cache",
		"Drops resolved video links so they are resolved again",
		weekly,
		gocron.CronJob(weekly, false),
		func(ctx context.Context) error {
			e.links.ClearAll(ctx)
			return nil
		},
		false,
	); err != nil {
		return fmt.Errorf("failed to add clear link cache job: %w", err)
	}

	e.log.Info("scheduled jobs configured", "schedule", e.cfg.Schedule)
	return nil
}

func (e *Engine) runCrawlJob(ctx context.Context) error {
	_, err := e.RunOnce(ctx, RunOptions{
		UpdateSitemap: true,
		Export:        true,
		Notify:        true,
	})
	return err
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jon4hz/farsisweep/internal/atomicfile"
	"github.com/jon4hz/farsisweep/internal/cache"
	"github.com/jon4hz/farsisweep/internal/config"
	"github.com/jon4hz/farsisweep/internal/database"
	"github.com/jon4hz/farsisweep/internal/extract"
	"github.com/jon4hz/farsisweep/internal/fetch"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/jon4hz/farsisweep/internal/notify/email"
	"github.com/jon4hz/farsisweep/internal/resolver"
	"github.com/jon4hz/farsisweep/internal/scheduler"
	"github.com/jon4hz/farsisweep/internal/sitemap"
	"github.com/jon4hz/farsisweep/internal/tracker"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownURL is returned when a single URL does not belong to any content category.
var ErrUnknownURL = errors.New("url does not match any content category")

// Engine runs the crawl pipeline: sitemap discovery, page extraction,
// persistence, export and new content notification.
type Engine struct {
	cfg       *config.Config
	db        database.DB
	fetcher   *fetch.Fetcher
	sitemap   *sitemap.Parser
	links     *cache.CrawlCache
	resolver  *resolver.Session
	extractor *extract.Extractor
	tracker   *tracker.Tracker
	mailer    *email.NotificationService
	scheduler *scheduler.Scheduler
	log       *log.Logger

	// serializes RunOnce between the scheduler and manual runs
	runMu sync.Mutex
}

// New creates a new Engine instance.
func New(cfg *config.Config, db database.DB) (*Engine, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	parser, err := sitemap.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create sitemap parser: %w", err)
	}

	links := cache.NewCrawlCache(cfg.Cache)

	session, err := resolver.NewSession(resolver.Config{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Fetch.Timeout,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
		Headers:           cfg.Fetch.Headers,
	}, links)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver session: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		db:        db,
		fetcher:   fetch.New(cfg.Fetch),
		sitemap:   parser,
		links:     links,
		resolver:  session,
		extractor: extract.New(session),
		tracker:   tracker.New(db, cfg.Output.ProcessedURLsPath),
		mailer:    email.New(cfg.Email),
		scheduler: sched,
		log:       log.Default().WithPrefix("engine"),
	}

	if err := e.setupJobs(); err != nil {
		return nil, fmt.Errorf("failed to setup jobs: %w", err)
	}
	return e, nil
}

// DB returns the database the engine writes to.
func (e *Engine) DB() database.DB {
	return e.db
}

// Tracker returns the new content tracker.
func (e *Engine) Tracker() *tracker.Tracker {
	return e.tracker
}

// LinkCache returns the resolved video link cache.
func (e *Engine) LinkCache() *cache.CrawlCache {
	return e.links
}

// Sitemap returns the sitemap parser.
func (e *Engine) Sitemap() *sitemap.Parser {
	return e.sitemap
}

// RunOptions controls a single crawl pass.
type RunOptions struct {
	// Categories to crawl. Empty uses the configured categories.
	Categories []models.Category
	// URL crawls a single page instead of the sitemap URLs.
	URL string
	// UpdateSitemap refreshes the categorized URL file before crawling.
	UpdateSitemap bool
	// ForceRefresh bypasses the page cache.
	ForceRefresh bool
	// Limit caps the pages per category. 0 uses the configured limit, negative means unlimited.
	Limit int
	// Export writes the snapshot after crawling.
	Export bool
	// ExportFile overrides the configured export path.
	ExportFile string
	// Notify processes the new content after crawling.
	Notify bool
}

// CategoryResult counts the pages of one category in a run.
type CategoryResult struct {
	Crawled int `json:"crawled"`
	Saved   int `json:"saved"`
	Failed  int `json:"failed"`
}

// RunResult summarizes a crawl pass.
type RunResult struct {
	ID         string                             `json:"id"`
	Started    time.Time                          `json:"started"`
	Duration   time.Duration                      `json:"duration"`
	Categories map[models.Category]CategoryResult `json:"categories"`
	ExportPath string                             `json:"export_path,omitempty"`
	NotifyPath string                             `json:"notify_path,omitempty"`
}

// Saved returns the number of saved records over all categories.
func (r *RunResult) Saved() int {
	n := 0
	for _, c := range r.Categories {
		n += c.Saved
	}
	return n
}

// RunOnce runs one crawl pass. Page level failures are logged and skipped;
// only sitemap, cancellation, export and notification failures are returned.
func (e *Engine) RunOnce(ctx context.Context, opts RunOptions) (*RunResult, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	res := &RunResult{
		ID:         uuid.NewString(),
		Started:    time.Now(),
		Categories: make(map[models.Category]CategoryResult),
	}
	logger := e.log.With("run", res.ID)
	logger.Info("starting crawl run")

	var err error
	if opts.URL != "" {
		err = e.crawlURL(ctx, res, opts)
	} else {
		err = e.crawlSitemap(ctx, logger, res, opts)
	}
	if err != nil {
		return res, err
	}

	if opts.Export {
		path, err := e.Export(ctx, opts.ExportFile)
		if err != nil {
			return res, err
		}
		res.ExportPath = path
	}
	if opts.Notify {
		path, err := e.Notify(ctx)
		if err != nil {
			return res, err
		}
		res.NotifyPath = path
	}

	res.Duration = time.Since(res.Started)
	logger.Info("crawl run finished", "saved", res.Saved(), "took", res.Duration)
	return res, nil
}

func (e *Engine) crawlURL(ctx context.Context, res *RunResult, opts RunOptions) error {
	category, ok := sitemap.ClassifyURL(opts.URL)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownURL, opts.URL)
	}
	cr := CategoryResult{Crawled: 1}
	if err := e.crawlPage(ctx, category, e.knownEntry(category, opts.URL), opts.ForceRefresh); err != nil {
		cr.Failed++
		res.Categories[category] = cr
		return err
	}
	cr.Saved++
	res.Categories[category] = cr
	return nil
}

// knownEntry returns the sitemap entry of u so a single page crawl keeps its lastmod.
func (e *Engine) knownEntry(category models.Category, u string) sitemap.Entry {
	urls, err := sitemap.Load(e.cfg.Sitemap.ParsedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Debug("failed to load sitemap urls", "error", err)
		}
		return sitemap.Entry{URL: u}
	}
	want := strings.TrimSuffix(u, "/")
	entry, ok := lo.Find(urls.Get(category), func(en sitemap.Entry) bool {
		return strings.TrimSuffix(en.URL, "/") == want
	})
	if !ok {
		return sitemap.Entry{URL: u}
	}
	return sitemap.Entry{URL: u, Lastmod: entry.Lastmod}
}

func (e *Engine) crawlSitemap(ctx context.Context, logger *log.Logger, res *RunResult, opts RunOptions) error {
	if opts.UpdateSitemap {
		if err := e.sitemap.Run(ctx); err != nil {
			return fmt.Errorf("failed to update sitemap: %w", err)
		}
	}

	urls, err := sitemap.Load(e.cfg.Sitemap.ParsedPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no sitemap urls yet, refreshing sitemap")
		if err := e.sitemap.Refresh(ctx); err != nil {
			return fmt.Errorf("failed to refresh sitemap: %w", err)
		}
		urls, err = sitemap.Load(e.cfg.Sitemap.ParsedPath)
	}
	if err != nil {
		return err
	}

	categories := opts.Categories
	if len(categories) == 0 {
		categories = e.cfg.GetCategories()
	}
	limit := opts.Limit
	if limit == 0 {
		limit = e.cfg.GetMaxItems()
	}

	var mu sync.Mutex
	record := func(category models.Category, cr CategoryResult) {
		mu.Lock()
		defer mu.Unlock()
		res.Categories[category] = cr
	}

	if e.cfg.Crawl != nil && e.cfg.Crawl.ParallelCategories {
		g, gctx := errgroup.WithContext(ctx)
		for _, category := range categories {
			entries := urls.Get(category)
			g.Go(func() error {
				cr, err := e.crawlCategory(gctx, category, entries, limit, opts.ForceRefresh)
				record(category, cr)
				return err
			})
		}
		return g.Wait()
	}

	for _, category := range categories {
		cr, err := e.crawlCategory(ctx, category, urls.Get(category), limit, opts.ForceRefresh)
		record(category, cr)
		if err != nil {
			return err
		}
	}
	return nil
}

// crawlCategory crawls the pages of one category in order. It stops scheduling
// pages once limit pages were crawled or ctx is done.
func (e *Engine) crawlCategory(ctx context.Context, category models.Category, entries []sitemap.Entry, limit int, force bool) (CategoryResult, error) {
	var cr CategoryResult
	logger := e.log.With("category", category)
	logger.Info("crawling category", "urls", len(entries), "limit", limit)

	for _, entry := range entries {
		if limit > 0 && cr.Crawled >= limit {
			logger.Info("item limit reached", "limit", limit)
			break
		}
		if err := ctx.Err(); err != nil {
			logger.Warn("crawl cancelled", "crawled", cr.Crawled)
			return cr, err
		}

		cr.Crawled++
		if err := e.crawlPage(ctx, category, entry, force); err != nil {
			cr.Failed++
			logger.Error("failed to crawl page", "url", entry.URL, "error", err)
			continue
		}
		cr.Saved++
	}

	logger.Info("finished category", "crawled", cr.Crawled, "saved", cr.Saved, "failed", cr.Failed)
	return cr, nil
}

func (e *Engine) crawlPage(ctx context.Context, category models.Category, entry sitemap.Entry, force bool) error {
	lastmod := entry.LastmodString()
	page, err := e.fetcher.Fetch(ctx, entry.URL, string(category), fetch.Options{
		Lastmod:      lastmod,
		ForceRefresh: force,
	})
	if err != nil {
		return err
	}

	p := extract.Page{
		URL:      entry.URL,
		HTML:     page.HTML,
		Lastmod:  lastmod,
		Source:   page.Source,
		CachedAt: page.CachedAt,
	}

	switch category {
	case models.CategoryShows:
		show, err := e.extractor.Show(ctx, p)
		if err != nil {
			return err
		}
		_, err = e.db.UpsertShow(ctx, show)
		return err
	case models.CategoryEpisodes:
		ep, err := e.extractor.Episode(ctx, p)
		if err != nil {
			return err
		}
		_, err = e.db.UpsertEpisode(ctx, ep)
		return err
	case models.CategoryMovies:
		movie, err := e.extractor.Movie(ctx, p)
		if err != nil {
			return err
		}
		_, err = e.db.UpsertMovie(ctx, movie)
		return err
	default:
		return fmt.Errorf("%w: %q", database.ErrInvalidCategory, category)
	}
}

// Export writes the snapshot to path, or to the configured export path when empty.
func (e *Engine) Export(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = e.cfg.Output.ExportPath
	}
	snap, err := e.db.BuildSnapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to build snapshot: %w", err)
	}
	if err := atomicfile.WriteJSON(path, snap); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	e.log.Info("exported snapshot", "path", path,
		"shows", snap.ShowsCount, "episodes", snap.EpisodesCount, "movies", snap.MoviesCount)
	return path, nil
}

// Notify writes a notification for the pending new content, mails the digest
// when enabled and acknowledges the content. A failed digest does not block the
// acknowledgement. It returns the notification path, or an empty path when nothing was new.
func (e *Engine) Notify(ctx context.Context) (string, error) {
	content, err := e.tracker.GetNewContent(ctx)
	if err != nil {
		return "", err
	}
	if content.Empty() {
		e.log.Info("no new content")
		return "", nil
	}
	path, err := e.tracker.NotifyNewContent(content, e.cfg.Output.NotifyDir)
	if err != nil {
		return "", err
	}
	if err := e.mailer.SendDigest(content); err != nil {
		e.log.Error("failed to send new content digest", "error", err)
	}
	if err := e.tracker.MarkAsProcessed(ctx, content); err != nil {
		return path, fmt.Errorf("failed to mark content as processed: %w", err)
	}
	return path, nil
}

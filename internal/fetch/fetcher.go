package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/atomicfile"
	"github.com/jon4hz/farsisweep/internal/config"
)

// Source tags where a page came from.
const (
	SourceCache = "cache"
	SourceLive  = "live"
)

// Page is a fetched HTML document.
type Page struct {
	URL      string
	HTML     string
	Source   string
	CachedAt time.Time
}

// Options control a single Fetch call.
type Options struct {
	// Lastmod is the last modification time advertised by the sitemap.
	// Empty means the cached copy is always good enough.
	Lastmod string
	// ForceRefresh skips the cache lookup.
	ForceRefresh bool
}

// Fetcher returns page HTML from the on-disk cache when fresh, and from the network otherwise.
type Fetcher struct {
	client      *Client
	cacheDir    string
	lockTimeout time.Duration
	log         *log.Logger
}

// New creates a Fetcher from the fetch configuration.
func New(cfg *config.FetchConfig) *Fetcher {
	return NewWithClient(cfg, NewClient(ClientConfig{
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Headers:           cfg.Headers,
	}))
}

// NewWithClient creates a Fetcher that uses an existing client.
func NewWithClient(cfg *config.FetchConfig, client *Client) *Fetcher {
	return &Fetcher{
		client:      client,
		cacheDir:    cfg.CacheDir,
		lockTimeout: cfg.GetLockTimeout(),
		log:         log.Default().WithPrefix("fetch"),
	}
}

// Fetch returns the HTML of url, caching it under contentType.
// Failures are reported as *Error values matching ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, url, contentType string, opts Options) (*Page, error) {
	path := f.CachePath(url, contentType)

	if !opts.ForceRefresh {
		if page, ok := f.fromCache(url, path, opts.Lastmod); ok {
			return page, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("failed to create cache directory: %w", err)}
	}

	unlock, err := acquireLock(ctx, path+".lock", f.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			if page, ok := f.readCache(url, path); ok {
				f.log.Warn("cache lock timeout, serving existing cache", "url", url)
				return page, nil
			}
		}
		return nil, &Error{URL: url, Err: err}
	}
	defer unlock()

	// another worker may have refreshed the entry while we waited for the lock
	if !opts.ForceRefresh {
		if page, ok := f.fromCache(url, path, opts.Lastmod); ok {
			return page, nil
		}
	}

	body, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := atomicfile.Write(path, body, 0o644); err != nil {
		f.log.Error("failed to write cache", "url", url, "error", err)
	} else {
		f.log.Debug("cached page", "url", url, "path", path)
	}

	return &Page{URL: url, HTML: string(body), Source: SourceLive, CachedAt: now}, nil
}

// fromCache returns the cached page when it exists and is at least as new as lastmod.
func (f *Fetcher) fromCache(url, path, lastmod string) (*Page, bool) {
	page, ok := f.readCache(url, path)
	if !ok {
		return nil, false
	}
	if lastmod == "" {
		f.log.Debug("using cached page", "url", url)
		return page, true
	}

	modified, err := ParseLastmod(lastmod)
	if err != nil {
		f.log.Warn("cannot compare cache with lastmod, using cache", "url", url, "lastmod", lastmod, "error", err)
		return page, true
	}
	if !page.CachedAt.Before(modified) {
		f.log.Debug("cache is up to date", "url", url)
		return page, true
	}

	f.log.Debug("cache is stale", "url", url, "cached_at", page.CachedAt, "lastmod", modified)
	return nil, false
}

func (f *Fetcher) readCache(url, path string) (*Page, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		f.log.Warn("failed to read cache", "path", path, "error", err)
		return nil, false
	}
	return &Page{URL: url, HTML: string(data), Source: SourceCache, CachedAt: info.ModTime()}, true
}

// CachePath returns the cache file for url under contentType.
func (f *Fetcher) CachePath(url, contentType string) string {
	if contentType == "" {
		contentType = "other"
	}
	return filepath.Join(f.cacheDir, "pages", contentType, Slug(url)+".html")
}

var (
	schemeRe     = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	unsafePathRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// Slug flattens a URL into a filesystem-safe name:
// https://farsiland.com/tvshows/oscar/ becomes farsiland.com-tvshows-oscar.
func Slug(url string) string {
	s := schemeRe.ReplaceAllString(strings.TrimSpace(url), "")
	s = strings.Trim(s, "/")
	s = strings.ReplaceAll(s, "/", "-")
	s = unsafePathRe.ReplaceAllString(s, "_")
	if s == "" {
		return "index"
	}
	return s
}

var lastmodLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseLastmod parses the timestamp formats used by sitemaps.
// Timestamps without a zone are treated as UTC.
func ParseLastmod(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range lastmodLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized lastmod %q", s)
}

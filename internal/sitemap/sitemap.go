package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/config"
	"github.com/jon4hz/farsisweep/internal/fetch"
	"github.com/samber/lo"
)

// ErrIndexFetch is returned when the sitemap index cannot be retrieved or parsed.
var ErrIndexFetch = errors.New("failed to fetch sitemap index")

// Getter fetches raw documents.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Ref is a sitemap file listed in the sitemap index.
type Ref struct {
	Loc     string
	Lastmod string
	Type    string
}

type locEntry struct {
	Loc     string `xml:"loc"`
	Lastmod string `xml:"lastmod"`
}

type sitemapIndex struct {
	Sitemaps []locEntry `xml:"sitemap"`
}

type urlSet struct {
	URLs []locEntry `xml:"url"`
}

// Parser discovers content URLs from the site's sitemaps.
type Parser struct {
	getter        Getter
	indexURL      string
	feedURL       string
	base          *url.URL
	outputPath    string
	lastCheckPath string
	now           func() time.Time
	log           *log.Logger
}

// New creates a Parser from the configuration.
func New(cfg *config.Config) (*Parser, error) {
	getter := fetch.NewClient(fetch.ClientConfig{
		MaxRetries: cfg.Sitemap.MaxRetries,
		RetryDelay: cfg.Sitemap.RetryDelay,
		Timeout:    cfg.Sitemap.Timeout,
		Headers:    cfg.Fetch.Headers,
	})
	return NewWithGetter(cfg, getter)
}

// NewWithGetter creates a Parser that fetches documents through getter.
func NewWithGetter(cfg *config.Config, getter Getter) (*Parser, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	return &Parser{
		getter:        getter,
		indexURL:      cfg.SitemapURL,
		feedURL:       cfg.FeedURL,
		base:          base,
		outputPath:    cfg.Sitemap.ParsedPath,
		lastCheckPath: cfg.Sitemap.LastCheckPath,
		now:           time.Now,
		log:           log.Default().WithPrefix("sitemap"),
	}, nil
}

// Run refreshes the categorized URL file when the feed reports new content.
// A nil error means success, including the case where nothing changed.
func (p *Parser) Run(ctx context.Context) error {
	if !p.CheckForUpdates(ctx) {
		p.log.Info("no new content since last check, skipping sitemap refresh")
		return nil
	}
	return p.Refresh(ctx)
}

// Refresh re-parses all sitemaps and writes the categorized URL file,
// without consulting the feed.
func (p *Parser) Refresh(ctx context.Context) error {
	started := p.now()

	urls, err := p.Parse(ctx)
	if err != nil {
		return err
	}

	if err := Save(p.outputPath, urls); err != nil {
		return err
	}
	p.log.Info("saved sitemap urls",
		"path", p.outputPath,
		"movies", len(urls.Movies),
		"shows", len(urls.Shows),
		"episodes", len(urls.Episodes),
	)

	if err := saveLastCheck(p.lastCheckPath, started); err != nil {
		p.log.Warn("failed to save last check time", "error", err)
	}
	return nil
}

// CheckForUpdates reports whether the feed was rebuilt after the last check.
// It fails open: any problem determining the feed date returns true.
func (p *Parser) CheckForUpdates(ctx context.Context) bool {
	lastCheck, err := loadLastCheck(p.lastCheckPath)
	if err != nil {
		p.log.Warn("failed to load last check time", "error", err)
		return true
	}
	if lastCheck.IsZero() {
		p.log.Debug("no previous check recorded")
		return true
	}

	data, err := p.getter.Get(ctx, p.feedURL)
	if err != nil {
		p.log.Warn("failed to fetch feed", "url", p.feedURL, "error", err)
		return true
	}

	built, err := parseFeedBuildDate(data)
	if err != nil {
		p.log.Warn("failed to read feed build date", "error", err)
		return true
	}

	p.log.Debug("feed build date", "built", built, "last_check", lastCheck)
	return built.After(lastCheck)
}

// Parse walks the sitemap index and returns the categorized, deduplicated URLs.
func (p *Parser) Parse(ctx context.Context) (*URLs, error) {
	refs, err := p.ParseIndex(ctx)
	if err != nil {
		return nil, err
	}

	urls := &URLs{}
	for _, ref := range refs {
		if ref.Type == TypeOther {
			p.log.Debug("skipping sitemap", "loc", ref.Loc)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := p.parseSitemap(ctx, ref.Loc)
		if err != nil {
			p.log.Warn("skipping sitemap", "loc", ref.Loc, "error", err)
			continue
		}

		added := 0
		for _, e := range entries {
			loc := NormalizeURL(e.Loc, p.base)
			cat, ok := ClassifyURL(loc)
			if !ok {
				continue
			}
			entry := Entry{URL: loc}
			if lm := strings.TrimSpace(e.Lastmod); lm != "" {
				entry.Lastmod = lo.ToPtr(lm)
			}
			urls.Add(cat, entry)
			added++
		}
		p.log.Debug("parsed sitemap", "loc", ref.Loc, "type", ref.Type, "urls", len(entries), "content", added)
	}

	urls.Dedupe()
	return urls, nil
}

// ParseIndex fetches the sitemap index and returns its sitemaps in processing order.
func (p *Parser) ParseIndex(ctx context.Context) ([]Ref, error) {
	data, err := p.getter.Get(ctx, p.indexURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexFetch, err)
	}

	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexFetch, err)
	}

	refs := make([]Ref, 0, len(index.Sitemaps))
	for _, s := range index.Sitemaps {
		loc := strings.TrimSpace(s.Loc)
		if loc == "" {
			continue
		}
		refs = append(refs, Ref{
			Loc:     NormalizeURL(loc, p.base),
			Lastmod: strings.TrimSpace(s.Lastmod),
			Type:    ClassifySitemap(loc),
		})
	}
	SortRefs(refs)

	p.log.Info("parsed sitemap index", "sitemaps", len(refs))
	return refs, nil
}

// SortRefs orders sitemaps by type priority; within a type, entries without a
// lastmod come last.
func SortRefs(refs []Ref) {
	sort.SliceStable(refs, func(i, j int) bool {
		pi, pj := typePriority[refs[i].Type], typePriority[refs[j].Type]
		if pi != pj {
			return pi < pj
		}
		return refs[i].Lastmod != "" && refs[j].Lastmod == ""
	})
}

func (p *Parser) parseSitemap(ctx context.Context, loc string) ([]locEntry, error) {
	data, err := p.getter.Get(ctx, loc)
	if err != nil {
		return nil, err
	}
	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap: %w", err)
	}
	return set.URLs, nil
}

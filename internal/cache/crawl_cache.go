package cache

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/jon4hz/farsisweep/internal/config"
	"github.com/jon4hz/farsisweep/internal/models"
)

// Cache key prefixes.
const (
	VideoLinkCachePrefix = "video-link-"
)

// CrawlCache holds the caches shared by crawl passes.
type CrawlCache struct {
	VideoLinks *PrefixedCache[models.VideoFile]

	cfg *config.CacheConfig
}

// NewCrawlCache creates the crawl caches for the configured backend.
func NewCrawlCache(cfg *config.CacheConfig) *CrawlCache {
	return &CrawlCache{
		VideoLinks: NewPrefixedCache[models.VideoFile](
			newCacheInstanceByType(cfg),
			cfg.Type,
			VideoLinkCachePrefix,
		),
		cfg: cfg,
	}
}

// LookupVideoLink returns a previously resolved video link.
func (c *CrawlCache) LookupVideoLink(ctx context.Context, fileID string) (models.VideoFile, bool) {
	vf, err := c.VideoLinks.Get(ctx, fileID)
	if err != nil || vf.URL == "" {
		return models.VideoFile{}, false
	}
	return vf, true
}

// StoreVideoLink caches a resolved video link for the configured ttl.
func (c *CrawlCache) StoreVideoLink(ctx context.Context, fileID string, vf models.VideoFile) {
	if err := c.VideoLinks.Set(ctx, fileID, vf, store.WithExpiration(c.cfg.GetVideoLinkTTL())); err != nil {
		log.Warn("failed to cache video link", "fileid", fileID, "error", err)
	}
}

// ClearAll empties every crawl cache.
func (c *CrawlCache) ClearAll(ctx context.Context) {
	if err := c.VideoLinks.Clear(ctx); err != nil {
		log.Errorf("failed to clear cache: %v", err)
	}
}

type Stats struct {
	*codec.Stats
	CacheName string           `json:"cacheName"`
	Type      config.CacheType `json:"type"`
}

func (c *CrawlCache) GetStats() []*Stats {
	return []*Stats{
		{
			Stats:     c.VideoLinks.GetStats(),
			CacheName: "video-links",
			Type:      c.VideoLinks.GetType(),
		},
	}
}

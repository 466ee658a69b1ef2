package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// Config holds the configuration for farsisweep.
type Config struct {
	// BaseURL is the root of the crawled site.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// SitemapURL is the sitemap index. Defaults to <base_url>/sitemap_index.xml.
	SitemapURL string `yaml:"sitemap_url" mapstructure:"sitemap_url"`
	// FeedURL is the RSS feed used for the cheap freshness check. Defaults to <base_url>/feed.
	FeedURL string `yaml:"feed_url" mapstructure:"feed_url"`
	// LogLevel is the default log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// Listen is the address the daemon API listens on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// APIKey protects the daemon API. Empty disables authentication.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// Schedule is the cron expression for the crawl job in daemon mode.
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Cache holds the resolved link cache configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Fetch holds the page fetcher configuration.
	Fetch *FetchConfig `yaml:"fetch" mapstructure:"fetch"`
	// Sitemap holds the sitemap discovery configuration.
	Sitemap *SitemapConfig `yaml:"sitemap" mapstructure:"sitemap"`
	// Crawl holds the crawl pass configuration.
	Crawl *CrawlConfig `yaml:"crawl" mapstructure:"crawl"`
	// Output holds paths for exported and tracking files.
	Output *OutputConfig `yaml:"output" mapstructure:"output"`
	// Email holds the new content digest configuration.
	Email *EmailConfig `yaml:"email" mapstructure:"email"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig holds the configuration for the resolved link cache.
type CacheConfig struct {
	// Type is the cache backend (memory or redis).
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the address of the redis server when Type is redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// VideoLinkTTL is how long a resolved video link is reused.
	VideoLinkTTL time.Duration `yaml:"video_link_ttl" mapstructure:"video_link_ttl"`
}

// FetchConfig holds the configuration for page fetching.
type FetchConfig struct {
	// CacheDir is the root of the on-disk HTML cache.
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
	// MaxRetries is the number of attempts per page.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
	// RetryDelay is the base delay of the exponential backoff.
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	// Timeout is the per request timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// LockTimeout bounds the wait for a cache entry lock.
	LockTimeout time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout"`
	// RequestsPerSecond limits outgoing requests. 0 disables the limit.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	// Burst is the limiter burst size.
	Burst int `yaml:"burst" mapstructure:"burst"`
	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
}

// SitemapConfig holds the configuration for sitemap discovery.
type SitemapConfig struct {
	// ParsedPath is the categorized URL file.
	ParsedPath string `yaml:"parsed_path" mapstructure:"parsed_path"`
	// LastCheckPath stores the time of the last successful refresh.
	LastCheckPath string `yaml:"last_check_path" mapstructure:"last_check_path"`
	// MaxRetries is the number of attempts per sitemap document.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
	// RetryDelay is the base delay of the exponential backoff.
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	// Timeout is the per request timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CrawlConfig holds the configuration for a crawl pass.
type CrawlConfig struct {
	// MaxItemsPerCategory caps the pages crawled per category. 0 means unlimited.
	MaxItemsPerCategory int `yaml:"max_items_per_category" mapstructure:"max_items_per_category"`
	// Categories are crawled in this order.
	Categories []string `yaml:"categories" mapstructure:"categories"`
	// ParallelCategories crawls categories concurrently. Pages within a category stay sequential.
	ParallelCategories bool `yaml:"parallel_categories" mapstructure:"parallel_categories"`
}

// OutputConfig holds the output file locations.
type OutputConfig struct {
	// ExportPath is the export snapshot file.
	ExportPath string `yaml:"export_path" mapstructure:"export_path"`
	// ProcessedURLsPath is the acknowledged URL cache used by the new item tracker.
	ProcessedURLsPath string `yaml:"processed_urls_path" mapstructure:"processed_urls_path"`
	// NotifyDir receives the notification snapshot files.
	NotifyDir string `yaml:"notify_dir" mapstructure:"notify_dir"`
}

// EmailConfig holds the configuration of the new content digest email.
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled" mapstructure:"enabled"`
	SMTPHost string   `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port" mapstructure:"smtp_port"`
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
	// FromEmail is the sender address of the digest.
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
	FromName  string `yaml:"from_name" mapstructure:"from_name"`
	// To lists the digest recipients.
	To []string `yaml:"to" mapstructure:"to"`
	// UseTLS uses STARTTLS. UseSSL uses implicit TLS and wins over UseTLS.
	UseTLS             bool `yaml:"use_tls" mapstructure:"use_tls"`
	UseSSL             bool `yaml:"use_ssl" mapstructure:"use_ssl"`
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("FARSISWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// optional keys without a default are only picked up from env when bound explicitly
	v.MustBindEnv("sitemap_url", "FARSISWEEP_SITEMAP_URL")
	v.MustBindEnv("feed_url", "FARSISWEEP_FEED_URL")
	v.MustBindEnv("cache.redis_url", "FARSISWEEP_CACHE_REDIS_URL")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.farsisweep")
		v.AddConfigPath("/etc/farsisweep")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Debug("no config file found, using defaults and environment")
	} else {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// DefaultHeaders is the browser-like header set sent with every page request.
func DefaultHeaders(baseURL string) map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9,fa;q=0.8",
		"Referer":         baseURL,
		"Connection":      "keep-alive",
		"Cache-Control":   "max-age=0",
	}
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://farsiland.com")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen", "0.0.0.0:3003")
	v.SetDefault("api_key", "")
	v.SetDefault("schedule", "*/10 * * * *")

	v.SetDefault("database.path", "./data/farsiland.db")

	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.video_link_ttl", 6*time.Hour)

	v.SetDefault("fetch.cache_dir", "./data/cache")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.retry_delay", 5*time.Second)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.lock_timeout", 10*time.Second)
	v.SetDefault("fetch.requests_per_second", 2)
	v.SetDefault("fetch.burst", 2)

	v.SetDefault("sitemap.parsed_path", "./data/parsed_urls.json")
	v.SetDefault("sitemap.last_check_path", "./data/last_check.json")
	v.SetDefault("sitemap.max_retries", 3)
	v.SetDefault("sitemap.retry_delay", 2*time.Second)
	v.SetDefault("sitemap.timeout", 10*time.Second)

	v.SetDefault("crawl.max_items_per_category", 10)
	v.SetDefault("crawl.categories", []string{"shows", "episodes", "movies"})
	v.SetDefault("crawl.parallel_categories", true)

	v.SetDefault("output.export_path", "./data/site_index.json")
	v.SetDefault("output.processed_urls_path", "./data/processed_urls.json")
	v.SetDefault("output.notify_dir", "./data")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_name", "Farsisweep")
	v.SetDefault("email.to", []string{})
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.insecure_skip_verify", false)
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing farsisweep config")
	}

	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("base url is invalid: %w", err)
	}

	if c.Schedule != "" && len(strings.Fields(c.Schedule)) != 5 {
		return fmt.Errorf("schedule must be a valid cron expression with 5 fields (minute hour day month weekday)")
	}

	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Cache != nil {
		switch c.Cache.Type {
		case CacheTypeMemory:
		case CacheTypeRedis:
			if c.Cache.RedisURL == "" {
				return fmt.Errorf("redis url is required when using the redis cache")
			}
		default:
			return fmt.Errorf("unknown cache type %q", c.Cache.Type)
		}
	}

	if c.Fetch != nil {
		if c.Fetch.MaxRetries < 1 {
			return fmt.Errorf("fetch max retries must be at least 1")
		}
		if c.Fetch.RequestsPerSecond < 0 {
			return fmt.Errorf("fetch requests per second must not be negative")
		}
	}

	if c.Crawl != nil {
		if c.Crawl.MaxItemsPerCategory < 0 {
			return fmt.Errorf("crawl max items per category must not be negative")
		}
		for _, name := range c.Crawl.Categories {
			if _, ok := models.ParseCategory(name); !ok {
				return fmt.Errorf("unknown crawl category %q", name)
			}
		}
	}

	if c.Email != nil && c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email smtp host is required when email is enabled")
		}
		if c.Email.FromEmail == "" {
			return fmt.Errorf("email from address is required when email is enabled")
		}
		if len(c.Email.To) == 0 {
			return fmt.Errorf("at least one email recipient is required when email is enabled")
		}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.BaseURL = urlSanitize(c.BaseURL)
	if c.SitemapURL == "" {
		c.SitemapURL = c.BaseURL + "/sitemap_index.xml"
	}
	if c.FeedURL == "" {
		c.FeedURL = c.BaseURL + "/feed"
	}
	c.SitemapURL = urlSanitize(c.SitemapURL)
	c.FeedURL = urlSanitize(c.FeedURL)

	if c.Fetch != nil && len(c.Fetch.Headers) == 0 {
		c.Fetch.Headers = DefaultHeaders(c.BaseURL)
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// GetCategories returns the configured crawl categories, normalized.
func (c *Config) GetCategories() []models.Category {
	if c.Crawl == nil || len(c.Crawl.Categories) == 0 {
		return models.Categories
	}
	out := make([]models.Category, 0, len(c.Crawl.Categories))
	seen := make(map[models.Category]struct{}, len(c.Crawl.Categories))
	for _, name := range c.Crawl.Categories {
		cat, ok := models.ParseCategory(name)
		if !ok {
			continue
		}
		if _, dup := seen[cat]; dup {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out
}

// GetMaxItems returns the per category crawl limit (0 = unlimited).
func (c *Config) GetMaxItems() int {
	if c.Crawl == nil {
		return 0
	}
	return c.Crawl.MaxItemsPerCategory
}

// GetVideoLinkTTL returns how long resolved video links are cached.
func (c *CacheConfig) GetVideoLinkTTL() time.Duration {
	if c == nil || c.VideoLinkTTL <= 0 {
		return 6 * time.Hour
	}
	return c.VideoLinkTTL
}

// GetLockTimeout returns the cache lock wait bound.
func (c *FetchConfig) GetLockTimeout() time.Duration {
	if c == nil || c.LockTimeout <= 0 {
		return 10 * time.Second
	}
	return c.LockTimeout
}

package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/models"
	"golang.org/x/time/rate"
)

var (
	// ErrNotRedirect is returned when the resolution endpoint answers without a redirect.
	ErrNotRedirect = errors.New("resolution endpoint did not redirect")
	// ErrMissingFileID is returned for candidates without a file identifier.
	ErrMissingFileID = errors.New("missing file id")
)

// Candidate is a file identifier discovered on a page, with the metadata
// scraped next to it.
type Candidate struct {
	FileID  string
	Quality string
	Size    string
	// Action is the form action of the download form. Empty uses the default endpoint.
	Action string
}

// LinkCache stores resolved video links by file identifier.
type LinkCache interface {
	LookupVideoLink(ctx context.Context, fileID string) (models.VideoFile, bool)
	StoreVideoLink(ctx context.Context, fileID string, vf models.VideoFile)
}

// Config configures a Session.
type Config struct {
	BaseURL           string
	Endpoint          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Headers           map[string]string
}

// Session runs the site's link resolution protocol. Cookies from the
// bootstrap request are reused for every resolution.
// Calls to ResolveAll are serialized so identifiers of one page are
// resolved in discovery order.
type Session struct {
	client   *http.Client
	limiter  *rate.Limiter
	baseURL  string
	endpoint string
	headers  map[string]string
	cache    LinkCache
	log      *log.Logger

	mu           sync.Mutex
	bootstrapped bool
}

// NewSession creates a Session. linkCache may be nil.
func NewSession(cfg Config, linkCache LinkCache) (*Session, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/get/"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)

	return &Session{
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			// the Location header of the first redirect is the result
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter:  rate.NewLimiter(limit, burst),
		baseURL:  cfg.BaseURL,
		endpoint: endpoint,
		headers:  cfg.Headers,
		cache:    linkCache,
		log:      log.Default().WithPrefix("resolver"),
	}, nil
}

// Bootstrap visits the site root to collect session cookies.
func (s *Session) Bootstrap(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to bootstrap session: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("failed to bootstrap session: status %d", resp.StatusCode)
	}
	s.bootstrapped = true
	return nil
}

// Resolve submits the candidate's file identifier and returns the redirect target.
func (s *Session) Resolve(ctx context.Context, c Candidate) (string, error) {
	if strings.TrimSpace(c.FileID) == "" {
		return "", ErrMissingFileID
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	endpoint := s.endpoint
	if c.Action != "" {
		endpoint = c.Action
	}

	form := url.Values{"fileid": {c.FileID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post file id: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: status %d", ErrNotRedirect, resp.StatusCode)
	}
	loc, err := resp.Location()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotRedirect, err)
	}
	return loc.String(), nil
}

// ResolveAll resolves the candidates one after another and returns the video
// files in candidate order. Failures are logged and skipped.
// Scraped quality and size take precedence over values inferred from the URL.
func (s *Session) ResolveAll(ctx context.Context, candidates []Candidate) []models.VideoFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make([]models.VideoFile, 0, len(candidates))
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}

		if s.cache != nil && c.FileID != "" {
			if vf, ok := s.cache.LookupVideoLink(ctx, c.FileID); ok {
				files = append(files, merge(c, vf.URL))
				continue
			}
		}

		if !s.bootstrapped {
			if err := s.Bootstrap(ctx); err != nil {
				s.log.Warn("session bootstrap failed, resolving without cookies", "error", err)
			}
		}

		target, err := s.Resolve(ctx, c)
		if err != nil {
			s.log.Warn("failed to resolve file id", "fileid", c.FileID, "error", err)
			continue
		}

		vf := merge(c, target)
		s.log.Debug("resolved file id", "fileid", c.FileID, "quality", vf.Quality, "url", vf.URL)
		if s.cache != nil {
			s.cache.StoreVideoLink(ctx, c.FileID, vf)
		}
		files = append(files, vf)
	}
	return files
}

func merge(c Candidate, target string) models.VideoFile {
	quality := NormalizeQuality(c.Quality)
	if quality == models.QualityUnknown {
		quality = InferQuality(target)
	}
	return models.VideoFile{
		Quality: quality,
		URL:     target,
		Size:    strings.TrimSpace(c.Size),
	}
}

func (s *Session) setHeaders(req *http.Request) {
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
}

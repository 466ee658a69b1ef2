package sitemap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jon4hz/farsisweep/internal/config"
	"github.com/jon4hz/farsisweep/internal/fetch"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		url    string
		want   models.Category
		wantOK bool
	}{
		{"https://farsiland.com/movies/x", models.CategoryMovies, true},
		{"https://farsiland.com/movies-2025/some-film/", models.CategoryMovies, true},
		{"https://farsiland.com/old-iranian-movies/classic", models.CategoryMovies, true},
		{"https://farsiland.com/tvshows/y", models.CategoryShows, true},
		{"https://farsiland.com/series-22/y", models.CategoryShows, true},
		{"https://farsiland.com/iranian-series/y/", models.CategoryShows, true},
		{"https://farsiland.com/episodes/z", models.CategoryEpisodes, true},
		{"https://farsiland.com/genres/w", "", false},
		{"https://farsiland.com/dtcast/someone/", "", false},
		{"https://farsiland.com/movies/page/2", models.CategoryMovies, true}, // substring fallback
		{"https://farsiland.com/about-us", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := ClassifyURL(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifySitemap(t *testing.T) {
	tests := []struct {
		loc  string
		want string
	}{
		{"https://farsiland.com/movies-sitemap.xml", TypeMovies},
		{"https://farsiland.com/tvshows-sitemap2.xml", TypeShows},
		{"https://farsiland.com/episodes-sitemap13.xml", TypeEpisodes},
		{"https://farsiland.com/post-sitemap.xml", TypeGeneral},
		{"https://farsiland.com/page-sitemap.xml", TypeOther},
		{"https://farsiland.com/sitemap.xml", TypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.loc, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySitemap(tt.loc))
		})
	}
}

func TestSortRefs(t *testing.T) {
	refs := []Ref{
		{Loc: "other", Type: TypeOther, Lastmod: "2025-01-01"},
		{Loc: "episodes", Type: TypeEpisodes, Lastmod: "2025-01-01"},
		{Loc: "movies-nolastmod", Type: TypeMovies},
		{Loc: "general", Type: TypeGeneral},
		{Loc: "movies", Type: TypeMovies, Lastmod: "2025-01-01"},
		{Loc: "shows", Type: TypeShows},
	}
	SortRefs(refs)

	locs := lo.Map(refs, func(r Ref, _ int) string { return r.Loc })
	assert.Equal(t, []string{"movies", "movies-nolastmod", "shows", "episodes", "general", "other"}, locs)
}

func TestDedupe(t *testing.T) {
	entries := []Entry{
		{URL: "a", Lastmod: lo.ToPtr("2025-01-01T00:00:00+00:00")},
		{URL: "b"},
		{URL: "a", Lastmod: lo.ToPtr("2025-03-01T00:00:00+00:00")},
		{URL: "a", Lastmod: lo.ToPtr("2025-02-01T00:00:00+00:00")},
		{URL: "b", Lastmod: lo.ToPtr("2024-12-31")},
	}

	got := Dedupe(entries)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].URL)
	assert.Equal(t, "2025-03-01T00:00:00+00:00", got[0].LastmodString())
	assert.Equal(t, "b", got[1].URL)
	assert.Equal(t, "2024-12-31", got[1].LastmodString())
}

func TestNormalizeURL(t *testing.T) {
	cfgBase, err := url.Parse("https://farsiland.com")
	require.NoError(t, err)
	assert.Equal(t, "https://farsiland.com/tvshows/x", NormalizeURL("/tvshows/x/", cfgBase))
	assert.Equal(t, "https://farsiland.com/movies/y", NormalizeURL(" https://farsiland.com/movies/y/ ", cfgBase))
	assert.Equal(t, "", NormalizeURL("  ", cfgBase))
}

func TestLoad_NormalizesSeriesAlias(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parsed_urls.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "series": [{"url": "https://farsiland.com/tvshows/a", "lastmod": "2025-01-01"}],
  "shows": [{"url": "https://farsiland.com/tvshows/a", "lastmod": "2025-02-01"}, {"url": "https://farsiland.com/genres/drama", "lastmod": null}],
  "episodes": [{"url": "https://farsiland.com/episodes/a-ep01", "lastmod": null}],
  "movies": [{"url": "https://farsiland.com/tvshows/misfiled", "lastmod": null}],
  "pages": [{"url": "https://farsiland.com/about", "lastmod": null}]
}`), 0o600))

	urls, err := Load(path)
	require.NoError(t, err)

	require.Len(t, urls.Shows, 1)
	assert.Equal(t, "2025-02-01", urls.Shows[0].LastmodString())
	require.Len(t, urls.Episodes, 1)
	assert.Nil(t, urls.Episodes[0].Lastmod)
	assert.Empty(t, urls.Movies)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

// siteServer serves a small fake sitemap tree.
type siteServer struct {
	*httptest.Server
	feedDate   string
	failIndex  bool
	indexCalls atomic.Int32
}

func newSiteServer(t *testing.T) *siteServer {
	t.Helper()
	s := &siteServer{feedDate: "Mon, 02 Jun 2025 10:00:00 +0000"}
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap_index.xml", func(w http.ResponseWriter, r *http.Request) {
		s.indexCalls.Add(1)
		if s.failIndex {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%[1]s/page-sitemap.xml</loc></sitemap>
  <sitemap><loc>%[1]s/episodes-sitemap.xml</loc><lastmod>2025-06-01T00:00:00+00:00</lastmod></sitemap>
  <sitemap><loc>%[1]s/tvshows-sitemap.xml</loc><lastmod>2025-06-01T00:00:00+00:00</lastmod></sitemap>
  <sitemap><loc>%[1]s/movies-sitemap.xml</loc><lastmod>2025-06-01T00:00:00+00:00</lastmod></sitemap>
  <sitemap><loc>%[1]s/movies-sitemap2.xml</loc></sitemap>
</sitemapindex>`, s.URL)
	})
	mux.HandleFunc("/movies-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset>
  <url><loc>%[1]s/movies/film-a/</loc><lastmod>2025-05-01T00:00:00+00:00</lastmod></url>
  <url><loc>%[1]s/movies/film-a</loc><lastmod>2025-05-03T00:00:00+00:00</lastmod></url>
  <url><loc>%[1]s/genres/drama/</loc></url>
</urlset>`, s.URL)
	})
	mux.HandleFunc("/movies-sitemap2.xml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/tvshows-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset><url><loc>%s/tvshows/oscar/</loc></url></urlset>`, s.URL)
	})
	mux.HandleFunc("/episodes-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<urlset>
  <url><loc>/episodes/oscar-ep01/</loc><lastmod>2025-05-02</lastmod></url>
  <url><loc>/episodes/oscar-ep02/</loc></url>
</urlset>`)
	})
	mux.HandleFunc("/page-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		t.Error("page sitemap must not be fetched")
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<rss version="2.0"><channel><title>x</title><lastBuildDate>%s</lastBuildDate></channel></rss>`, s.feedDate)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newTestParser(t *testing.T, srv *siteServer) (*Parser, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		BaseURL:    srv.URL,
		SitemapURL: srv.URL + "/sitemap_index.xml",
		FeedURL:    srv.URL + "/feed",
		Sitemap: &config.SitemapConfig{
			ParsedPath:    filepath.Join(dir, "parsed_urls.json"),
			LastCheckPath: filepath.Join(dir, "last_check.json"),
		},
	}
	p, err := NewWithGetter(cfg, fetch.NewClient(fetch.ClientConfig{MaxRetries: 2, RetryDelay: time.Millisecond}))
	require.NoError(t, err)
	return p, cfg
}

func TestParser_Refresh(t *testing.T) {
	srv := newSiteServer(t)
	p, cfg := newTestParser(t, srv)
	p.now = func() time.Time { return time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, p.Run(context.Background()))

	urls, err := Load(cfg.Sitemap.ParsedPath)
	require.NoError(t, err)

	require.Len(t, urls.Movies, 1)
	assert.Equal(t, srv.URL+"/movies/film-a", urls.Movies[0].URL)
	assert.Equal(t, "2025-05-03T00:00:00+00:00", urls.Movies[0].LastmodString())

	require.Len(t, urls.Shows, 1)
	assert.Equal(t, srv.URL+"/tvshows/oscar", urls.Shows[0].URL)
	assert.Nil(t, urls.Shows[0].Lastmod)

	require.Len(t, urls.Episodes, 2)
	assert.Equal(t, srv.URL+"/episodes/oscar-ep01", urls.Episodes[0].URL)

	last, err := loadLastCheck(cfg.Sitemap.LastCheckPath)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC).Equal(last))
}

func TestParser_IndexFailureAborts(t *testing.T) {
	srv := newSiteServer(t)
	srv.failIndex = true
	p, cfg := newTestParser(t, srv)

	err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexFetch))
	assert.NoFileExists(t, cfg.Sitemap.ParsedPath)
	assert.NoFileExists(t, cfg.Sitemap.LastCheckPath)
}

func TestParser_WriteFailureKeepsLastCheck(t *testing.T) {
	srv := newSiteServer(t)
	p, cfg := newTestParser(t, srv)
	// a directory at the output path makes the write fail
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Sitemap.ParsedPath, "x"), 0o755))

	require.Error(t, p.Refresh(context.Background()))
	assert.NoFileExists(t, cfg.Sitemap.LastCheckPath)
}

func TestParser_CheckForUpdates(t *testing.T) {
	tests := []struct {
		name      string
		lastCheck *time.Time
		feedDate  string
		want      bool
	}{
		{name: "no previous check", lastCheck: nil, want: true},
		{name: "feed rebuilt after check", lastCheck: lo.ToPtr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)), want: true},
		{name: "feed unchanged", lastCheck: lo.ToPtr(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)), want: false},
		{name: "alternate date format", lastCheck: lo.ToPtr(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)), feedDate: "2 Jun 2025 10:00:00 GMT", want: false},
		{name: "bad feed date fails open", lastCheck: lo.ToPtr(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)), feedDate: "whenever", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSiteServer(t)
			if tt.feedDate != "" {
				srv.feedDate = tt.feedDate
			}
			p, cfg := newTestParser(t, srv)
			if tt.lastCheck != nil {
				require.NoError(t, saveLastCheck(cfg.Sitemap.LastCheckPath, *tt.lastCheck))
			}
			assert.Equal(t, tt.want, p.CheckForUpdates(context.Background()))
		})
	}
}

func TestParser_RunSkipsWhenFeedUnchanged(t *testing.T) {
	srv := newSiteServer(t)
	p, cfg := newTestParser(t, srv)
	require.NoError(t, saveLastCheck(cfg.Sitemap.LastCheckPath, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)))

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, int32(0), srv.indexCalls.Load())
	assert.NoFileExists(t, cfg.Sitemap.ParsedPath)
}

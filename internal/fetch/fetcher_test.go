package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jon4hz/farsisweep/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingServer struct {
	*httptest.Server
	hits atomic.Int32
}

// newCountingServer answers with the given status codes in order, then 200 forever.
func newCountingServer(t *testing.T, statuses ...int) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(cs.hits.Add(1))
		if n <= len(statuses) && statuses[n-1] != http.StatusOK {
			w.WriteHeader(statuses[n-1])
			return
		}
		_, _ = w.Write([]byte("<html>" + r.URL.Path + "</html>"))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return New(&config.FetchConfig{
		CacheDir:    t.TempDir(),
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
		Timeout:     2 * time.Second,
		LockTimeout: 150 * time.Millisecond,
	})
}

func TestFetch_CachesAndServesWithoutNetwork(t *testing.T) {
	srv := newCountingServer(t)
	f := newTestFetcher(t)
	url := srv.URL + "/tvshows/oscar/"

	page, err := f.Fetch(context.Background(), url, "shows", Options{})
	require.NoError(t, err)
	assert.Equal(t, SourceLive, page.Source)
	assert.Equal(t, "<html>/tvshows/oscar/</html>", page.HTML)
	assert.FileExists(t, f.CachePath(url, "shows"))

	page, err = f.Fetch(context.Background(), url, "shows", Options{})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, page.Source)
	assert.Equal(t, "<html>/tvshows/oscar/</html>", page.HTML)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestFetch_LastmodFreshness(t *testing.T) {
	tests := []struct {
		name      string
		cacheAge  time.Duration
		lastmod   string
		wantHits  int32
		wantCache bool
	}{
		{
			name:      "cache newer than lastmod",
			cacheAge:  time.Hour,
			lastmod:   time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339),
			wantHits:  0,
			wantCache: true,
		},
		{
			name:      "cache older than lastmod",
			cacheAge:  72 * time.Hour,
			lastmod:   time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339),
			wantHits:  1,
			wantCache: false,
		},
		{
			name:      "unparsable lastmod serves stale cache",
			cacheAge:  72 * time.Hour,
			lastmod:   "yesterday-ish",
			wantHits:  0,
			wantCache: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newCountingServer(t)
			f := newTestFetcher(t)
			url := srv.URL + "/episodes/oscar-ep01/"

			path := f.CachePath(url, "episodes")
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte("cached"), 0o600))
			old := time.Now().Add(-tt.cacheAge)
			require.NoError(t, os.Chtimes(path, old, old))

			page, err := f.Fetch(context.Background(), url, "episodes", Options{Lastmod: tt.lastmod})
			require.NoError(t, err)
			assert.Equal(t, tt.wantHits, srv.hits.Load())
			if tt.wantCache {
				assert.Equal(t, "cached", page.HTML)
				assert.Equal(t, SourceCache, page.Source)
			} else {
				assert.Equal(t, "<html>/episodes/oscar-ep01/</html>", page.HTML)
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, page.HTML, string(data), "cache is overwritten with the fresh copy")
			}
		})
	}
}

func TestFetch_ForceRefresh(t *testing.T) {
	srv := newCountingServer(t)
	f := newTestFetcher(t)
	url := srv.URL + "/movies/x/"

	_, err := f.Fetch(context.Background(), url, "movies", Options{})
	require.NoError(t, err)
	page, err := f.Fetch(context.Background(), url, "movies", Options{ForceRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, SourceLive, page.Source)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestFetch_Retries(t *testing.T) {
	tests := []struct {
		name          string
		statuses      []int
		wantErr       bool
		wantPermanent bool
		wantHits      int32
	}{
		{name: "success first try", statuses: nil, wantHits: 1},
		{name: "5xx then success", statuses: []int{500, 502}, wantHits: 3},
		{name: "5xx exhausts retries", statuses: []int{500, 503, 500}, wantErr: true, wantHits: 3},
		{name: "4xx aborts immediately", statuses: []int{404}, wantErr: true, wantPermanent: true, wantHits: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newCountingServer(t, tt.statuses...)
			f := newTestFetcher(t)

			page, err := f.Fetch(context.Background(), srv.URL+"/movies/y/", "movies", Options{})
			assert.Equal(t, tt.wantHits, srv.hits.Load())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.NotEmpty(t, page.HTML)
				return
			}

			require.Error(t, err)
			assert.Nil(t, page)
			assert.True(t, errors.Is(err, ErrFetchFailed))

			var fetchErr *Error
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, tt.wantPermanent, fetchErr.Permanent)
			assert.Equal(t, int(tt.wantHits), fetchErr.Attempts)
		})
	}
}

func TestFetch_LockTimeout(t *testing.T) {
	srv := newCountingServer(t)
	f := newTestFetcher(t)
	url := srv.URL + "/tvshows/locked/"
	path := f.CachePath(url, "shows")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path+".lock", []byte("1"), 0o600))

	t.Run("no cache fails", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), url, "shows", Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLockTimeout))
		assert.True(t, errors.Is(err, ErrFetchFailed))
	})

	t.Run("stale cache is served", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))
		old := time.Now().Add(-72 * time.Hour)
		require.NoError(t, os.Chtimes(path, old, old))

		page, err := f.Fetch(context.Background(), url, "shows", Options{
			Lastmod: time.Now().UTC().Format(time.RFC3339),
		})
		require.NoError(t, err)
		assert.Equal(t, "stale", page.HTML)
	})

	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestFetch_CancelReleasesLock(t *testing.T) {
	f := newTestFetcher(t)
	inFlight := make(chan struct{})
	started := sync.OnceFunc(func() { close(inFlight) })
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	url := srv.URL + "/tvshows/slow/"
	path := f.CachePath(url, "shows")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-inFlight
		assert.FileExists(t, path+".lock")
		cancel()
	}()

	_, err := f.Fetch(ctx, url, "shows", Options{})
	require.Error(t, err)
	assert.NoFileExists(t, path+".lock")
	assert.NoFileExists(t, path)
}

func TestAcquireLock_RemovesStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html.lock")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0o600))
	old := time.Now().Add(-2 * lockStaleAfter)
	require.NoError(t, os.Chtimes(path, old, old))

	unlock, err := acquireLock(context.Background(), path, 10*time.Millisecond)
	require.NoError(t, err)
	assert.FileExists(t, path)
	unlock()
	assert.NoFileExists(t, path)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://farsiland.com/tvshows/oscar/", "farsiland.com-tvshows-oscar"},
		{"http://farsiland.com/episodes/oscar-ep01", "farsiland.com-episodes-oscar-ep01"},
		{"https://farsiland.com/?p=12", "farsiland.com-_p_12"},
		{"https://farsiland.com/", "farsiland.com"},
		{"", "index"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.url))
		})
	}
}

func TestCachePath(t *testing.T) {
	f := New(&config.FetchConfig{CacheDir: "/cache"})
	assert.Equal(t,
		filepath.Join("/cache", "pages", "shows", "farsiland.com-tvshows-oscar.html"),
		f.CachePath("https://farsiland.com/tvshows/oscar/", "shows"),
	)
}

func TestParseLastmod(t *testing.T) {
	for _, s := range []string{
		"2025-04-19T16:00:00+00:00",
		"2025-04-19T16:00:00Z",
		"2025-04-19T16:00:00",
		"2025-04-19 16:00:00",
		"2025-04-19",
	} {
		_, err := ParseLastmod(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseLastmod("19/04/2025")
	assert.Error(t, err)
}

package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testShow(url, lastmod string) *models.Show {
	return &models.Show{
		URL:         url,
		Lastmod:     lastmod,
		TitleEn:     "Oscar",
		Genres:      []string{"Comedy", "Drama"},
		Directors:   []string{},
		Cast:        []string{"A"},
		SeasonCount: 1,
		// scraped value, must be replaced by the stored count
		EpisodeCount: 99,
		Seasons: []models.Season{{
			SeasonNumber: 1,
			Title:        "Season 1",
			EpisodeCount: 1,
			Episodes:     []models.SeasonEpisode{{EpisodeNumber: 1, URL: url + "-ep01"}},
		}},
	}
}

func testEpisode(url, showURL string, season, number int) *models.Episode {
	return &models.Episode{
		URL:           url,
		Lastmod:       "2025-01-01",
		ShowURL:       showURL,
		SeasonNumber:  season,
		EpisodeNumber: number,
		Title:         url,
		VideoFiles: []models.VideoFile{
			{Quality: "720", URL: url + "/720.mp4", Size: "500 MB"},
		},
	}
}

func TestUpsertShowIsNew(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	saved, err := c.UpsertShow(ctx, testShow("https://farsiland.com/tvshows/oscar/", "2025-01-01"))
	require.NoError(t, err)
	assert.True(t, saved.IsNew)
	assert.NotZero(t, saved.ID)
	assert.NotNil(t, saved.LastScraped)
	assert.Equal(t, "https://farsiland.com/tvshows/oscar", saved.URL)
	assert.Equal(t, 0, saved.EpisodeCount)
	firstID := saved.ID

	_, err = c.MarkProcessed(ctx, models.CategoryShows, []uint{saved.ID})
	require.NoError(t, err)

	// same lastmod keeps the processed flag
	saved, err = c.UpsertShow(ctx, testShow("https://farsiland.com/tvshows/oscar", "2025-01-01"))
	require.NoError(t, err)
	assert.False(t, saved.IsNew)
	assert.Equal(t, firstID, saved.ID)

	// a second identical upsert is idempotent
	saved, err = c.UpsertShow(ctx, testShow("https://farsiland.com/tvshows/oscar", "2025-01-01"))
	require.NoError(t, err)
	assert.False(t, saved.IsNew)

	// a changed lastmod flags it again
	saved, err = c.UpsertShow(ctx, testShow("https://farsiland.com/tvshows/oscar", "2025-02-01"))
	require.NoError(t, err)
	assert.True(t, saved.IsNew)

	shows, err := c.GetShows(ctx)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	assert.Equal(t, firstID, shows[0].ID)
	assert.Equal(t, "2025-02-01", shows[0].Lastmod)
}

func TestUpsertKeepsUnprocessedFlag(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.UpsertMovie(ctx, &models.Movie{URL: "https://farsiland.com/movies/a", Lastmod: "x"})
	require.NoError(t, err)
	saved, err := c.UpsertMovie(ctx, &models.Movie{URL: "https://farsiland.com/movies/a", Lastmod: "x"})
	require.NoError(t, err)
	assert.True(t, saved.IsNew, "unchanged lastmod keeps is_new=1")
}

func TestUpsertWithoutLastmodKeepsStoredLastmod(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	url := "https://farsiland.com/movies/a"

	_, err := c.UpsertMovie(ctx, &models.Movie{URL: url, Lastmod: "2025-01-01"})
	require.NoError(t, err)
	_, err = c.MarkProcessed(ctx, models.CategoryMovies, []uint{1})
	require.NoError(t, err)

	saved, err := c.UpsertMovie(ctx, &models.Movie{URL: url, TitleEn: "A"})
	require.NoError(t, err)
	assert.False(t, saved.IsNew, "unknown lastmod is not a change")
	assert.Equal(t, "2025-01-01", saved.Lastmod)

	saved, err = c.UpsertMovie(ctx, &models.Movie{URL: url, Lastmod: "2025-01-01"})
	require.NoError(t, err)
	assert.False(t, saved.IsNew)

	saved, err = c.UpsertMovie(ctx, &models.Movie{URL: url, Lastmod: "2025-02-01"})
	require.NoError(t, err)
	assert.True(t, saved.IsNew)
}

func TestUpsertStampsLastScraped(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	saved, err := c.UpsertMovie(ctx, &models.Movie{URL: "https://farsiland.com/movies/a"})
	require.NoError(t, err)
	require.NotNil(t, saved.LastScraped)
	assert.True(t, fixed.Equal(*saved.LastScraped))
}

func TestEpisodeCountRecomputed(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	showURL := "https://farsiland.com/tvshows/oscar"

	_, err := c.UpsertShow(ctx, testShow(showURL, "2025-01-01"))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		_, err := c.UpsertEpisode(ctx, testEpisode(showURL+"-ep0"+string(rune('0'+i)), showURL, 1, i))
		require.NoError(t, err)
	}
	// re-saving an episode does not inflate the count
	_, err = c.UpsertEpisode(ctx, testEpisode(showURL+"-ep01", showURL+"/", 1, 1))
	require.NoError(t, err)

	show, err := c.GetShowByURL(ctx, showURL)
	require.NoError(t, err)
	require.NotNil(t, show)
	assert.Equal(t, 3, show.EpisodeCount)

	// re-saving the show keeps the stored count instead of the scraped one
	saved, err := c.UpsertShow(ctx, testShow(showURL, "2025-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 3, saved.EpisodeCount)
}

func TestEpisodeMovedToOtherShow(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	a, b := "https://farsiland.com/tvshows/a", "https://farsiland.com/tvshows/b"

	for _, u := range []string{a, b} {
		_, err := c.UpsertShow(ctx, testShow(u, "1"))
		require.NoError(t, err)
	}
	_, err := c.UpsertEpisode(ctx, testEpisode("https://farsiland.com/episodes/x", a, 1, 1))
	require.NoError(t, err)
	_, err = c.UpsertEpisode(ctx, testEpisode("https://farsiland.com/episodes/x", b, 1, 1))
	require.NoError(t, err)

	showA, err := c.GetShowByURL(ctx, a)
	require.NoError(t, err)
	showB, err := c.GetShowByURL(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 0, showA.EpisodeCount)
	assert.Equal(t, 1, showB.EpisodeCount)
}

func TestListFieldsRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	showURL := "https://farsiland.com/tvshows/oscar"

	_, err := c.UpsertShow(ctx, testShow(showURL, "1"))
	require.NoError(t, err)
	_, err = c.UpsertEpisode(ctx, testEpisode(showURL+"-ep01", showURL, 1, 1))
	require.NoError(t, err)

	show, err := c.GetShowByURL(ctx, showURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"Comedy", "Drama"}, show.Genres)
	assert.Equal(t, []string{"A"}, show.Cast)
	require.Len(t, show.Seasons, 1)
	assert.Equal(t, showURL+"-ep01", show.Seasons[0].Episodes[0].URL)

	eps, err := c.GetEpisodesByShowURL(ctx, showURL)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, []models.VideoFile{{Quality: "720", URL: showURL + "-ep01/720.mp4", Size: "500 MB"}}, eps[0].VideoFiles)
}

func TestMarkProcessed(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	var ids []uint
	for _, u := range []string{"https://farsiland.com/movies/a", "https://farsiland.com/movies/b", "https://farsiland.com/movies/c"} {
		m, err := c.UpsertMovie(ctx, &models.Movie{URL: u})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	n, err := c.MarkProcessed(ctx, models.CategoryMovies, ids[:2])
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	fresh, err := c.GetNewMovies(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "https://farsiland.com/movies/c", fresh[0].URL)

	n, err = c.MarkProcessed(ctx, models.CategoryMovies, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = c.MarkProcessed(ctx, models.Category("music"), ids)
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestSetAllNew(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	show, err := c.UpsertShow(ctx, testShow("https://farsiland.com/tvshows/a", "1"))
	require.NoError(t, err)
	movie, err := c.UpsertMovie(ctx, &models.Movie{URL: "https://farsiland.com/movies/a"})
	require.NoError(t, err)
	_, err = c.MarkProcessed(ctx, models.CategoryShows, []uint{show.ID})
	require.NoError(t, err)
	_, err = c.MarkProcessed(ctx, models.CategoryMovies, []uint{movie.ID})
	require.NoError(t, err)

	n, err := c.SetAllNew(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	shows, err := c.GetNewShows(ctx)
	require.NoError(t, err)
	assert.Len(t, shows, 1)
	movies, err := c.GetNewMovies(ctx)
	require.NoError(t, err)
	assert.Len(t, movies, 1)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	showURL := "https://farsiland.com/tvshows/oscar"

	show, err := c.UpsertShow(ctx, testShow(showURL, "1"))
	require.NoError(t, err)
	_, err = c.UpsertEpisode(ctx, testEpisode(showURL+"-ep01", showURL, 1, 1))
	require.NoError(t, err)
	_, err = c.UpsertMovie(ctx, &models.Movie{
		URL:        "https://farsiland.com/movies/a",
		VideoFiles: []models.VideoFile{{URL: "x", Size: "1.5 GB"}, {URL: "y", Size: "n/a"}},
	})
	require.NoError(t, err)
	_, err = c.MarkProcessed(ctx, models.CategoryShows, []uint{show.ID})
	require.NoError(t, err)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Shows.Total)
	assert.Equal(t, 0, stats.Shows.New)
	assert.Equal(t, 1, stats.Episodes.Total)
	assert.Equal(t, 1, stats.Episodes.New)
	assert.Equal(t, 1, stats.Table(models.CategoryMovies).Total)
	assert.NotNil(t, stats.Movies.LastScraped)
	assert.Equal(t, 3, stats.VideoFiles)
	assert.Equal(t, uint64(500_000_000+1_500_000_000), stats.VideoBytes)
}

func TestBuildSnapshot(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	oscar := "https://farsiland.com/tvshows/oscar"
	lonely := "https://farsiland.com/tvshows/lonely"

	_, err := c.UpsertShow(ctx, testShow(oscar, "1"))
	require.NoError(t, err)
	_, err = c.UpsertShow(ctx, testShow(lonely, "1"))
	require.NoError(t, err)
	for _, ep := range []*models.Episode{
		testEpisode(oscar+"-s2e1", oscar, 2, 1),
		testEpisode(oscar+"-s1e2", oscar, 1, 2),
		testEpisode(oscar+"-s1e1", oscar, 1, 1),
	} {
		_, err := c.UpsertEpisode(ctx, ep)
		require.NoError(t, err)
	}
	_, err = c.UpsertMovie(ctx, &models.Movie{URL: "https://farsiland.com/movies/a"})
	require.NoError(t, err)

	snap, err := c.BuildSnapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, SnapshotVersion, snap.Metadata.Version)
	assert.False(t, snap.Metadata.ExportedAt.IsZero())
	assert.Equal(t, 2, snap.ShowsCount)
	assert.Equal(t, 3, snap.EpisodesCount)
	assert.Equal(t, 1, snap.MoviesCount)

	byURL := lo.KeyBy(snap.Shows, func(s SnapshotShow) string { return s.URL })

	o := byURL[oscar]
	require.Len(t, o.Seasons, 2)
	assert.Equal(t, 1, o.Seasons[0].SeasonNumber)
	assert.Equal(t, "Season 1", o.Seasons[0].Title)
	assert.Equal(t, 2, o.Seasons[0].EpisodeCount)
	assert.Equal(t, []int{1, 2}, lo.Map(o.Seasons[0].Episodes, func(e models.SeasonEpisode, _ int) int { return e.EpisodeNumber }))
	assert.Equal(t, oscar+"-s1e1", o.Seasons[0].Episodes[0].URL)
	assert.Len(t, o.Seasons[0].Episodes[0].VideoFiles, 1)
	assert.Equal(t, 2, o.Seasons[1].SeasonNumber)
	assert.Len(t, o.FullEpisodes, 3)

	// no stored episodes: scraped seasons are kept
	l := byURL[lonely]
	require.Len(t, l.Seasons, 1)
	assert.Equal(t, lonely+"-ep01", l.Seasons[0].Episodes[0].URL)
	assert.Empty(t, l.FullEpisodes)
	assert.NotNil(t, l.FullEpisodes)
}

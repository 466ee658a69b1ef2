package mock

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jon4hz/farsisweep/internal/database"
	"github.com/jon4hz/farsisweep/internal/models"
)

var _ database.DB = (*MockDB)(nil)

// MockDB is a mock implementation of database.DB for testing.
type MockDB struct {
	mu sync.RWMutex

	shows    map[string]*models.Show
	episodes map[string]*models.Episode
	movies   map[string]*models.Movie
	nextID   uint

	// Error simulation
	UpsertShowError    error
	UpsertEpisodeError error
	UpsertMovieError   error
	GetShowsError      error
	GetEpisodesError   error
	GetMoviesError     error
	GetNewContentError error
	MarkProcessedError error
	SetAllNewError     error
	GetStatsError      error
	BuildSnapshotError error

	Closed             bool
	MarkProcessedCalls map[models.Category][][]uint
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	return &MockDB{
		shows:              make(map[string]*models.Show),
		episodes:           make(map[string]*models.Episode),
		movies:             make(map[string]*models.Movie),
		nextID:             1,
		MarkProcessedCalls: make(map[models.Category][][]uint),
	}
}

func key(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

func (m *MockDB) UpsertShow(_ context.Context, show *models.Show) (*models.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertShowError != nil {
		return show, m.UpsertShowError
	}
	rec := *show
	rec.URL = key(rec.URL)
	prev := m.shows[rec.URL]
	if prev != nil {
		rec.ID = prev.ID
		if rec.Lastmod == "" {
			rec.Lastmod = prev.Lastmod
		}
		rec.IsNew = prev.Lastmod != rec.Lastmod || prev.IsNew
	} else {
		rec.ID = m.allocID()
		rec.IsNew = true
	}
	rec.EpisodeCount = m.countEpisodes(rec.URL)
	now := time.Now()
	rec.LastScraped = &now
	m.shows[rec.URL] = &rec
	out := rec
	return &out, nil
}

func (m *MockDB) UpsertEpisode(_ context.Context, episode *models.Episode) (*models.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertEpisodeError != nil {
		return episode, m.UpsertEpisodeError
	}
	rec := *episode
	rec.URL = key(rec.URL)
	rec.ShowURL = key(rec.ShowURL)
	prev := m.episodes[rec.URL]
	if prev != nil {
		rec.ID = prev.ID
		if rec.Lastmod == "" {
			rec.Lastmod = prev.Lastmod
		}
		rec.IsNew = prev.Lastmod != rec.Lastmod || prev.IsNew
	} else {
		rec.ID = m.allocID()
		rec.IsNew = true
	}
	now := time.Now()
	rec.LastScraped = &now
	m.episodes[rec.URL] = &rec

	m.recount(rec.ShowURL)
	if prev != nil && prev.ShowURL != rec.ShowURL {
		m.recount(prev.ShowURL)
	}
	out := rec
	return &out, nil
}

func (m *MockDB) UpsertMovie(_ context.Context, movie *models.Movie) (*models.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertMovieError != nil {
		return movie, m.UpsertMovieError
	}
	rec := *movie
	rec.URL = key(rec.URL)
	prev := m.movies[rec.URL]
	if prev != nil {
		rec.ID = prev.ID
		if rec.Lastmod == "" {
			rec.Lastmod = prev.Lastmod
		}
		rec.IsNew = prev.Lastmod != rec.Lastmod || prev.IsNew
	} else {
		rec.ID = m.allocID()
		rec.IsNew = true
	}
	now := time.Now()
	rec.LastScraped = &now
	m.movies[rec.URL] = &rec
	out := rec
	return &out, nil
}

func (m *MockDB) GetShows(_ context.Context) ([]models.Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetShowsError != nil {
		return nil, m.GetShowsError
	}
	return collect(m.shows, func(*models.Show) bool { return true }, showID), nil
}

func (m *MockDB) GetShowByURL(_ context.Context, url string) (*models.Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetShowsError != nil {
		return nil, m.GetShowsError
	}
	s, ok := m.shows[key(url)]
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (m *MockDB) GetEpisodes(_ context.Context) ([]models.Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetEpisodesError != nil {
		return nil, m.GetEpisodesError
	}
	return collect(m.episodes, func(*models.Episode) bool { return true }, episodeID), nil
}

func (m *MockDB) GetEpisodesByShowURL(_ context.Context, showURL string) ([]models.Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetEpisodesError != nil {
		return nil, m.GetEpisodesError
	}
	showURL = key(showURL)
	return collect(m.episodes, func(e *models.Episode) bool { return e.ShowURL == showURL }, episodeID), nil
}

func (m *MockDB) GetMovies(_ context.Context) ([]models.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetMoviesError != nil {
		return nil, m.GetMoviesError
	}
	return collect(m.movies, func(*models.Movie) bool { return true }, movieID), nil
}

func (m *MockDB) GetNewShows(_ context.Context) ([]models.Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetNewContentError != nil {
		return nil, m.GetNewContentError
	}
	return collect(m.shows, func(s *models.Show) bool { return s.IsNew }, showID), nil
}

func (m *MockDB) GetNewEpisodes(_ context.Context) ([]models.Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetNewContentError != nil {
		return nil, m.GetNewContentError
	}
	return collect(m.episodes, func(e *models.Episode) bool { return e.IsNew }, episodeID), nil
}

func (m *MockDB) GetNewMovies(_ context.Context) ([]models.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetNewContentError != nil {
		return nil, m.GetNewContentError
	}
	return collect(m.movies, func(mv *models.Movie) bool { return mv.IsNew }, movieID), nil
}

func (m *MockDB) MarkProcessed(_ context.Context, category models.Category, ids []uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkProcessedCalls[category] = append(m.MarkProcessedCalls[category], slices.Clone(ids))
	if m.MarkProcessedError != nil {
		return 0, m.MarkProcessedError
	}

	var n int64
	switch category {
	case models.CategoryShows:
		for _, s := range m.shows {
			if slices.Contains(ids, s.ID) {
				s.IsNew = false
				n++
			}
		}
	case models.CategoryEpisodes:
		for _, e := range m.episodes {
			if slices.Contains(ids, e.ID) {
				e.IsNew = false
				n++
			}
		}
	case models.CategoryMovies:
		for _, mv := range m.movies {
			if slices.Contains(ids, mv.ID) {
				mv.IsNew = false
				n++
			}
		}
	default:
		return 0, database.ErrInvalidCategory
	}
	return n, nil
}

func (m *MockDB) SetAllNew(_ context.Context, isNew bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetAllNewError != nil {
		return 0, m.SetAllNewError
	}
	for _, s := range m.shows {
		s.IsNew = isNew
	}
	for _, e := range m.episodes {
		e.IsNew = isNew
	}
	for _, mv := range m.movies {
		mv.IsNew = isNew
	}
	return int64(len(m.shows) + len(m.episodes) + len(m.movies)), nil
}

func (m *MockDB) GetStats(_ context.Context) (*database.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetStatsError != nil {
		return nil, m.GetStatsError
	}
	stats := &database.Stats{}
	for _, s := range m.shows {
		stats.Shows.Total++
		if s.IsNew {
			stats.Shows.New++
		}
	}
	for _, e := range m.episodes {
		stats.Episodes.Total++
		if e.IsNew {
			stats.Episodes.New++
		}
		stats.VideoFiles += len(e.VideoFiles)
	}
	for _, mv := range m.movies {
		stats.Movies.Total++
		if mv.IsNew {
			stats.Movies.New++
		}
		stats.VideoFiles += len(mv.VideoFiles)
	}
	return stats, nil
}

func (m *MockDB) BuildSnapshot(ctx context.Context) (*database.Snapshot, error) {
	if m.BuildSnapshotError != nil {
		return nil, m.BuildSnapshotError
	}
	shows, err := m.GetShows(ctx)
	if err != nil {
		return nil, err
	}
	episodes, err := m.GetEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	movies, err := m.GetMovies(ctx)
	if err != nil {
		return nil, err
	}
	return database.NewSnapshot(time.Now(), shows, episodes, movies), nil
}

func (m *MockDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Reset clears all data and errors from the mock database.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shows = make(map[string]*models.Show)
	m.episodes = make(map[string]*models.Episode)
	m.movies = make(map[string]*models.Movie)
	m.nextID = 1
	m.MarkProcessedCalls = make(map[models.Category][][]uint)

	m.UpsertShowError = nil
	m.UpsertEpisodeError = nil
	m.UpsertMovieError = nil
	m.GetShowsError = nil
	m.GetEpisodesError = nil
	m.GetMoviesError = nil
	m.GetNewContentError = nil
	m.MarkProcessedError = nil
	m.SetAllNewError = nil
	m.GetStatsError = nil
	m.BuildSnapshotError = nil
	m.Closed = false
}

func (m *MockDB) allocID() uint {
	id := m.nextID
	m.nextID++
	return id
}

func (m *MockDB) countEpisodes(showURL string) int {
	n := 0
	for _, e := range m.episodes {
		if e.ShowURL == showURL {
			n++
		}
	}
	return n
}

func (m *MockDB) recount(showURL string) {
	if s, ok := m.shows[showURL]; ok {
		s.EpisodeCount = m.countEpisodes(showURL)
	}
}

func showID(s models.Show) uint       { return s.ID }
func episodeID(e models.Episode) uint { return e.ID }
func movieID(m models.Movie) uint     { return m.ID }

// collect copies the matching rows ordered by ID.
func collect[T any](rows map[string]*T, keep func(*T) bool, id func(T) uint) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, *r)
		}
	}
	slices.SortFunc(out, func(a, b T) int { return int(id(a)) - int(id(b)) })
	return out
}

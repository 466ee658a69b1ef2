package database

import (
	"context"

	"github.com/jon4hz/farsisweep/internal/models"
)

// DB is the persistence interface used by the crawler, the tracker and the API.
type DB interface {
	ShowDB
	EpisodeDB
	MovieDB
	NewContentDB
	StatsDB

	BuildSnapshot(ctx context.Context) (*Snapshot, error)
	Close() error
}

// ShowDB stores shows.
type ShowDB interface {
	// UpsertShow stores the show, replacing any row with the same URL.
	// On failure the store is left untouched and the input is returned with the error.
	UpsertShow(ctx context.Context, show *models.Show) (*models.Show, error)
	GetShows(ctx context.Context) ([]models.Show, error)
	GetShowByURL(ctx context.Context, url string) (*models.Show, error)
}

// EpisodeDB stores episodes.
type EpisodeDB interface {
	// UpsertEpisode stores the episode and recomputes the episode count of its show.
	UpsertEpisode(ctx context.Context, episode *models.Episode) (*models.Episode, error)
	GetEpisodes(ctx context.Context) ([]models.Episode, error)
	GetEpisodesByShowURL(ctx context.Context, showURL string) ([]models.Episode, error)
}

// MovieDB stores movies.
type MovieDB interface {
	UpsertMovie(ctx context.Context, movie *models.Movie) (*models.Movie, error)
	GetMovies(ctx context.Context) ([]models.Movie, error)
}

// NewContentDB tracks the is_new flag.
type NewContentDB interface {
	GetNewShows(ctx context.Context) ([]models.Show, error)
	GetNewEpisodes(ctx context.Context) ([]models.Episode, error)
	GetNewMovies(ctx context.Context) ([]models.Movie, error)
	// MarkProcessed clears the is_new flag of the given rows.
	MarkProcessed(ctx context.Context, category models.Category, ids []uint) (int64, error)
	// SetAllNew sets the is_new flag of every row in every table.
	SetAllNew(ctx context.Context, isNew bool) (int64, error)
}

// StatsDB reports store statistics.
type StatsDB interface {
	GetStats(ctx context.Context) (*Stats, error)
}

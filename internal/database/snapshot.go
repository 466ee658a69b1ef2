package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/samber/lo"
)

// SnapshotVersion is the format version written into export snapshots.
const SnapshotVersion = "1.0"

// SnapshotMetadata describes an export snapshot.
type SnapshotMetadata struct {
	ExportedAt time.Time `json:"exported_at"`
	Version    string    `json:"version"`
}

// SnapshotShow is a show with the season structure rebuilt from stored episodes.
type SnapshotShow struct {
	models.Show
	FullEpisodes []models.Episode `json:"full_episodes"`
}

// Snapshot is the denormalized export of the whole store.
type Snapshot struct {
	Metadata      SnapshotMetadata `json:"metadata"`
	ShowsCount    int              `json:"shows_count"`
	EpisodesCount int              `json:"episodes_count"`
	MoviesCount   int              `json:"movies_count"`
	Shows         []SnapshotShow   `json:"shows"`
	Episodes      []models.Episode `json:"episodes"`
	Movies        []models.Movie   `json:"movies"`
}

// BuildSnapshot loads all tables and attaches to every show the seasons built
// from its stored episodes. Shows without stored episodes keep their scraped seasons.
func (c *Client) BuildSnapshot(ctx context.Context) (*Snapshot, error) {
	shows, err := c.GetShows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shows: %w", err)
	}
	episodes, err := c.GetEpisodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load episodes: %w", err)
	}
	movies, err := c.GetMovies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load movies: %w", err)
	}
	return NewSnapshot(c.now(), shows, episodes, movies), nil
}

// NewSnapshot builds a snapshot from already loaded rows.
func NewSnapshot(exportedAt time.Time, shows []models.Show, episodes []models.Episode, movies []models.Movie) *Snapshot {
	byShow := lo.GroupBy(episodes, func(e models.Episode) string { return trimURL(e.ShowURL) })

	out := make([]SnapshotShow, 0, len(shows))
	for _, show := range shows {
		eps := byShow[trimURL(show.URL)]
		s := SnapshotShow{Show: show, FullEpisodes: nonNil(eps)}
		if len(eps) > 0 {
			s.Seasons = SeasonsFromEpisodes(eps)
		}
		if s.Seasons == nil {
			s.Seasons = []models.Season{}
		}
		out = append(out, s)
	}

	return &Snapshot{
		Metadata: SnapshotMetadata{
			ExportedAt: exportedAt,
			Version:    SnapshotVersion,
		},
		ShowsCount:    len(shows),
		EpisodesCount: len(episodes),
		MoviesCount:   len(movies),
		Shows:         out,
		Episodes:      nonNil(episodes),
		Movies:        nonNil(movies),
	}
}

// SeasonsFromEpisodes groups episodes by season, both sorted by number.
func SeasonsFromEpisodes(episodes []models.Episode) []models.Season {
	bySeason := lo.GroupBy(episodes, func(e models.Episode) int { return e.SeasonNumber })
	numbers := lo.Keys(bySeason)
	sort.Ints(numbers)

	seasons := make([]models.Season, 0, len(numbers))
	for _, n := range numbers {
		eps := bySeason[n]
		sort.SliceStable(eps, func(i, j int) bool { return eps[i].EpisodeNumber < eps[j].EpisodeNumber })

		entries := lo.Map(eps, func(e models.Episode, _ int) models.SeasonEpisode {
			return models.SeasonEpisode{
				EpisodeNumber: e.EpisodeNumber,
				Title:         e.Title,
				Date:          e.AirDate,
				URL:           e.URL,
				Thumbnail:     e.Thumbnail,
				Lastmod:       e.Lastmod,
				VideoFiles:    e.VideoFiles,
			}
		})
		seasons = append(seasons, models.Season{
			SeasonNumber: n,
			Title:        fmt.Sprintf("Season %d", n),
			EpisodeCount: len(entries),
			Episodes:     entries,
		})
	}
	return seasons
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/farsisweep/internal/models"
	"gorm.io/gorm"
)

// TableStats summarizes one table.
type TableStats struct {
	Total       int        `json:"total"`
	New         int        `json:"new"`
	LastScraped *time.Time `json:"last_scraped,omitempty"`
}

// Stats summarizes the store.
type Stats struct {
	Shows    TableStats `json:"shows"`
	Episodes TableStats `json:"episodes"`
	Movies   TableStats `json:"movies"`
	// VideoFiles is the number of video files over episodes and movies.
	VideoFiles int `json:"video_files"`
	// VideoBytes is the sum of the advertised sizes that could be parsed.
	VideoBytes uint64 `json:"video_bytes"`
}

// Table returns the stats of a category.
func (s *Stats) Table(category models.Category) TableStats {
	switch category {
	case models.CategoryShows:
		return s.Shows
	case models.CategoryEpisodes:
		return s.Episodes
	case models.CategoryMovies:
		return s.Movies
	default:
		return TableStats{}
	}
}

func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	db := c.db.WithContext(ctx)
	stats := &Stats{}

	for _, category := range models.Categories {
		model, err := modelFor(category)
		if err != nil {
			return nil, err
		}
		ts, err := tableStats(db, model, category)
		if err != nil {
			log.Error("failed to get table stats", "category", category, "error", err)
			return nil, err
		}
		switch category {
		case models.CategoryShows:
			stats.Shows = ts
		case models.CategoryEpisodes:
			stats.Episodes = ts
		case models.CategoryMovies:
			stats.Movies = ts
		}
	}

	var episodes []models.Episode
	if err := db.Select("video_files").Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("failed to load episode video files: %w", err)
	}
	var movies []models.Movie
	if err := db.Select("video_files").Find(&movies).Error; err != nil {
		return nil, fmt.Errorf("failed to load movie video files: %w", err)
	}
	for _, e := range episodes {
		stats.addVideoFiles(e.VideoFiles)
	}
	for _, m := range movies {
		stats.addVideoFiles(m.VideoFiles)
	}

	return stats, nil
}

func (s *Stats) addVideoFiles(files []models.VideoFile) {
	s.VideoFiles += len(files)
	for _, f := range files {
		if f.Size == "" {
			continue
		}
		if n, err := humanize.ParseBytes(f.Size); err == nil {
			s.VideoBytes += n
		}
	}
}

func tableStats(db *gorm.DB, model any, category models.Category) (TableStats, error) {
	var ts TableStats

	var total, fresh int64
	if err := db.Model(model).Count(&total).Error; err != nil {
		return ts, err
	}
	if err := db.Model(model).Where("is_new = ?", true).Count(&fresh).Error; err != nil {
		return ts, err
	}

	var err error
	if ts.Total, err = safecast.Convert[int](total); err != nil {
		return ts, err
	}
	if ts.New, err = safecast.Convert[int](fresh); err != nil {
		return ts, err
	}

	ts.LastScraped, err = lastScraped(db, category)
	return ts, err
}

func lastScraped(db *gorm.DB, category models.Category) (*time.Time, error) {
	q := db.Select("last_scraped").Where("last_scraped IS NOT NULL").Order("last_scraped DESC").Limit(1)
	switch category {
	case models.CategoryShows:
		var rows []models.Show
		if err := q.Find(&rows).Error; err != nil || len(rows) == 0 {
			return nil, err
		}
		return rows[0].LastScraped, nil
	case models.CategoryEpisodes:
		var rows []models.Episode
		if err := q.Find(&rows).Error; err != nil || len(rows) == 0 {
			return nil, err
		}
		return rows[0].LastScraped, nil
	case models.CategoryMovies:
		var rows []models.Movie
		if err := q.Find(&rows).Error; err != nil || len(rows) == 0 {
			return nil, err
		}
		return rows[0].LastScraped, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
}

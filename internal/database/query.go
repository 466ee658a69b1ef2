package database

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/models"
	"gorm.io/gorm"
)

func trimURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

func (c *Client) GetShows(ctx context.Context) ([]models.Show, error) {
	var shows []models.Show
	if err := c.db.WithContext(ctx).Order("id").Find(&shows).Error; err != nil {
		log.Error("failed to get shows", "error", err)
		return nil, err
	}
	return shows, nil
}

// GetShowByURL returns the show with the given URL or nil if there is none.
func (c *Client) GetShowByURL(ctx context.Context, url string) (*models.Show, error) {
	var shows []models.Show
	if err := c.db.WithContext(ctx).Where("url = ?", trimURL(url)).Limit(1).Find(&shows).Error; err != nil {
		log.Error("failed to get show by url", "url", url, "error", err)
		return nil, err
	}
	if len(shows) == 0 {
		return nil, nil
	}
	return &shows[0], nil
}

func (c *Client) GetEpisodes(ctx context.Context) ([]models.Episode, error) {
	var episodes []models.Episode
	if err := c.db.WithContext(ctx).
		Order("show_url").Order("season_number").Order("episode_number").Order("id").
		Find(&episodes).Error; err != nil {
		log.Error("failed to get episodes", "error", err)
		return nil, err
	}
	return episodes, nil
}

func (c *Client) GetEpisodesByShowURL(ctx context.Context, showURL string) ([]models.Episode, error) {
	var episodes []models.Episode
	if err := c.db.WithContext(ctx).
		Where("show_url = ?", trimURL(showURL)).
		Order("season_number").Order("episode_number").Order("id").
		Find(&episodes).Error; err != nil {
		log.Error("failed to get episodes by show", "show", showURL, "error", err)
		return nil, err
	}
	return episodes, nil
}

func (c *Client) GetMovies(ctx context.Context) ([]models.Movie, error) {
	var movies []models.Movie
	if err := c.db.WithContext(ctx).Order("id").Find(&movies).Error; err != nil {
		log.Error("failed to get movies", "error", err)
		return nil, err
	}
	return movies, nil
}

func (c *Client) GetNewShows(ctx context.Context) ([]models.Show, error) {
	var shows []models.Show
	if err := c.db.WithContext(ctx).Where("is_new = ?", true).Order("id").Find(&shows).Error; err != nil {
		log.Error("failed to get new shows", "error", err)
		return nil, err
	}
	return shows, nil
}

func (c *Client) GetNewEpisodes(ctx context.Context) ([]models.Episode, error) {
	var episodes []models.Episode
	if err := c.db.WithContext(ctx).Where("is_new = ?", true).Order("id").Find(&episodes).Error; err != nil {
		log.Error("failed to get new episodes", "error", err)
		return nil, err
	}
	return episodes, nil
}

func (c *Client) GetNewMovies(ctx context.Context) ([]models.Movie, error) {
	var movies []models.Movie
	if err := c.db.WithContext(ctx).Where("is_new = ?", true).Order("id").Find(&movies).Error; err != nil {
		log.Error("failed to get new movies", "error", err)
		return nil, err
	}
	return movies, nil
}

// MarkProcessed clears the is_new flag of the given rows and returns the number of updated rows.
func (c *Client) MarkProcessed(ctx context.Context, category models.Category, ids []uint) (int64, error) {
	model, err := modelFor(category)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := c.db.WithContext(ctx).Model(model).Where("id IN ?", ids).Update("is_new", false)
	if result.Error != nil {
		log.Error("failed to mark content as processed", "category", category, "error", result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SetAllNew sets the is_new flag on every row of every table.
func (c *Client) SetAllNew(ctx context.Context, isNew bool) (int64, error) {
	var total int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, category := range models.Categories {
			model, err := modelFor(category)
			if err != nil {
				return err
			}
			result := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Model(model).Update("is_new", isNew)
			if result.Error != nil {
				return result.Error
			}
			total += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		log.Error("failed to reset new flags", "error", err)
		return 0, err
	}
	return total, nil
}

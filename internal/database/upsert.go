package database

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// stamp is the stored state needed to reconcile a freshly scraped record.
type stamp struct {
	ID      uint
	Lastmod string
	IsNew   bool
	ShowURL string
}

func lookup(tx *gorm.DB, model any, url string, columns ...string) (*stamp, error) {
	var rows []stamp
	if err := tx.Model(model).Select(columns).Where("url = ?", url).Limit(1).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", url, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// isNew flags records that were never stored or whose lastmod changed.
// An unchanged lastmod keeps the stored flag.
func isNew(prev *stamp, lastmod string) bool {
	if prev == nil || prev.Lastmod != lastmod {
		return true
	}
	return prev.IsNew
}

// knownLastmod keeps the stored lastmod when the incoming one is unknown,
// so a scrape without sitemap data does not count as a change.
func knownLastmod(prev *stamp, lastmod string) string {
	if lastmod == "" && prev != nil {
		return prev.Lastmod
	}
	return lastmod
}

func (s *stamp) id() uint {
	if s == nil {
		return 0
	}
	return s.ID
}

// replace inserts the row, replacing any existing row with the same URL.
func replace(tx *gorm.DB, value any) error {
	return tx.Clauses(clause.Insert{Modifier: "OR REPLACE"}).Create(value).Error
}

func countEpisodes(tx *gorm.DB, showURL string) (int64, error) {
	var n int64
	if err := tx.Model(&models.Episode{}).Where("show_url = ?", showURL).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count episodes of %s: %w", showURL, err)
	}
	return n, nil
}

// recountEpisodes writes the number of stored episodes onto the show row.
func recountEpisodes(tx *gorm.DB, showURL string) error {
	if showURL == "" {
		return nil
	}
	n, err := countEpisodes(tx, showURL)
	if err != nil {
		return err
	}
	if err := tx.Model(&models.Show{}).Where("url = ?", showURL).Update("episode_count", n).Error; err != nil {
		return fmt.Errorf("failed to update episode count of %s: %w", showURL, err)
	}
	return nil
}

// UpsertShow stores a show. The episode count is taken from the stored episodes.
func (c *Client) UpsertShow(ctx context.Context, show *models.Show) (*models.Show, error) {
	rec := *show
	rec.URL = trimURL(rec.URL)
	now := c.now()

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := lookup(tx, &models.Show{}, rec.URL, "id", "lastmod", "is_new")
		if err != nil {
			return err
		}
		rec.ID = prev.id()
		rec.Lastmod = knownLastmod(prev, rec.Lastmod)
		rec.IsNew = isNew(prev, rec.Lastmod)
		rec.LastScraped = &now

		n, err := countEpisodes(tx, rec.URL)
		if err != nil {
			return err
		}
		rec.EpisodeCount = int(n)

		return replace(tx, &rec)
	})
	if err != nil {
		log.Error("failed to save show", "url", show.URL, "error", err)
		return show, err
	}

	log.Debug("saved show", "url", rec.URL, "is_new", rec.IsNew, "episodes", rec.EpisodeCount)
	return &rec, nil
}

// UpsertEpisode stores an episode and recomputes the episode count of its show,
// and of the previous show when the link changed.
func (c *Client) UpsertEpisode(ctx context.Context, episode *models.Episode) (*models.Episode, error) {
	rec := *episode
	rec.URL = trimURL(rec.URL)
	rec.ShowURL = trimURL(rec.ShowURL)
	now := c.now()

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := lookup(tx, &models.Episode{}, rec.URL, "id", "lastmod", "is_new", "show_url")
		if err != nil {
			return err
		}
		rec.ID = prev.id()
		rec.Lastmod = knownLastmod(prev, rec.Lastmod)
		rec.IsNew = isNew(prev, rec.Lastmod)
		rec.LastScraped = &now

		if err := replace(tx, &rec); err != nil {
			return err
		}

		if err := recountEpisodes(tx, rec.ShowURL); err != nil {
			return err
		}
		if prev != nil && prev.ShowURL != rec.ShowURL {
			return recountEpisodes(tx, prev.ShowURL)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to save episode", "url", episode.URL, "error", err)
		return episode, err
	}

	log.Debug("saved episode", "url", rec.URL, "show", rec.ShowURL, "is_new", rec.IsNew)
	return &rec, nil
}

// UpsertMovie stores a movie.
func (c *Client) UpsertMovie(ctx context.Context, movie *models.Movie) (*models.Movie, error) {
	rec := *movie
	rec.URL = trimURL(rec.URL)
	now := c.now()

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := lookup(tx, &models.Movie{}, rec.URL, "id", "lastmod", "is_new")
		if err != nil {
			return err
		}
		rec.ID = prev.id()
		rec.Lastmod = knownLastmod(prev, rec.Lastmod)
		rec.IsNew = isNew(prev, rec.Lastmod)
		rec.LastScraped = &now

		return replace(tx, &rec)
	})
	if err != nil {
		log.Error("failed to save movie", "url", movie.URL, "error", err)
		return movie, err
	}

	log.Debug("saved movie", "url", rec.URL, "is_new", rec.IsNew)
	return &rec, nil
}

// Package tracker computes the new-content delta between crawls.
//
// A row is pending while its is_new flag is set and its URL has not been
// acknowledged. Acknowledged URLs are kept in a JSON file next to the
// database so a lost flag update does not re-announce content.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jon4hz/farsisweep/internal/atomicfile"
	"github.com/jon4hz/farsisweep/internal/database"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/samber/lo"
)

// Content is the pending content grouped by category.
type Content struct {
	Shows    []models.Show    `json:"shows"`
	Episodes []models.Episode `json:"episodes"`
	Movies   []models.Movie   `json:"movies"`
}

// Summary returns the number of items per category.
func (c *Content) Summary() map[models.Category]int {
	return map[models.Category]int{
		models.CategoryShows:    len(c.Shows),
		models.CategoryEpisodes: len(c.Episodes),
		models.CategoryMovies:   len(c.Movies),
	}
}

// Total returns the number of items over all categories.
func (c *Content) Total() int {
	return len(c.Shows) + len(c.Episodes) + len(c.Movies)
}

// Empty reports whether there is no pending content.
func (c *Content) Empty() bool {
	return c.Total() == 0
}

// Notification is the document written by NotifyNewContent.
type Notification struct {
	ID        string                  `json:"id"`
	Timestamp time.Time               `json:"timestamp"`
	Summary   map[models.Category]int `json:"summary"`
	Content   *Content                `json:"content"`
}

// Stats describes the acknowledged-URL cache.
type Stats struct {
	Processed map[models.Category]int `json:"processed"`
	CacheFile string                  `json:"cache_file"`
	Exists    bool                    `json:"exists"`
	Size      int64                   `json:"size"`
}

// Tracker filters new rows against the acknowledged URLs.
type Tracker struct {
	db   database.NewContentDB
	path string
	log  *log.Logger
	now  func() time.Time

	mu        sync.RWMutex
	processed map[models.Category]map[string]struct{}
}

// New creates a tracker and loads the acknowledged URLs from path.
// A missing file yields empty sets. A corrupt file is moved aside and ignored.
func New(db database.NewContentDB, path string) *Tracker {
	t := &Tracker{
		db:        db,
		path:      path,
		log:       log.Default().WithPrefix("tracker"),
		now:       time.Now,
		processed: emptySets(),
	}
	t.load()
	return t
}

func emptySets() map[models.Category]map[string]struct{} {
	sets := make(map[models.Category]map[string]struct{}, len(models.Categories))
	for _, c := range models.Categories {
		sets[c] = make(map[string]struct{})
	}
	return sets
}

func (t *Tracker) load() {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		t.log.Debug("no processed urls file, starting empty", "path", t.path)
		return
	}
	if err != nil {
		t.log.Error("failed to read processed urls", "path", t.path, "error", err)
		return
	}

	var stored map[string][]string
	if err := json.Unmarshal(data, &stored); err != nil {
		backup := fmt.Sprintf("%s.bak.%s", t.path, t.now().Format("20060102150405"))
		t.log.Warn("processed urls file is corrupt, backing it up", "path", t.path, "backup", backup, "error", err)
		if err := os.Rename(t.path, backup); err != nil {
			t.log.Error("failed to back up processed urls", "error", err)
		}
		return
	}

	for name, urls := range stored {
		category, ok := models.ParseCategory(name)
		if !ok {
			t.log.Warn("ignoring unknown category in processed urls", "category", name)
			continue
		}
		for _, u := range urls {
			t.processed[category][u] = struct{}{}
		}
	}
	t.log.Debug("loaded processed urls", "path", t.path, "count", t.count())
}

func (t *Tracker) count() int {
	n := 0
	for _, set := range t.processed {
		n += len(set)
	}
	return n
}

func (t *Tracker) save() error {
	stored := make(map[models.Category][]string, len(t.processed))
	for category, set := range t.processed {
		urls := lo.Keys(set)
		slices.Sort(urls)
		stored[category] = urls
	}
	return atomicfile.WriteJSON(t.path, stored)
}

func (t *Tracker) isProcessed(category models.Category, url string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.processed[category][url]
	return ok
}

// GetNewContent returns the rows flagged as new whose URL has not been acknowledged.
func (t *Tracker) GetNewContent(ctx context.Context) (*Content, error) {
	shows, err := t.db.GetNewShows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get new shows: %w", err)
	}
	episodes, err := t.db.GetNewEpisodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get new episodes: %w", err)
	}
	movies, err := t.db.GetNewMovies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get new movies: %w", err)
	}

	content := &Content{
		Shows: lo.Filter(shows, func(s models.Show, _ int) bool {
			return !t.isProcessed(models.CategoryShows, s.URL)
		}),
		Episodes: lo.Filter(episodes, func(e models.Episode, _ int) bool {
			return !t.isProcessed(models.CategoryEpisodes, e.URL)
		}),
		Movies: lo.Filter(movies, func(m models.Movie, _ int) bool {
			return !t.isProcessed(models.CategoryMovies, m.URL)
		}),
	}
	t.log.Debug("new content", "shows", len(content.Shows), "episodes", len(content.Episodes), "movies", len(content.Movies))
	return content, nil
}

// MarkAsProcessed clears the is_new flag of the given content and acknowledges
// its URLs. A failing category is reported and does not stop the others.
// The acknowledged URLs are persisted once at the end.
func (t *Tracker) MarkAsProcessed(ctx context.Context, content *Content) error {
	if content == nil {
		return nil
	}

	type batch struct {
		category models.Category
		ids      []uint
		urls     []string
	}
	batches := []batch{
		{
			category: models.CategoryShows,
			ids:      lo.Map(content.Shows, func(s models.Show, _ int) uint { return s.ID }),
			urls:     lo.Map(content.Shows, func(s models.Show, _ int) string { return s.URL }),
		},
		{
			category: models.CategoryEpisodes,
			ids:      lo.Map(content.Episodes, func(e models.Episode, _ int) uint { return e.ID }),
			urls:     lo.Map(content.Episodes, func(e models.Episode, _ int) string { return e.URL }),
		},
		{
			category: models.CategoryMovies,
			ids:      lo.Map(content.Movies, func(m models.Movie, _ int) uint { return m.ID }),
			urls:     lo.Map(content.Movies, func(m models.Movie, _ int) string { return m.URL }),
		},
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for _, b := range batches {
		if len(b.ids) == 0 {
			continue
		}
		n, err := t.db.MarkProcessed(ctx, b.category, b.ids)
		if err != nil {
			t.log.Error("failed to mark content as processed", "category", b.category, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", b.category, err))
			continue
		}
		for _, u := range b.urls {
			t.processed[b.category][u] = struct{}{}
		}
		t.log.Info("marked content as processed", "category", b.category, "count", n)
	}

	if err := t.save(); err != nil {
		t.log.Error("failed to save processed urls", "path", t.path, "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NotifyNewContent writes a timestamped notification file into dir and
// returns its path. Nothing is written for empty content.
func (t *Tracker) NotifyNewContent(content *Content, dir string) (string, error) {
	if content == nil || content.Empty() {
		t.log.Info("no new content to notify")
		return "", nil
	}

	now := t.now()
	n := Notification{
		ID:        uuid.NewString(),
		Timestamp: now,
		Summary:   content.Summary(),
		Content:   content,
	}
	path := filepath.Join(dir, fmt.Sprintf("new_content_%s.json", now.Format("20060102_150405")))
	if err := atomicfile.WriteJSON(path, n); err != nil {
		t.log.Error("failed to write notification", "path", path, "error", err)
		return "", err
	}

	t.log.Info("wrote new content notification", "path", path,
		"shows", len(content.Shows), "episodes", len(content.Episodes), "movies", len(content.Movies))
	return path, nil
}

// Stats reports the acknowledged URL counts and the cache file state.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{
		Processed: make(map[models.Category]int, len(t.processed)),
		CacheFile: t.path,
	}
	for category, set := range t.processed {
		stats.Processed[category] = len(set)
	}
	if fi, err := os.Stat(t.path); err == nil {
		stats.Exists = true
		stats.Size = fi.Size()
	}
	return stats
}

// Reset forgets every acknowledged URL and removes the cache file.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed = emptySets()
	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove processed urls file: %w", err)
	}
	t.log.Info("reset processed urls", "path", t.path)
	return nil
}

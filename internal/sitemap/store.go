package sitemap

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/atomicfile"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/samber/lo"
)

// Entry is a page URL with the lastmod advertised by the sitemap.
type Entry struct {
	URL     string  `json:"url"`
	Lastmod *string `json:"lastmod"`
}

// LastmodString returns the lastmod or an empty string.
func (e Entry) LastmodString() string {
	return lo.FromPtr(e.Lastmod)
}

// URLs is the categorized URL list persisted between runs.
type URLs struct {
	Movies   []Entry `json:"movies"`
	Shows    []Entry `json:"shows"`
	Episodes []Entry `json:"episodes"`
}

// Get returns the entries of a category.
func (u *URLs) Get(c models.Category) []Entry {
	switch c {
	case models.CategoryMovies:
		return u.Movies
	case models.CategoryShows:
		return u.Shows
	case models.CategoryEpisodes:
		return u.Episodes
	default:
		return nil
	}
}

// Add appends an entry to a category.
func (u *URLs) Add(c models.Category, e Entry) {
	switch c {
	case models.CategoryMovies:
		u.Movies = append(u.Movies, e)
	case models.CategoryShows:
		u.Shows = append(u.Shows, e)
	case models.CategoryEpisodes:
		u.Episodes = append(u.Episodes, e)
	}
}

// Total returns the number of entries over all categories.
func (u *URLs) Total() int {
	return len(u.Movies) + len(u.Shows) + len(u.Episodes)
}

// Dedupe collapses entries with the same URL in every category.
func (u *URLs) Dedupe() {
	u.Movies = Dedupe(u.Movies)
	u.Shows = Dedupe(u.Shows)
	u.Episodes = Dedupe(u.Episodes)
}

// Dedupe collapses entries with the same URL, keeping the later lastmod.
// Lastmods are compared as strings, which orders ISO-8601 timestamps correctly.
// The position of the first occurrence is kept.
func Dedupe(entries []Entry) []Entry {
	index := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		i, seen := index[e.URL]
		if !seen {
			index[e.URL] = len(out)
			out = append(out, e)
			continue
		}
		if e.Lastmod != nil && (out[i].Lastmod == nil || *e.Lastmod > *out[i].Lastmod) {
			out[i].Lastmod = e.Lastmod
		}
	}
	return out
}

// Save writes the categorized URL list to path.
func Save(path string, urls *URLs) error {
	if err := atomicfile.WriteJSON(path, urls); err != nil {
		return fmt.Errorf("failed to save sitemap urls: %w", err)
	}
	return nil
}

// Load reads a categorized URL list. The legacy key "series" is merged into shows,
// and entries that do not belong to the category they are listed under are dropped.
func Load(path string) (*URLs, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read sitemap urls: %w", err)
	}

	var raw map[string][]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap urls: %w", err)
	}

	keys := lo.Keys(raw)
	slices.Sort(keys)

	urls := &URLs{}
	for _, key := range keys {
		entries := raw[key]
		cat, ok := models.ParseCategory(key)
		if !ok {
			log.Debug("ignoring unknown sitemap category", "category", key)
			continue
		}
		for _, e := range entries {
			if got, ok := ClassifyURL(e.URL); !ok || got != cat {
				continue
			}
			urls.Add(cat, e)
		}
	}
	urls.Dedupe()

	for _, cat := range models.Categories {
		log.Debug("loaded sitemap urls", "category", cat, "count", len(urls.Get(cat)))
	}
	return urls, nil
}

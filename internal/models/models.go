package models

import (
	"time"
)

// Category is a content category crawled from the site.
type Category string

const (
	CategoryShows    Category = "shows"
	CategoryEpisodes Category = "episodes"
	CategoryMovies   Category = "movies"
)

// Categories lists all content categories in crawl order.
var Categories = []Category{CategoryShows, CategoryEpisodes, CategoryMovies}

// ParseCategory maps a category name to a Category.
// The legacy name "series" is accepted as an alias for shows.
func ParseCategory(s string) (Category, bool) {
	switch s {
	case "shows", "series":
		return CategoryShows, true
	case "episodes":
		return CategoryEpisodes, true
	case "movies":
		return CategoryMovies, true
	default:
		return "", false
	}
}

// QualityUnknown is the quality label used when no resolution marker is known.
const QualityUnknown = "unknown"

// VideoFile is a playable file advertised on an episode or movie page.
// It is stored as part of a JSON list on its parent row.
type VideoFile struct {
	Quality   string `json:"quality"`
	URL       string `json:"url"`
	MirrorURL string `json:"mirror_url,omitempty"`
	Size      string `json:"size,omitempty"`
}

// SeasonEpisode is an episode entry inside a show's season structure.
type SeasonEpisode struct {
	EpisodeNumber int         `json:"episode_number"`
	Title         string      `json:"title"`
	Date          string      `json:"date"`
	URL           string      `json:"url"`
	Thumbnail     string      `json:"thumbnail"`
	Lastmod       string      `json:"lastmod"`
	VideoFiles    []VideoFile `json:"video_files"`
}

// Season groups the episodes of one season.
type Season struct {
	SeasonNumber int             `json:"season_number"`
	Title        string          `json:"title"`
	EpisodeCount int             `json:"episode_count"`
	Episodes     []SeasonEpisode `json:"episodes"`
}

// Show is a TV series page.
type Show struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	URL           string     `gorm:"uniqueIndex:idx_shows_url;not null" json:"url"`
	SitemapURL    string     `json:"sitemap_url,omitempty"`
	Lastmod       string     `json:"lastmod,omitempty"`
	TitleEn       string     `json:"title_en"`
	TitleFa       string     `json:"title_fa,omitempty"`
	Poster        string     `json:"poster,omitempty"`
	Description   string     `json:"description,omitempty"`
	FirstAirDate  string     `json:"first_air_date,omitempty"`
	Rating        *float64   `json:"rating,omitempty"`
	RatingCount   *int       `json:"rating_count,omitempty"`
	SeasonCount   int        `json:"season_count"`
	EpisodeCount  int        `json:"episode_count"`
	Genres        []string   `gorm:"serializer:json" json:"genres"`
	Directors     []string   `gorm:"serializer:json" json:"directors"`
	Cast          []string   `gorm:"serializer:json" json:"cast"`
	SocialShares  *int       `json:"social_shares,omitempty"`
	CommentsCount *int       `json:"comments_count,omitempty"`
	Seasons       []Season   `gorm:"serializer:json" json:"seasons"`
	IsNew         bool       `gorm:"index" json:"is_new"`
	LastScraped   *time.Time `json:"last_scraped,omitempty"`
	CachedAt      *time.Time `json:"cached_at,omitempty"`
	Source        string     `json:"source,omitempty"`
}

// Episode is a single episode page. ShowURL links it to its show by URL
// and may be a best-effort guess.
type Episode struct {
	ID            uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	URL           string      `gorm:"uniqueIndex:idx_episodes_url;not null" json:"url"`
	SitemapURL    string      `json:"sitemap_url,omitempty"`
	Lastmod       string      `json:"lastmod,omitempty"`
	ShowURL       string      `gorm:"index:idx_episodes_show_season_ep,priority:1" json:"show_url,omitempty"`
	SeasonNumber  int         `gorm:"index:idx_episodes_show_season_ep,priority:2" json:"season_number"`
	EpisodeNumber int         `gorm:"index:idx_episodes_show_season_ep,priority:3" json:"episode_number"`
	Title         string      `json:"title"`
	AirDate       string      `json:"air_date,omitempty"`
	Thumbnail     string      `json:"thumbnail,omitempty"`
	VideoFiles    []VideoFile `gorm:"serializer:json" json:"video_files"`
	IsNew         bool        `gorm:"index" json:"is_new"`
	LastScraped   *time.Time  `json:"last_scraped,omitempty"`
	CachedAt      *time.Time  `json:"cached_at,omitempty"`
	Source        string      `json:"source,omitempty"`
}

// Movie is a single movie page.
type Movie struct {
	ID            uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	URL           string      `gorm:"uniqueIndex:idx_movies_url;not null" json:"url"`
	SitemapURL    string      `json:"sitemap_url,omitempty"`
	Lastmod       string      `json:"lastmod,omitempty"`
	TitleEn       string      `json:"title_en"`
	TitleFa       string      `json:"title_fa,omitempty"`
	Poster        string      `json:"poster,omitempty"`
	Description   string      `json:"description,omitempty"`
	ReleaseDate   string      `json:"release_date,omitempty"`
	Year          *int        `json:"year,omitempty"`
	Rating        *float64    `json:"rating,omitempty"`
	RatingCount   *int        `json:"rating_count,omitempty"`
	Genres        []string    `gorm:"serializer:json" json:"genres"`
	Directors     []string    `gorm:"serializer:json" json:"directors"`
	Cast          []string    `gorm:"serializer:json" json:"cast"`
	SocialShares  *int        `json:"social_shares,omitempty"`
	CommentsCount *int        `json:"comments_count,omitempty"`
	VideoFiles    []VideoFile `gorm:"serializer:json" json:"video_files"`
	IsNew         bool        `gorm:"index" json:"is_new"`
	LastScraped   *time.Time  `json:"last_scraped,omitempty"`
	CachedAt      *time.Time  `json:"cached_at,omitempty"`
	Source        string      `json:"source,omitempty"`
}

// TableName overrides the default gorm table names.
func (Show) TableName() string { return "shows" }

// TableName overrides the default gorm table names.
func (Episode) TableName() string { return "episodes" }

// TableName overrides the default gorm table names.
func (Movie) TableName() string { return "movies" }

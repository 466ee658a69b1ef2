package sitemap

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/jon4hz/farsisweep/internal/models"
)

// Sitemap file types, in processing priority order.
const (
	TypeMovies   = "movies"
	TypeShows    = "shows"
	TypeEpisodes = "episodes"
	TypeGeneral  = "general"
	TypeOther    = "other"
)

var typePriority = map[string]int{
	TypeMovies:   1,
	TypeShows:    2,
	TypeEpisodes: 3,
	TypeGeneral:  4,
	TypeOther:    5,
}

var sitemapTypeRe = regexp.MustCompile(`([a-zA-Z_-]+)-sitemap\d*\.xml`)

var sitemapTypeTokens = map[string]string{
	"movies":   TypeMovies,
	"tvshows":  TypeShows,
	"episodes": TypeEpisodes,
	"post":     TypeGeneral,
}

// ClassifySitemap returns the type of a sitemap file from its filename stem,
// e.g. tvshows-sitemap2.xml is a shows sitemap.
func ClassifySitemap(loc string) string {
	m := sitemapTypeRe.FindStringSubmatch(loc)
	if m == nil {
		return TypeOther
	}
	if t, ok := sitemapTypeTokens[strings.ToLower(m[1])]; ok {
		return t
	}
	return TypeOther
}

// taxonomySegments are listing pages that are never content.
var taxonomySegments = []string{
	"/genres/",
	"/dtcast/",
	"/dtdirector/",
	"/dtcreator/",
	"/dtstudio/",
	"/dtnetworks/",
	"/dtyear/",
}

type categoryPatterns struct {
	category models.Category
	patterns []*regexp.Regexp
	fallback string
}

var contentPatterns = []categoryPatterns{
	{
		category: models.CategoryMovies,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`/movies/[^/]+/?$`),
			regexp.MustCompile(`/movies-\d{4}/[^/]+/?$`),
			regexp.MustCompile(`/old-iranian-movies/[^/]+/?$`),
		},
		fallback: "/movies/",
	},
	{
		category: models.CategoryShows,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`/tvshows/[^/]+/?$`),
			regexp.MustCompile(`/series-22/[^/]+/?$`),
			regexp.MustCompile(`/iranian-series/[^/]+/?$`),
		},
		fallback: "/tvshows/",
	},
	{
		category: models.CategoryEpisodes,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`/episodes/[^/]+/?$`),
		},
		fallback: "/episodes/",
	},
}

// IsTaxonomy reports whether u is a genre/cast/director/... listing page.
func IsTaxonomy(u string) bool {
	lower := strings.ToLower(u)
	for _, seg := range taxonomySegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	return false
}

// ClassifyURL returns the content category of a page URL.
// Taxonomy pages are always excluded. Patterns are tried first, then a plain
// path segment match.
func ClassifyURL(u string) (models.Category, bool) {
	if u == "" || IsTaxonomy(u) {
		return "", false
	}
	for _, cp := range contentPatterns {
		for _, re := range cp.patterns {
			if re.MatchString(u) {
				return cp.category, true
			}
		}
	}
	lower := strings.ToLower(u)
	for _, cp := range contentPatterns {
		if strings.Contains(lower, cp.fallback) {
			return cp.category, true
		}
	}
	return "", false
}

// NormalizeURL makes loc absolute against base and strips the trailing slash.
func NormalizeURL(loc string, base *url.URL) string {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return ""
	}
	if base != nil {
		if ref, err := url.Parse(loc); err == nil {
			loc = base.ResolveReference(ref).String()
		}
	}
	return strings.TrimRight(loc, "/")
}

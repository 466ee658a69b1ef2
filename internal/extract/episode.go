package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jon4hz/farsisweep/internal/models"
)

// Episode extracts an episode page.
func (e *Extractor) Episode(ctx context.Context, p Page) (*models.Episode, error) {
	d, err := parse(p)
	if err != nil {
		return nil, err
	}

	ep := &models.Episode{
		URL:        d.pageURL,
		SitemapURL: d.pageURL,
		Lastmod:    p.Lastmod,
		Source:     p.Source,
		CachedAt:   cachedAt(p),
	}

	ep.Title = episodeTitle.First(d.root)
	if ep.Title == "" {
		ep.Title = TitleFromURL(d.pageURL)
		e.log.Warn("no episode title found, using url", "url", d.pageURL)
	}

	ep.SeasonNumber, ep.EpisodeNumber = episodeNumbers(d.root, d.pageURL, ep.Title)
	ep.ShowURL = e.episodeShowURL(d)
	ep.Thumbnail = d.abs(episodeThumbnail.First(d.root))
	ep.AirDate = episodeAirDate.First(d.root)
	ep.VideoFiles = e.videoFiles(ctx, d)

	e.log.Debug("extracted episode",
		"url", ep.URL,
		"season", ep.SeasonNumber,
		"episode", ep.EpisodeNumber,
		"show", ep.ShowURL,
		"video_files", len(ep.VideoFiles),
	)
	return ep, nil
}

// episodeNumbers reads the "N - M" marker. Without it the season comes from the
// breadcrumbs and the episode from the URL, then the title. Missing values default to 1.
func episodeNumbers(root *goquery.Selection, pageURL, title string) (season, episode int) {
	if s, ep, ok := parseNumerando(episodeNumerando.First(root)); ok {
		return s, ep
	}

	season, episode = 1, 1
	root.Find(episodeBreadcrumbs).EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if n, ok := matchInt(seasonTextRe, li.Text()); ok {
			season = n
			return false
		}
		return true
	})

	if n, ok := matchInt(episodeURLRe, slug(pageURL)); ok {
		episode = n
	} else if n, ok := matchInt(episodeTitleRe, title); ok {
		episode = n
	}
	return season, episode
}

func isShowURL(u string) bool {
	return strings.Contains(u, "/tvshows/") || strings.Contains(u, "/series/")
}

// episodeShowURL finds the parent show link on the page. Without one it guesses
// <base>/tvshows/<slug prefix> from the episode URL, which is wrong for show
// slugs that contain hyphens.
func (e *Extractor) episodeShowURL(d *document) string {
	if href := episodeShowLink.FirstValid(d.root, isShowURL); href != "" {
		return trimURL(d.abs(href))
	}

	e.log.Warn("no show link found, guessing from url", "url", d.pageURL)
	return GuessShowURL(d.pageURL)
}

// GuessShowURL derives a show URL from an episode URL by taking the slug
// prefix before the first hyphen. It returns an empty string for URLs
// outside /episodes/.
func GuessShowURL(episodeURL string) string {
	base, rest, found := strings.Cut(trimURL(episodeURL), "/episodes/")
	if !found || rest == "" {
		return ""
	}
	showSlug, _, _ := strings.Cut(rest, "-")
	showSlug, _, _ = strings.Cut(showSlug, "/")
	return base + "/tvshows/" + showSlug
}

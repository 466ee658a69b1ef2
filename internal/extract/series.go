package extract

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/jon4hz/farsisweep/internal/models"
)

// Show extracts a show page including its season structure.
func (e *Extractor) Show(_ context.Context, p Page) (*models.Show, error) {
	d, err := parse(p)
	if err != nil {
		return nil, err
	}

	show := &models.Show{
		URL:           d.pageURL,
		SitemapURL:    d.pageURL,
		Lastmod:       p.Lastmod,
		Source:        p.Source,
		CachedAt:      cachedAt(p),
		TitleFa:       showTitleFa.First(d.root),
		Poster:        d.abs(showPoster.First(d.root)),
		Description:   showDescription.First(d.root),
		FirstAirDate:  showFirstAirDate.First(d.root),
		Rating:        floatPtr(showRating, d.root),
		RatingCount:   countPtr(showRatingCount, d.root),
		Genres:        showGenres.All(d.root),
		Directors:     showDirectors.All(d.root),
		Cast:          showCast.All(d.root),
		SocialShares:  countPtr(socialShares, d.root),
		CommentsCount: commentsCount(d.root),
	}

	show.TitleEn = showTitle.First(d.root)
	if show.TitleEn == "" {
		show.TitleEn = TitleFromURL(d.pageURL)
		e.log.Warn("no show title found, using url", "url", d.pageURL)
	}

	show.Seasons = d.seasons()
	if len(show.Seasons) == 0 {
		if s, ok := d.defaultSeason(); ok {
			e.log.Debug("no season containers, using loose episode links", "url", d.pageURL, "episodes", s.EpisodeCount)
			show.Seasons = []models.Season{s}
		}
	}
	if show.Seasons == nil {
		show.Seasons = []models.Season{}
	}

	show.SeasonCount = len(show.Seasons)
	for _, s := range show.Seasons {
		show.EpisodeCount += s.EpisodeCount
	}

	e.log.Debug("extracted show",
		"url", show.URL,
		"title", show.TitleEn,
		"seasons", show.SeasonCount,
		"episodes", show.EpisodeCount,
	)
	return show, nil
}

func (d *document) seasons() []models.Season {
	var seasons []models.Season
	showSeasons.Selection(d.root).Each(func(i int, container *goquery.Selection) {
		title := seasonTitle.First(container)
		number := i + 1
		if n := digitsRe.FindString(title); n != "" {
			if v, err := strconv.Atoi(n); err == nil {
				number = v
			}
		}
		if title == "" {
			title = fmt.Sprintf("Season %d", number)
		}

		var episodes []models.SeasonEpisode
		seasonEpisodes.Selection(container).Each(func(j int, li *goquery.Selection) {
			if ep, ok := d.seasonEpisode(j, li); ok {
				episodes = append(episodes, ep)
			}
		})
		sortEpisodes(episodes)

		seasons = append(seasons, models.Season{
			SeasonNumber: number,
			Title:        title,
			EpisodeCount: len(episodes),
			Episodes:     nonNil(episodes),
		})
	})

	sort.SliceStable(seasons, func(i, j int) bool {
		return seasons[i].SeasonNumber < seasons[j].SeasonNumber
	})
	return seasons
}

func (d *document) seasonEpisode(pos int, li *goquery.Selection) (models.SeasonEpisode, bool) {
	href := seasonEpisodeLink.First(li)
	if href == "" {
		return models.SeasonEpisode{}, false
	}
	epURL := trimURL(d.abs(href))

	number := pos + 1
	if _, n, ok := parseNumerando(seasonEpisodeNumbers.First(li)); ok {
		number = n
	} else if n, ok := matchInt(shortEpisodeRe, slug(epURL)); ok {
		number = n
	}

	return models.SeasonEpisode{
		EpisodeNumber: number,
		Title:         seasonEpisodeTitle.First(li),
		Date:          seasonEpisodeDate.First(li),
		URL:           epURL,
		Thumbnail:     d.abs(seasonEpisodeThumb.First(li)),
	}, true
}

// defaultSeason collects episode links found outside any season container into season 1.
func (d *document) defaultSeason() (models.Season, bool) {
	var episodes []models.SeasonEpisode
	seen := make(map[string]struct{})
	d.root.Find(looseEpisodeLinks).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		epURL := trimURL(d.abs(href))
		if epURL == "" {
			return
		}
		if _, ok := seen[epURL]; ok {
			return
		}
		seen[epURL] = struct{}{}

		number := len(episodes) + 1
		if n, ok := matchInt(shortEpisodeRe, slug(epURL)); ok {
			number = n
		}
		episodes = append(episodes, models.SeasonEpisode{
			EpisodeNumber: number,
			Title:         cleanText(a.Text()),
			URL:           epURL,
		})
	})
	if len(episodes) == 0 {
		return models.Season{}, false
	}

	sortEpisodes(episodes)
	return models.Season{
		SeasonNumber: 1,
		Title:        "Season 1",
		EpisodeCount: len(episodes),
		Episodes:     episodes,
	}, true
}

func sortEpisodes(episodes []models.SeasonEpisode) {
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].EpisodeNumber < episodes[j].EpisodeNumber
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

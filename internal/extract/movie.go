package extract

import (
	"context"

	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/samber/lo"
)

// Movie extracts a movie page.
func (e *Extractor) Movie(ctx context.Context, p Page) (*models.Movie, error) {
	d, err := parse(p)
	if err != nil {
		return nil, err
	}

	movie := &models.Movie{
		URL:           d.pageURL,
		SitemapURL:    d.pageURL,
		Lastmod:       p.Lastmod,
		Source:        p.Source,
		CachedAt:      cachedAt(p),
		TitleFa:       movieTitleFa.First(d.root),
		Poster:        d.abs(moviePoster.First(d.root)),
		ReleaseDate:   movieReleaseDate.First(d.root),
		Rating:        floatPtr(movieRating, d.root),
		RatingCount:   countPtr(movieRatingCount, d.root),
		Genres:        movieGenres.All(d.root),
		Directors:     movieDirectors.All(d.root),
		Cast:          movieCast.All(d.root),
		Description:   joinAll(movieDescription, d.root),
		SocialShares:  countPtr(socialShares, d.root),
		CommentsCount: commentsCount(d.root),
	}

	movie.TitleEn = movieTitle.First(d.root)
	if movie.TitleEn == "" {
		movie.TitleEn = TitleFromURL(d.pageURL)
		e.log.Warn("no movie title found, using url", "url", d.pageURL)
	}

	if y, ok := matchInt(yearRe, movie.ReleaseDate); ok {
		movie.Year = &y
	} else if y, ok := matchInt(movieURLYearRe, d.pageURL); ok {
		movie.Year = &y
	}

	movie.VideoFiles = e.videoFiles(ctx, d)

	e.log.Debug("extracted movie",
		"url", movie.URL,
		"title", movie.TitleEn,
		"year", lo.FromPtr(movie.Year),
		"video_files", len(movie.VideoFiles),
	)
	return movie, nil
}

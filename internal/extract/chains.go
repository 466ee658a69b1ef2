package extract

var imgAttrs = []string{"src", "data-src", "data-lazy-src"}

// Episode page.
var (
	episodeTitle = Chain{
		Sel(".player-title"),
		Sel("h1"),
		Sel(".episodiotitle h3"),
		Sel("meta[property='og:title']", "content"),
	}
	episodeNumerando   = Chain{Sel(".numerando")}
	episodeBreadcrumbs = ".breadcrumb li"
	episodeShowLink    = Chain{
		Sel(".breadcrumb li:nth-last-child(2) a", "href"),
		Sel("div.pag_episodes a[href*='/tvshows/']", "href"),
		Sel("a[href*='/tvshows/']", "href"),
		Sel("a[href*='/series/']", "href"),
	}
	episodeThumbnail = Chain{
		Sel("meta[property='og:image']", "content"),
		Sel(".poster img", imgAttrs...),
		Sel(".thumb img", imgAttrs...),
	}
	episodeAirDate = Chain{
		Sel(".extra span.date + span.date"),
		Sel(".episodiotitle .date"),
		Sel(".date[itemprop='dateCreated']"),
		Sel("span.date"),
	}
)

// Show page.
var (
	showTitle = Chain{
		Sel("h1"),
		Sel(".entry-title"),
		Sel("meta[property='og:title']", "content"),
		Sel(".sheader .shead h1"),
		Sel(".data h1"),
	}
	showTitleFa = Chain{
		Sel(".data h2"),
		Sel(".data h3"),
		Sel(".custom_fields span.valor.original"),
	}
	showPoster = Chain{
		Sel(".poster img", imgAttrs...),
		Sel(".thumb img", imgAttrs...),
		Sel("meta[property='og:image']", "content"),
		Sel(".imagen img", imgAttrs...),
	}
	showDescription = Chain{
		Sel(".wp-content"),
		Sel("meta[name='description']", "content"),
		Sel("meta[property='og:description']", "content"),
		Sel(".description"),
	}
	showFirstAirDate = Chain{
		Sel("span.date"),
		Sel(".extra span.date"),
		Sel("meta[property='og:release_date']", "content"),
		Sel(".extra .date"),
	}
	showRating      = Chain{Sel(".imdb span"), Sel(".dt_rating_vgs")}
	showRatingCount = Chain{Sel(".imdb span.votes"), Sel(".rating-count")}
	showGenres      = Chain{Sel(".sgeneros a"), Sel("span[itemprop='genre']"), Sel(".genres a")}
	showDirectors   = Chain{
		Sel(".person[itemprop='director'] .name"),
		Sel(".director a"),
		Sel("span[itemprop='director']"),
	}
	showCast = Chain{
		Sel(".person[itemprop='actor'] .name"),
		Sel(".cast a"),
		Sel("span[itemprop='actor']"),
	}
	showSeasons          = Chain{Sel("div.se-c"), Sel(".seasons .se-c"), Sel(".temporadas > div")}
	seasonTitle          = Chain{Sel(".se-q .se-t")}
	seasonEpisodes       = Chain{Sel("ul.episodios > li"), Sel(".se-a ul > li")}
	seasonEpisodeLink    = Chain{Sel(".episodiotitle a", "href"), Sel("a", "href")}
	seasonEpisodeTitle   = Chain{Sel(".episodiotitle a"), Sel("a")}
	seasonEpisodeDate    = Chain{Sel(".episodiotitle .date")}
	seasonEpisodeThumb   = Chain{Sel(".thumb img", imgAttrs...), Sel(".imagen img", imgAttrs...)}
	looseEpisodeLinks    = "a[href*='/episodes/']"
	socialShares         = Chain{Sel("#social_count")}
	seasonEpisodeNumbers = Chain{Sel(".numerando")}
)

// Movie page.
var (
	movieTitle   = Chain{Sel(".data h1"), Sel("h1.player-title"), Sel("h1")}
	movieTitleFa = showTitleFa
	moviePoster  = Chain{
		Sel(".poster img", imgAttrs...),
		Sel("meta[property='og:image']", "content"),
	}
	movieReleaseDate = Chain{Sel(".extra span.date"), Sel(".date[itemprop='dateCreated']")}
	movieRating      = Chain{Sel(".dt_rating_vgs"), Sel("span[itemprop='ratingValue']")}
	movieRatingCount = Chain{Sel(".rating-count"), Sel("span[itemprop='ratingCount']")}
	movieGenres      = Chain{Sel(".sgeneros a")}
	movieDirectors   = Chain{Sel("#cast [itemprop='director'] a")}
	movieCast        = Chain{Sel("#cast [itemprop='actor'] a")}
	movieDescription = Chain{Sel(".wp-content p"), Sel(".description p")}
)

// Download sections shared by episode and movie pages.
var (
	downloadRows    = "#download table tr[id^='link-']"
	fileIDInput     = "input[name='fileid']"
	rowQuality      = Chain{Sel("strong.quality"), Sel("td:nth-child(2)")}
	rowSize         = Chain{Sel("td:nth-child(3)")}
	downloadForms   = "form[id^='dlform']"
	directVideoLink = "a[href$='.mp4']"
)

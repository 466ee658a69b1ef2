package extract

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	numerandoRe      = regexp.MustCompile(`^\s*(\d+)\s*-\s*(\d+)\s*$`)
	seasonTextRe     = regexp.MustCompile(`(?i)season\s*(\d+)`)
	episodeURLRe     = regexp.MustCompile(`(?i)ep(?:isode)?[_-]?(\d+)`)
	episodeTitleRe   = regexp.MustCompile(`(?i)episode\s*(\d+)`)
	shortEpisodeRe   = regexp.MustCompile(`(?i)ep(\d+)`)
	digitsRe         = regexp.MustCompile(`\d+`)
	ratingRe         = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	yearRe           = regexp.MustCompile(`(\d{4})`)
	movieURLYearRe   = regexp.MustCompile(`/movies-(\d{4})`)
	commentsCountRe  = regexp.MustCompile(`\((\d+)\)`)
	titleizeReplacer = strings.NewReplacer("-", " ", "_", " ")
)

// parseNumerando parses the compact "N - M" season/episode marker.
func parseNumerando(s string) (season, episode int, ok bool) {
	m := numerandoRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	season, err1 := strconv.Atoi(m[1])
	episode, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return season, episode, true
}

// matchInt returns the first capture group of re in s as an int.
func matchInt(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseFloat reads the first decimal number in s.
func parseFloat(s string) (float64, bool) {
	m := ratingRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseCount reads an integer that may contain thousands separators.
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	m := digitsRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isFloat(s string) bool {
	_, ok := parseFloat(s)
	return ok
}

func isCount(s string) bool {
	_, ok := parseCount(s)
	return ok
}

// slug returns the last path segment of a page URL.
func slug(pageURL string) string {
	p := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		p = u.Path
	}
	return path.Base(strings.TrimRight(p, "/"))
}

// TitleFromURL builds a readable title from the URL slug, e.g. "some-show" becomes "Some Show".
func TitleFromURL(pageURL string) string {
	s := slug(pageURL)
	if s == "" || s == "." || s == "/" {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(strings.Fields(titleizeReplacer.Replace(s)), " "))
}

// resolveURL makes href absolute against the page URL.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// trimURL removes a trailing slash so URLs compare equal to the sitemap form.
func trimURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/jon4hz/farsisweep/internal/resolver"
	"github.com/samber/lo"
)

// ErrParse is returned when a page cannot be turned into a record.
var ErrParse = errors.New("failed to parse page")

// VideoResolver turns file identifiers into playable video files.
type VideoResolver interface {
	ResolveAll(ctx context.Context, candidates []resolver.Candidate) []models.VideoFile
}

// Page is the input of an extractor.
type Page struct {
	URL      string
	HTML     string
	Lastmod  string
	Source   string
	CachedAt time.Time
}

// Extractor turns page HTML into records. It holds no per-page state.
type Extractor struct {
	resolver VideoResolver
	log      *log.Logger
}

// New creates an Extractor. A nil resolver disables file identifier resolution.
func New(r VideoResolver) *Extractor {
	return &Extractor{
		resolver: r,
		log:      log.Default().WithPrefix("extract"),
	}
}

type document struct {
	root    *goquery.Selection
	pageURL string
	base    *url.URL
}

func parse(p Page) (*document, error) {
	if strings.TrimSpace(p.HTML) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if doc.Find("body").Children().Length() == 0 && doc.Find("head").Children().Length() == 0 {
		return nil, fmt.Errorf("%w: no elements", ErrParse)
	}
	base, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %w", ErrParse, err)
	}
	return &document{root: doc.Selection, pageURL: trimURL(p.URL), base: base}, nil
}

func (d *document) abs(href string) string {
	return resolveURL(d.base, href)
}

func cachedAt(p Page) *time.Time {
	if p.CachedAt.IsZero() {
		return nil
	}
	return lo.ToPtr(p.CachedAt)
}

func floatPtr(chain Chain, root *goquery.Selection) *float64 {
	v := chain.FirstValid(root, isFloat)
	if f, ok := parseFloat(v); ok {
		return &f
	}
	return nil
}

func countPtr(chain Chain, root *goquery.Selection) *int {
	v := chain.FirstValid(root, isCount)
	if n, ok := parseCount(v); ok {
		return &n
	}
	return nil
}

func commentsCount(root *goquery.Selection) *int {
	text := root.Find(".comments-title").First().Text()
	if n, ok := matchInt(commentsCountRe, text); ok {
		return &n
	}
	return nil
}

// joinAll joins the text of every element matched by the first matching selector.
func joinAll(chain Chain, root *goquery.Selection) string {
	for _, s := range chain {
		var parts []string
		root.Find(s.CSS).Each(func(_ int, el *goquery.Selection) {
			if v := s.Value(el); v != "" {
				parts = append(parts, v)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return ""
}

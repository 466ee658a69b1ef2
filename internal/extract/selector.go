package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
)

// Selector is one candidate of a fallback chain. Attrs are read in order;
// a selector without Attrs yields the element text.
type Selector struct {
	CSS   string
	Attrs []string
}

// Sel is a shorthand for building a Selector.
func Sel(css string, attrs ...string) Selector {
	return Selector{CSS: css, Attrs: attrs}
}

// Value returns the selector's value for a single element.
func (s Selector) Value(el *goquery.Selection) string {
	if len(s.Attrs) == 0 {
		return cleanText(el.Text())
	}
	for _, attr := range s.Attrs {
		if v, ok := el.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Chain is an ordered list of selectors. The first selector producing a value wins.
type Chain []Selector

// First returns the first non-empty value of the chain.
func (c Chain) First(root *goquery.Selection) string {
	return c.FirstValid(root, func(string) bool { return true })
}

// FirstValid returns the first non-empty value accepted by valid.
func (c Chain) FirstValid(root *goquery.Selection, valid func(string) bool) string {
	for _, s := range c {
		if v := s.Value(root.Find(s.CSS).First()); v != "" && valid(v) {
			return v
		}
	}
	return ""
}

// All returns the values of every element matched by the first selector
// that yields any. Duplicates are dropped, order is kept.
func (c Chain) All(root *goquery.Selection) []string {
	for _, s := range c {
		var values []string
		root.Find(s.CSS).Each(func(_ int, el *goquery.Selection) {
			if v := s.Value(el); v != "" {
				values = append(values, v)
			}
		})
		if len(values) > 0 {
			return lo.Uniq(values)
		}
	}
	return []string{}
}

// Selection returns the elements of the first selector that matches anything.
func (c Chain) Selection(root *goquery.Selection) *goquery.Selection {
	for _, s := range c {
		if sel := root.Find(s.CSS); sel.Length() > 0 {
			return sel
		}
	}
	return root.Slice(0, 0)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

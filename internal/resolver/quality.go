package resolver

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jon4hz/farsisweep/internal/models"
)

var qualityRe = regexp.MustCompile(`2160|1440|1080|720|480|360|240`)

// InferQuality guesses the quality label from tokens in a video URL's path and query.
// A marker only counts when it is not part of a longer number.
// The highest marker found wins; without one the label is "unknown".
func InferQuality(videoURL string) string {
	target := videoURL
	if u, err := url.Parse(videoURL); err == nil {
		target = u.Path + "?" + u.RawQuery
	}

	best := 0
	for _, loc := range qualityRe.FindAllStringIndex(target, -1) {
		if loc[0] > 0 && isDigit(target[loc[0]-1]) {
			continue
		}
		if loc[1] < len(target) && isDigit(target[loc[1]]) {
			continue
		}
		if n, err := strconv.Atoi(target[loc[0]:loc[1]]); err == nil && n > best {
			best = n
		}
	}
	if best == 0 {
		return models.QualityUnknown
	}
	return strconv.Itoa(best)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

var digitsRe = regexp.MustCompile(`\d{3,4}`)

// NormalizeQuality reduces labels like "1080p" or "HD 720" to the bare number.
// Labels without a number are returned lowercased, empty labels become "unknown".
func NormalizeQuality(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return models.QualityUnknown
	}
	if m := digitsRe.FindString(label); m != "" {
		return m
	}
	return strings.ToLower(label)
}

package sitemap

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/jon4hz/farsisweep/internal/atomicfile"
	"github.com/jon4hz/farsisweep/internal/fetch"
)

type lastCheckState struct {
	LastCheckTime string `json:"last_check_time"`
}

// loadLastCheck returns the time of the last successful refresh.
// A missing file returns a zero time and no error.
func loadLastCheck(path string) (time.Time, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to read last check file: %w", err)
	}

	var state lastCheckState
	if err := json.Unmarshal(data, &state); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode last check file: %w", err)
	}
	if state.LastCheckTime == "" {
		return time.Time{}, nil
	}
	return fetch.ParseLastmod(state.LastCheckTime)
}

func saveLastCheck(path string, t time.Time) error {
	return atomicfile.WriteJSON(path, lastCheckState{LastCheckTime: t.UTC().Format(time.RFC3339)})
}

type rssFeed struct {
	Channel struct {
		LastBuildDate string `xml:"lastBuildDate"`
	} `xml:"channel"`
}

// parseFeedBuildDate extracts the channel's lastBuildDate from an RSS document.
func parseFeedBuildDate(data []byte) (time.Time, error) {
	var feed rssFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode feed: %w", err)
	}
	raw := strings.TrimSpace(feed.Channel.LastBuildDate)
	if raw == "" {
		return time.Time{}, errors.New("feed has no lastBuildDate")
	}
	return parseRFC822(raw)
}

func parseRFC822(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC1123Z, s); err == nil {
		return t, nil
	}
	t, err := mail.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized feed date %q: %w", s, err)
	}
	return t, nil
}

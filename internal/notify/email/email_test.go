package email

import (
	"testing"
	"time"

	"github.com/jon4hz/farsisweep/internal/config"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/jon4hz/farsisweep/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContent() *tracker.Content {
	return &tracker.Content{
		Shows: []models.Show{{URL: "https://example.com/tvshows/oscar/", TitleEn: "Oscar"}},
		Episodes: []models.Episode{
			{URL: "https://example.com/episodes/oscar-ep01/", Title: "Oscar", SeasonNumber: 1, EpisodeNumber: 2},
			{URL: "https://example.com/episodes/special/", Title: "Special"},
		},
		Movies: []models.Movie{{URL: "https://example.com/movies/a-b/", TitleEn: "A & B"}},
	}
}

func TestNewDigest(t *testing.T) {
	date := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	d := NewDigest(testContent(), date)

	assert.Equal(t, 4, d.Total)
	assert.Equal(t, "[Farsisweep] 4 new items", d.Subject())
	require.Len(t, d.Episodes, 2)
	assert.Equal(t, "Oscar (S01E02)", d.Episodes[0].Title)
	assert.Equal(t, "Special", d.Episodes[1].Title)
}

func TestRenderDigest(t *testing.T) {
	d := NewDigest(testContent(), time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))
	body, err := RenderDigest(d)
	require.NoError(t, err)

	assert.Contains(t, body, "4 new items")
	assert.Contains(t, body, "2024-05-01 10:30")
	assert.Contains(t, body, `<a href="https://example.com/tvshows/oscar/">Oscar</a>`)
	assert.Contains(t, body, "A &amp; B")
	assert.Contains(t, body, "<h3>Movies</h3>")
}

func TestRenderDigestSkipsEmptySections(t *testing.T) {
	d := NewDigest(&tracker.Content{Movies: []models.Movie{{URL: "https://example.com/movies/x/", TitleEn: "X"}}}, time.Now())
	body, err := RenderDigest(d)
	require.NoError(t, err)

	assert.NotContains(t, body, "<h3>Shows</h3>")
	assert.NotContains(t, body, "<h3>Episodes</h3>")
	assert.Contains(t, body, "<h3>Movies</h3>")
}

func TestSendDigest(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		n := New(nil)
		assert.False(t, n.Enabled())
		assert.NoError(t, n.SendDigest(testContent()))
	})

	t.Run("nothing new", func(t *testing.T) {
		n := New(&config.EmailConfig{Enabled: true, SMTPHost: "127.0.0.1", SMTPPort: 1})
		assert.NoError(t, n.SendDigest(&tracker.Content{}))
	})

	t.Run("unreachable server", func(t *testing.T) {
		n := New(&config.EmailConfig{
			Enabled:   true,
			SMTPHost:  "127.0.0.1",
			SMTPPort:  1,
			FromEmail: "crawler@example.com",
			To:        []string{"me@example.com"},
		})
		err := n.SendDigest(testContent())
		assert.ErrorContains(t, err, "failed to connect to SMTP server")
	})
}

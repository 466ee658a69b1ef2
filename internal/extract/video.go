package extract

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/jon4hz/farsisweep/internal/resolver"
	"github.com/samber/lo"
)

// candidates returns the file identifiers advertised on a page in document order.
// Download table rows win; standalone download forms are only used when the
// table has none.
func (d *document) candidates() []resolver.Candidate {
	var out []resolver.Candidate
	d.root.Find(downloadRows).Each(func(_ int, row *goquery.Selection) {
		input := row.Find(fileIDInput).First()
		id, ok := input.Attr("value")
		if !ok || id == "" {
			return
		}
		action, _ := input.Closest("form").Attr("action")
		out = append(out, resolver.Candidate{
			FileID:  id,
			Quality: rowQuality.First(row),
			Size:    rowSize.First(row),
			Action:  d.abs(action),
		})
	})
	if len(out) > 0 {
		return out
	}

	d.root.Find(downloadForms).Each(func(_ int, form *goquery.Selection) {
		id, ok := form.Find(fileIDInput).First().Attr("value")
		if !ok || id == "" {
			return
		}
		action, _ := form.Attr("action")
		out = append(out, resolver.Candidate{
			FileID:  id,
			Quality: models.QualityUnknown,
			Action:  d.abs(action),
		})
	})
	return out
}

// directLinks returns anchors pointing straight at mp4 files.
func (d *document) directLinks() []models.VideoFile {
	var out []models.VideoFile
	d.root.Find(directVideoLink).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href = d.abs(href); href == "" {
			return
		}
		out = append(out, models.VideoFile{
			Quality: resolver.InferQuality(href),
			URL:     href,
		})
	})
	return lo.UniqBy(out, func(vf models.VideoFile) string { return vf.URL })
}

// videoFiles discovers the playable files of a page. File identifiers are
// resolved first; direct mp4 links are only used when that yields nothing.
func (e *Extractor) videoFiles(ctx context.Context, d *document) []models.VideoFile {
	var files []models.VideoFile

	candidates := d.candidates()
	if len(candidates) > 0 {
		if e.resolver != nil {
			files = e.resolver.ResolveAll(ctx, candidates)
		}
		if len(files) == 0 {
			e.log.Warn("no file ids resolved", "url", d.pageURL, "candidates", len(candidates))
		}
	}

	if len(files) == 0 {
		files = d.directLinks()
		if len(files) > 0 {
			e.log.Debug("using direct mp4 links", "url", d.pageURL, "count", len(files))
		}
	}

	if files == nil {
		files = []models.VideoFile{}
	}
	return files
}

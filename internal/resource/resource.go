// Package resource implements one Metadata Stream per SourceKind: a lazy,
// backpressured sequence of model.Metadata in reverse-chronological
// order, plus an on-demand Detail fetch.
package resource

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"priconne-watch/internal/model"
)

// Page is one page of a listing: the metadata it carries, plus whether a
// further page exists.
type Page struct {
	Items   []model.Metadata
	HasMore bool
}

// detailDateLayouts covers the date formats upstream detail pages render
// their announce dates in.
var detailDateLayouts = []string{"2006/01/02 15:04", "2006/01/02", "2006-01-02"}

// parseCreateTime extracts the announce date from a detail document, or
// nil if the page carries none.
func parseCreateTime(doc *goquery.Document) *time.Time {
	raw := strings.TrimSpace(doc.Find(".date, .news-date, time").First().Text())
	if raw == "" {
		return nil
	}
	for _, layout := range detailDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// Stream is the shared interface every SourceKind's listing implements.
// Next returns the next Page in upstream-chronological order; the
// returned Page's HasMore is false once the listing has no further page,
// and a failed fetch or parse is returned as err.
type Stream interface {
	SourceKind() model.SourceKind
	Next(ctx context.Context) (Page, error)
	FetchDetail(ctx context.Context, m model.Metadata) (model.Detail, error)
	// ItemURL returns the canonical upstream page for one item, recorded
	// on its DataVersion.
	ItemURL(m model.Metadata) string
}

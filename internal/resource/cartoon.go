package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"priconne-watch/internal/errors"
	"priconne-watch/internal/httpclient"
	"priconne-watch/internal/model"
)

// CartoonStream is the Metadata Stream for the JSON cartoon listing.
type CartoonStream struct {
	baseURL string
	client  *httpclient.Client
	page    int
}

// NewCartoonStream builds a Stream over the cartoon listing rooted at
// baseURL.
func NewCartoonStream(baseURL string, client *httpclient.Client) *CartoonStream {
	return &CartoonStream{baseURL: baseURL, client: client, page: 1}
}

func (s *CartoonStream) SourceKind() model.SourceKind {
	return model.SourceKind{Kind: model.SourceCartoon}
}

type cartoonEntry struct {
	ComicID   int32  `json:"comic_id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
}

type cartoonListResponse struct {
	List []cartoonEntry `json:"list"`
}

func (s *CartoonStream) Next(ctx context.Context) (Page, error) {
	url := fmt.Sprintf("%s/cartoon/thumbnail_list/%d", s.baseURL, s.page)
	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return Page{}, errors.NewBuilder(err).Component("resource").Category(errors.CategoryNetwork).Build()
	}
	defer resp.Body.Close()

	var parsed cartoonListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Page{}, errors.NewBuilder(err).Component("resource").Category(errors.CategoryUpstreamSchema).Build()
	}

	items := make([]model.Metadata, 0, len(parsed.List))
	for _, e := range parsed.List {
		t, _ := time.Parse("2006-01-02", e.StartDate)
		items = append(items, model.Metadata{ID: e.ComicID, Title: e.Title, UpdateTime: t})
	}

	s.page++
	return Page{Items: items, HasMore: len(parsed.List) > 0}, nil
}

func (s *CartoonStream) ItemURL(m model.Metadata) string {
	return fmt.Sprintf("%s/cartoon/detail/%d", s.baseURL, m.ID)
}

// FetchDetail fetches the cartoon detail page; the sole field extracted
// is the strip's image URL.
func (s *CartoonStream) FetchDetail(ctx context.Context, m model.Metadata) (model.Detail, error) {
	url := s.ItemURL(m)
	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return model.Detail{}, errors.NewBuilder(err).Component("resource").Category(errors.CategoryNetwork).Build()
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return model.Detail{}, errors.NewBuilder(err).Component("resource").Category(errors.CategoryUpstreamSchema).Build()
	}

	imageURL, _ := doc.Find(".cartoon-image img, img").First().Attr("src")
	body := fmt.Sprintf(`<img src="%s">`, imageURL)
	return model.Detail{Title: m.Title, Body: body}, nil
}

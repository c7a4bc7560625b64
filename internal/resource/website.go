package resource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"priconne-watch/internal/errors"
	"priconne-watch/internal/htmlconv"
	"priconne-watch/internal/httpclient"
	"priconne-watch/internal/model"
)

// WebsiteStream is the Metadata Stream for the paginated HTML news
// listing.
type WebsiteStream struct {
	baseURL string
	client  *httpclient.Client
	page    int
}

// NewWebsiteStream builds a Stream over the news website rooted at
// baseURL.
func NewWebsiteStream(baseURL string, client *httpclient.Client) *WebsiteStream {
	return &WebsiteStream{baseURL: baseURL, client: client, page: 1}
}

func (s *WebsiteStream) SourceKind() model.SourceKind {
	return model.SourceKind{Kind: model.SourceWebsite}
}

func (s *WebsiteStream) Next(ctx context.Context) (Page, error) {
	url := fmt.Sprintf("%s/news?page=%d", s.baseURL, s.page)
	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return Page{}, errors.NewBuilder(err).Component("resource").Category(errors.CategoryNetwork).Build()
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Page{}, errors.NewBuilder(err).Component("resource").Category(errors.CategoryUpstreamSchema).Build()
	}

	var items []model.Metadata
	doc.Find(".news-list .news-item, li.news-row").Each(func(_ int, row *goquery.Selection) {
		idAttr, _ := row.Attr("data-id")
		id, err := strconv.Atoi(idAttr)
		if err != nil {
			return
		}
		title := strings.TrimSpace(row.Find(".news-title, a").First().Text())
		dateStr := strings.TrimSpace(row.Find(".news-date, time").First().Text())
		t, _ := time.Parse("2006-01-02", dateStr)
		items = append(items, model.Metadata{ID: int32(id), Title: title, UpdateTime: t})
	})

	hasNext := doc.Find("a.next, a[rel=next]").Length() > 0
	s.page++
	return Page{Items: items, HasMore: hasNext}, nil
}

func (s *WebsiteStream) ItemURL(m model.Metadata) string {
	return fmt.Sprintf("%s/news/newsDetail/%d", s.baseURL, m.ID)
}

func (s *WebsiteStream) FetchDetail(ctx context.Context, m model.Metadata) (model.Detail, error) {
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

	body, _ := doc.Find(".news-detail-body, .detail-body, body").First().Html()
	return model.Detail{
		Title:      m.Title,
		Body:       body,
		CreateTime: parseCreateTime(doc),
		Events:     htmlconv.ExtractEvents(body),
	}, nil
}

package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"priconne-watch/internal/errors"
	"priconne-watch/internal/htmlconv"
	"priconne-watch/internal/httpclient"
	"priconne-watch/internal/model"
)

// APIStream is the Metadata Stream for one announcement-API server.
type APIStream struct {
	serverID string
	baseURL  string
	client   *httpclient.Client
	offset   int
}

// NewAPIStream builds a Stream over one API server, identified by
// serverID, rooted at baseURL.
func NewAPIStream(serverID, baseURL string, client *httpclient.Client) *APIStream {
	return &APIStream{serverID: serverID, baseURL: baseURL, client: client}
}

func (s *APIStream) SourceKind() model.SourceKind {
	return model.SourceKind{Kind: model.SourceAPI, ServerID: s.serverID}
}

type ajaxAnnounceEntry struct {
	AnId       int32  `json:"an_id"`
	Title      string `json:"title"`
	UpdateTime string `json:"start_at"`
}

type ajaxAnnounceResponse struct {
	DataList         []ajaxAnnounceEntry `json:"data_list"`
	IsOverNextOffset bool                `json:"is_over_next_offset"`
}

func (s *APIStream) Next(ctx context.Context) (Page, error) {
	url := fmt.Sprintf("%s/information/ajax_announce?offset=%d", s.baseURL, s.offset)
	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return Page{}, errors.NewBuilder(err).Component("resource").Category(errors.CategoryNetwork).
			Context("source", s.SourceKind().Name()).Build()
	}
	defer resp.Body.Close()

	var parsed ajaxAnnounceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Page{}, errors.NewBuilder(err).Component("resource").Category(errors.CategoryUpstreamSchema).
			Context("source", s.SourceKind().Name()).Build()
	}

	items := make([]model.Metadata, 0, len(parsed.DataList))
	for _, e := range parsed.DataList {
		t, _ := time.Parse(time.RFC3339, e.UpdateTime)
		items = append(items, model.Metadata{ID: e.AnId, Title: e.Title, UpdateTime: t})
	}

	s.offset += len(parsed.DataList)
	return Page{Items: items, HasMore: !parsed.IsOverNextOffset && len(parsed.DataList) > 0}, nil
}

func (s *APIStream) ItemURL(m model.Metadata) string {
	return fmt.Sprintf("%s/information/detail/%d/1/10/1", s.baseURL, m.ID)
}

func (s *APIStream) FetchDetail(ctx context.Context, m model.Metadata) (model.Detail, error) {
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

	body, _ := doc.Find(".information-detail, .detail-body, body").First().Html()
	return model.Detail{
		Title:      m.Title,
		Body:       body,
		CreateTime: parseCreateTime(doc),
		Events:     htmlconv.ExtractEvents(body),
	}, nil
}

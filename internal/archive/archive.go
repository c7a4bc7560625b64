// Package archive uploads a normalized HTML document to the archive-host
// (Telegraph) and returns its permanent URL, via the shared httpclient.
package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"priconne-watch/internal/errors"
	"priconne-watch/internal/httpclient"
)

const createPageEndpoint = "https://api.telegra.ph/createPage"

// Config names the Telegraph account the archive pages are created under.
type Config struct {
	ShortName   string
	AccessToken string
	AuthorName  string
	AuthorURL   string
}

// Host uploads normalized bodies to Telegraph.
type Host struct {
	cfg      Config
	client   *httpclient.Client
	endpoint string
}

// New builds a Host bound to cfg, using client for the HTTP transport.
func New(cfg Config, client *httpclient.Client) *Host {
	return &Host{cfg: cfg, client: client, endpoint: createPageEndpoint}
}

type createPageRequest struct {
	AccessToken   string `json:"access_token"`
	Title         string `json:"title"`
	AuthorName    string `json:"author_name,omitempty"`
	AuthorURL     string `json:"author_url,omitempty"`
	Content       string `json:"content"`
	ReturnContent bool   `json:"return_content"`
}

type createPageResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Result struct {
		URL string `json:"url"`
	} `json:"result"`
}

// CreatePage uploads a normalized HTML fragment under title and returns
// the resulting permanent URL. The fragment is sent as Telegraph's JSON
// node-array content: one <p> node whose single child is bodyHTML as a
// text string.
func (h *Host) CreatePage(ctx context.Context, title, bodyHTML string) (string, error) {
	slug := uuid.NewString()
	content, err := json.Marshal([]map[string]any{
		{"tag": "p", "children": []string{bodyHTML}},
	})
	if err != nil {
		return "", errors.NewBuilder(err).Component("archive").Category(errors.CategoryArchiveHost).Build()
	}

	req := createPageRequest{
		AccessToken:   h.cfg.AccessToken,
		Title:         title,
		AuthorName:    h.cfg.AuthorName,
		AuthorURL:     h.cfg.AuthorURL,
		Content:       string(content),
		ReturnContent: false,
	}

	resp, err := h.client.Post(ctx, h.endpoint, "application/json", req)
	if err != nil {
		return "", errors.NewBuilder(err).Component("archive").Category(errors.CategoryArchiveHost).
			Context("slug", slug).Build()
	}
	defer resp.Body.Close()

	var out createPageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.NewBuilder(err).Component("archive").Category(errors.CategoryArchiveHost).Build()
	}
	if !out.OK {
		return "", errors.NewBuilder(fmt.Errorf("telegraph error: %s", out.Error)).
			Component("archive").Category(errors.CategoryArchiveHost).Build()
	}

	return out.Result.URL, nil
}

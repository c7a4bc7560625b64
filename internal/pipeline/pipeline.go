// Package pipeline implements the Publish Pipeline: for each item the
// Reconciliation Decider admits, fetch its detail, normalize the body,
// upload it to the archive host, compose the chat message, send or edit,
// and persist.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"priconne-watch/internal/chat"
	"priconne-watch/internal/errors"
	"priconne-watch/internal/htmlconv"
	"priconne-watch/internal/model"
	"priconne-watch/internal/reconcile"
	"priconne-watch/internal/resource"
	"priconne-watch/internal/store"
	"priconne-watch/internal/tagger"
)

// Poster is the subset of *store.Store the pipeline needs: post lookup and
// upsert, plus the advisory audit write.
type Poster interface {
	FindPostBySourceID(ctx context.Context, source model.SourceKind, id int32) (*model.Post, error)
	FindPostByMappedTitle(ctx context.Context, mappedTitle string) (*model.Post, error)
	UpsertPost(ctx context.Context, post *model.Post) error
	InsertAudit(ctx context.Context, a store.Audit) error
}

// Notifier is the subset of *chat.Chat the pipeline needs.
type Notifier interface {
	Send(ctx context.Context, recipient string, msg chat.Message) (int64, error)
	Edit(ctx context.Context, recipient string, prevMessageID int64, msg chat.Message) (int64, error)
}

// Archiver is the subset of *archive.Host the pipeline needs.
type Archiver interface {
	CreatePage(ctx context.Context, title, bodyHTML string) (string, error)
}

// Recipients resolves a chat audience for a given source kind.
type Recipients struct {
	Debug   string
	Post    string
	Cartoon string
}

func (r Recipients) For(kind model.SourceKindTag) string {
	if kind == model.SourceCartoon {
		return r.Cartoon
	}
	return r.Post
}

// Pipeline holds every collaborator the Publish Pipeline needs for one
// source's tick. SilentIf names title substrings that force silent
// delivery.
type Pipeline struct {
	Store      Poster
	Chat       Notifier
	Archive    Archiver
	Tagger     *tagger.Tagger
	Recipients Recipients
	Region     model.Region
	SilentIf   []string

	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// Publish drives one admitted FindResult through the pipeline: find the
// matching post and decide the Action (NONE returns here, before any
// fetch), fetch the detail and normalize it, upload it to the archive
// host (SEND/EDIT only), send or edit the chat message (SEND/EDIT only),
// and persist the result.
func (p *Pipeline) Publish(ctx context.Context, stream resource.Stream, result model.FindResult) error {
	source := stream.SourceKind()

	matchingPost, err := p.findMatchingPost(ctx, source, result.Item)
	if err != nil {
		return err
	}

	action := reconcile.Decide(source, result, matchingPost)
	if action == reconcile.None {
		return nil
	}

	detail, err := fetchDetailWithRetry(ctx, stream, result.Item)
	if err != nil {
		// Transient-network / upstream-schema: skip item, log, continue
		// with peers (caller logs and moves to the next item).
		return err
	}

	normalized, err := htmlconv.Normalize(detail.Body)
	if err != nil {
		return errors.NewBuilder(err).Component("pipeline").Category(errors.CategoryUpstreamSchema).Build()
	}
	if len(detail.Extra) > 0 {
		extraJSON, _ := json.Marshal(detail.Extra)
		normalized = htmlconv.AppendExtras(normalized, extraJSON)
	}

	tags := p.Tagger.Tag(result.Item.Title)
	mappedTitle := model.MapTitle(result.Item.Title)

	var archiveURL string
	if action == reconcile.Send || action == reconcile.Edit {
		archiveURL, err = p.Archive.CreatePage(ctx, mappedTitle, normalized)
		if err != nil {
			return err
		}
	}

	dv := model.DataVersion{
		Source:     source,
		ID:         result.Item.ID,
		URL:        stream.ItemURL(result.Item),
		Title:      result.Item.Title,
		Tags:       tags,
		CreateTime: detail.CreateTime,
		UpdateTime: &result.Item.UpdateTime,
		ArchiveURL: archiveURL,
		Extra:      detail.Extra,
	}

	post := matchingPost
	if post == nil {
		post = &model.Post{
			ID:          uuid.NewString(),
			MappedTitle: mappedTitle,
			Region:      p.Region,
		}
	}
	post.Data = append(post.Data, dv)
	post.Events = detail.Events

	recipient := p.Recipients.For(source.Kind)
	silent := p.isSilent(result.Item.Title)

	if action == reconcile.Send || action == reconcile.Edit {
		message := p.compose(tags, mappedTitle, detail, archiveURL, result.Item.ID)

		var messageID int64
		if action == reconcile.Send {
			messageID, err = p.Chat.Send(ctx, recipient, chat.Message{Text: message, Silent: silent})
		} else {
			messageID, err = p.Chat.Edit(ctx, recipient, post.MessageID, chat.Message{Text: message, Silent: silent})
		}
		if err != nil {
			return err
		}
		post.MessageID = messageID

		if err := p.Store.UpsertPost(ctx, post); err != nil {
			// Persistence failure after a successful send: log loudly
			// and leave the post unrecorded; the next tick re-sends.
			return err
		}
		if err := p.Store.InsertAudit(ctx, store.Audit{
			Recipient:  recipient,
			ChatID:     recipient,
			MessageID:  messageID,
			PostID:     post.ID,
			Timestamp:  p.now(),
			ArchiveURL: archiveURL,
		}); err != nil {
			// Advisory only: the Post write above already succeeded.
			return err
		}
		return nil
	}

	// STORE_ONLY: persist, do not publish.
	return p.Store.UpsertPost(ctx, post)
}

func (p *Pipeline) findMatchingPost(ctx context.Context, source model.SourceKind, m model.Metadata) (*model.Post, error) {
	post, err := p.Store.FindPostBySourceID(ctx, source, m.ID)
	if err != nil {
		return nil, err
	}
	if post != nil {
		return post, nil
	}

	post, err = p.Store.FindPostByMappedTitle(ctx, model.MapTitle(m.Title))
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, nil
	}
	if !reconcile.Matches(post, source, m, p.now()) {
		return nil, nil
	}
	return post, nil
}

// fetchDetailWithRetry retries a transient network failure exactly once.
func fetchDetailWithRetry(ctx context.Context, stream resource.Stream, m model.Metadata) (model.Detail, error) {
	detail, err := stream.FetchDetail(ctx, m)
	if err == nil {
		return detail, nil
	}
	detail, err = stream.FetchDetail(ctx, m)
	if err != nil {
		return model.Detail{}, errors.NewBuilder(err).Component("pipeline").Category(errors.CategoryNetwork).
			Context("id", m.ID).Build()
	}
	return detail, nil
}

func (p *Pipeline) isSilent(title string) bool {
	for _, substr := range p.SilentIf {
		if strings.Contains(title, substr) {
			return true
		}
	}
	return false
}

// compose builds the chat message: tags line, bold title, optional event
// block, blank line, archive URL, create_time, #id code span.
func (p *Pipeline) compose(tags []string, title string, detail model.Detail, archiveURL string, id int32) string {
	var b strings.Builder

	for _, t := range tags {
		b.WriteString("#" + t + " ")
	}
	if len(tags) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("<b>" + title + "</b>\n")

	for _, e := range detail.Events {
		b.WriteString(fmt.Sprintf("- %s:\n   %s - %s\n",
			e.Title, e.Start.Format("01/02 15:04"), e.End.Format("01/02 15:04")))
	}

	b.WriteString("\n")
	if archiveURL != "" {
		b.WriteString(archiveURL + "\n")
	}
	if detail.CreateTime != nil {
		b.WriteString(detail.CreateTime.Format(time.RFC3339) + "\n")
	}
	b.WriteString(fmt.Sprintf("<code>#%d</code>", id))

	return b.String()
}

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priconne-watch/internal/chat"
	"priconne-watch/internal/model"
	"priconne-watch/internal/resource"
	"priconne-watch/internal/store"
	"priconne-watch/internal/tagger"
)

type fakeStore struct {
	bySourceID map[string]*model.Post
	byTitle    map[string]*model.Post
	upserted   []*model.Post
	audits     []store.Audit
	findErr    error
	upsertErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{bySourceID: map[string]*model.Post{}, byTitle: map[string]*model.Post{}}
}

func (f *fakeStore) FindPostBySourceID(ctx context.Context, source model.SourceKind, id int32) (*model.Post, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.bySourceID[source.Name()], nil
}

func (f *fakeStore) FindPostByMappedTitle(ctx context.Context, mappedTitle string) (*model.Post, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byTitle[mappedTitle], nil
}

func (f *fakeStore) UpsertPost(ctx context.Context, post *model.Post) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, post)
	return nil
}

func (f *fakeStore) InsertAudit(ctx context.Context, a store.Audit) error {
	f.audits = append(f.audits, a)
	return nil
}

type fakeChat struct {
	sent   []chat.Message
	nextID int64
}

func (f *fakeChat) Send(ctx context.Context, recipient string, msg chat.Message) (int64, error) {
	f.nextID++
	f.sent = append(f.sent, msg)
	return f.nextID, nil
}

func (f *fakeChat) Edit(ctx context.Context, recipient string, prevMessageID int64, msg chat.Message) (int64, error) {
	return f.Send(ctx, recipient, msg)
}

type fakeArchive struct {
	url string
	err error
}

func (f *fakeArchive) CreatePage(ctx context.Context, title, bodyHTML string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeStream struct {
	kind   model.SourceKind
	detail model.Detail
	err    error
	calls  int
}

func (f *fakeStream) SourceKind() model.SourceKind                    { return f.kind }
func (f *fakeStream) Next(ctx context.Context) (resource.Page, error) { return resource.Page{}, nil }
func (f *fakeStream) ItemURL(m model.Metadata) string                 { return "https://example.com/item" }
func (f *fakeStream) FetchDetail(ctx context.Context, m model.Metadata) (model.Detail, error) {
	f.calls++
	if f.err != nil {
		return model.Detail{}, f.err
	}
	return f.detail, nil
}

func newTestPipeline(st Poster, ch Notifier, ar Archiver) *Pipeline {
	tg, _ := tagger.Compile([]string{"event"}, map[string][]string{"event": {"Event"}})
	return &Pipeline{
		Store:      st,
		Chat:       ch,
		Archive:    ar,
		Tagger:     tg,
		Recipients: Recipients{Post: "post-chat", Cartoon: "cartoon-chat"},
		Region:     model.RegionJP,
		Now:        func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestPublishSendsNewPost(t *testing.T) {
	st := newFakeStore()
	ch := &fakeChat{}
	ar := &fakeArchive{url: "https://telegra.ph/x"}
	p := newTestPipeline(st, ch, ar)

	stream := &fakeStream{
		kind: model.SourceKind{Kind: model.SourceWebsite},
		detail: model.Detail{
			Body: "<p>hello</p>",
			Events: []model.Event{{
				Title: "開催期間",
				Start: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 1, 7, 23, 59, 0, 0, time.UTC),
			}},
		},
	}
	result := model.FindResult{Item: model.Metadata{ID: 1, Title: "Spring Event"}, State: model.StateNew}

	err := p.Publish(t.Context(), stream, result)
	require.NoError(t, err)

	require.Len(t, ch.sent, 1)
	assert.Contains(t, ch.sent[0].Text, "Spring Event")
	assert.Contains(t, ch.sent[0].Text, "- 開催期間:")
	assert.Contains(t, ch.sent[0].Text, "01/01 12:00 - 01/07 23:59")
	require.Len(t, st.upserted, 1)
	assert.Len(t, st.upserted[0].Data, 1)
	assert.Equal(t, stream.detail.Events, st.upserted[0].Events)
	require.Len(t, st.audits, 1)
	assert.Equal(t, "https://telegra.ph/x", st.audits[0].ArchiveURL)
}

func TestPublishNoneActionSkipsSendAndArchive(t *testing.T) {
	st := newFakeStore()
	existing := &model.Post{
		ID:          "post-1",
		MappedTitle: "Spring Event",
		Data: []model.DataVersion{{
			Source:     model.SourceKind{Kind: model.SourceWebsite},
			ID:         1,
			UpdateTime: timePtr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		}},
	}
	st.bySourceID[model.SourceKind{Kind: model.SourceWebsite}.Name()] = existing

	ch := &fakeChat{}
	ar := &fakeArchive{}
	p := newTestPipeline(st, ch, ar)

	stream := &fakeStream{kind: model.SourceKind{Kind: model.SourceWebsite}}
	result := model.FindResult{
		Item:  model.Metadata{ID: 1, Title: "Spring Event", UpdateTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		State: model.StateSame,
	}

	err := p.Publish(t.Context(), stream, result)
	require.NoError(t, err)

	assert.Empty(t, ch.sent)
	assert.Empty(t, st.upserted)
	assert.Equal(t, 0, stream.calls) // detail never fetched for a None action
}

func TestPublishStoreOnlyForNewSourceOnExistingPost(t *testing.T) {
	st := newFakeStore()
	existing := &model.Post{
		ID:          "post-1",
		MappedTitle: "Spring Event",
		Data: []model.DataVersion{{
			Source:     model.SourceKind{Kind: model.SourceAPI, ServerID: "alice"},
			ID:         1,
			UpdateTime: timePtr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		}},
	}
	st.byTitle["Spring Event"] = existing

	ch := &fakeChat{}
	ar := &fakeArchive{url: "https://telegra.ph/x"}
	p := newTestPipeline(st, ch, ar)

	stream := &fakeStream{
		kind:   model.SourceKind{Kind: model.SourceWebsite},
		detail: model.Detail{Body: "<p>hello</p>"},
	}
	result := model.FindResult{Item: model.Metadata{ID: 99, Title: "Spring Event"}, State: model.StateNew}

	err := p.Publish(t.Context(), stream, result)
	require.NoError(t, err)

	assert.Empty(t, ch.sent, "store-only actions must not notify chat")
	require.Len(t, st.upserted, 1)
	assert.Len(t, st.upserted[0].Data, 2)
}

func TestPublishPropagatesDetailFetchError(t *testing.T) {
	st := newFakeStore()
	ch := &fakeChat{}
	ar := &fakeArchive{}
	p := newTestPipeline(st, ch, ar)

	stream := &fakeStream{kind: model.SourceKind{Kind: model.SourceWebsite}, err: errors.New("network down")}
	result := model.FindResult{Item: model.Metadata{ID: 1, Title: "Spring Event"}, State: model.StateNew}

	err := p.Publish(t.Context(), stream, result)
	assert.Error(t, err)
	assert.Equal(t, 2, stream.calls, "detail fetch must be retried exactly once")
}

func TestRecipientsFor(t *testing.T) {
	r := Recipients{Post: "post-chat", Cartoon: "cartoon-chat"}
	assert.Equal(t, "cartoon-chat", r.For(model.SourceCartoon))
	assert.Equal(t, "post-chat", r.For(model.SourceWebsite))
	assert.Equal(t, "post-chat", r.For(model.SourceAPI))
}

func timePtr(t time.Time) *time.Time { return &t }

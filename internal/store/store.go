// Package store persists Posts, per-source metadata, and audit rows in
// MongoDB behind a narrow find-one / replace-with-upsert / insert-one
// surface.
package store

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"priconne-watch/internal/errors"
	"priconne-watch/internal/model"
)

const (
	collectionPosts    = "post"
	collectionMetadata = "metadata"
	collectionAudit    = "audit"
)

// Audit is the advisory row written after a successful send or edit.
// The Post itself remains canonical; a crash between writing the Post
// and writing its Audit row is tolerated.
type Audit struct {
	Recipient  string    `bson:"recipient"`
	ChatID     string    `bson:"chat_id"`
	MessageID  int64     `bson:"message_id"`
	PostID     string    `bson:"post_id"`
	Timestamp  time.Time `bson:"timestamp"`
	ArchiveURL string    `bson:"archive_url"`
}

// sourceMetadata is the per-source row tracking the last-seen Metadata
// for a given (source, id) pair, used by the Fuse Comparator's prior
// lookup.
type sourceMetadata struct {
	Source         model.SourceKind `bson:"source"`
	ID             int32            `bson:"id"`
	model.Metadata `bson:",inline"`
}

// Store wraps the three Mongo collections the pipeline touches.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

// Open connects to Mongo at connectionString and selects database.
func Open(ctx context.Context, connectionString, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, errors.NewBuilder(err).Component("store").Category(errors.CategoryPersistence).Build()
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.NewBuilder(err).Component("store").Category(errors.CategoryPersistence).Build()
	}
	return &Store{client: client, database: client.Database(database)}, nil
}

// Close disconnects from Mongo.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) posts() *mongo.Collection    { return s.database.Collection(collectionPosts) }
func (s *Store) metadata() *mongo.Collection { return s.database.Collection(collectionMetadata) }
func (s *Store) audit() *mongo.Collection    { return s.database.Collection(collectionAudit) }

// FindPostBySourceID looks up a Post with a DataVersion matching
// (source, id) exactly — the clause (a) match path.
func (s *Store) FindPostBySourceID(ctx context.Context, source model.SourceKind, id int32) (*model.Post, error) {
	filter := bson.M{"data": bson.M{"$elemMatch": bson.M{
		"source.kind":      source.Kind,
		"source.server_id": source.ServerID,
		"id":               id,
	}}}
	return s.findOnePost(ctx, filter)
}

// FindPostByMappedTitle looks up the most recently updated Post with the
// given mapped_title — the clause (b) fuzzy-match path. The caller applies
// the 24h window check (reconcile.Matches) against the result.
func (s *Store) FindPostByMappedTitle(ctx context.Context, mappedTitle string) (*model.Post, error) {
	filter := bson.M{"mapped_title": mappedTitle}
	opts := options.FindOne().SetSort(bson.D{{Key: "data.update_time", Value: -1}})
	return s.findOnePostWithOpts(ctx, filter, opts)
}

func (s *Store) findOnePost(ctx context.Context, filter bson.M) (*model.Post, error) {
	return s.findOnePostWithOpts(ctx, filter, nil)
}

func (s *Store) findOnePostWithOpts(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*model.Post, error) {
	var post model.Post
	var res *mongo.SingleResult
	if opts != nil {
		res = s.posts().FindOne(ctx, filter, opts)
	} else {
		res = s.posts().FindOne(ctx, filter)
	}
	if err := res.Decode(&post); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, errors.NewBuilder(err).Component("store").Category(errors.CategoryPersistence).Build()
	}
	return &post, nil
}

// UpsertPost replaces (or inserts) a Post by id, so retries after a
// partial failure are idempotent.
func (s *Store) UpsertPost(ctx context.Context, post *model.Post) error {
	filter := bson.M{"_id": post.ID}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.posts().ReplaceOne(ctx, filter, post, opts); err != nil {
		return errors.NewBuilder(err).Component("store").Category(errors.CategoryPersistence).
			Context("post_id", post.ID).Build()
	}
	return nil
}

// InsertAudit writes the advisory audit row. Failure here is logged
// loudly by the caller but never blocks the pipeline (the Post write
// already succeeded).
func (s *Store) InsertAudit(ctx context.Context, a Audit) error {
	if _, err := s.audit().InsertOne(ctx, a); err != nil {
		return errors.NewBuilder(err).Component("store").Category(errors.CategoryPersistence).Build()
	}
	return nil
}

// UpcomingEvents collects every event on stored posts that has not ended
// by now, sorted by start time.
func (s *Store) UpcomingEvents(ctx context.Context, now time.Time) ([]model.Event, error) {
	filter := bson.M{"events.end": bson.M{"$gte": now}}
	cur, err := s.posts().Find(ctx, filter)
	if err != nil {
		return nil, errors.NewBuilder(err).Component("store").Category(errors.CategoryPersistence).Build()
	}
	defer cur.Close(ctx)

	var events []model.Event
	for cur.Next(ctx) {
		var post model.Post
		if err := cur.Decode(&post); err != nil {
			return nil, errors.NewBuilder(err).Component("store").Category(errors.CategoryPersistence).Build()
		}
		for _, e := range post.Events {
			if !e.End.Before(now) {
				events = append(events, e)
			}
		}
	}
	if err := cur.Err(); err != nil {
		return nil, errors.NewBuilder(err).Component("store").Category(errors.CategoryPersistence).Build()
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

// LastMetadata returns the last-seen Metadata for (source, id), or
// found=false if this is the first time the source has produced it.
func (s *Store) LastMetadata(ctx context.Context, source model.SourceKind, id int32) (model.Metadata, bool, error) {
	filter := bson.M{"source.kind": source.Kind, "source.server_id": source.ServerID, "id": id}
	var row sourceMetadata
	if err := s.metadata().FindOne(ctx, filter).Decode(&row); err != nil {
		if err == mongo.ErrNoDocuments {
			return model.Metadata{}, false, nil
		}
		return model.Metadata{}, false, errors.NewBuilder(err).Component("store").Category(errors.CategoryPersistence).Build()
	}
	return row.Metadata, true, nil
}

// UpsertMetadata records the latest Metadata seen for (source, id), so
// the next tick's Fuse Comparator has an up-to-date prior.
func (s *Store) UpsertMetadata(ctx context.Context, source model.SourceKind, m model.Metadata) error {
	filter := bson.M{"source.kind": source.Kind, "source.server_id": source.ServerID, "id": m.ID}
	doc := sourceMetadata{Source: source, ID: m.ID, Metadata: m}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.metadata().ReplaceOne(ctx, filter, doc, opts); err != nil {
		return errors.NewBuilder(err).Component("store").Category(errors.CategoryPersistence).Build()
	}
	return nil
}

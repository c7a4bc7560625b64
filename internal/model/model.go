// Package model defines the canonical data types shared by every stage of
// the resource pipeline: the lightweight metadata records produced by a
// source, the archive record they accumulate into, and the small value
// types threaded between them.
package model

import (
	"regexp"
	"strings"
	"time"
)

// SourceKindTag distinguishes the upstream surface a record came from.
type SourceKindTag string

const (
	SourceAPI     SourceKindTag = "api"
	SourceWebsite SourceKindTag = "website"
	SourceCartoon SourceKindTag = "cartoon"
)

// SourceKind is a tagged variant identifying one upstream surface. Two
// records from different SourceKinds may describe the same logical post;
// ServerID is only meaningful when Kind == SourceAPI.
type SourceKind struct {
	Kind     SourceKindTag `bson:"kind"`
	ServerID string        `bson:"server_id,omitempty"`
}

// Name returns a stable, human-readable identifier for this source,
// suitable as a map key or log field.
func (s SourceKind) Name() string {
	if s.Kind == SourceAPI && s.ServerID != "" {
		return string(s.Kind) + ":" + s.ServerID
	}
	return string(s.Kind)
}

// Equal reports whether two SourceKinds identify the same upstream surface.
func (s SourceKind) Equal(other SourceKind) bool {
	return s.Kind == other.Kind && s.ServerID == other.ServerID
}

// Region is the closed set of locales a Post may belong to.
type Region string

const (
	RegionJP Region = "JP"
	RegionEN Region = "EN"
	RegionTW Region = "TW"
	RegionCN Region = "CN"
	RegionKR Region = "KR"
	RegionTH Region = "TH"
)

// Metadata is the lightweight record produced by a Metadata Stream. Extra
// carries opaque, source-specific fields preserved so Detail can be
// re-fetched without a second listing call.
type Metadata struct {
	ID         int32          `bson:"id"`
	Title      string         `bson:"title"`
	UpdateTime time.Time      `bson:"update_time"`
	Extra      map[string]any `bson:"extra,omitempty"`
}

// IsUpdate reports whether other represents a change to m: identifiers
// must match, and either the title differs or other is strictly newer.
func (m Metadata) IsUpdate(other Metadata) bool {
	if m.ID != other.ID {
		return false
	}
	return m.Title != other.Title || other.UpdateTime.After(m.UpdateTime)
}

// FindState is the Fuse Comparator's three-state classification.
type FindState string

const (
	StateNew     FindState = "new"
	StateUpdated FindState = "updated"
	StateSame    FindState = "same"
)

// FindResult pairs an incoming Metadata with its prior record, if any.
type FindResult struct {
	Item  Metadata
	Prior *Metadata
	State FindState
}

// Classify computes the FindResult state for item against prior (nil if
// no prior record exists for this id).
func Classify(item Metadata, prior *Metadata) FindResult {
	if prior == nil {
		return FindResult{Item: item, Prior: nil, State: StateNew}
	}
	if prior.IsUpdate(item) {
		return FindResult{Item: item, Prior: prior, State: StateUpdated}
	}
	return FindResult{Item: item, Prior: prior, State: StateSame}
}

// Event is a single calendar entry extracted from a Detail body.
type Event struct {
	Title string    `bson:"title"`
	Start time.Time `bson:"start"`
	End   time.Time `bson:"end"`
}

// Detail is the full content fetched on demand for one Metadata. It is
// never stored directly; it is consumed by the HTML transform and then
// discarded.
type Detail struct {
	Title      string
	Body       string // normalized-candidate HTML fragment
	CreateTime *time.Time
	Events     []Event
	Extra      map[string]any
}

// DataVersion is one ingested (source, detail) observation, appended to a
// Post's Data slice and never mutated in place.
type DataVersion struct {
	Source     SourceKind     `bson:"source"`
	ID         int32          `bson:"id"`
	URL        string         `bson:"url"`
	Title      string         `bson:"title"`
	Tags       []string       `bson:"tags,omitempty"`
	CreateTime *time.Time     `bson:"create_time,omitempty"`
	UpdateTime *time.Time     `bson:"update_time,omitempty"`
	ArchiveURL string         `bson:"archive_url,omitempty"`
	Extra      map[string]any `bson:"extra,omitempty"`
}

// Post is the canonical long-lived archive entity. It is created once and
// mutated only by appending to Data, replacing Events, setting History,
// and recording the latest chat MessageID.
type Post struct {
	ID          string        `bson:"_id"`
	MappedTitle string        `bson:"mapped_title"`
	Region      Region        `bson:"region"`
	Events      []Event       `bson:"events,omitempty"`
	History     string        `bson:"history,omitempty"` // opaque id of a superseded Post
	Data        []DataVersion `bson:"data"`

	MessageID int64 `bson:"message_id,omitempty"` // chat message identifier of the latest send/edit
}

// Latest returns the most recently appended DataVersion. Callers must not
// call this on a Post with an empty Data slice (invariant 1 forbids that
// state from ever existing in storage).
func (p *Post) Latest() DataVersion {
	return p.Data[len(p.Data)-1]
}

// HasSource reports whether any DataVersion in the post came from source.
func (p *Post) HasSource(source SourceKind) bool {
	for _, d := range p.Data {
		if d.Source.Equal(source) {
			return true
		}
	}
	return false
}

// HasSourceID reports whether the post already has a DataVersion for the
// exact (source, id) pair.
func (p *Post) HasSourceID(source SourceKind, id int32) bool {
	for _, d := range p.Data {
		if d.Source.Equal(source) && d.ID == id {
			return true
		}
	}
	return false
}

// mappedTitlePattern strips a leading bracket-category prefix ("【...】")
// and a trailing "(...更新)" update-suffix, keeping the remaining trimmed
// core as the fuzzy-match key.
var mappedTitlePattern = regexp.MustCompile(`^\s*(?:【.+?】)?\s*(.+?)\s*(?:\(.+更新\))?\s*$`)

// MapTitle normalizes a raw upstream title into the fuzzy-match key used to
// attach records from different sources to the same Post. It is
// idempotent: MapTitle(MapTitle(t)) == MapTitle(t).
func MapTitle(title string) string {
	m := mappedTitlePattern.FindStringSubmatch(title)
	if m == nil {
		return strings.TrimSpace(title)
	}
	return m[1]
}

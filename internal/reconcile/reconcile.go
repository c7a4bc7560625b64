// Package reconcile implements the Reconciliation Decider: given an
// incoming find result and the archive post it may belong to, it chooses
// one of {none, store-only, send, edit}.
package reconcile

import (
	"time"

	"priconne-watch/internal/model"
)

// Action is the Decider's verdict for one admitted item.
type Action string

const (
	None      Action = "none"
	StoreOnly Action = "store_only"
	Send      Action = "send"
	Edit      Action = "edit"
)

// AttachWindow bounds how recently a post must have been updated for a
// different source's matching-title arrival to attach to it (clause (b)
// of the match rule).
const AttachWindow = 24 * time.Hour

// Decide maps (source, result, matchingPost) to an Action per the
// decision table: no matching post always sends; a matching post with no
// prior data from this source is a store-only attach; a matching post
// that already has data from this source is an edit when the incoming
// (source,id) pair is new to the post or carries a newer update time, and
// a no-op otherwise.
func Decide(source model.SourceKind, result model.FindResult, matchingPost *model.Post) Action {
	if matchingPost == nil {
		return Send
	}

	if !matchingPost.HasSource(source) {
		return StoreOnly
	}

	id := result.Item.ID
	if !matchingPost.HasSourceID(source, id) {
		return Edit
	}

	return editOrNone(matchingPost, source, id, result.Item.UpdateTime)
}

// editOrNone handles the "same (source,id) already in post" branch: edit
// only if the incoming metadata is strictly newer than the stored
// DataVersion for this exact pair.
func editOrNone(post *model.Post, source model.SourceKind, id int32, updateTime time.Time) Action {
	for i := len(post.Data) - 1; i >= 0; i-- {
		d := post.Data[i]
		if !d.Source.Equal(source) || d.ID != id {
			continue
		}
		if d.UpdateTime == nil || updateTime.After(*d.UpdateTime) {
			return Edit
		}
		return None
	}
	// Unreachable given the HasSourceID precondition, but fail closed.
	return None
}

// Matches reports whether post is the archive counterpart for (source, m)
// per the two-clause match rule: an exact (source,id) hit, or the same
// mapped_title within AttachWindow of the post's latest update.
func Matches(post *model.Post, source model.SourceKind, m model.Metadata, now time.Time) bool {
	if post.HasSourceID(source, m.ID) {
		return true
	}
	if post.MappedTitle != model.MapTitle(m.Title) {
		return false
	}
	latest := post.Latest()
	var latestUpdate time.Time
	if latest.UpdateTime != nil {
		latestUpdate = *latest.UpdateTime
	}
	return now.Sub(latestUpdate) <= AttachWindow
}

// Package fuse implements the Fuse Comparator: it pairs each incoming
// metadata record with its archive counterpart, classifies it, and stops
// consuming the upstream stream once no further interesting items are
// expected.
package fuse

import (
	"time"

	"priconne-watch/internal/model"
)

// Strategy bounds how far into a listing the comparator is willing to
// read before giving up on finding more new or updated items.
type Strategy struct {
	FuseLimit    *int       // nil = no count-based termination
	IgnoreIDLt   *int32     // nil = no id floor
	IgnoreTimeLt *time.Time // nil = no time floor
}

// PriorLookup resolves the last known Metadata for an id, or reports
// found=false if this source has never seen it.
type PriorLookup func(id int32) (prior model.Metadata, found bool)

// Run drives strategy's state machine over a finite sequence of metadata,
// calling next() for each item in upstream order until the stream is
// exhausted or the fuse trips. It returns the collected FindResults in
// oldest-first order, ready for the Reconciliation Decider.
//
// next returns ok=false to signal end of stream (including a terminal
// mid-stream error, which the caller surfaces separately before calling
// Run again on the next tick).
func Run(strategy Strategy, next func() (model.Metadata, bool), lookup PriorLookup) []model.FindResult {
	var collected []model.FindResult
	consecutiveUninteresting := 0

	for {
		m, ok := next()
		if !ok {
			break
		}

		inRange := true
		if strategy.IgnoreIDLt != nil && m.ID < *strategy.IgnoreIDLt {
			inRange = false
		}
		if strategy.IgnoreTimeLt != nil && m.UpdateTime.Before(*strategy.IgnoreTimeLt) {
			inRange = false
		}

		var priorPtr *model.Metadata
		if prior, found := lookup(m.ID); found {
			priorPtr = &prior
		}
		result := model.Classify(m, priorPtr)

		if result.State != model.StateSame {
			collected = append(collected, result)
		}

		switch {
		case result.State == model.StateSame:
			consecutiveUninteresting++
		case inRange:
			consecutiveUninteresting = 0
		default:
			consecutiveUninteresting++
		}

		if strategy.FuseLimit != nil {
			if consecutiveUninteresting > *strategy.FuseLimit {
				break
			}
		} else if !inRange {
			break
		}
	}

	reverse(collected)
	return collected
}

func reverse(items []model.FindResult) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

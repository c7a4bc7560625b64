package fuse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"priconne-watch/internal/model"
)

func sequenceNext(items []model.Metadata) func() (model.Metadata, bool) {
	i := 0
	return func() (model.Metadata, bool) {
		if i >= len(items) {
			return model.Metadata{}, false
		}
		m := items[i]
		i++
		return m, true
	}
}

func noPriors(int32) (model.Metadata, bool) {
	return model.Metadata{}, false
}

func TestRunDropsSameItemsAndReturnsOldestFirst(t *testing.T) {
	limit := 2
	items := []model.Metadata{
		{ID: 5, Title: "five"},
		{ID: 4, Title: "four"},
		{ID: 3, Title: "three"},
	}

	priors := map[int32]model.Metadata{
		3: {ID: 3, Title: "three"}, // same, triggers uninteresting streak
	}
	lookup := func(id int32) (model.Metadata, bool) {
		m, ok := priors[id]
		return m, ok
	}

	results := Run(Strategy{FuseLimit: &limit}, sequenceNext(items), lookup)

	// item 3 is SAME so it's dropped from the collected results, but still
	// counted toward the uninteresting streak. 4 and 5 are both new.
	assert := assert.New(t)
	assert.Len(results, 2)
	assert.Equal(int32(4), results[0].Item.ID) // oldest-first after reversal
	assert.Equal(int32(5), results[1].Item.ID)
}

func TestRunStopsOnIgnoreIDFloorWhenNoLimit(t *testing.T) {
	floor := int32(3)
	items := []model.Metadata{
		{ID: 5, Title: "five"},
		{ID: 4, Title: "four"},
		{ID: 2, Title: "two"}, // below floor, out of range, no limit configured
		{ID: 1, Title: "one"},
	}

	results := Run(Strategy{IgnoreIDLt: &floor}, sequenceNext(items), noPriors)

	assert := assert.New(t)
	assert.Len(results, 3) // 5, 4, 2 collected; 1 never reached
	assert.Equal(int32(2), results[0].Item.ID)
	assert.Equal(int32(4), results[1].Item.ID)
	assert.Equal(int32(5), results[2].Item.ID)
}

func TestRunStopsOnIgnoreTimeFloor(t *testing.T) {
	floor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []model.Metadata{
		{ID: 2, Title: "two", UpdateTime: floor.Add(time.Hour)},
		{ID: 1, Title: "one", UpdateTime: floor.Add(-time.Hour)}, // below floor
	}

	results := Run(Strategy{IgnoreTimeLt: &floor}, sequenceNext(items), noPriors)

	assert.Len(t, results, 2)
	assert.Equal(t, int32(1), results[0].Item.ID)
	assert.Equal(t, int32(2), results[1].Item.ID)
}

func TestRunDrainsEntireStreamWhenNothingTrips(t *testing.T) {
	items := []model.Metadata{
		{ID: 2, Title: "two"},
		{ID: 1, Title: "one"},
	}
	results := Run(Strategy{}, sequenceNext(items), noPriors)
	assert.Len(t, results, 2)
}

func TestRunUpdatedStateResetsStreak(t *testing.T) {
	limit := 1
	items := []model.Metadata{
		{ID: 3, Title: "same", UpdateTime: time.Unix(100, 0)},
		{ID: 2, Title: "changed", UpdateTime: time.Unix(200, 0)},
		{ID: 1, Title: "brand new"},
	}
	priors := map[int32]model.Metadata{
		3: {ID: 3, Title: "same", UpdateTime: time.Unix(100, 0)},
		2: {ID: 2, Title: "old title", UpdateTime: time.Unix(50, 0)},
	}
	lookup := func(id int32) (model.Metadata, bool) {
		m, ok := priors[id]
		return m, ok
	}

	results := Run(Strategy{FuseLimit: &limit}, sequenceNext(items), lookup)

	// id 3 is SAME (streak=1), id 2 is UPDATED (streak resets to 0), id 1 is
	// NEW (streak stays 0): the whole stream drains since the streak never
	// exceeds the limit.
	assert := assert.New(t)
	assert.Len(results, 2)
	assert.Equal(int32(1), results[0].Item.ID)
	assert.Equal(int32(2), results[1].Item.ID)
}

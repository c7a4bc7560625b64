package tagger

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndTag(t *testing.T) {
	order := []string{"event", "gacha"}
	patterns := map[string][]string{
		"event": {"活動", "Event"},
		"gacha": {"ガチャ"},
	}

	tagger, err := Compile(order, patterns)
	require.NoError(t, err)

	assert.Equal(t, []string{"event"}, tagger.Tag("Spring Event"))
	assert.Equal(t, []string{"gacha"}, tagger.Tag("新規ガチャ"))
	assert.Empty(t, tagger.Tag("random news"))
}

func TestTagDeduplicatesAndPreservesOrder(t *testing.T) {
	order := []string{"event", "gacha"}
	patterns := map[string][]string{
		"event": {"活動", "Event"},
		"gacha": {"ガチャ"},
	}
	tagger, err := Compile(order, patterns)
	require.NoError(t, err)

	tags := tagger.Tag("活動Event開催、新規ガチャ")
	assert.Equal(t, []string{"event", "gacha"}, tags)
}

func TestCompileInvalidPattern(t *testing.T) {
	_, err := Compile([]string{"bad"}, map[string][]string{"bad": {"(unterminated"}})
	assert.Error(t, err)
}

func TestNewFromExplicitRules(t *testing.T) {
	re := regexp.MustCompile("foo")
	tg := New([]Rule{{Tag: "foo", Pattern: re}})
	assert.Equal(t, []string{"foo"}, tg.Tag("foobar"))
}

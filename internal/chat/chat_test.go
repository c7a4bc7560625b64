package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(message string, params *types.Params) []error {
	if f.err != nil {
		return []error{f.err}
	}
	f.sent = append(f.sent, message)
	return nil
}

func newTestChat(fs *fakeSender) *Chat {
	c := New("token")
	c.senderOf = func(url string) (sender, error) { return fs, nil }
	return c
}

func TestSendReturnsIncreasingIDs(t *testing.T) {
	fs := &fakeSender{}
	c := newTestChat(fs)

	id1, err := c.Send(context.Background(), "123", Message{Text: "hello"})
	require.NoError(t, err)
	id2, err := c.Send(context.Background(), "123", Message{Text: "world"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)
	assert.Equal(t, []string{"hello", "world"}, fs.sent)
}

func TestSendAppendsImageURL(t *testing.T) {
	fs := &fakeSender{}
	c := newTestChat(fs)

	_, err := c.Send(context.Background(), "123", Message{Text: "hello", ImageURL: "http://example.com/a.png"})
	require.NoError(t, err)
	require.Len(t, fs.sent, 1)
	assert.True(t, strings.HasSuffix(fs.sent[0], "http://example.com/a.png"))
}

func TestSendPropagatesSenderError(t *testing.T) {
	fs := &fakeSender{err: errors.New("boom")}
	c := newTestChat(fs)

	_, err := c.Send(context.Background(), "123", Message{Text: "hello"})
	assert.Error(t, err)
}

func TestEditDegradesToNewSendWithMarker(t *testing.T) {
	fs := &fakeSender{}
	c := newTestChat(fs)

	id, err := c.Edit(context.Background(), "123", 7, Message{Text: "new body"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id) // it's a fresh Send, not a correlated edit
	require.Len(t, fs.sent, 1)
	assert.True(t, strings.HasPrefix(fs.sent[0], "(update)\n"))
	assert.Contains(t, fs.sent[0], "new body")
}

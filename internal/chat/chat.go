// Package chat delivers notifications to the configured Telegram
// recipients through shoutrrr.
//
// shoutrrr exposes no message-edit primitive, so Edit degrades to a new
// Send carrying a small "(update)" marker plus a stored correction,
// instead of silently behaving like a second, unrelated Send — see
// DESIGN.md for the open-question decision this resolves.
package chat

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"priconne-watch/internal/errors"
)

// Message is the payload handed to Send/Edit. Text may carry a limited
// HTML subset (<b>, <code>, plain URLs).
type Message struct {
	Text     string
	Silent   bool
	ImageURL string
}

// Chat sends and (degraded-)edits messages to Telegram recipients.
type Chat struct {
	token    string
	nextID   atomic.Int64
	senderOf func(url string) (sender, error)
}

type sender interface {
	Send(message string, params *types.Params) []error
}

// New builds a Chat bound to a bot token. Send builds a fresh shoutrrr
// sender for the recipient's service URL on every call; senders are not
// cached.
func New(token string) *Chat {
	c := &Chat{token: token}
	c.senderOf = func(url string) (sender, error) {
		return shoutrrr.CreateSender(url)
	}
	return c
}

func (c *Chat) serviceURL(recipient string) string {
	return fmt.Sprintf("telegram://%s@telegram?chats=%s", c.token, recipient)
}

// Send delivers a new message to recipient and returns a message
// identifier. shoutrrr's public API is fire-and-forget and never returns
// Telegram's own message id, so the id here is a process-local sequence
// number: it is unique and monotonically increasing within this process,
// sufficient for audit correlation and for deciding whether a second Send
// for the same post is the "first" one, but it is not the Telegram API's
// own message_id.
func (c *Chat) Send(ctx context.Context, recipient string, msg Message) (int64, error) {
	s, err := c.senderOf(c.serviceURL(recipient))
	if err != nil {
		return 0, errors.NewBuilder(err).Component("chat").Category(errors.CategoryChat).Build()
	}

	params := &types.Params{}
	if msg.ImageURL != "" {
		// shoutrrr's telegram service embeds attachment URLs through its
		// own params convention; plain text with a trailing link is the
		// portable fallback used here.
		msg.Text = msg.Text + "\n" + msg.ImageURL
	}

	if errs := s.Send(msg.Text, params); len(errs) > 0 {
		return 0, errors.NewBuilder(errs[0]).Component("chat").Category(errors.CategoryChat).
			Context("recipient", recipient).Build()
	}

	return c.nextID.Add(1), nil
}

// Edit "replaces" a previous message. Since the transport cannot edit in
// place, it sends a new message with a correction marker and returns the
// new message id; callers must update their stored message_id to this
// new value.
func (c *Chat) Edit(ctx context.Context, recipient string, prevMessageID int64, msg Message) (int64, error) {
	msg.Text = "(update)\n" + msg.Text
	return c.Send(ctx, recipient, msg)
}

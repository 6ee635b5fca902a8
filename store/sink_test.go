package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"chat-sync/domain/chat"
	"chat-sync/domain/event"

	"github.com/stretchr/testify/require"
)

func TestSink_Consume(t *testing.T) {
	req := require.New(t)
	s := newTestStore()
	sink := NewSink(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	msg := confirmedMessage("1", "bob", "hello", time.Now())
	req.NoError(sink.Consume(ctx, event.MessageReceived{Message: msg}))
	req.Len(s.View(), 1)

	req.NoError(sink.Consume(ctx, event.MessageDeleted{MessageID: "1", Conversation: "conv-1"}))
	req.Empty(s.View())

	// Unknown events are logged and ignored.
	req.NoError(sink.Consume(ctx, dummyEvent{}))
}

type dummyEvent struct{}

func (dummyEvent) ConversationID() chat.ConversationID { return "conv-1" }

package store

import (
	"context"
	"fmt"
	"log/slog"

	"chat-sync/domain/event"
)

// Sink adapts the store to the EventSink a room session forwards into.
type Sink struct {
	store *Store
	log   *slog.Logger
}

func NewSink(store *Store, log *slog.Logger) Sink {
	return Sink{store: store, log: log}
}

func (s Sink) Consume(_ context.Context, e event.ChannelEvent) error {
	switch evt := e.(type) {
	case event.MessageReceived:
		s.store.ReceiveConfirmed(evt.Message)
	case event.MessageDeleted:
		s.store.ReceiveDeleted(evt.MessageID)
	default:
		s.log.Debug(fmt.Sprintf("Not implemented event : %v", evt))
	}
	return nil
}

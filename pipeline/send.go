// Package pipeline turns user actions into optimistic store mutations
// plus REST calls, rolling the mutation back when the call fails.
package pipeline

import (
	"context"
	"log/slog"

	"chat-sync/contract"
	"chat-sync/domain/chat"
	"chat-sync/store"
)

// SendPipeline runs Drafted → Sending → {Confirmed | Failed} per send.
type SendPipeline struct {
	log   *slog.Logger
	api   contract.MessageAPI
	store *store.Store
}

func NewSendPipeline(api contract.MessageAPI, st *store.Store, log *slog.Logger) *SendPipeline {
	return &SendPipeline{log: log, api: api, store: st}
}

// Send validates the draft, appends it optimistically so the UI
// reflects it before the network call completes, and reconciles the
// REST outcome. A failed call rolls the optimistic entry back and
// returns a retryable error; there is no auto-retry. The same message
// will usually also arrive via the channel echo and is deduped by the
// store either way.
func (p *SendPipeline) Send(ctx context.Context, draft chat.Draft) (chat.Message, error) {
	if err := chat.ValidateDraft(draft); err != nil {
		return chat.Message{}, err
	}

	corr := p.store.AppendOptimistic(draft)

	msg, err := p.api.Create(ctx, contract.SendRequest{
		Conversation:  draft.Conversation,
		Sender:        draft.Sender,
		Body:          draft.Body,
		Attachments:   draft.Attachments,
		CorrelationID: corr,
	})
	if err != nil {
		p.store.RollbackOptimistic(corr)
		p.log.Warn("Send failed, optimistic entry rolled back", "conversation", draft.Conversation, "err", err)
		return chat.Message{}, err
	}

	p.store.ConfirmOptimistic(corr, msg)
	return msg, nil
}

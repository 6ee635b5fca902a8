package pipeline

import (
	"context"
	"log/slog"

	"chat-sync/contract"
	"chat-sync/store"
)

// DeletePipeline runs Requested → {Deleted | Failed} per deletion.
type DeletePipeline struct {
	log   *slog.Logger
	api   contract.MessageAPI
	store *store.Store
}

func NewDeletePipeline(api contract.MessageAPI, st *store.Store, log *slog.Logger) *DeletePipeline {
	return &DeletePipeline{log: log, api: api, store: st}
}

// Delete removes the message from the visible view immediately, then
// confirms over REST. On failure the retained snapshot is reinserted
// at its original sorted position and the error is surfaced. Only
// this self-initiated path produces user feedback; remote deletions
// arriving over the channel remove silently via the store.
func (p *DeletePipeline) Delete(ctx context.Context, id string) error {
	snap, ok := p.store.RemoveConfirmed(id)
	if !ok {
		// Already gone, locally or via a remote deletion event.
		return nil
	}

	if err := p.api.Delete(ctx, id); err != nil {
		p.store.Restore(snap)
		p.log.Warn("Delete failed, message restored", "id", id, "err", err)
		return err
	}
	return nil
}

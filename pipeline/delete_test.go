package pipeline

import (
	"context"
	"testing"
	"time"

	"chat-sync/domain/chat"
	"chat-sync/errors"
	"chat-sync/mocks"
	"chat-sync/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.NewStore(testLogger(), nil)
	base := time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC)
	s.LoadConfirmed([]chat.Message{
		{ID: "1", Sender: chat.Identity{UserID: "bob"}, Body: "first", CreatedAt: base, Origin: chat.OriginConfirmed},
		{ID: "7", Sender: chat.Identity{UserID: "alice"}, Body: "second", CreatedAt: base.Add(time.Second), Origin: chat.OriginConfirmed},
		{ID: "3", Sender: chat.Identity{UserID: "bob"}, Body: "third", CreatedAt: base.Add(2 * time.Second), Origin: chat.OriginConfirmed},
	})
	return s
}

func ids(view []chat.Message) []string {
	out := make([]string, len(view))
	for i, m := range view {
		out[i] = m.ID
	}
	return out
}

func TestDeletePipeline_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("should remove immediately and keep the removal on success", func(t *testing.T) {
		req := require.New(t)
		messageStore := seedStore(t)
		mockAPI := mocks.NewMockMessageAPI(ctrl)

		removedBeforeCall := false
		mockAPI.EXPECT().
			Delete(gomock.Any(), "7").
			DoAndReturn(func(context.Context, string) error {
				removedBeforeCall = len(messageStore.View()) == 2
				return nil
			}).Times(1)

		p := NewDeletePipeline(mockAPI, messageStore, testLogger())
		req.NoError(p.Delete(context.Background(), "7"))

		req.True(removedBeforeCall, "removal must be optimistic, before the network call resolves")
		req.Equal([]string{"1", "3"}, ids(messageStore.View()))
	})

	t.Run("should restore the message at its position on failure", func(t *testing.T) {
		req := require.New(t)
		messageStore := seedStore(t)
		mockAPI := mocks.NewMockMessageAPI(ctrl)

		mockAPI.EXPECT().
			Delete(gomock.Any(), "7").
			Return(&errors.RequestError{Op: "delete message", Status: 500}).
			Times(1)

		p := NewDeletePipeline(mockAPI, messageStore, testLogger())
		err := p.Delete(context.Background(), "7")

		req.Error(err)
		req.Equal([]string{"1", "7", "3"}, ids(messageStore.View()))
	})

	t.Run("should treat an already absent id as a no-op", func(t *testing.T) {
		req := require.New(t)
		messageStore := seedStore(t)
		mockAPI := mocks.NewMockMessageAPI(ctrl)
		mockAPI.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)

		p := NewDeletePipeline(mockAPI, messageStore, testLogger())
		req.NoError(p.Delete(context.Background(), "404"))
		req.Len(messageStore.View(), 3)
	})
}

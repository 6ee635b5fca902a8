package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"chat-sync/contract"
	"chat-sync/domain/chat"
	"chat-sync/errors"
	"chat-sync/mocks"
	"chat-sync/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDraft() chat.Draft {
	return chat.Draft{
		Conversation: "conv-1",
		Sender:       chat.Identity{UserID: "alice", Role: "member"},
		Body:         "hello",
	}
}

func TestSendPipeline_Send(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("should confirm the optimistic entry on success", func(t *testing.T) {
		req := require.New(t)
		messageStore := store.NewStore(testLogger(), nil)
		mockAPI := mocks.NewMockMessageAPI(ctrl)

		mockAPI.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r contract.SendRequest) (chat.Message, error) {
				// The correlation id must be threaded through so the
				// broadcast echo can be deduped.
				req.NotEqual(uuid.Nil, r.CorrelationID)
				return chat.Message{
					ID:            "42",
					CorrelationID: r.CorrelationID,
					Conversation:  r.Conversation,
					Sender:        r.Sender,
					Body:          r.Body,
					CreatedAt:     time.Now(),
				}, nil
			}).Times(1)

		p := NewSendPipeline(mockAPI, messageStore, testLogger())
		msg, err := p.Send(context.Background(), testDraft())

		req.NoError(err)
		req.Equal("42", msg.ID)
		view := messageStore.View()
		req.Len(view, 1)
		req.Equal(chat.OriginConfirmed, view[0].Origin)
		req.Equal("42", view[0].ID)
	})

	t.Run("should roll back the optimistic entry on failure", func(t *testing.T) {
		req := require.New(t)
		messageStore := store.NewStore(testLogger(), nil)
		mockAPI := mocks.NewMockMessageAPI(ctrl)

		mockAPI.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			Return(chat.Message{}, &errors.RequestError{Op: "create message", Status: 500}).
			Times(1)

		p := NewSendPipeline(mockAPI, messageStore, testLogger())
		_, err := p.Send(context.Background(), testDraft())

		req.Error(err)
		var reqErr *errors.RequestError
		req.ErrorAs(err, &reqErr)
		req.Empty(messageStore.View(), "failure must leave no ghost entry")
	})

	t.Run("should reject an empty draft without calling the API", func(t *testing.T) {
		req := require.New(t)
		messageStore := store.NewStore(testLogger(), nil)
		mockAPI := mocks.NewMockMessageAPI(ctrl)
		mockAPI.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

		p := NewSendPipeline(mockAPI, messageStore, testLogger())
		draft := testDraft()
		draft.Body = ""
		_, err := p.Send(context.Background(), draft)

		req.ErrorIs(err, errors.ErrEmptyDraft)
		req.Empty(messageStore.View())
	})

	t.Run("should forward attachments, body optional", func(t *testing.T) {
		req := require.New(t)
		messageStore := store.NewStore(testLogger(), nil)
		mockAPI := mocks.NewMockMessageAPI(ctrl)

		picture := chat.Attachment{Name: "cat.png", MimeType: "image/png"}
		mockAPI.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r contract.SendRequest) (chat.Message, error) {
				req.Equal([]chat.Attachment{picture}, r.Attachments)
				return chat.Message{
					ID:            "43",
					CorrelationID: r.CorrelationID,
					Conversation:  r.Conversation,
					Sender:        r.Sender,
					Attachments:   r.Attachments,
					CreatedAt:     time.Now(),
				}, nil
			}).Times(1)

		p := NewSendPipeline(mockAPI, messageStore, testLogger())
		draft := testDraft()
		draft.Body = ""
		draft.Attachments = []chat.Attachment{picture}
		msg, err := p.Send(context.Background(), draft)

		req.NoError(err)
		req.Equal([]chat.Attachment{picture}, msg.Attachments)
	})

	t.Run("should discard the result when the store was closed mid-flight", func(t *testing.T) {
		req := require.New(t)
		messageStore := store.NewStore(testLogger(), nil)
		mockAPI := mocks.NewMockMessageAPI(ctrl)

		mockAPI.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r contract.SendRequest) (chat.Message, error) {
				// The view is torn down while the request is in flight.
				messageStore.Close()
				return chat.Message{ID: "42", CorrelationID: r.CorrelationID, Body: r.Body}, nil
			}).Times(1)

		p := NewSendPipeline(mockAPI, messageStore, testLogger())
		req.NotPanics(func() {
			_, err := p.Send(context.Background(), testDraft())
			req.NoError(err)
		})
		req.Empty(messageStore.View())
	})
}

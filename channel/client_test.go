package channel

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"chat-sync/contract"
	"chat-sync/domain/chat"
	"chat-sync/domain/event"
	"chat-sync/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return NewClient(Config{URL: "ws://localhost:0"}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestClient_HandleFrame_NewMessage(t *testing.T) {
	req := require.New(t)
	c := testClient()
	corr := uuid.New()

	var got event.MessageReceived
	cancel := c.OnNewMessage(func(e event.MessageReceived) { got = e })
	defer cancel()

	c.handleFrame([]byte(`{
		"type": "new_message",
		"payload": {
			"id": "42",
			"conversation_id": "conv-1",
			"sender_id": "alice",
			"sender_type": "member",
			"body": "hello",
			"attachments": ["https://files.example/a.png"],
			"correlation_id": "` + corr.String() + `",
			"created_at": "2026-03-12T10:00:00Z"
		}
	}`))

	req.Equal("42", got.Message.ID)
	req.Equal(chat.ConversationID("conv-1"), got.ConversationID())
	req.Equal(corr, got.Message.CorrelationID)
	req.Equal(chat.Identity{UserID: "alice", Role: "member"}, got.Message.Sender)
	req.Equal([]chat.Attachment{{URL: "https://files.example/a.png"}}, got.Message.Attachments)
	req.Equal(chat.OriginConfirmed, got.Message.Origin)
}

func TestClient_HandleFrame_MessageDeleted(t *testing.T) {
	req := require.New(t)
	c := testClient()

	var got event.MessageDeleted
	cancel := c.OnMessageDeleted(func(e event.MessageDeleted) { got = e })
	defer cancel()

	c.handleFrame([]byte(`{"type":"message_deleted","payload":{"messageId":"42","conversationId":"conv-1"}}`))

	req.Equal("42", got.MessageID)
	req.Equal(chat.ConversationID("conv-1"), got.ConversationID())
}

func TestClient_HandleFrame_MalformedFramesAreDropped(t *testing.T) {
	c := testClient()
	delivered := 0
	defer c.OnNewMessage(func(event.MessageReceived) { delivered++ })()

	require.NotPanics(t, func() {
		c.handleFrame([]byte(`not json`))
		c.handleFrame([]byte(`{"type":"new_message","payload":"not an object"}`))
		c.handleFrame([]byte(`{"type":"unknown_event","payload":{}}`))
	})
	require.Zero(t, delivered)
}

func TestClient_UnsubscribeStopsDelivery(t *testing.T) {
	c := testClient()
	delivered := 0
	cancel := c.OnNewMessage(func(event.MessageReceived) { delivered++ })

	frame := []byte(`{"type":"new_message","payload":{"id":"1","conversation_id":"c","sender_id":"a","body":"x","created_at":"2026-03-12T10:00:00Z"}}`)
	c.handleFrame(frame)
	cancel()
	c.handleFrame(frame)

	require.Equal(t, 1, delivered)
}

func TestClient_StateChanges(t *testing.T) {
	req := require.New(t)
	c := testClient()
	req.Equal(contract.StateDisconnected, c.State())

	var states []contract.ConnectionState
	defer c.OnStateChange(func(s contract.ConnectionState) { states = append(states, s) })()

	c.setState(contract.StateConnecting)
	c.setState(contract.StateConnecting) // duplicate, not re-emitted
	c.setState(contract.StateConnected)
	c.setState(contract.StateIdentified)

	req.Equal([]contract.ConnectionState{
		contract.StateConnecting,
		contract.StateConnected,
		contract.StateIdentified,
	}, states)
	req.Equal(contract.StateIdentified, c.State())
}

func TestClient_SendWithoutConnection(t *testing.T) {
	c := testClient()
	_, err := c.Subscribe("conv-1")
	require.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestSubscription_CancelIsIdempotentOffline(t *testing.T) {
	c := testClient()
	sub := &subscription{client: c, conversation: "conv-1"}

	// A dead connection means the server already forgot the room; the
	// handle still releases cleanly, and only once.
	require.NoError(t, sub.Cancel())
	require.NoError(t, sub.Cancel())
	require.Equal(t, chat.ConversationID("conv-1"), sub.Conversation())
}

func TestReconnector_BackoffIsBoundedAndExhausts(t *testing.T) {
	req := require.New(t)
	r := newReconnector(Config{
		ReconnectBaseDelay:   time.Second,
		ReconnectMaxDelay:    4 * time.Second,
		MaxReconnectAttempts: 3,
	})

	var prev time.Duration
	for i := 0; i < 3; i++ {
		req.False(r.exhausted())
		delay := r.nextDelay()
		req.GreaterOrEqual(delay, prev/2, "delays must grow until the cap")
		req.LessOrEqual(delay, 4*time.Second)
		prev = delay
	}
	req.True(r.exhausted())
}

func TestClient_ConnectRetriesBeforeSurfacingDisconnected(t *testing.T) {
	req := require.New(t)
	// Nothing listens on port 9: every dial fails immediately.
	c := NewClient(Config{
		URL:                  "ws://127.0.0.1:9",
		HandshakeTimeout:     100 * time.Millisecond,
		ReconnectBaseDelay:   time.Millisecond,
		ReconnectMaxDelay:    2 * time.Millisecond,
		MaxReconnectAttempts: 2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	var states []contract.ConnectionState
	defer c.OnStateChange(func(s contract.ConnectionState) { states = append(states, s) })()

	err := c.Connect(context.Background(), chat.Identity{UserID: "alice", Role: "member"})

	req.ErrorIs(err, errors.ErrAttemptsSpent)
	req.Equal(contract.StateDisconnected, c.State())
	// Initial attempt plus the two budgeted retries, each cycling
	// through connecting before settling disconnected.
	req.Equal([]contract.ConnectionState{
		contract.StateConnecting, contract.StateDisconnected,
		contract.StateConnecting, contract.StateDisconnected,
		contract.StateConnecting, contract.StateDisconnected,
	}, states)
}

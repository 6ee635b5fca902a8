//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"

	"chat-sync/domain/chat"
	"chat-sync/domain/event"

	"github.com/google/uuid"
)

// ConnectionState is the lifecycle of the single physical channel
// connection shared process-wide.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	// StateIdentified means the identify handshake carrying the user's
	// identity and role succeeded. Live delivery only happens here.
	StateIdentified ConnectionState = "identified"
)

// Channel is the process-wide event channel client. Exactly one
// physical connection is shared by all room sessions; it is injected,
// never accessed as ambient global state.
type Channel interface {
	Connect(ctx context.Context, identity chat.Identity) error
	Subscribe(conversation chat.ConversationID) (Subscription, error)
	OnNewMessage(h func(event.MessageReceived)) (cancel func())
	OnMessageDeleted(h func(event.MessageDeleted)) (cancel func())
	OnStateChange(h func(ConnectionState)) (cancel func())
	State() ConnectionState
	Disconnect() error
}

// Subscription is the handle returned by Subscribe. Cancel sends the
// leave command and releases the handle; it is safe to call twice.
type Subscription interface {
	Conversation() chat.ConversationID
	Cancel() error
}

// SendRequest is the payload of a message creation call. The
// correlation id is threaded through so the backend can echo it in the
// new_message broadcast, closing the optimistic/confirmed dedup race.
type SendRequest struct {
	Conversation  chat.ConversationID
	Sender        chat.Identity
	Body          string
	Attachments   []chat.Attachment
	CorrelationID uuid.UUID
}

// MessageAPI is the REST collaborator owning message persistence.
type MessageAPI interface {
	List(ctx context.Context, conversation chat.ConversationID) ([]chat.Message, error)
	Create(ctx context.Context, req SendRequest) (chat.Message, error)
	Delete(ctx context.Context, id string) error
}

// EventSink consumes conversation-scoped events forwarded by a room
// session.
type EventSink interface {
	Consume(ctx context.Context, e event.ChannelEvent) error
}

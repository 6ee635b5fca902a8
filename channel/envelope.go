package channel

import (
	"encoding/json"
	"time"

	"chat-sync/domain/chat"
	"chat-sync/domain/event"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Envelope is the wire format for every frame on the event channel.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// command is a client-to-server frame.
type command struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Frame types. The connect / connect_error / disconnect lifecycle of
// the backend protocol is not delivered as frames by the websocket
// transport; it surfaces as dial results and read errors and is
// re-emitted here as connection state changes.
const (
	typeIdentify       = "identify"
	typeIdentified     = "identified"
	typeJoinChat       = "join_chat"
	typeLeaveChat      = "leave_chat"
	typeNewMessage     = "new_message"
	typeMessageDeleted = "message_deleted"
)

type identifyPayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type roomPayload struct {
	ConversationID string `json:"conversation_id"`
}

type newMessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderType     string    `json:"sender_type"`
	Body           string    `json:"body"`
	Attachments    []string  `json:"attachments"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type messageDeletedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

func (p newMessagePayload) toEvent() event.MessageReceived {
	corr, _ := uuid.Parse(p.CorrelationID)
	return event.MessageReceived{Message: chat.Message{
		ID:            p.ID,
		CorrelationID: corr,
		Conversation:  chat.ConversationID(p.ConversationID),
		Sender:        chat.Identity{UserID: p.SenderID, Role: p.SenderType},
		Body:          p.Body,
		Attachments: lo.Map(p.Attachments, func(u string, _ int) chat.Attachment {
			return chat.Attachment{URL: u}
		}),
		CreatedAt: p.CreatedAt,
		SortAt:    p.CreatedAt,
		Origin:    chat.OriginConfirmed,
	}}
}

func (p messageDeletedPayload) toEvent() event.MessageDeleted {
	return event.MessageDeleted{
		MessageID:    p.MessageID,
		Conversation: chat.ConversationID(p.ConversationID),
	}
}

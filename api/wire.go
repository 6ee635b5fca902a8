package api

import (
	"encoding/json"
	"time"

	"chat-sync/domain/chat"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// envelope is the uniform REST response shape.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type wireMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderType     string    `json:"sender_type"`
	Body           string    `json:"body"`
	Attachments    []string  `json:"attachments"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type createRequest struct {
	ConversationID string   `json:"conversation_id"`
	SenderType     string   `json:"sender_type"`
	Body           string   `json:"body"`
	Attachments    []string `json:"attachments"`
	CorrelationID  string   `json:"correlation_id"`
}

func toDomain(w wireMessage) chat.Message {
	// A missing or malformed correlation id simply means the dedup falls
	// back to the heuristic match.
	corr, _ := uuid.Parse(w.CorrelationID)
	return chat.Message{
		ID:            w.ID,
		CorrelationID: corr,
		Conversation:  chat.ConversationID(w.ConversationID),
		Sender:        chat.Identity{UserID: w.SenderID, Role: w.SenderType},
		Body:          w.Body,
		Attachments: lo.Map(w.Attachments, func(u string, _ int) chat.Attachment {
			return chat.Attachment{URL: u}
		}),
		CreatedAt: w.CreatedAt,
		SortAt:    w.CreatedAt,
		Origin:    chat.OriginConfirmed,
	}
}

package event

import (
	"chat-sync/domain/chat"
)

// ChannelEvent is an inbound event scoped to a conversation.
// Room sessions use ConversationID to drop events belonging to
// conversations other than the one currently joined.
type ChannelEvent interface {
	ConversationID() chat.ConversationID
}

// MessageReceived is the canonical new_message broadcast.
type MessageReceived struct {
	Message chat.Message
}

func (e MessageReceived) ConversationID() chat.ConversationID {
	return e.Message.Conversation
}

// MessageDeleted propagates a deletion made by any participant.
type MessageDeleted struct {
	MessageID    string
	Conversation chat.ConversationID
}

func (e MessageDeleted) ConversationID() chat.ConversationID {
	return e.Conversation
}

// Package chat contains core concepts of the synchronization core.
// This file defines Message values and the ordering key used by the
// merged view. Messages are immutable; reconciliation state lives in
// the store.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// ConversationID scopes messages and live event delivery.
type ConversationID string

// Origin tags where a message entry came from.
type Origin string

const (
	// OriginConfirmed marks a message acknowledged by the backend.
	OriginConfirmed Origin = "confirmed"
	// OriginOptimistic marks a locally inserted, not-yet-confirmed entry.
	OriginOptimistic Origin = "optimistic"
)

// Identity is the sender identity supplied by the session collaborator.
type Identity struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role"`
}

// Attachment is a reference to an already uploaded file.
// Upload itself is owned by an external collaborator; the core only
// carries the resulting URL.
type Attachment struct {
	URL      string `json:"url" validate:"required,url"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

// Message represents one chat entry.
//
// A confirmed message carries a server-assigned ID. An optimistic
// message has no ID yet and is identified by its client-generated
// CorrelationID until the server echoes it back.
type Message struct {
	ID            string
	CorrelationID uuid.UUID
	Conversation  ConversationID
	Sender        Identity
	Body          string
	Attachments   []Attachment
	CreatedAt     time.Time

	// SortAt is the ordering timestamp. It equals CreatedAt except when
	// a confirmed message replaces an optimistic entry: it then inherits
	// the optimistic entry's SortAt so the row keeps its display
	// position instead of jumping to the end of the list.
	SortAt time.Time

	Origin Origin
}

// OrderKey returns the timestamp this message sorts on.
func (m Message) OrderKey() time.Time {
	if !m.SortAt.IsZero() {
		return m.SortAt
	}
	return m.CreatedAt
}

// sortID disambiguates messages sharing the same timestamp.
// Optimistic entries have no server ID yet, so the correlation id
// stands in for it.
func (m Message) sortID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.CorrelationID.String()
}

// Less is the single sort key for the merged view: ordering timestamp,
// ties broken by id string comparison.
func Less(a, b Message) bool {
	if !a.OrderKey().Equal(b.OrderKey()) {
		return a.OrderKey().Before(b.OrderKey())
	}
	return a.sortID() < b.sortID()
}

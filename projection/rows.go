// Package projection derives render-ready rows from the store's
// ordered view. It holds no state of its own.
package projection

import (
	"time"

	"chat-sync/domain/chat"
)

// DefaultGroupGap is the maximum time between two consecutive messages
// of the same sender for them to collapse into one visual group.
const DefaultGroupGap = 5 * time.Minute

// Row pairs a message with its grouping flag. Whether consecutive
// messages collapse is purely a property of the sorted view and sender
// equality between neighbors.
type Row struct {
	Message             chat.Message
	GroupedWithPrevious bool
}

// Rows computes grouping over an already sorted view.
func Rows(view []chat.Message, gap time.Duration) []Row {
	if gap <= 0 {
		gap = DefaultGroupGap
	}

	rows := make([]Row, len(view))
	for i, m := range view {
		grouped := false
		if i > 0 {
			prev := view[i-1]
			grouped = prev.Sender.UserID == m.Sender.UserID &&
				m.OrderKey().Sub(prev.OrderKey()) <= gap
		}
		rows[i] = Row{Message: m, GroupedWithPrevious: grouped}
	}
	return rows
}

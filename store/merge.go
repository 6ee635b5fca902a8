package store

import (
	"sort"

	"chat-sync/domain/chat"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Merge builds the render list from the two logical sources. It is a
// pure function of its inputs so reconciliation can be property-tested
// independent of transport.
//
// Dedup rules: confirmed entries win over pending ones sharing a
// correlation id, and a server id appears at most once.
func Merge(confirmed, pending []chat.Message) []chat.Message {
	seenIDs := make(map[string]struct{}, len(confirmed))
	seenCorr := make(map[uuid.UUID]struct{}, len(confirmed))

	merged := make([]chat.Message, 0, len(confirmed)+len(pending))
	for _, m := range confirmed {
		if m.ID != "" {
			if _, dup := seenIDs[m.ID]; dup {
				continue
			}
			seenIDs[m.ID] = struct{}{}
		}
		if m.CorrelationID != uuid.Nil {
			seenCorr[m.CorrelationID] = struct{}{}
		}
		merged = append(merged, m)
	}

	remaining := lo.Filter(pending, func(p chat.Message, _ int) bool {
		_, confirmedAlready := seenCorr[p.CorrelationID]
		return !confirmedAlready
	})
	merged = append(merged, remaining...)

	sort.SliceStable(merged, func(i, j int) bool {
		return chat.Less(merged[i], merged[j])
	})
	return merged
}

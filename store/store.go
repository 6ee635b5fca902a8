// Package store is the reconciliation core: it merges authoritative
// (server-confirmed) messages, optimistic (unconfirmed) messages, and
// deletion events into one ordered, duplicate-free view.
package store

import (
	"log/slog"
	"sync"
	"time"

	"chat-sync/domain/chat"
	"chat-sync/observability"

	"github.com/google/uuid"
)

// dedupWindow bounds the sender+body heuristic used to match an echoed
// broadcast to an in-flight optimistic entry when the backend did not
// echo the correlation id.
const dedupWindow = 10 * time.Second

// Snapshot retains everything needed to undo a removal, including the
// ordering timestamp, so a failed delete reinserts the message at its
// original sorted position.
type Snapshot struct {
	Message chat.Message
}

// Store holds the message state for one active conversation.
//
// Inbound channel events and REST completions land on different
// goroutines, so every mutation takes the mutex: the merge is atomic
// from any caller's perspective and correct under either arrival
// order.
type Store struct {
	log     *slog.Logger
	metrics *observability.Manager

	mu        sync.Mutex
	confirmed []chat.Message
	pending   []chat.Message
	// tombstones holds ids the channel reported deleted. A failed local
	// delete must not restore an id the counterpart already deleted.
	tombstones map[string]struct{}
	closed     bool
}

func NewStore(log *slog.Logger, metrics *observability.Manager) *Store {
	return &Store{
		log:        log,
		metrics:    metrics,
		tombstones: make(map[string]struct{}),
	}
}

// LoadConfirmed replaces the confirmed set wholesale, used on the
// initial history fetch. An empty history is a normal state, not an
// error; transport failures are the API client's to report.
//
// Pending entries already present in the loaded history (matched by
// correlation id or by the sender+body heuristic) are dropped so a
// refetch after reconnect cannot resurrect a duplicate.
func (s *Store) LoadConfirmed(messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.confirmed = s.confirmed[:0]
	// The fetch is authoritative: an id it still contains was not
	// deleted after all, so tombstones do not survive a reload.
	s.tombstones = make(map[string]struct{})
	seen := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		norm := normalizeConfirmed(m)
		if norm.ID != "" {
			if _, dup := seen[norm.ID]; dup {
				continue
			}
			seen[norm.ID] = struct{}{}
		}
		s.confirmed = append(s.confirmed, norm)
		if idx := s.matchPendingLocked(norm); idx >= 0 {
			s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
			s.metrics.DedupHit()
		}
	}
}

// AppendOptimistic inserts a draft into the pending set and returns
// its correlation id immediately, so the UI reflects the send before
// the network call completes.
func (s *Store) AppendOptimistic(draft chat.Draft) uuid.UUID {
	corr := uuid.New()
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return corr
	}

	s.pending = append(s.pending, chat.Message{
		CorrelationID: corr,
		Conversation:  draft.Conversation,
		Sender:        draft.Sender,
		Body:          draft.Body,
		Attachments:   draft.Attachments,
		CreatedAt:     now,
		SortAt:        now,
		Origin:        chat.OriginOptimistic,
	})
	return corr
}

// ConfirmOptimistic replaces the matching pending entry with the
// server message, preserving the display position the optimistic entry
// held. This is the anti-flicker invariant: the confirmed row must not
// jump to end-of-list on timestamp drift.
func (s *Store) ConfirmOptimistic(corr uuid.UUID, server chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.confirmLocked(corr, server)
}

// RollbackOptimistic removes the pending entry without adding a
// confirmed one. Removing an unknown correlation id is a no-op.
func (s *Store) RollbackOptimistic(corr uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for i, p := range s.pending {
		if p.CorrelationID == corr {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// ReceiveConfirmed reconciles an inbound new_message broadcast.
//
// A broadcast matching an in-flight pending entry (echoed correlation
// id first, sender+body+time-window fallback) confirms it in place;
// anything else is appended as a message from another participant.
// Re-delivery of an already known id is silently absorbed, which keeps
// the merge commutative with the send pipeline's own confirmation.
func (s *Store) ReceiveConfirmed(server chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if server.ID != "" && s.hasConfirmedLocked(server.ID) {
		s.metrics.DedupHit()
		return
	}

	norm := normalizeConfirmed(server)
	if idx := s.matchPendingLocked(norm); idx >= 0 {
		s.confirmLocked(s.pending[idx].CorrelationID, server)
		return
	}

	s.confirmed = append(s.confirmed, norm)
	s.metrics.Appended()
}

// RemoveConfirmed removes a confirmed message by id, returning a
// snapshot for the delete pipeline's rollback. ok is false when the id
// is already absent, which is a normal race outcome, not an error.
func (s *Store) RemoveConfirmed(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, false
	}

	for i, m := range s.confirmed {
		if m.ID == id {
			s.confirmed = append(s.confirmed[:i], s.confirmed[i+1:]...)
			return Snapshot{Message: m}, true
		}
	}
	s.metrics.DeleteNoop()
	return Snapshot{}, false
}

// Restore reinserts a previously removed message. The snapshot kept
// its SortAt, so the row reappears at its original position. A no-op
// when the id was deleted remotely in the meantime: the broadcast won
// the race and the deletion must stick.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, deleted := s.tombstones[snap.Message.ID]; deleted {
		return
	}
	if snap.Message.ID != "" && s.hasConfirmedLocked(snap.Message.ID) {
		return
	}
	s.confirmed = append(s.confirmed, snap.Message)
}

// ReceiveDeleted removes a confirmed message deleted by any client.
// Idempotent: the local optimistic-delete path and the remote
// broadcast path may race to remove the same id. The id is tombstoned
// either way, so an outstanding delete snapshot cannot resurrect it.
func (s *Store) ReceiveDeleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if id != "" {
		s.tombstones[id] = struct{}{}
	}

	for i, m := range s.confirmed {
		if m.ID == id {
			s.confirmed = append(s.confirmed[:i], s.confirmed[i+1:]...)
			return
		}
	}
	s.metrics.DeleteNoop()
}

// View returns the merged, sorted, deduplicated list for rendering. It
// is recomputed from {confirmed, pending} on every call; no memo to
// invalidate.
func (s *Store) View() []chat.Message {
	s.mu.Lock()
	confirmed := append([]chat.Message(nil), s.confirmed...)
	pending := append([]chat.Message(nil), s.pending...)
	s.mu.Unlock()

	return Merge(confirmed, pending)
}

// Close marks the store disposed. Later mutations become silent no-ops
// so in-flight REST completions and stray channel events can land
// after the owning view is gone without blowing up.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.confirmed = nil
	s.pending = nil
	s.tombstones = nil
}

// confirmLocked moves the pending entry identified by corr into the
// confirmed set, inheriting its ordering slot. Without a matching
// pending entry (the channel echo may have won the race) it degrades
// to an idempotent insert.
func (s *Store) confirmLocked(corr uuid.UUID, server chat.Message) {
	norm := normalizeConfirmed(server)
	norm.CorrelationID = corr

	for i, p := range s.pending {
		if p.CorrelationID == corr {
			norm.SortAt = p.SortAt
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			if norm.ID == "" || !s.hasConfirmedLocked(norm.ID) {
				s.confirmed = append(s.confirmed, norm)
			}
			s.metrics.ConfirmedInPlace()
			return
		}
	}

	if norm.ID != "" && s.hasConfirmedLocked(norm.ID) {
		s.metrics.DedupHit()
		return
	}
	s.confirmed = append(s.confirmed, norm)
}

func (s *Store) hasConfirmedLocked(id string) bool {
	for _, m := range s.confirmed {
		if m.ID == id {
			return true
		}
	}
	return false
}

// matchPendingLocked finds the pending entry a confirmed message
// corresponds to: echoed correlation id first, then the heuristic
// fallback for backends that do not echo it.
func (s *Store) matchPendingLocked(server chat.Message) int {
	if server.CorrelationID != uuid.Nil {
		for i, p := range s.pending {
			if p.CorrelationID == server.CorrelationID {
				return i
			}
		}
	}
	for i, p := range s.pending {
		if p.Sender.UserID != server.Sender.UserID || p.Body != server.Body {
			continue
		}
		gap := server.CreatedAt.Sub(p.CreatedAt)
		if gap < 0 {
			gap = -gap
		}
		if gap <= dedupWindow {
			return i
		}
	}
	return -1
}

func normalizeConfirmed(m chat.Message) chat.Message {
	m.Origin = chat.OriginConfirmed
	if m.SortAt.IsZero() {
		m.SortAt = m.CreatedAt
	}
	return m
}

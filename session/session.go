// Package session binds a mounted conversation view to the shared
// channel client. It scopes inbound events to the joined conversation
// and silently drops the rest.
package session

import (
	"context"
	"log/slog"
	"sync"

	"chat-sync/contract"
	"chat-sync/domain/chat"
	"chat-sync/domain/event"
	"chat-sync/observability"
)

// RoomSession holds at most one joined room at a time. Join is
// idempotent and Leave is guaranteed-safe to call on any teardown
// path, so rapid view mounts and unmounts cannot leak subscriptions.
type RoomSession struct {
	log     *slog.Logger
	channel contract.Channel
	sink    contract.EventSink
	metrics *observability.Manager

	mu      sync.Mutex
	joined  chat.ConversationID
	sub     contract.Subscription
	cancels []func()
}

func NewRoomSession(channel contract.Channel, sink contract.EventSink,
	log *slog.Logger, metrics *observability.Manager) *RoomSession {
	return &RoomSession{
		log:     log,
		channel: channel,
		sink:    sink,
		metrics: metrics,
	}
}

// Join subscribes to a conversation. Joining the already joined
// conversation is a no-op; joining a different one leaves the previous
// room first, so a session holds exactly one joined room.
func (s *RoomSession) Join(conversation chat.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.joined == conversation {
		return nil
	}
	if s.joined != "" {
		s.leaveLocked()
	}

	sub, err := s.channel.Subscribe(conversation)
	if err != nil {
		return err
	}
	s.joined = conversation
	s.sub = sub

	s.cancels = []func(){
		s.channel.OnNewMessage(s.forwardMessage),
		s.channel.OnMessageDeleted(s.forwardDeleted),
		s.channel.OnStateChange(s.onStateChange),
	}
	return nil
}

// Leave releases the subscription and handler registrations. Safe to
// call repeatedly; meant to run on every view teardown path.
func (s *RoomSession) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveLocked()
}

// Joined returns the currently joined conversation, empty when none.
func (s *RoomSession) Joined() chat.ConversationID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

func (s *RoomSession) leaveLocked() {
	if s.sub != nil {
		if err := s.sub.Cancel(); err != nil {
			s.log.Warn("Error while leaving room", "conversation", s.joined, "err", err)
		}
		s.sub = nil
	}
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	s.joined = ""
}

func (s *RoomSession) forwardMessage(e event.MessageReceived) {
	s.forward(e)
}

func (s *RoomSession) forwardDeleted(e event.MessageDeleted) {
	s.forward(e)
}

// forward passes an event to the sink only when it belongs to the
// joined conversation. Foreign events are dropped, not queued.
func (s *RoomSession) forward(e event.ChannelEvent) {
	s.mu.Lock()
	joined := s.joined
	s.mu.Unlock()

	if joined == "" || e.ConversationID() != joined {
		s.metrics.EventDroppedForeign()
		return
	}
	if err := s.sink.Consume(context.Background(), e); err != nil {
		s.log.Error("Error while consuming channel event", "err", err)
	}
}

// onStateChange re-subscribes the joined room after a reconnect. The
// channel client forgets rooms across a full disconnect on purpose, so
// rejoining is this session's deliberate decision.
func (s *RoomSession) onStateChange(state contract.ConnectionState) {
	if state != contract.StateIdentified {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joined == "" {
		return
	}
	sub, err := s.channel.Subscribe(s.joined)
	if err != nil {
		s.log.Warn("Error while rejoining room after reconnect", "conversation", s.joined, "err", err)
		return
	}
	s.sub = sub
}

// Package channel owns the single long-lived connection to the
// messaging backend. One physical connection is shared process-wide;
// opening a second one per conversation is disallowed since the
// backend binds delivery to a connection+identity pair.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-sync/contract"
	"chat-sync/domain/chat"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"

	"nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

// Config defines the connection parameters.
type Config struct {
	URL                  string
	HandshakeTimeout     time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
}

func (c *Config) defaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
}

// Client implements contract.Channel over a websocket.
//
// The client does not remember room subscriptions across a full
// disconnect; after re-identifying it emits StateIdentified and the
// owning room sessions re-subscribe deliberately.
type Client struct {
	cfg        Config
	log        *slog.Logger
	metrics    *observability.Manager
	dispatcher *dispatcher

	mu          sync.Mutex
	conn        *websocket.Conn
	state       contract.ConnectionState
	identity    chat.Identity
	intentional bool
	cancel      context.CancelFunc
}

var _ contract.Channel = (*Client)(nil)

func NewClient(cfg Config, log *slog.Logger, metrics *observability.Manager) *Client {
	cfg.defaults()
	return &Client{
		cfg:        cfg,
		log:        log,
		metrics:    metrics,
		dispatcher: newDispatcher(),
		state:      contract.StateDisconnected,
	}
}

func (c *Client) OnNewMessage(h func(event.MessageReceived)) (cancel func()) {
	return c.dispatcher.addMessage(h)
}

func (c *Client) OnMessageDeleted(h func(event.MessageDeleted)) (cancel func()) {
	return c.dispatcher.addDeleted(h)
}

func (c *Client) OnStateChange(h func(contract.ConnectionState)) (cancel func()) {
	return c.dispatcher.addState(h)
}

func (c *Client) State() contract.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the backend and performs the identify handshake.
// Calling it while already connected is a no-op. An initial failure
// runs through the same bounded backoff budget as a dropped
// connection; only a spent budget surfaces an error, leaving the
// client in a persistent disconnected state. The read loop is tied
// to the client lifecycle, not to ctx: the connection outlives the
// caller and is torn down by Disconnect.
func (c *Client) Connect(ctx context.Context, identity chat.Identity) error {
	c.mu.Lock()
	if c.state != contract.StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.identity = identity
	c.intentional = false
	c.mu.Unlock()

	c.setState(contract.StateConnecting)
	if err := c.establish(ctx); err != nil {
		c.setState(contract.StateDisconnected)
		c.log.Warn("Initial connection failed, retrying with backoff", "err", err)
		if !c.reconnect(ctx) {
			return fmt.Errorf("connect %s: %w", c.cfg.URL, errors.ErrAttemptsSpent)
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	go c.readLoop(runCtx)
	return nil
}

// Disconnect tears the connection down and releases it. Registered
// handlers stay registered but receive nothing until the next Connect.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.intentional = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.setState(contract.StateDisconnected)
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}

// Subscribe joins a room on the shared connection and returns the
// handle used to leave it.
func (c *Client) Subscribe(conversation chat.ConversationID) (contract.Subscription, error) {
	if err := c.send(command{
		Type:    typeJoinChat,
		Payload: roomPayload{ConversationID: string(conversation)},
	}); err != nil {
		return nil, err
	}
	return &subscription{client: c, conversation: conversation}, nil
}

// establish dials, then identifies, within the handshake timeout.
// Both steps failing is a TransportError, never a panic.
func (c *Client) establish(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return &errors.TransportError{Op: "dial", Err: err}
	}
	c.setState(contract.StateConnected)

	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()

	raw, err := json.Marshal(command{
		Type:    typeIdentify,
		Payload: identifyPayload{UserID: identity.UserID, Role: identity.Role},
	})
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "identify encode")
		return &errors.TransportError{Op: "identify", Err: err}
	}
	if err := conn.Write(dialCtx, websocket.MessageText, raw); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "identify write")
		return &errors.TransportError{Op: "identify", Err: err}
	}

	_, reply, err := conn.Read(dialCtx)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "identify read")
		return &errors.TransportError{Op: "identify", Err: err}
	}
	var env Envelope
	if err := json.Unmarshal(reply, &env); err != nil || env.Type != typeIdentified {
		_ = conn.Close(websocket.StatusProtocolError, "unexpected handshake reply")
		return &errors.TransportError{Op: "identify", Err: errors.ErrHandshakeReply}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(contract.StateIdentified)
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil || ctx.Err() != nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			intentional := c.intentional
			c.conn = nil
			c.mu.Unlock()
			if intentional || ctx.Err() != nil {
				return
			}

			c.setState(contract.StateDisconnected)
			if !c.reconnect(ctx) {
				if ctx.Err() == nil {
					// Degraded mode: live updates are gone but send and
					// delete keep working over REST.
					c.log.Error("Reconnect attempts exhausted, live updates unavailable", "err", errors.ErrAttemptsSpent)
				}
				return
			}
			continue
		}
		c.handleFrame(data)
	}
}

// reconnect retries with bounded backoff, re-identifying on each
// attempt. Returns false once the attempt budget is spent.
func (c *Client) reconnect(ctx context.Context) bool {
	recon := newReconnector(c.cfg)
	for !recon.exhausted() {
		delay := recon.nextDelay()
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		c.metrics.Reconnect()
		c.setState(contract.StateConnecting)
		if err := c.establish(ctx); err != nil {
			c.log.Warn("Reconnect attempt failed", "attempt", recon.attempt, "err", err)
			c.setState(contract.StateDisconnected)
			continue
		}
		return true
	}
	return false
}

func (c *Client) handleFrame(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Debug("Dropping malformed frame", "err", err)
		return
	}

	switch env.Type {
	case typeNewMessage:
		var p newMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Debug("Dropping malformed new_message payload", "err", err)
			return
		}
		c.metrics.EventReceived()
		c.dispatcher.emitMessage(p.toEvent())
	case typeMessageDeleted:
		var p messageDeletedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Debug("Dropping malformed message_deleted payload", "err", err)
			return
		}
		c.metrics.EventReceived()
		c.dispatcher.emitDeleted(p.toEvent())
	default:
		c.log.Debug(fmt.Sprintf("Not implemented frame type : %s", env.Type))
	}
}

func (c *Client) send(cmd command) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.ErrNotConnected
	}

	raw, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
		return &errors.TransportError{Op: "send " + cmd.Type, Err: err}
	}
	return nil
}

func (c *Client) setState(s contract.ConnectionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.metrics.SetState(s)
	c.dispatcher.emitState(s)
}

type subscription struct {
	client       *Client
	conversation chat.ConversationID
	once         sync.Once
}

func (s *subscription) Conversation() chat.ConversationID {
	return s.conversation
}

// Cancel sends leave_chat and releases the handle. After a full
// disconnect the server has forgotten the room anyway, so a dead
// connection is not an error here.
func (s *subscription) Cancel() error {
	var err error
	s.once.Do(func() {
		sendErr := s.client.send(command{
			Type:    typeLeaveChat,
			Payload: roomPayload{ConversationID: string(s.conversation)},
		})
		if sendErr != nil && sendErr != errors.ErrNotConnected {
			err = sendErr
		}
	})
	return err
}

// Package api is the REST client for the message collaborator owning
// persistence. It never mutates the store; pipelines do that.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-sync/contract"
	"chat-sync/domain/chat"
	"chat-sync/errors"

	"github.com/samber/lo"
)

const DefaultTimeout = 30 * time.Second

// noHistoryMessage is the backend's normal empty-state reply for a
// fresh conversation. It maps to success with an empty list, distinct
// from a transport error which propagates to the caller.
const noHistoryMessage = "No chat history found"

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

var _ contract.MessageAPI = (*Client)(nil)

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithToken sets the bearer token issued by the auth collaborator.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func NewClient(baseURL string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches the full history of a conversation.
func (c *Client) List(ctx context.Context, conversation chat.ConversationID) ([]chat.Message, error) {
	path := "/messages?conversation=" + url.QueryEscape(string(conversation))
	env, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &errors.RequestError{Op: "list messages", Err: err}
	}
	if strings.EqualFold(env.Message, noHistoryMessage) {
		return nil, nil
	}
	if status >= http.StatusMultipleChoices || !env.Success {
		return nil, &errors.RequestError{Op: "list messages", Status: status, Err: fmt.Errorf("%s", env.Message)}
	}

	var data []wireMessage
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &errors.RequestError{Op: "list messages", Status: status, Err: err}
	}
	return lo.Map(data, func(w wireMessage, _ int) chat.Message {
		return toDomain(w)
	}), nil
}

// Create persists a message, threading the correlation id so the
// backend can echo it in the new_message broadcast.
func (c *Client) Create(ctx context.Context, req contract.SendRequest) (chat.Message, error) {
	body := createRequest{
		ConversationID: string(req.Conversation),
		SenderType:     req.Sender.Role,
		Body:           req.Body,
		Attachments: lo.Map(req.Attachments, func(a chat.Attachment, _ int) string {
			return a.URL
		}),
		CorrelationID: req.CorrelationID.String(),
	}

	env, status, err := c.do(ctx, http.MethodPost, "/messages", body)
	if err != nil {
		return chat.Message{}, &errors.RequestError{Op: "create message", Err: err}
	}
	if status >= http.StatusMultipleChoices || !env.Success {
		return chat.Message{}, &errors.RequestError{Op: "create message", Status: status, Err: fmt.Errorf("%s", env.Message)}
	}

	var data wireMessage
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return chat.Message{}, &errors.RequestError{Op: "create message", Status: status, Err: err}
	}
	return toDomain(data), nil
}

// Delete removes a persisted message by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	env, status, err := c.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id), nil)
	if err != nil {
		return &errors.RequestError{Op: "delete message", Err: err}
	}
	if status >= http.StatusMultipleChoices || !env.Success {
		return &errors.RequestError{Op: "delete message", Status: status, Err: fmt.Errorf("%s", env.Message)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (envelope, int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return envelope{}, 0, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return envelope{}, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	// Error replies also carry the envelope; a decode failure there is
	// fine, the status code alone decides.
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && resp.StatusCode < http.StatusMultipleChoices {
		return envelope{}, resp.StatusCode, err
	}
	return env, resp.StatusCode, nil
}

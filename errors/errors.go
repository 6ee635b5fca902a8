package errors

import "fmt"

var (
	ErrNotConnected   = fmt.Errorf("channel is not connected")
	ErrNotIdentified  = fmt.Errorf("channel is connected but not identified")
	ErrStoreClosed    = fmt.Errorf("message store is closed")
	ErrEmptyDraft     = fmt.Errorf("draft has no body and no attachments")
	ErrInvalidToken   = fmt.Errorf("session token is invalid")
	ErrTokenExpired   = fmt.Errorf("session token has expired")
	ErrAttemptsSpent  = fmt.Errorf("reconnect attempts exhausted")
	ErrHandshakeReply = fmt.Errorf("unexpected handshake reply")
)

// TransportError covers connection and handshake failures. It is
// retried with backoff and surfaced only as degraded-connectivity
// state, never as a per-message error.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RequestError covers a failed REST call. The optimistic mutation that
// triggered it is rolled back and the failure is surfaced to the user
// as a retryable action failure.
type RequestError struct {
	Op     string
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request: %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("request: %s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

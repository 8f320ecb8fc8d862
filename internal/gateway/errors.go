package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected      = errors.New("gateway: not connected")
	ErrHandshakeRejected = errors.New("gateway: handshake rejected")
	ErrMalformedFrame    = errors.New("gateway: malformed frame")
	ErrSessionClosed     = errors.New("gateway: session closed")
)

// CloseError carries the close code and reason of a dropped transport.
// Every request still pending when the transport goes away fails with one.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("gateway: connection closed (code=%d)", e.Code)
	}
	return fmt.Sprintf("gateway: connection closed (code=%d): %s", e.Code, e.Reason)
}

// RPCError is the server-side rejection of one request.
type RPCError struct {
	Message string `json:"message,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return "gateway: request failed"
	}
	return "gateway: request failed: " + e.Message
}

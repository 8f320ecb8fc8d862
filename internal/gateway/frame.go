package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Frame kinds carried in the wire "type" discriminant.
const (
	FrameEvent    = "event"
	FrameRequest  = "req"
	FrameResponse = "res"
)

// Frame is one decoded wire message. Exactly one kind-specific field set is
// meaningful, selected by Type.
type Frame struct {
	Type string `json:"type"`

	// event
	Event string `json:"event,omitempty"`
	Seq   uint64 `json:"seq,omitempty"`

	// req + res
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// res
	OK    bool            `json:"ok,omitempty"`
	Error *RPCError       `json:"error,omitempty"`

	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeFrame performs structural validation only: the data must be JSON
// with a recognized type discriminant. Semantic checks (unknown event
// names, unknown response ids) are the caller's concern.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch f.Type {
	case FrameEvent, FrameRequest, FrameResponse:
		return f, nil
	default:
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, f.Type)
	}
}

type requestFrame struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// EncodeRequest serializes one outgoing request frame.
func EncodeRequest(id, method string, params any) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: request missing id", ErrMalformedFrame)
	}
	if strings.TrimSpace(method) == "" {
		return nil, fmt.Errorf("%w: request missing method", ErrMalformedFrame)
	}
	return json.Marshal(requestFrame{
		Type:   FrameRequest,
		ID:     id,
		Method: method,
		Params: params,
	})
}

type eventFrame struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
	Seq     uint64 `json:"seq,omitempty"`
}

// EncodeEvent serializes one event frame. The client core never sends
// events; this exists for gateway-side tooling and tests.
func EncodeEvent(name string, payload any, seq uint64) ([]byte, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: event missing name", ErrMalformedFrame)
	}
	return json.Marshal(eventFrame{
		Type:    FrameEvent,
		Event:   name,
		Payload: payload,
		Seq:     seq,
	})
}

type responseFrame struct {
	Type    string    `json:"type"`
	ID      string    `json:"id"`
	OK      bool      `json:"ok"`
	Payload any       `json:"payload,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// EncodeResponse serializes one response frame for request id.
func EncodeResponse(id string, ok bool, payload any, errMessage string) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: response missing id", ErrMalformedFrame)
	}
	out := responseFrame{
		Type:    FrameResponse,
		ID:      id,
		OK:      ok,
		Payload: payload,
	}
	if !ok {
		out.Error = &RPCError{Message: errMessage}
	}
	return json.Marshal(out)
}

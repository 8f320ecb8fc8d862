package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one raw connection to the gateway. A Session owns at most
// one Transport at a time and never reuses an instance across connects.
type Transport interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

// codeCloser is the optional capability of closing with a specific close
// code. The session uses it to mark a failed handshake as fatal.
type codeCloser interface {
	CloseWithCode(code int, reason string) error
}

// DialFunc constructs a fresh Transport for one connection attempt.
type DialFunc func(cfg Config) Transport

func newWebSocketTransport(cfg Config) Transport {
	return &wsTransport{
		url:          cfg.URL,
		dialTimeout:  cfg.DialTimeout,
		writeTimeout: 10 * time.Second,
	}
}

// wsTransport adapts a gorilla/websocket connection. Receive errors caused
// by the peer closing the socket come back as *CloseError so the session
// can carry the close code into pending-request failures.
type wsTransport struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	url          string
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

func (t *wsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = t.dialTimeout

	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

func (t *wsTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotConnected
	}
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Receive() ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, wrapReceiveError(err)
	}
	return data, nil
}

func (t *wsTransport) Close() error {
	return t.CloseWithCode(websocket.CloseNormalClosure, "")
}

func (t *wsTransport) CloseWithCode(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	err := t.conn.Close()
	t.conn = nil
	return err
}

func wrapReceiveError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return &CloseError{Code: closeErr.Code, Reason: closeErr.Text}
	}
	return &CloseError{Code: websocket.CloseAbnormalClosure, Reason: err.Error()}
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Close codes the session uses on its own behalf. 4xxx is the private-use
// range; the gateway never emits it.
const (
	CloseCodeNormal          = 1000
	CloseCodeAbnormal        = 1006
	CloseCodeHandshakeFailed = 4002
)

// State is the session connection state. Transitions are monotonic for a
// given transport instance.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateHandshaking
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Callbacks receives session notifications. One subscriber per slot;
// registering a new set replaces the previous one, and the latest set is
// always the one invoked even while a connection is in flight. Nil slots
// are skipped.
type Callbacks struct {
	OnEvent func(name string, payload json.RawMessage, seq uint64)
	OnHello func(payload json.RawMessage)
	OnClose func(reason string)
	OnError func(err error)
}

// Session maintains one logical connection to the gateway. A fresh
// transport instance and a fresh pending-request table are created on
// every Connect; nothing but Config survives a reconnect.
type Session struct {
	cfg  Config
	dial DialFunc

	mu            sync.Mutex
	state         State
	transport     Transport
	pending       *pendingTable
	handshakeSent bool
	settleTimer   *time.Timer
	callbacks     Callbacks
}

// NewSession builds a session from cfg. The session does not connect
// until Connect is called.
func NewSession(cfg Config) *Session {
	cfg = cfg.WithDefaults()
	dial := cfg.Dial
	if dial == nil {
		dial = newWebSocketTransport
	}
	return &Session{
		cfg:     cfg,
		dial:    dial,
		state:   StateIdle,
		pending: newPendingTable(),
	}
}

// SetCallbacks replaces the registered callback set.
func (s *Session) SetCallbacks(cb Callbacks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = cb
}

// State reports the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the handshake has completed on the current
// transport instance.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// Connect opens a new transport and schedules the handshake. It is a
// no-op when the session is closed, the URL is empty, or a transport is
// already connecting or open.
func (s *Session) Connect() {
	s.mu.Lock()
	if s.state == StateClosed || s.cfg.URL == "" || s.transport != nil {
		s.mu.Unlock()
		return
	}
	t := s.dial(s.cfg)
	s.transport = t
	s.pending = newPendingTable()
	s.handshakeSent = false
	s.state = StateConnecting
	s.mu.Unlock()

	go s.open(t)
}

func (s *Session) open(t Transport) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	defer cancel()

	if err := t.Connect(ctx); err != nil {
		s.mu.Lock()
		stale := s.transport != t
		if !stale {
			s.transport = nil
			s.state = StateIdle
		}
		cb := s.callbacks
		s.mu.Unlock()
		if stale {
			return
		}
		s.cfg.Logger.Warn().Err(err).Str("url", s.cfg.URL).Msg("gateway dial failed")
		if cb.OnError != nil {
			cb.OnError(err)
		}
		if cb.OnClose != nil {
			cb.OnClose("dial failed: " + err.Error())
		}
		return
	}

	s.mu.Lock()
	if s.transport != t {
		// Disconnected while the dial was in flight.
		s.mu.Unlock()
		_ = t.Close()
		return
	}
	s.state = StateHandshaking
	// Give slow gateway-side setup a moment before the handshake. A
	// server challenge cancels the wait.
	s.settleTimer = time.AfterFunc(s.cfg.SettleDelay, func() {
		s.sendHandshake(t)
	})
	s.mu.Unlock()

	s.readLoop(t)
}

// sendHandshake sends the connect request at most once per transport
// instance. The handshakeSent flag is the authoritative guard; timer
// cancellation is best effort.
func (s *Session) sendHandshake(t Transport) {
	s.mu.Lock()
	if s.transport != t || s.handshakeSent {
		s.mu.Unlock()
		return
	}
	s.handshakeSent = true
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
	pending := s.pending
	s.mu.Unlock()

	id := uuid.NewString()
	data, err := EncodeRequest(id, MethodConnect, connectParamsFor(s.cfg))
	if err != nil {
		s.failHandshake(t, err)
		return
	}
	call := pending.add(id)
	if err := t.Send(data); err != nil {
		pending.reject(id, err)
		s.failHandshake(t, err)
		return
	}
	s.cfg.Logger.Debug().Str("request_id", id).Msg("handshake sent")

	go s.awaitHello(t, call)
}

func (s *Session) awaitHello(t Transport, call *Call) {
	<-call.Done()
	if err := call.Err(); err != nil {
		var closeErr *CloseError
		if errors.As(err, &closeErr) {
			// The transport dropped mid-handshake; the close path has
			// already purged and notified.
			return
		}
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			err = fmt.Errorf("%w: %s", ErrHandshakeRejected, rpcErr.Message)
		}
		s.failHandshake(t, err)
		return
	}

	s.mu.Lock()
	if s.transport != t {
		s.mu.Unlock()
		return
	}
	s.state = StateConnected
	cb := s.callbacks
	s.mu.Unlock()

	s.cfg.Logger.Info().Str("url", s.cfg.URL).Msg("gateway session connected")
	if cb.OnHello != nil {
		cb.OnHello(call.Payload())
	}
}

// failHandshake tears down the connection attempt. A failed handshake is
// fatal to its transport and is never retried on it.
func (s *Session) failHandshake(t Transport, err error) {
	s.mu.Lock()
	if s.transport != t {
		s.mu.Unlock()
		return
	}
	s.transport = nil
	s.state = StateIdle
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
	pending := s.pending
	cb := s.callbacks
	s.mu.Unlock()

	reason := "handshake failed: " + err.Error()
	s.cfg.Logger.Warn().Err(err).Msg("gateway handshake failed")
	pending.purge(&CloseError{Code: CloseCodeHandshakeFailed, Reason: reason})
	if closer, ok := t.(codeCloser); ok {
		_ = closer.CloseWithCode(CloseCodeHandshakeFailed, "handshake failed")
	} else {
		_ = t.Close()
	}
	if cb.OnClose != nil {
		cb.OnClose(reason)
	}
}

func (s *Session) readLoop(t Transport) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()

	for {
		data, err := t.Receive()
		if err != nil {
			s.handleTransportClose(t, err)
			return
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			// Malformed frames must not crash the session.
			s.cfg.Logger.Debug().Err(err).Msg("dropping malformed frame")
			continue
		}

		switch frame.Type {
		case FrameEvent:
			if frame.Event == EventChallenge {
				s.sendHandshake(t)
				continue
			}
			s.mu.Lock()
			cb := s.callbacks
			s.mu.Unlock()
			if cb.OnEvent != nil {
				cb.OnEvent(frame.Event, frame.Payload, frame.Seq)
			}
		case FrameResponse:
			if frame.OK {
				pending.resolve(frame.ID, frame.Payload)
			} else {
				rpcErr := frame.Error
				if rpcErr == nil {
					rpcErr = &RPCError{}
				}
				pending.reject(frame.ID, rpcErr)
			}
		case FrameRequest:
			// Gateway-to-client requests are not part of this protocol
			// revision; connect.challenge covers the one server-initiated
			// flow. Drop them.
			s.cfg.Logger.Debug().Str("method", frame.Method).Msg("ignoring server request frame")
		}
	}
}

func (s *Session) handleTransportClose(t Transport, err error) {
	s.mu.Lock()
	if s.transport != t {
		s.mu.Unlock()
		return
	}
	s.transport = nil
	s.state = StateIdle
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
	pending := s.pending
	cb := s.callbacks
	s.mu.Unlock()

	closeErr := asCloseError(err)
	s.cfg.Logger.Info().Int("code", closeErr.Code).Str("reason", closeErr.Reason).
		Msg("gateway connection closed")
	if closeErr.Code != CloseCodeNormal && cb.OnError != nil {
		cb.OnError(err)
	}
	pending.purge(closeErr)
	_ = t.Close()
	if cb.OnClose != nil {
		cb.OnClose(closeErr.Error())
	}
}

// Disconnect cancels any pending handshake timer, closes the transport if
// one is present, and fails every outstanding request. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
	t := s.transport
	s.transport = nil
	if s.state != StateClosed {
		s.state = StateIdle
	}
	pending := s.pending
	cb := s.callbacks
	s.mu.Unlock()

	if t == nil {
		return
	}
	pending.purge(&CloseError{Code: CloseCodeNormal, Reason: "client disconnect"})
	_ = t.Close()
	if cb.OnClose != nil {
		cb.OnClose("client disconnect")
	}
}

// Close disconnects and permanently disables the session. Subsequent
// Connect calls are no-ops.
func (s *Session) Close() {
	s.Disconnect()
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}

// Send issues one named request and returns its pending call. It fails
// with ErrSessionClosed on a closed session and ErrNotConnected until the
// handshake has completed on the current transport. Completions arrive in
// response order, not send order; only id correlation is guaranteed. There
// is no per-request timeout: a call stays pending until a response arrives
// or the connection closes. A connection that closes while the request is
// being encoded or written settles the call with the close error.
func (s *Session) Send(method string, params any) (*Call, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.transport == nil || s.state != StateConnected {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	t := s.transport
	pending := s.pending
	s.mu.Unlock()

	id := uuid.NewString()
	data, err := EncodeRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	call := pending.add(id)
	if err := t.Send(data); err != nil {
		pending.reject(id, err)
		return nil, err
	}
	return call, nil
}

func asCloseError(err error) *CloseError {
	var closeErr *CloseError
	if errors.As(err, &closeErr) {
		return closeErr
	}
	return &CloseError{Code: CloseCodeAbnormal, Reason: err.Error()}
}

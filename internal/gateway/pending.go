package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Call tracks one request awaiting its matching response. It completes
// exactly once: either a response frame resolves/rejects it, or a bulk
// purge fails it when the connection drops.
type Call struct {
	id       string
	queuedAt time.Time

	done    chan struct{}
	payload json.RawMessage
	err     error
}

// ID returns the wire identifier the request was sent with.
func (c *Call) ID() string { return c.id }

// Done is closed once the call has settled.
func (c *Call) Done() <-chan struct{} { return c.done }

// Payload returns the response payload. Valid only after Done is closed.
func (c *Call) Payload() json.RawMessage { return c.payload }

// Err returns the settlement error, nil on success. Valid only after Done
// is closed.
func (c *Call) Err() error { return c.err }

// Wait blocks until the call settles or ctx expires. The call itself is
// never cancelled by ctx; it stays pending until a response arrives or the
// connection closes.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.payload, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// pendingTable stores in-flight calls by request id. Removal is atomic
// with settlement so a call can never complete twice. Once purged, the
// table fails every later add with the purge error: the session releases
// its own lock between the connected check and the insert, so an add can
// race a close-time purge and must not strand the call in a dead table.
type pendingTable struct {
	mu      sync.Mutex
	calls   map[string]*Call
	failure error
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		calls: make(map[string]*Call),
	}
}

// add registers a call for id. On a purged table the call comes back
// already failed with the purge error instead of being inserted.
func (p *pendingTable) add(id string) *Call {
	call := &Call{
		id:       id,
		queuedAt: time.Now(),
		done:     make(chan struct{}),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		call.err = p.failure
		close(call.done)
		return call
	}
	p.calls[id] = call
	return call
}

// resolve settles the call for id with a payload. Unknown ids are a silent
// no-op and report false.
func (p *pendingTable) resolve(id string, payload json.RawMessage) bool {
	p.mu.Lock()
	call, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	call.payload = payload
	close(call.done)
	return true
}

// reject settles the call for id with an error. Unknown ids are a silent
// no-op and report false.
func (p *pendingTable) reject(id string, err error) bool {
	p.mu.Lock()
	call, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	call.err = err
	close(call.done)
	return true
}

// purge fails every remaining call with err, empties the table, and marks
// it so later adds fail with the same error. Safe to call on an empty
// table.
func (p *pendingTable) purge(err error) int {
	p.mu.Lock()
	calls := p.calls
	p.calls = make(map[string]*Call)
	p.failure = err
	p.mu.Unlock()

	for _, call := range calls {
		call.err = err
		close(call.done)
	}
	return len(calls)
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

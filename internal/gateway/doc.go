// Package gateway maintains the persistent client session to the backend
// gateway: one WebSocket connection exposed as a request/response channel
// plus a server-push event stream.
//
// Ownership boundary:
// - wire frame codec (event/req/res JSON frames)
// - request correlation and pending-call lifecycle
// - connect handshake, including server-issued challenges
// - transport open/close bookkeeping and caller notification
//
// Reconnect policy is deliberately not owned here: the session reports a
// close and the caller decides whether to call Connect again.
package gateway

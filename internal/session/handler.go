// Package session defines the messaging side of the gateway: the Handler
// capability set invoked for an established connection, the gorilla-backed
// Session that drives it, and the decorators that add fault containment and
// lifecycle logging around caller-supplied handlers.
package session

import (
	"github.com/gorilla/websocket"
)

// MessageType identifies a websocket data frame type.
type MessageType int

const (
	TextMessage   MessageType = websocket.TextMessage
	BinaryMessage MessageType = websocket.BinaryMessage
)

// Message is one inbound or outbound data frame.
type Message struct {
	Type MessageType
	Data []byte
}

// Text builds a text message from a string.
func Text(s string) Message {
	return Message{Type: TextMessage, Data: []byte(s)}
}

// Binary builds a binary message.
func Binary(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// CloseStatus is an RFC 6455 close code with an optional reason.
type CloseStatus struct {
	Code   int
	Reason string
}

// Common close statuses. Codes follow RFC 6455 Section 7.4.1.
var (
	CloseNormal      = CloseStatus{Code: websocket.CloseNormalClosure}
	CloseGoingAway   = CloseStatus{Code: websocket.CloseGoingAway}
	CloseAbnormal    = CloseStatus{Code: websocket.CloseAbnormalClosure}
	ClosePolicy      = CloseStatus{Code: websocket.ClosePolicyViolation}
	CloseTooBig      = CloseStatus{Code: websocket.CloseMessageTooBig}
	CloseServerError = CloseStatus{Code: websocket.CloseInternalServerErr}
)

// Peer is a handler's view of an established session: identity, the
// negotiated subprotocol, the attribute bag carried over from the handshake,
// and the write side of the connection.
type Peer interface {
	// ID returns the unique session identifier.
	ID() string

	// Subprotocol returns the negotiated subprotocol, or "" if none.
	Subprotocol() string

	// RemoteAddr returns the remote network address.
	RemoteAddr() string

	// Attributes returns the attribute bag populated during the handshake.
	// The map is session-scoped and not safe for concurrent mutation.
	Attributes() map[string]any

	// Send writes a data frame. Safe for concurrent use.
	Send(msg Message) error

	// Close sends a close frame with the given status and closes the
	// connection. Subsequent calls are no-ops.
	Close(status CloseStatus) error
}

// Handler receives lifecycle callbacks for one session.
//
// OnOpen and OnMessage may return an error to terminate the session; OnError
// and OnClose are notifications only. A Handler may serve many sessions
// concurrently.
type Handler interface {
	// OnOpen is called once, after the connection is established.
	OnOpen(p Peer) error

	// OnMessage is called for each inbound data frame.
	OnMessage(p Peer, msg Message) error

	// OnError is called when the transport or the handler itself fails.
	OnError(p Peer, err error)

	// OnClose is called exactly once when the session ends, with the close
	// status observed or produced. No callbacks follow it.
	OnClose(p Peer, status CloseStatus)
}

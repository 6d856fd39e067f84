package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Send after the session has been closed.
var ErrClosed = errors.New("session closed")

const (
	// writeWait bounds individual frame writes.
	writeWait = 10 * time.Second

	// pongWait is how long the read side waits without a pong before the
	// connection is considered dead.
	pongWait = 60 * time.Second
)

// Session is an established websocket connection. It implements Peer.
//
// Reads are owned by Serve; writes are safe for concurrent use.
type Session struct {
	id          string
	conn        *websocket.Conn
	subprotocol string
	remoteAddr  string
	attrs       map[string]any

	writeMu sync.Mutex
	closed  atomic.Bool
}

var _ Peer = (*Session)(nil)

// New wraps an upgraded connection. The attribute bag is the one populated by
// the handshake interceptors; a nil map is replaced with an empty one.
func New(conn *websocket.Conn, attrs map[string]any) *Session {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return &Session{
		id:          uuid.NewString(),
		conn:        conn,
		subprotocol: conn.Subprotocol(),
		remoteAddr:  conn.RemoteAddr().String(),
		attrs:       attrs,
	}
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Subprotocol() string     { return s.subprotocol }
func (s *Session) RemoteAddr() string      { return s.remoteAddr }
func (s *Session) Attributes() map[string]any { return s.attrs }

// Send writes a data frame to the peer.
func (s *Session) Send(msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed.Load() {
		return ErrClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(int(msg.Type), msg.Data)
}

// Close sends a close frame and tears down the connection. The first call
// wins; later calls return nil.
func (s *Session) Close(status CloseStatus) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	// WriteControl is safe concurrently with WriteMessage, so no writeMu here.
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(status.Code, status.Reason)
	s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return s.conn.Close()
}

// SetMaxMessageSize caps inbound frame sizes. Oversized frames fail the read
// with CloseMessageTooBig.
func (s *Session) SetMaxMessageSize(limit int64) {
	if limit > 0 {
		s.conn.SetReadLimit(limit)
	}
}

// Serve drives the session against the handler until the connection ends:
// OnOpen, then a read loop dispatching OnMessage, then a terminal OnClose.
// Transport failures and handler errors are reported through OnError before
// the session is closed. Serve blocks; run it on its own goroutine.
func Serve(s *Session, h Handler) {
	if err := h.OnOpen(s); err != nil {
		h.OnError(s, err)
		s.Close(CloseServerError)
		h.OnClose(s, CloseServerError)
		return
	}

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	status := CloseNormal
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			status = closeStatusFromError(err)
			if !isExpectedClose(err) {
				h.OnError(s, err)
			}
			break
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if err := h.OnMessage(s, Message{Type: MessageType(mt), Data: data}); err != nil {
			h.OnError(s, err)
			status = CloseServerError
			break
		}
	}

	s.Close(status)
	h.OnClose(s, status)
}

// closeStatusFromError maps a read error to the close status reported to the
// handler. Non-close errors (timeouts, resets) count as abnormal closure.
func closeStatusFromError(err error) CloseStatus {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return CloseStatus{Code: ce.Code, Reason: ce.Text}
	}
	return CloseAbnormal
}

// isExpectedClose reports whether err is a close the peer is allowed to
// perform without it being surfaced as an error.
func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

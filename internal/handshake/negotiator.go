package handshake

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"wsgate/internal/session"
)

// Attribute bag keys written by the default negotiator.
const (
	// AttrCompression records whether permessage-deflate was negotiated.
	AttrCompression = "websocket.compression"

	// AttrSubprotocol records the selected subprotocol, if any.
	AttrSubprotocol = "websocket.subprotocol"
)

// UpgraderConfig configures the default negotiator.
type UpgraderConfig struct {
	// Subprotocols the server accepts, in no particular order.
	Subprotocols []Protocol

	// ReadBufferSize and WriteBufferSize size the connection I/O buffers.
	// Zero means the websocket library default.
	ReadBufferSize  int
	WriteBufferSize int

	// HandshakeTimeout bounds the upgrade itself, not the session.
	HandshakeTimeout time.Duration

	// EnableCompression allows permessage-deflate when the client offers it.
	EnableCompression bool

	// MaxMessageSize caps inbound frames for sessions created by this
	// negotiator. Zero means unlimited.
	MaxMessageSize int64

	// CheckOrigin overrides the origin policy. The default accepts every
	// origin: origin enforcement belongs to interceptors, which can veto
	// before negotiation starts.
	CheckOrigin func(r *http.Request) bool
}

// Upgrader is the default Negotiator: it validates the request, selects a
// subprotocol from the registry, decides compression from the client's
// extension offer, performs the RFC 6455 upgrade, and launches the session
// serve loop before returning control.
type Upgrader struct {
	upgrader       websocket.Upgrader
	protocols      *ProtocolRegistry
	maxMessageSize int64
}

var _ Negotiator = (*Upgrader)(nil)

// NewUpgrader builds the default negotiator.
func NewUpgrader(cfg UpgraderConfig) *Upgrader {
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Upgrader{
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: cfg.EnableCompression,
			CheckOrigin:       checkOrigin,
		},
		protocols:      NewProtocolRegistry(cfg.Subprotocols...),
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// Negotiate implements Negotiator.
func (u *Upgrader) Negotiate(w http.ResponseWriter, r *http.Request, h session.Handler, attrs map[string]any) error {
	if !websocket.IsWebSocketUpgrade(r) {
		return &Failure{Message: fmt.Sprintf("request %s is not a websocket upgrade", r.URL)}
	}

	var responseHeader http.Header
	if !u.protocols.Empty() {
		if selected, ok := u.protocols.Select(websocket.Subprotocols(r)); ok {
			responseHeader = http.Header{"Sec-Websocket-Protocol": {selected}}
			attrs[AttrSubprotocol] = selected
		}
	}

	// Compression is per-connection in gorilla, so flip it on a copy based
	// on what this client actually offered.
	up := u.upgrader
	compress := up.EnableCompression && offersPerMessageDeflate(r.Header["Sec-Websocket-Extensions"])
	up.EnableCompression = compress
	attrs[AttrCompression] = compress

	conn, err := up.Upgrade(w, r, responseHeader)
	if err != nil {
		// Upgrade has already written its rejection to the response.
		return &Failure{
			Message: fmt.Sprintf("upgrade failed for request %s", r.URL),
			Err:     err,
		}
	}

	s := session.New(conn, attrs)
	s.SetMaxMessageSize(u.maxMessageSize)
	go session.Serve(s, h)
	return nil
}

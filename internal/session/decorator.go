package session

import (
	"fmt"
	"log/slog"
)

// Decorate wraps a handler with the default decorator set: lifecycle logging
// innermost, fault containment outermost, so contained faults are still
// logged. Applied once per handler by the handshake orchestrator; applying it
// again yields a doubly-wrapped but still correct handler.
func Decorate(h Handler, logger *slog.Logger) Handler {
	return NewGuardHandler(NewLoggingHandler(h, logger))
}

// guardHandler contains panics and callback errors from the wrapped handler.
// A failing OnOpen or OnMessage becomes an OnError notification to the
// handler itself followed by a server-error close, instead of escaping to the
// serve loop or the orchestrator.
type guardHandler struct {
	next Handler
}

// NewGuardHandler wraps h with fault containment.
func NewGuardHandler(h Handler) Handler {
	return &guardHandler{next: h}
}

func (g *guardHandler) OnOpen(p Peer) error {
	if err := g.guarded(func() error { return g.next.OnOpen(p) }); err != nil {
		g.terminate(p, err)
	}
	return nil
}

func (g *guardHandler) OnMessage(p Peer, msg Message) error {
	if err := g.guarded(func() error { return g.next.OnMessage(p, msg) }); err != nil {
		g.terminate(p, err)
	}
	return nil
}

func (g *guardHandler) OnError(p Peer, err error) {
	g.guarded(func() error {
		g.next.OnError(p, err)
		return nil
	})
}

func (g *guardHandler) OnClose(p Peer, status CloseStatus) {
	g.guarded(func() error {
		g.next.OnClose(p, status)
		return nil
	})
}

// guarded runs fn, converting a panic into an error.
func (g *guardHandler) guarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}

// terminate notifies the handler of the terminal error and closes the peer.
func (g *guardHandler) terminate(p Peer, err error) {
	g.OnError(p, err)
	p.Close(CloseServerError)
}

// loggingHandler logs session lifecycle events without altering what the
// wrapped handler observes or returns.
type loggingHandler struct {
	next   Handler
	logger *slog.Logger
}

// NewLoggingHandler wraps h with lifecycle logging.
func NewLoggingHandler(h Handler, logger *slog.Logger) Handler {
	return &loggingHandler{next: h, logger: logger}
}

func (l *loggingHandler) OnOpen(p Peer) error {
	l.logger.Info("session opened",
		slog.String("session_id", p.ID()),
		slog.String("remote", p.RemoteAddr()),
		slog.String("subprotocol", p.Subprotocol()),
	)
	return l.next.OnOpen(p)
}

func (l *loggingHandler) OnMessage(p Peer, msg Message) error {
	l.logger.Debug("message received",
		slog.String("session_id", p.ID()),
		slog.Int("type", int(msg.Type)),
		slog.Int("size", len(msg.Data)),
	)
	return l.next.OnMessage(p, msg)
}

func (l *loggingHandler) OnError(p Peer, err error) {
	l.logger.Error("session error",
		slog.String("session_id", p.ID()),
		slog.String("error", err.Error()),
	)
	l.next.OnError(p, err)
}

func (l *loggingHandler) OnClose(p Peer, status CloseStatus) {
	l.logger.Info("session closed",
		slog.String("session_id", p.ID()),
		slog.Int("code", status.Code),
		slog.String("reason", status.Reason),
	)
	l.next.OnClose(p, status)
}

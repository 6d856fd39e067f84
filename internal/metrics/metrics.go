// Package metrics exposes prometheus collectors for the gateway. The
// handshake core itself stays observability-free: outcomes are recorded by an
// Interceptor and session traffic by a handler decorator, both wired in by
// the server binary.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"wsgate/internal/handshake"
	"wsgate/internal/session"
)

var (
	handshakeAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wsgate",
		Subsystem: "handshake",
		Name:      "attempts_total",
		Help:      "Handshake requests that entered the interceptor pipeline.",
	})

	handshakeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wsgate",
		Subsystem: "handshake",
		Name:      "results_total",
		Help:      "Handshake negotiation outcomes by result.",
	}, []string{"result"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wsgate",
		Subsystem: "session",
		Name:      "active",
		Help:      "Currently open sessions.",
	})

	messagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wsgate",
		Subsystem: "session",
		Name:      "messages_total",
		Help:      "Inbound data frames dispatched to handlers.",
	})
)

// Interceptor records handshake attempts and outcomes. Vetoed handshakes
// never reach the after phase, so vetoes are the difference between attempts
// and results.
type Interceptor struct{}

var _ handshake.Interceptor = Interceptor{}

func (Interceptor) Before(w http.ResponseWriter, r *http.Request, attrs map[string]any) (bool, error) {
	handshakeAttempts.Inc()
	return true, nil
}

func (Interceptor) After(w http.ResponseWriter, r *http.Request, outcome handshake.Outcome) error {
	if outcome.Success() {
		handshakeResults.WithLabelValues("success").Inc()
	} else {
		handshakeResults.WithLabelValues("failure").Inc()
	}
	return nil
}

// Handler wraps a session handler with traffic metrics.
func Handler(next session.Handler) session.Handler {
	return &countingHandler{next: next}
}

type countingHandler struct {
	next session.Handler
}

func (c *countingHandler) OnOpen(p session.Peer) error {
	sessionsActive.Inc()
	return c.next.OnOpen(p)
}

func (c *countingHandler) OnMessage(p session.Peer, msg session.Message) error {
	messagesTotal.Inc()
	return c.next.OnMessage(p, msg)
}

func (c *countingHandler) OnError(p session.Peer, err error) {
	c.next.OnError(p, err)
}

func (c *countingHandler) OnClose(p session.Peer, status session.CloseStatus) {
	sessionsActive.Dec()
	c.next.OnClose(p, status)
}

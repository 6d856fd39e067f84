// Package handshake orchestrates websocket upgrade requests: an ordered
// interceptor pipeline runs before and after a pluggable negotiation
// strategy, and a failure contract guarantees interceptors observe the
// outcome even when negotiation fails.
package handshake

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"wsgate/internal/session"
)

// Negotiator performs the actual upgrade: protocol validation, subprotocol
// selection, and the RFC 6455 handshake. It receives the decorated session
// handler and the attribute bag populated by the before phase, and may keep
// working (serving the session) after returning control. A deliberate
// rejection is reported as a *Failure; any other error is treated as
// unclassified by the orchestrator.
type Negotiator interface {
	Negotiate(w http.ResponseWriter, r *http.Request, h session.Handler, attrs map[string]any) error
}

// NegotiatorFunc adapts a function to the Negotiator interface.
type NegotiatorFunc func(w http.ResponseWriter, r *http.Request, h session.Handler, attrs map[string]any) error

func (f NegotiatorFunc) Negotiate(w http.ResponseWriter, r *http.Request, h session.Handler, attrs map[string]any) error {
	return f(w, r, h, attrs)
}

// UpgradeHandler is the request-handling entry point for upgrade requests.
//
// Construction decorates the session handler exactly once and captures the
// negotiator; the interceptor list is an atomically swapped snapshot, so
// concurrent requests and reconfiguration are safe. Beyond that configuration
// the handler keeps no state across requests.
type UpgradeHandler struct {
	negotiator Negotiator
	handler    session.Handler // decorated form; the raw handler is not retained
	onError    func(r *http.Request, err error)

	interceptors atomic.Pointer[[]Interceptor]
}

// Option configures an UpgradeHandler.
type Option func(*options)

type options struct {
	decorate func(session.Handler) session.Handler
	onError  func(r *http.Request, err error)
}

// WithDecorator replaces the default decorator set (fault containment plus
// lifecycle logging) applied to the session handler.
func WithDecorator(decorate func(session.Handler) session.Handler) Option {
	return func(o *options) { o.decorate = decorate }
}

// WithErrorHook installs a callback invoked by ServeHTTP when Handle returns
// an error. The orchestrator itself never logs; this is where callers wire
// their logger in.
func WithErrorHook(hook func(r *http.Request, err error)) Option {
	return func(o *options) { o.onError = hook }
}

// New creates an UpgradeHandler for the given session handler and negotiator.
// The logger is used by the default handler decorators.
func New(h session.Handler, negotiator Negotiator, logger *slog.Logger, opts ...Option) *UpgradeHandler {
	o := options{
		decorate: func(h session.Handler) session.Handler {
			return session.Decorate(h, logger)
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	u := &UpgradeHandler{
		negotiator: negotiator,
		handler:    o.decorate(h),
		onError:    o.onError,
	}
	u.interceptors.Store(&[]Interceptor{})
	return u
}

// SetInterceptors replaces the whole interceptor list. The list is copied and
// swapped in atomically; handshakes already in flight keep the snapshot they
// started with.
func (u *UpgradeHandler) SetInterceptors(interceptors ...Interceptor) {
	snapshot := make([]Interceptor, len(interceptors))
	copy(snapshot, interceptors)
	u.interceptors.Store(&snapshot)
}

// Interceptors returns a copy of the current interceptor list.
func (u *UpgradeHandler) Interceptors() []Interceptor {
	current := *u.interceptors.Load()
	out := make([]Interceptor, len(current))
	copy(out, current)
	return out
}

// Handler returns the decorated session handler.
func (u *UpgradeHandler) Handler() session.Handler {
	return u.handler
}

// Handle processes one upgrade request.
//
// Sequence: adapt the response, run the before phase with a fresh attribute
// bag, negotiate, run the after phase with the outcome. A veto ends the
// handshake with no error, no negotiation, and no after calls; the response
// as mutated by the vetoing interceptor is the result. A *Failure from
// negotiation passes through unchanged; any other error escaping negotiation
// or the success-path after phase is wrapped into one referencing the request
// target. On failure, every interceptor sees the failure outcome before it is
// returned to the caller; errors raised by after hooks themselves take
// precedence and reach the caller unwrapped. The response is flushed exactly
// once, only when no failure occurred.
func (u *UpgradeHandler) Handle(w http.ResponseWriter, r *http.Request) error {
	return u.handle(NewResponse(w), r)
}

func (u *UpgradeHandler) handle(resp *Response, r *http.Request) error {
	chain := &interceptorChain{interceptors: *u.interceptors.Load()}
	attrs := make(map[string]any)

	var failure *Failure
	ok, err := chain.applyBefore(resp, r, attrs)
	switch {
	case err != nil:
		failure = classify(err, r)
	case !ok:
		// Vetoed: whatever the interceptor wrote is the final response.
		resp.Flush()
		return nil
	default:
		err := u.negotiator.Negotiate(resp, r, u.handler, attrs)
		if err == nil {
			err = chain.applyAfter(resp, r, Outcome{})
		}
		if err != nil {
			failure = classify(err, r)
		}
	}

	if failure != nil {
		if err := chain.applyAfter(resp, r, Outcome{Failure: failure}); err != nil {
			return err
		}
		return failure
	}

	resp.Flush()
	return nil
}

// ServeHTTP adapts Handle to http.Handler. A failure is reported through the
// error hook; a 500 is written only when the response is still untouched.
func (u *UpgradeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := NewResponse(w)
	if err := u.handle(resp, r); err != nil {
		if u.onError != nil {
			u.onError(r, err)
		}
		if !resp.Written() && !resp.Hijacked() {
			http.Error(resp, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

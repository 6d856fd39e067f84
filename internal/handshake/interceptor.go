package handshake

import (
	"errors"
	"net/http"
)

// Interceptor observes and gates handshakes. Implementations may mutate the
// response at any phase and share values with the negotiation strategy
// through the attribute bag.
//
// Registration order is significant: it is the invocation order for Before
// and, deliberately, the same (not reversed) order for After.
type Interceptor interface {
	// Before runs prior to negotiation. Returning false vetoes the
	// handshake: negotiation is skipped, no after calls are made for any
	// interceptor, and whatever was written to the response is the final
	// result. Returning an error aborts the handshake as a failure.
	Before(w http.ResponseWriter, r *http.Request, attrs map[string]any) (bool, error)

	// After runs once negotiation has finished, with the outcome. Errors
	// returned here reach the orchestrator's caller directly.
	After(w http.ResponseWriter, r *http.Request, outcome Outcome) error
}

// interceptorChain applies one request's snapshot of the interceptor list.
type interceptorChain struct {
	interceptors []Interceptor
}

// applyBefore invokes each interceptor's Before hook in registration order,
// passing the shared attribute bag. The first veto stops the phase and
// reports false; an interceptor error aborts the phase and is returned for
// the orchestrator to classify. Returns true only if every interceptor
// approved.
func (c *interceptorChain) applyBefore(w http.ResponseWriter, r *http.Request, attrs map[string]any) (bool, error) {
	for _, ic := range c.interceptors {
		ok, err := ic.Before(w, r, attrs)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// applyAfter invokes every interceptor's After hook in registration order —
// the same order as the before phase, not unwind order. An erroring
// interceptor does not stop the rest from being notified; all errors are
// joined and returned.
func (c *interceptorChain) applyAfter(w http.ResponseWriter, r *http.Request, outcome Outcome) error {
	var errs []error
	for _, ic := range c.interceptors {
		if err := ic.After(w, r, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

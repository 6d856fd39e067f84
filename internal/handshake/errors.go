package handshake

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure is a classified negotiation failure: raised deliberately by a
// Negotiator, or produced by the orchestrator when wrapping an unclassified
// error. Supports errors.Is/As via Unwrap.
type Failure struct {
	Message string
	Err     error // underlying cause, may be nil
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure builds a classified failure with an optional cause.
func NewFailure(message string, cause error) *Failure {
	return &Failure{Message: message, Err: cause}
}

// classify passes a Failure through unchanged and wraps any other error into
// one whose message references the request target, preserving the original
// error as cause.
func classify(err error, r *http.Request) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{
		Message: fmt.Sprintf("uncaught failure for request %s", r.URL),
		Err:     err,
	}
}

// Outcome is the negotiation result passed to every after-phase interceptor.
type Outcome struct {
	// Failure is nil when negotiation succeeded.
	Failure *Failure
}

// Success reports whether negotiation completed without failure.
func (o Outcome) Success() bool {
	return o.Failure == nil
}

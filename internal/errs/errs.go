// Package errs defines the error taxonomy every CORE component uses to
// decide how a bus consumer should ACK/NACK a message and whether an
// operator alert is warranted (spec §7).
package errs

import "fmt"

// Kind classifies an error by its recovery policy, not by its literal cause.
type Kind string

const (
	// Validation: malformed payload. ACK, dead-letter log, no alert.
	Validation Kind = "VALIDATION"
	// Precondition: guard/cooldown/veto rejection. ACK, info log.
	Precondition Kind = "PRECONDITION"
	// BrokerageBusiness: insufficient funds, wrong tick, etc. ACK, operator alert.
	BrokerageBusiness Kind = "BROKERAGE_BUSINESS"
	// BrokerageTransport: timeout/5xx. Do not ACK; rely on pending-recovery.
	BrokerageTransport Kind = "BROKERAGE_TRANSPORT"
	// CircuitOpen: fast-rejected by the breaker. Caller treats as transport error.
	CircuitOpen Kind = "CIRCUIT_OPEN"
	// LockContention: distributed lock already held. ACK, info log.
	LockContention Kind = "LOCK_CONTENTION"
	// ConfirmationFailure: fill could not be confirmed. ACK, high-severity alert.
	ConfirmationFailure Kind = "CONFIRMATION_FAILURE"
	// RateLimited: token bucket exhausted past its wait budget.
	RateLimited Kind = "RATE_LIMITED"
)

// Error wraps an underlying cause with a recovery Kind and, where
// applicable, a structured reason string suitable for the §7 log line's
// `reason` field.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap constructs an *Error around an existing cause.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf extracts the Kind from err, defaulting to BrokerageTransport for
// unrecognized errors — the conservative choice, since an unclassified
// failure should not be ACKed and dropped.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return BrokerageTransport
}

// As is a thin local wrapper over errors.As to avoid importing the stdlib
// package name twice at call sites that also import this package as errs.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ShouldAck reports whether a bus consumer should ACK the message (i.e.
// not rely on pending-entries-scan redelivery) given this error's Kind.
func ShouldAck(kind Kind) bool {
	return kind != BrokerageTransport
}

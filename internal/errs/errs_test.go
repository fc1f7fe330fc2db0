package errs

import (
	"fmt"
	"testing"
)

func TestKindOfWrappedError(t *testing.T) {
	inner := New(Precondition, "CASH_FLOOR 24% < 25%")
	wrapped := fmt.Errorf("processing signal: %w", inner)
	if got := KindOf(wrapped); got != Precondition {
		t.Errorf("KindOf = %v, want PRECONDITION through wrapping", got)
	}
}

func TestKindOfUnknownDefaultsToTransport(t *testing.T) {
	// Unclassified failures must not be ACKed-and-dropped, so the
	// conservative default is the transport kind.
	if got := KindOf(fmt.Errorf("something unexpected")); got != BrokerageTransport {
		t.Errorf("KindOf = %v, want BROKERAGE_TRANSPORT", got)
	}
}

func TestShouldAck(t *testing.T) {
	ackable := []Kind{Validation, Precondition, BrokerageBusiness, LockContention, ConfirmationFailure}
	for _, k := range ackable {
		if !ShouldAck(k) {
			t.Errorf("%s should be ACKed", k)
		}
	}
	if ShouldAck(BrokerageTransport) {
		t.Error("transport errors must stay pending for redelivery")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Wrap(BrokerageTransport, "gateway unreachable", cause)
	var e *Error
	if !As(err, &e) {
		t.Fatal("As should find the *Error")
	}
	if e.Unwrap() != cause {
		t.Error("cause lost in wrapping")
	}
}

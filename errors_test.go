package shadowwire

import (
	"errors"
	"fmt"
	"testing"
)

func TestPaymentErrorUnwrap(t *testing.T) {
	err := NewPaymentError(ErrCodeTransferFailed, "transfer failed", ErrTransferFailed)

	if !errors.Is(err, ErrTransferFailed) {
		t.Error("errors.Is should match the wrapped sentinel")
	}

	var paymentErr *PaymentError
	if !errors.As(err, &paymentErr) {
		t.Fatal("errors.As should match *PaymentError")
	}
	if paymentErr.Code != ErrCodeTransferFailed {
		t.Errorf("Code = %q, want %q", paymentErr.Code, ErrCodeTransferFailed)
	}
}

func TestPaymentErrorMessage(t *testing.T) {
	withCause := NewPaymentError(ErrCodeNetworkError, "request failed", errors.New("connection reset"))
	if withCause.Error() != "request failed: connection reset" {
		t.Errorf("Error() = %q", withCause.Error())
	}

	withoutCause := &PaymentError{Code: ErrCodeInvalidAmount, Message: "bad amount"}
	if withoutCause.Error() != "bad amount" {
		t.Errorf("Error() = %q", withoutCause.Error())
	}
}

func TestPaymentErrorWithDetails(t *testing.T) {
	err := NewPaymentError(ErrCodeUnsupportedScheme, "unsupported", ErrUnsupportedScheme).
		WithDetails("offered", "other").
		WithDetails("supported", SchemeShadowWire)

	if err.Details["offered"] != "other" || err.Details["supported"] != SchemeShadowWire {
		t.Errorf("Details = %v", err.Details)
	}

	// WithDetails must tolerate a nil map.
	bare := &PaymentError{Code: ErrCodeNetworkError, Message: "m"}
	if bare.WithDetails("k", "v").Details["k"] != "v" {
		t.Error("WithDetails did not initialize the map")
	}
}

func TestPaymentErrorNestedWrapping(t *testing.T) {
	inner := fmt.Errorf("%w: wallet panicked", ErrTransferFailed)
	outer := NewPaymentError(ErrCodeTransferFailed, "transfer failed", inner)
	if !errors.Is(outer, ErrTransferFailed) {
		t.Error("sentinel should be reachable through nested wrapping")
	}
}

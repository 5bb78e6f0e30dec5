package shadowwire

import (
	"fmt"
	"time"
)

// TimeoutConfig holds timeout configuration for outbound payment operations.
// Every outbound call runs under cooperative cancellation with one of these
// bounds; a deadline that fires surfaces as ErrRequestTimeout, never as an
// indefinite hang.
type TimeoutConfig struct {
	// VerifyTimeout bounds a facilitator verify call.
	VerifyTimeout time.Duration

	// SettleTimeout bounds a facilitator settle call.
	SettleTimeout time.Duration

	// RequestTimeout bounds a resource fetch issued by the orchestrator.
	RequestTimeout time.Duration
}

// DefaultTimeouts provides the protocol defaults (15 seconds per call).
var DefaultTimeouts = TimeoutConfig{
	VerifyTimeout:  15 * time.Second,
	SettleTimeout:  15 * time.Second,
	RequestTimeout: 15 * time.Second,
}

// WithVerifyTimeout returns a new TimeoutConfig with updated verify timeout.
func (tc TimeoutConfig) WithVerifyTimeout(d time.Duration) TimeoutConfig {
	tc.VerifyTimeout = d
	return tc
}

// WithSettleTimeout returns a new TimeoutConfig with updated settle timeout.
func (tc TimeoutConfig) WithSettleTimeout(d time.Duration) TimeoutConfig {
	tc.SettleTimeout = d
	return tc
}

// WithRequestTimeout returns a new TimeoutConfig with updated request timeout.
func (tc TimeoutConfig) WithRequestTimeout(d time.Duration) TimeoutConfig {
	tc.RequestTimeout = d
	return tc
}

// Validate ensures timeout values are reasonable.
func (tc TimeoutConfig) Validate() error {
	if tc.VerifyTimeout <= 0 {
		return fmt.Errorf("verify timeout must be positive, got %v", tc.VerifyTimeout)
	}
	if tc.SettleTimeout <= 0 {
		return fmt.Errorf("settle timeout must be positive, got %v", tc.SettleTimeout)
	}
	if tc.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", tc.RequestTimeout)
	}
	return nil
}

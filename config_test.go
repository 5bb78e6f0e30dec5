package shadowwire

import (
	"testing"
	"time"
)

func TestDefaultTimeoutsValid(t *testing.T) {
	if err := DefaultTimeouts.Validate(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}

func TestTimeoutConfigWithMethods(t *testing.T) {
	tc := DefaultTimeouts.
		WithVerifyTimeout(5 * time.Second).
		WithSettleTimeout(10 * time.Second).
		WithRequestTimeout(30 * time.Second)

	if tc.VerifyTimeout != 5*time.Second || tc.SettleTimeout != 10*time.Second || tc.RequestTimeout != 30*time.Second {
		t.Errorf("config = %+v", tc)
	}

	// With* methods return copies; the defaults stay untouched.
	if DefaultTimeouts.VerifyTimeout != 15*time.Second {
		t.Errorf("DefaultTimeouts mutated: %+v", DefaultTimeouts)
	}
}

func TestTimeoutConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		tc   TimeoutConfig
	}{
		{"zero verify", DefaultTimeouts.WithVerifyTimeout(0)},
		{"negative settle", DefaultTimeouts.WithSettleTimeout(-time.Second)},
		{"zero request", DefaultTimeouts.WithRequestTimeout(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tc.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

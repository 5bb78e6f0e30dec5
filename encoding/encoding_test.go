package encoding

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	shadowwire "github.com/Radrdotfun/ShadowWire"
)

func validProof() shadowwire.PaymentProof {
	return shadowwire.PaymentProof{
		X402Version: shadowwire.ProtocolVersion,
		Scheme:      shadowwire.SchemeShadowWire,
		Network:     shadowwire.NetworkMainnet,
		Payload: shadowwire.ProofPayload{
			Signature:    "sig123",
			AmountHidden: true,
			Resource:     "/api/premium",
			PayTo:        "merchant",
			Sender:       "payer",
		},
	}
}

func TestProofRoundTrip(t *testing.T) {
	proof := validProof()

	header, err := EncodeProof(proof)
	if err != nil {
		t.Fatalf("EncodeProof failed: %v", err)
	}
	if _, err := base64.StdEncoding.DecodeString(header); err != nil {
		t.Errorf("encoded proof is not valid base64: %v", err)
	}

	decoded, err := DecodeProof(header)
	if err != nil {
		t.Fatalf("DecodeProof failed: %v", err)
	}
	if *decoded != proof {
		t.Errorf("round trip mismatch: got %+v, want %+v", *decoded, proof)
	}
}

func TestDecodeProofFailsClosed(t *testing.T) {
	encode := func(p shadowwire.PaymentProof) string {
		header, err := EncodeProof(p)
		if err != nil {
			t.Fatalf("EncodeProof failed: %v", err)
		}
		return header
	}

	noScheme := validProof()
	noScheme.Scheme = ""

	noSignature := validProof()
	noSignature.Payload.Signature = ""

	wrongVersion := validProof()
	wrongVersion.X402Version = 2

	tests := []struct {
		name     string
		header   string
		sentinel error
	}{
		{
			name:     "not base64",
			header:   "not-valid-base64!!!",
			sentinel: shadowwire.ErrMalformedHeader,
		},
		{
			name:     "base64 of non-JSON",
			header:   base64.StdEncoding.EncodeToString([]byte("hello world")),
			sentinel: shadowwire.ErrMalformedHeader,
		},
		{
			name:     "missing scheme",
			header:   encode(noScheme),
			sentinel: shadowwire.ErrMalformedHeader,
		},
		{
			name:     "missing payload signature",
			header:   encode(noSignature),
			sentinel: shadowwire.ErrMalformedHeader,
		},
		{
			name:     "unsupported version",
			header:   encode(wrongVersion),
			sentinel: shadowwire.ErrUnsupportedVersion,
		},
		{
			name:     "oversized header",
			header:   strings.Repeat("A", 20000),
			sentinel: shadowwire.ErrHeaderTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proof, err := DecodeProof(tt.header)
			if err == nil {
				t.Fatalf("DecodeProof succeeded, got %+v", proof)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("error = %v, want wrapping %v", err, tt.sentinel)
			}
			var paymentErr *shadowwire.PaymentError
			if !errors.As(err, &paymentErr) {
				t.Errorf("error is not a *PaymentError: %v", err)
			}
		})
	}
}

func TestDecodeProofOversizedCheckedBeforeDecoding(t *testing.T) {
	// An oversized header full of bytes that are not even base64 must
	// still be reported as too large, proving the size cap comes first.
	header := strings.Repeat("!", shadowwire.MaxPaymentHeaderBytes+1)
	_, err := DecodeProof(header)
	if !errors.Is(err, shadowwire.ErrHeaderTooLarge) {
		t.Errorf("error = %v, want ErrHeaderTooLarge", err)
	}
}

func TestDecodeProofAtSizeLimit(t *testing.T) {
	// A header of exactly the limit passes the cap and fails later on
	// content, not on size.
	header := strings.Repeat("A", shadowwire.MaxPaymentHeaderBytes)
	_, err := DecodeProof(header)
	if errors.Is(err, shadowwire.ErrHeaderTooLarge) {
		t.Errorf("header at the limit rejected as too large: %v", err)
	}
}

func TestSettlementRoundTrip(t *testing.T) {
	settlement := shadowwire.SettleResult{
		Success: true,
		TxHash:  "tx789",
		Amount:  "10000",
		Fee:     "10",
		Net:     "9990",
		Network: shadowwire.NetworkMainnet,
	}

	encoded, err := EncodeSettlement(settlement)
	if err != nil {
		t.Fatalf("EncodeSettlement failed: %v", err)
	}
	decoded, err := DecodeSettlement(encoded)
	if err != nil {
		t.Fatalf("DecodeSettlement failed: %v", err)
	}
	if *decoded != settlement {
		t.Errorf("round trip mismatch: got %+v, want %+v", *decoded, settlement)
	}
}

func TestDecodeSettlementInvalid(t *testing.T) {
	if _, err := DecodeSettlement("%%%not-base64%%%"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := DecodeSettlement(base64.StdEncoding.EncodeToString([]byte("not json"))); err == nil {
		t.Error("expected error for non-JSON payload")
	}
}

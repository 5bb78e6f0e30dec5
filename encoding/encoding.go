// Package encoding implements the payment proof codec: base64 of canonical
// JSON, bounded by a hard size cap and a protocol version tag.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	shadowwire "github.com/Radrdotfun/ShadowWire"
)

// EncodeProof serializes a PaymentProof to the compact text form carried in
// the X-Payment header.
//
// Returns an error if JSON marshaling fails.
func EncodeProof(proof shadowwire.PaymentProof) (string, error) {
	proofJSON, err := json.Marshal(proof)
	if err != nil {
		return "", fmt.Errorf("failed to marshal proof: %w", err)
	}
	return base64.StdEncoding.EncodeToString(proofJSON), nil
}

// DecodeProof reverses EncodeProof. It fails closed: an oversized header is
// rejected before any base64 or JSON work, and a proof with a foreign
// protocol version or missing required fields (scheme, payload.signature)
// is rejected after decoding. The returned error is always a
// *shadowwire.PaymentError wrapping the matching sentinel.
func DecodeProof(header string) (*shadowwire.PaymentProof, error) {
	// Size cap first. Nothing is buffered or parsed past this point for
	// oversized input.
	if len(header) > shadowwire.MaxPaymentHeaderBytes {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeHeaderTooLarge,
			fmt.Sprintf("payment header is %d bytes, limit is %d", len(header), shadowwire.MaxPaymentHeaderBytes),
			shadowwire.ErrHeaderTooLarge,
		)
	}

	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeMalformedHeader, "payment header is not valid base64", shadowwire.ErrMalformedHeader)
	}

	var proof shadowwire.PaymentProof
	if err := json.Unmarshal(decoded, &proof); err != nil {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeMalformedHeader, "payment header does not decode to a proof", shadowwire.ErrMalformedHeader)
	}

	if proof.X402Version != shadowwire.ProtocolVersion {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeUnsupportedVersion,
			fmt.Sprintf("proof version %d, supported version %d", proof.X402Version, shadowwire.ProtocolVersion),
			shadowwire.ErrUnsupportedVersion,
		)
	}

	if proof.Scheme == "" {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeMalformedHeader, "proof is missing scheme", shadowwire.ErrMalformedHeader)
	}
	if proof.Payload.Signature == "" {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeMalformedHeader, "proof is missing payload signature", shadowwire.ErrMalformedHeader)
	}

	return &proof, nil
}

// EncodeSettlement converts a SettleResult to the base64 JSON form carried
// in the X-Payment-Response header.
func EncodeSettlement(settlement shadowwire.SettleResult) (string, error) {
	settlementJSON, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(settlementJSON), nil
}

// DecodeSettlement reverses EncodeSettlement.
func DecodeSettlement(encoded string) (*shadowwire.SettleResult, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	var settlement shadowwire.SettleResult
	if err := json.Unmarshal(decoded, &settlement); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settlement: %w", err)
	}
	return &settlement, nil
}

// Package helpers provides internal HTTP plumbing shared by the paywall
// middleware and its gin adapter: challenge construction, negotiation
// headers, and settlement header handling.
package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	shadowwire "github.com/Radrdotfun/ShadowWire"
	"github.com/Radrdotfun/ShadowWire/encoding"
)

// ErrNilSettlement is returned when settlement is nil in AddPaymentResponseHeader.
var ErrNilSettlement = errors.New("settlement is nil")

// NewChallenge builds the 402 body for a requirement. The document is fully
// determined by its inputs so identical configuration and resource always
// produce structurally identical challenges.
func NewChallenge(requirement shadowwire.PaymentRequirement, facilitatorURL, errMsg string) shadowwire.ChallengeDocument {
	return shadowwire.ChallengeDocument{
		X402Version: shadowwire.ProtocolVersion,
		Accepts:     []shadowwire.PaymentRequirement{requirement},
		Error:       errMsg,
		Facilitator: facilitatorURL,
		Resource:    requirement.Resource,
	}
}

// SetNegotiationHeaders sets the cache-prevention and scheme advertisement
// headers on every challenge or rejection response, so intermediate caches
// never serve a stale 402 or a stale authorized response.
func SetNegotiationHeaders(h http.Header) {
	h.Set("Cache-Control", "no-store")
	h.Set("Vary", shadowwire.HeaderPayment)
	h.Set(shadowwire.HeaderPaymentRequired, "true")
	h.Set(shadowwire.HeaderAcceptedSchemes, shadowwire.SchemeShadowWire)
}

// SendPaymentRequired writes a 402 Payment Required response carrying the
// challenge document. Returns an error if JSON encoding fails.
func SendPaymentRequired(w http.ResponseWriter, challenge shadowwire.ChallengeDocument) error {
	SetNegotiationHeaders(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	if err := json.NewEncoder(w).Encode(challenge); err != nil {
		return fmt.Errorf("encoding challenge response: %w", err)
	}
	return nil
}

// SendHeaderTooLarge writes the 400 rejection for an oversized payment
// header. Distinct from 402 so clients can tell a malformed submission from
// a fresh challenge.
func SendHeaderTooLarge(w http.ResponseWriter) error {
	SetNegotiationHeaders(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	body := map[string]interface{}{
		"x402Version": shadowwire.ProtocolVersion,
		"error":       fmt.Sprintf("payment header exceeds %d bytes", shadowwire.MaxPaymentHeaderBytes),
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		return fmt.Errorf("encoding too-large response: %w", err)
	}
	return nil
}

// AddPaymentResponseHeader adds the X-Payment-Response header with
// settlement information to an authorized response.
func AddPaymentResponseHeader(h http.Header, settlement *shadowwire.SettleResult) error {
	if settlement == nil {
		return fmt.Errorf("AddPaymentResponseHeader: %w", ErrNilSettlement)
	}
	encoded, err := encoding.EncodeSettlement(*settlement)
	if err != nil {
		return fmt.Errorf("AddPaymentResponseHeader: encode settlement: %w", err)
	}
	h.Set(shadowwire.HeaderPaymentResponse, encoded)
	return nil
}

// ParseSettlement extracts settlement information from an
// X-Payment-Response header value. Returns nil if the header is empty or
// cannot be parsed.
func ParseSettlement(headerValue string) *shadowwire.SettleResult {
	if headerValue == "" {
		return nil
	}
	settlement, err := encoding.DecodeSettlement(headerValue)
	if err != nil {
		return nil
	}
	return settlement
}

// Package shadowwire implements the ShadowWire payment negotiation protocol.
//
// The protocol follows the HTTP 402 Payment Required challenge/response
// pattern: a resource server advertises one or more payment offers in a
// challenge document, the client executes a transfer through its wallet,
// proves it via the opaque X-Payment header, and the server verifies and
// settles the proof with a facilitator before granting access.
//
// This package holds the shared data model and the injected capability
// interfaces. The client orchestrator, the paywall middleware, and the
// facilitator client live in the http subpackage; the proof codec lives in
// the encoding subpackage.
package shadowwire

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
)

// ProtocolVersion is the protocol version this implementation understands.
// Documents and proofs carrying any other version are treated as unparsable.
const ProtocolVersion = 1

// SchemeShadowWire is the single payment scheme this implementation supports.
const SchemeShadowWire = "shadowwire"

// NetworkMainnet is the default settlement network identifier.
const NetworkMainnet = "solana-mainnet"

// Header names used on the wire.
const (
	// HeaderPayment carries the base64-encoded payment proof on requests.
	HeaderPayment = "X-Payment"

	// HeaderPaymentResponse carries the base64-encoded settlement result
	// on authorized responses.
	HeaderPaymentResponse = "X-Payment-Response"

	// HeaderPaymentRequired marks challenge responses so intermediaries
	// and clients can recognize them without parsing the body.
	HeaderPaymentRequired = "X-Payment-Required"

	// HeaderAcceptedSchemes advertises the scheme names the server accepts.
	HeaderAcceptedSchemes = "X-Accepted-Schemes"
)

// MaxPaymentHeaderBytes is the maximum accepted length of the X-Payment
// header value. It is enforced before any decoding work so oversized input
// never reaches the parser or the facilitator.
const MaxPaymentHeaderBytes = 16384

// PaymentRequirement describes a single payment offer a server will accept.
type PaymentRequirement struct {
	// Scheme is the payment scheme identifier (e.g. "shadowwire").
	Scheme string `json:"scheme"`

	// Network is the settlement network identifier.
	Network string `json:"network"`

	// Amount is the payment amount as a decimal string in atomic units
	// of Asset.
	Amount string `json:"amount"`

	// Asset is the token identifier (e.g. "USDC").
	Asset string `json:"asset"`

	// PayTo is the recipient account for the payment.
	PayTo string `json:"payTo"`

	// Resource is the canonical path of the resource being protected.
	Resource string `json:"resource"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty"`

	// MaxTimeoutSeconds is the validity period for the offer.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds,omitempty"`

	// Extra contains scheme-specific additional data.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Validate checks the requirement invariants: non-empty scheme and network,
// and an amount that parses to a positive integer.
func (r *PaymentRequirement) Validate() error {
	if r.Scheme == "" {
		return NewPaymentError(ErrCodeInvalidRequirement, "scheme is required", ErrInvalidRequirement)
	}
	if r.Network == "" {
		return NewPaymentError(ErrCodeInvalidRequirement, "network is required", ErrInvalidRequirement)
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil || !amount.IsInteger() || amount.Sign() <= 0 {
		return NewPaymentError(ErrCodeInvalidAmount, "amount must be a positive integer", ErrInvalidAmount)
	}
	return nil
}

// ChallengeDocument is the body of a 402 Payment Required response.
type ChallengeDocument struct {
	// X402Version is the protocol version.
	X402Version int `json:"x402Version"`

	// Accepts is the ordered list of payment offers the server accepts.
	// Non-empty when produced by this implementation.
	Accepts []PaymentRequirement `json:"accepts"`

	// Error is an optional diagnostic explaining why a presented payment
	// was not accepted.
	Error string `json:"error,omitempty"`

	// Facilitator is the URL of the facilitator the server settles with.
	Facilitator string `json:"facilitator,omitempty"`

	// Resource is the canonical path of the protected resource.
	Resource string `json:"resource,omitempty"`
}

// ProofPayload carries the transfer evidence inside a PaymentProof.
type ProofPayload struct {
	// Signature is the transfer signature/identifier returned by the wallet.
	Signature string `json:"signature"`

	// AmountHidden reports whether the transferred amount is hidden from
	// public view (shielded transfer).
	AmountHidden bool `json:"amountHidden"`

	// Resource is the path the proof was produced for. The paywall rejects
	// proofs presented against any other path.
	Resource string `json:"resource,omitempty"`

	// PayTo is the recipient account of the transfer.
	PayTo string `json:"payTo,omitempty"`

	// Sender is the optional sender identity.
	Sender string `json:"sender,omitempty"`
}

// PaymentProof is the opaque proof embedded in the X-Payment header.
type PaymentProof struct {
	// X402Version is the protocol version. Must match ProtocolVersion exactly.
	X402Version int `json:"x402Version"`

	// Scheme is the payment scheme the proof was produced under.
	Scheme string `json:"scheme"`

	// Network is the settlement network.
	Network string `json:"network,omitempty"`

	// Payload contains the transfer evidence.
	Payload ProofPayload `json:"payload"`
}

// VerifyResult is the outcome of a facilitator verify call. Transport
// failures are folded into it: Valid is false and Error names the failure.
type VerifyResult struct {
	Valid    bool   `json:"valid"`
	Payer    string `json:"payer,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Resource string `json:"resource,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SettleResult is the outcome of a facilitator settle call, with the same
// fail-closed mapping as VerifyResult.
type SettleResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Fee     string `json:"fee,omitempty"`
	Net     string `json:"net,omitempty"`
	Network string `json:"network,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PaymentDetails is the metadata the paywall attaches to a request after a
// successful verify and settle, for the protected handler to consume.
type PaymentDetails struct {
	Scheme string `json:"scheme"`
	Payer  string `json:"payer,omitempty"`
	TxHash string `json:"txHash,omitempty"`
	Amount string `json:"amount,omitempty"`
	Asset  string `json:"asset,omitempty"`
	Fee    string `json:"fee,omitempty"`
	Net    string `json:"net,omitempty"`
}

// ParseChallenge decodes a response body into a ChallengeDocument.
//
// The check is two-step: structural first (a JSON object carrying an
// "accepts" array), semantic second (the protocol version must match).
// A body that fails either step is simply not a challenge; the false
// return is the only signal, no error is produced. A well-formed document
// with an empty accepts list still parses, so callers can distinguish
// "not a challenge" from "a challenge with no offers".
func ParseChallenge(body []byte) (*ChallengeDocument, bool) {
	var probe struct {
		X402Version int                   `json:"x402Version"`
		Accepts     *[]PaymentRequirement `json:"accepts"`
		Error       string                `json:"error"`
		Facilitator string                `json:"facilitator"`
		Resource    string                `json:"resource"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, false
	}
	if probe.Accepts == nil {
		return nil, false
	}
	if probe.X402Version != ProtocolVersion {
		return nil, false
	}
	return &ChallengeDocument{
		X402Version: probe.X402Version,
		Accepts:     *probe.Accepts,
		Error:       probe.Error,
		Facilitator: probe.Facilitator,
		Resource:    probe.Resource,
	}, true
}

// IsChallenge reports whether a status/body pair is a payment challenge:
// the status is 402 and the body parses to a document with at least one offer.
func IsChallenge(status int, body []byte) bool {
	if status != http.StatusPaymentRequired {
		return false
	}
	doc, ok := ParseChallenge(body)
	return ok && len(doc.Accepts) > 0
}

// FindOffer returns the first offer whose scheme exactly matches the given
// scheme identifier. Matching is exact; there is no fuzzy network matching.
func FindOffer(accepts []PaymentRequirement, scheme string) (*PaymentRequirement, bool) {
	for i := range accepts {
		if accepts[i].Scheme == scheme {
			return &accepts[i], true
		}
	}
	return nil, false
}

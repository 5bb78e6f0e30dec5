package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	shadowwire "github.com/Radrdotfun/ShadowWire"
	"github.com/Radrdotfun/ShadowWire/encoding"
	"github.com/Radrdotfun/ShadowWire/http/internal/helpers"
)

// Config holds the configuration for the paywall middleware.
type Config struct {
	// FacilitatorURL is the verification/settlement service endpoint.
	FacilitatorURL string

	// APIKey authenticates calls to the facilitator (optional).
	APIKey string

	// PayTo is the merchant account payments must be sent to.
	PayTo string

	// Amount is the price of the protected resource, a decimal string in
	// atomic units of Asset.
	Amount string

	// Asset is the token identifier (e.g. "USDC").
	Asset string

	// Network is the settlement network. Defaults to NetworkMainnet.
	Network string

	// Description is an optional human-readable offer description.
	Description string

	// MaxTimeoutSeconds is the offer validity period (optional).
	MaxTimeoutSeconds int

	// Facilitator overrides the facilitator client, mainly for tests.
	// When nil a FacilitatorClient is built from FacilitatorURL and APIKey.
	Facilitator Facilitator

	// Timeouts bounds the facilitator calls. Zero values use the defaults.
	Timeouts shadowwire.TimeoutConfig

	// OnPaymentSettled is invoked after a successful settlement, before the
	// protected handler runs. A panic inside it is recovered and logged;
	// it never blocks the authorized pass-through.
	OnPaymentSettled func(*shadowwire.PaymentDetails)
}

// Validate checks that the configuration can produce well-formed offers.
func (c *Config) Validate() error {
	if c.Facilitator == nil && c.FacilitatorURL == "" {
		return fmt.Errorf("facilitator URL is required")
	}
	if c.PayTo == "" {
		return fmt.Errorf("payTo is required")
	}
	requirement := c.RequirementFor("/")
	if err := requirement.Validate(); err != nil {
		return fmt.Errorf("invalid offer configuration: %w", err)
	}
	return nil
}

// RequirementFor builds the offer bound to one request path. The resource
// binding is what stops a proof obtained for one path being replayed
// against another.
func (c *Config) RequirementFor(resource string) shadowwire.PaymentRequirement {
	network := c.Network
	if network == "" {
		network = shadowwire.NetworkMainnet
	}
	return shadowwire.PaymentRequirement{
		Scheme:            shadowwire.SchemeShadowWire,
		Network:           network,
		Amount:            c.Amount,
		Asset:             c.Asset,
		PayTo:             c.PayTo,
		Resource:          resource,
		Description:       c.Description,
		MaxTimeoutSeconds: c.MaxTimeoutSeconds,
	}
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PaymentContextKey is the context key for storing settled payment details.
const PaymentContextKey = contextKey("shadowwire_payment")

// NewPaywallMiddleware creates a payment-gating middleware for net/http
// handlers. Each request runs a linear state machine, terminal at the first
// failing check: challenge on a missing header, 400 on an oversized one,
// challenge with a diagnostic on an undecodable or mis-bound proof, then
// facilitator verify and settle, and finally pass-through with payment
// details attached to the request context.
//
// The configuration is validated up front; a gate that would emit invalid
// offers is a programming error, so construction panics rather than serving
// challenges nobody can pay.
func NewPaywallMiddleware(config Config) func(http.Handler) http.Handler {
	if err := config.Validate(); err != nil {
		panic("shadowwire: invalid paywall configuration: " + err.Error())
	}

	facilitator := config.Facilitator
	if facilitator == nil {
		facilitator = &FacilitatorClient{
			BaseURL:  config.FacilitatorURL,
			APIKey:   config.APIKey,
			Client:   &http.Client{},
			Timeouts: config.Timeouts,
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := slog.Default()
			requirement := config.RequirementFor(r.URL.Path)

			paymentHeader := r.Header.Get(shadowwire.HeaderPayment)
			if paymentHeader == "" {
				logger.Info("no payment header provided", "path", r.URL.Path)
				sendChallenge(w, logger, requirement, config.FacilitatorURL, "Payment required")
				return
			}

			// Size cap before any decoding work.
			if len(paymentHeader) > shadowwire.MaxPaymentHeaderBytes {
				logger.Warn("oversized payment header", "path", r.URL.Path, "bytes", len(paymentHeader))
				if err := helpers.SendHeaderTooLarge(w); err != nil {
					logger.Error("failed to send too-large response", "error", err)
				}
				return
			}

			proof, err := encoding.DecodeProof(paymentHeader)
			if err != nil {
				logger.Warn("invalid payment header", "error", err)
				sendChallenge(w, logger, requirement, config.FacilitatorURL, "Invalid payment header: "+err.Error())
				return
			}

			if proof.Scheme != shadowwire.SchemeShadowWire {
				logger.Warn("unsupported payment scheme", "scheme", proof.Scheme)
				sendChallenge(w, logger, requirement, config.FacilitatorURL, "Unsupported payment scheme: "+proof.Scheme)
				return
			}

			// Resource binding: a proof produced for another path is a
			// replay, not a payment.
			if proof.Payload.Resource != "" && proof.Payload.Resource != r.URL.Path {
				logger.Warn("payment resource mismatch",
					"proofResource", proof.Payload.Resource, "path", r.URL.Path)
				sendChallenge(w, logger, requirement, config.FacilitatorURL,
					"Resource mismatch: proof is bound to "+proof.Payload.Resource)
				return
			}

			verify := facilitator.Verify(r.Context(), paymentHeader, requirement)
			if !verify.Valid {
				logger.Warn("payment verification failed", "reason", verify.Error)
				sendChallenge(w, logger, requirement, config.FacilitatorURL, verify.Error)
				return
			}

			settlement := facilitator.Settle(r.Context(), paymentHeader, requirement)
			if !settlement.Success {
				logger.Warn("payment settlement failed", "reason", settlement.Error)
				sendChallenge(w, logger, requirement, config.FacilitatorURL, settlement.Error)
				return
			}

			logger.Info("payment settled", "payer", verify.Payer, "transaction", settlement.TxHash)

			details := &shadowwire.PaymentDetails{
				Scheme: proof.Scheme,
				Payer:  verify.Payer,
				TxHash: settlement.TxHash,
				Amount: requirement.Amount,
				Asset:  requirement.Asset,
				Fee:    settlement.Fee,
				Net:    settlement.Net,
			}

			if config.OnPaymentSettled != nil {
				invokeSettledCallback(logger, config.OnPaymentSettled, details)
			}

			if err := helpers.AddPaymentResponseHeader(w.Header(), settlement); err != nil {
				logger.Warn("failed to add payment response header", "error", err)
			}

			ctx := context.WithValue(r.Context(), PaymentContextKey, details)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sendChallenge writes a deterministic 402 challenge for the requirement.
func sendChallenge(w http.ResponseWriter, logger *slog.Logger, requirement shadowwire.PaymentRequirement, facilitatorURL, errMsg string) {
	challenge := helpers.NewChallenge(requirement, facilitatorURL, errMsg)
	if err := helpers.SendPaymentRequired(w, challenge); err != nil {
		logger.Error("failed to send payment required response", "error", err)
	}
}

// invokeSettledCallback runs the post-payment callback with panic isolation:
// the payment has already settled, so a broken callback must not turn an
// authorized request into a failure.
func invokeSettledCallback(logger *slog.Logger, callback func(*shadowwire.PaymentDetails), details *shadowwire.PaymentDetails) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("payment settled callback panicked", "panic", rec)
		}
	}()
	callback(details)
}

// GetPaymentFromContext extracts settled payment details from the request
// context. Returns nil if the request did not pass through the paywall.
func GetPaymentFromContext(ctx context.Context) *shadowwire.PaymentDetails {
	value := ctx.Value(PaymentContextKey)
	if value == nil {
		return nil
	}
	details, ok := value.(*shadowwire.PaymentDetails)
	if !ok {
		return nil
	}
	return details
}

// Package gin provides Gin-compatible middleware for ShadowWire payment
// gating. It is a thin adapter that translates gin.Context to stdlib http
// patterns and mirrors the state machine of the http package's paywall.
package gin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	shadowwire "github.com/Radrdotfun/ShadowWire"
	"github.com/Radrdotfun/ShadowWire/encoding"
	swhttp "github.com/Radrdotfun/ShadowWire/http"
	"github.com/Radrdotfun/ShadowWire/http/internal/helpers"
)

// Config is an alias for swhttp.Config for convenience.
type Config = swhttp.Config

// PaymentContextKey is the gin context key for storing settled payment details.
const PaymentContextKey = "shadowwire_payment"

// NewPaywallMiddleware creates a ShadowWire payment middleware for Gin.
//
// The middleware:
//   - Checks for the X-Payment header
//   - Returns a 402 challenge if it is missing or invalid
//   - Rejects oversized headers with 400 before any decoding
//   - Enforces the proof's resource binding against the request path
//   - Verifies and settles the payment with the facilitator
//   - Stores payment details via c.Set(PaymentContextKey, details)
//   - Calls c.Abort() on payment failure, c.Next() on success
//
// Construction panics on an invalid configuration, same as the net/http
// paywall.
func NewPaywallMiddleware(config Config) gin.HandlerFunc {
	if err := config.Validate(); err != nil {
		panic("shadowwire: invalid paywall configuration: " + err.Error())
	}

	facilitator := config.Facilitator
	if facilitator == nil {
		facilitator = &swhttp.FacilitatorClient{
			BaseURL:  config.FacilitatorURL,
			APIKey:   config.APIKey,
			Client:   &http.Client{},
			Timeouts: config.Timeouts,
		}
	}

	return func(c *gin.Context) {
		logger := slog.Default()
		requirement := config.RequirementFor(c.Request.URL.Path)

		paymentHeader := c.GetHeader(shadowwire.HeaderPayment)
		if paymentHeader == "" {
			logger.Info("no payment header provided", "path", c.Request.URL.Path)
			sendChallengeGin(c, requirement, config.FacilitatorURL, "Payment required")
			return
		}

		if len(paymentHeader) > shadowwire.MaxPaymentHeaderBytes {
			logger.Warn("oversized payment header", "path", c.Request.URL.Path, "bytes", len(paymentHeader))
			helpers.SetNegotiationHeaders(c.Writer.Header())
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"x402Version": shadowwire.ProtocolVersion,
				"error":       "payment header exceeds size limit",
			})
			return
		}

		proof, err := encoding.DecodeProof(paymentHeader)
		if err != nil {
			logger.Warn("invalid payment header", "error", err)
			sendChallengeGin(c, requirement, config.FacilitatorURL, "Invalid payment header: "+err.Error())
			return
		}

		if proof.Scheme != shadowwire.SchemeShadowWire {
			logger.Warn("unsupported payment scheme", "scheme", proof.Scheme)
			sendChallengeGin(c, requirement, config.FacilitatorURL, "Unsupported payment scheme: "+proof.Scheme)
			return
		}

		if proof.Payload.Resource != "" && proof.Payload.Resource != c.Request.URL.Path {
			logger.Warn("payment resource mismatch",
				"proofResource", proof.Payload.Resource, "path", c.Request.URL.Path)
			sendChallengeGin(c, requirement, config.FacilitatorURL,
				"Resource mismatch: proof is bound to "+proof.Payload.Resource)
			return
		}

		verify := facilitator.Verify(c.Request.Context(), paymentHeader, requirement)
		if !verify.Valid {
			logger.Warn("payment verification failed", "reason", verify.Error)
			sendChallengeGin(c, requirement, config.FacilitatorURL, verify.Error)
			return
		}

		settlement := facilitator.Settle(c.Request.Context(), paymentHeader, requirement)
		if !settlement.Success {
			logger.Warn("payment settlement failed", "reason", settlement.Error)
			sendChallengeGin(c, requirement, config.FacilitatorURL, settlement.Error)
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

		if err := helpers.AddPaymentResponseHeader(c.Writer.Header(), settlement); err != nil {
			logger.Warn("failed to add payment response header", "error", err)
		}

		c.Set(PaymentContextKey, details)

		// Also store in the stdlib context for compatibility with the
		// http package helpers.
		ctx := context.WithValue(c.Request.Context(), swhttp.PaymentContextKey, details)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// sendChallengeGin sends a deterministic 402 challenge using Gin's JSON
// methods and aborts the handler chain.
func sendChallengeGin(c *gin.Context, requirement shadowwire.PaymentRequirement, facilitatorURL, errMsg string) {
	helpers.SetNegotiationHeaders(c.Writer.Header())
	c.AbortWithStatusJSON(http.StatusPaymentRequired, helpers.NewChallenge(requirement, facilitatorURL, errMsg))
}

func invokeSettledCallback(logger *slog.Logger, callback func(*shadowwire.PaymentDetails), details *shadowwire.PaymentDetails) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("payment settled callback panicked", "panic", rec)
		}
	}()
	callback(details)
}

// GetPaymentFromContext extracts settled payment details from the Gin
// context. Returns nil if no payment passed the paywall.
func GetPaymentFromContext(c *gin.Context) *shadowwire.PaymentDetails {
	value, exists := c.Get(PaymentContextKey)
	if !exists {
		return nil
	}
	details, ok := value.(*shadowwire.PaymentDetails)
	if !ok {
		return nil
	}
	return details
}

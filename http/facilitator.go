// Package http provides the HTTP client and server sides of the ShadowWire
// payment negotiation protocol: the paying client orchestrator, the paywall
// middleware, and the facilitator client.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	shadowwire "github.com/Radrdotfun/ShadowWire"
)

// Facilitator error kinds reported in VerifyResult.Error / SettleResult.Error
// when the call itself fails. A timeout is its own kind so callers can
// distinguish a slow facilitator from an unreachable one.
const (
	errKindTimeout     = "facilitator_timeout"
	errKindUnreachable = "facilitator_unreachable"
	errKindBadResponse = "facilitator_response_invalid"
)

// Facilitator is the interface the paywall middleware drives. Both
// operations fold every failure into the result value; neither ever
// surfaces a transport error to the caller.
type Facilitator interface {
	Verify(ctx context.Context, paymentHeader string, requirement shadowwire.PaymentRequirement) *shadowwire.VerifyResult
	Settle(ctx context.Context, paymentHeader string, requirement shadowwire.PaymentRequirement) *shadowwire.SettleResult
}

// FacilitatorClient talks to an external verification and settlement
// service over HTTP with bounded timeouts. Retry policy, if any, belongs to
// the caller; this client issues exactly one request per operation.
type FacilitatorClient struct {
	// BaseURL is the facilitator service URL.
	BaseURL string

	// APIKey is sent as the X-Api-Key header when non-empty.
	APIKey string

	// Client is the HTTP client to use. If nil, http.DefaultClient is used.
	Client *http.Client

	// Timeouts bounds the verify and settle calls. Zero values fall back
	// to shadowwire.DefaultTimeouts.
	Timeouts shadowwire.TimeoutConfig
}

var _ Facilitator = (*FacilitatorClient)(nil)

// verifyRequest is the wire shape of POST {base}/verify.
type verifyRequest struct {
	PaymentHeader string `json:"paymentHeader"`
	Resource      string `json:"resource"`
	MaxAmount     string `json:"maxAmount,omitempty"`
}

// settleRequest is the wire shape of POST {base}/settle.
type settleRequest struct {
	PaymentHeader  string `json:"paymentHeader"`
	MerchantWallet string `json:"merchantWallet"`
	Amount         string `json:"amount"`
	Asset          string `json:"asset"`
}

func (c *FacilitatorClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *FacilitatorClient) verifyTimeout() time.Duration {
	if c.Timeouts.VerifyTimeout > 0 {
		return c.Timeouts.VerifyTimeout
	}
	return shadowwire.DefaultTimeouts.VerifyTimeout
}

func (c *FacilitatorClient) settleTimeout() time.Duration {
	if c.Timeouts.SettleTimeout > 0 {
		return c.Timeouts.SettleTimeout
	}
	return shadowwire.DefaultTimeouts.SettleTimeout
}

// Verify asks the facilitator whether the payment proof is valid for the
// requirement. The header size cap is re-checked before any network
// round-trip; oversized input never costs a network call.
func (c *FacilitatorClient) Verify(ctx context.Context, paymentHeader string, requirement shadowwire.PaymentRequirement) *shadowwire.VerifyResult {
	if len(paymentHeader) > shadowwire.MaxPaymentHeaderBytes {
		return &shadowwire.VerifyResult{Valid: false, Error: shadowwire.ErrHeaderTooLarge.Error()}
	}

	body := verifyRequest{
		PaymentHeader: paymentHeader,
		Resource:      requirement.Resource,
		MaxAmount:     requirement.Amount,
	}

	result := &shadowwire.VerifyResult{}
	if kind, detail := c.post(ctx, "/verify", c.verifyTimeout(), body, result); kind != "" {
		return &shadowwire.VerifyResult{Valid: false, Error: facilitatorError(kind, detail)}
	}
	return result
}

// Settle asks the facilitator to execute the settlement of a verified
// payment, with the same fail-closed mapping as Verify.
func (c *FacilitatorClient) Settle(ctx context.Context, paymentHeader string, requirement shadowwire.PaymentRequirement) *shadowwire.SettleResult {
	if len(paymentHeader) > shadowwire.MaxPaymentHeaderBytes {
		return &shadowwire.SettleResult{Success: false, Error: shadowwire.ErrHeaderTooLarge.Error()}
	}

	body := settleRequest{
		PaymentHeader:  paymentHeader,
		MerchantWallet: requirement.PayTo,
		Amount:         requirement.Amount,
		Asset:          requirement.Asset,
	}

	result := &shadowwire.SettleResult{}
	if kind, detail := c.post(ctx, "/settle", c.settleTimeout(), body, result); kind != "" {
		return &shadowwire.SettleResult{Success: false, Error: facilitatorError(kind, detail)}
	}
	return result
}

// post issues one bounded JSON POST and decodes the response into out.
// It returns ("", "") on success, otherwise an error kind and detail.
func (c *FacilitatorClient) post(ctx context.Context, path string, timeout time.Duration, body, out interface{}) (kind, detail string) {
	data, err := json.Marshal(body)
	if err != nil {
		return errKindBadResponse, err.Error()
	}

	// Apply the per-call timeout only when the caller has not already
	// bounded the context.
	reqCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, "POST", c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return errKindUnreachable, err.Error()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("X-Api-Key", c.APIKey)
	}

	httpResp, err := c.httpClient().Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return errKindTimeout, err.Error()
		}
		return errKindUnreachable, err.Error()
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode/100 != 2 {
		return fmt.Sprintf("facilitator_error_status_%d", httpResp.StatusCode), readErrorDetail(httpResp)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return errKindBadResponse, err.Error()
	}
	return "", ""
}

// facilitatorError renders an error kind with optional remote detail. The
// remote error string, when present, is preserved verbatim.
func facilitatorError(kind, detail string) string {
	if detail == "" {
		return kind
	}
	return kind + ": " + detail
}

// readErrorDetail extracts a remote error message from a non-200 response.
func readErrorDetail(resp *http.Response) string {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errBody map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &errBody); err == nil {
		if reason, ok := errBody["error"].(string); ok && reason != "" {
			return reason
		}
	}
	if len(bodyBytes) > 0 && len(bodyBytes) < 500 {
		return string(bodyBytes)
	}
	return ""
}

// isTimeout reports whether a transport error is a timeout.
func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

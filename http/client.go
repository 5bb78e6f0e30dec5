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
	"github.com/Radrdotfun/ShadowWire/encoding"
	"github.com/Radrdotfun/ShadowWire/http/internal/helpers"
	"github.com/Radrdotfun/ShadowWire/retry"
)

// Client is the client-side payment orchestrator. Given a URL it performs
// the full challenge, pay, retry flow; Pay is also exposed for manual flows.
// A Client holds only read-only configuration and the injected wallet and
// converter capabilities, so it is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	wallet     shadowwire.Wallet
	converter  shadowwire.Converter
	sender     string
	mode       shadowwire.TransferMode
	scheme     string
	maxRetries int
	timeout    time.Duration
	headers    map[string]string

	onAttempt shadowwire.PaymentCallback
	onSuccess shadowwire.PaymentCallback
	onFailure shadowwire.PaymentCallback
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient creates a payment-capable HTTP client. A wallet and a converter
// are required; everything else has defaults (one retry after payment, 15s
// per-call timeout, shielded transfers).
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		httpClient: &http.Client{},
		mode:       shadowwire.TransferModeShielded,
		scheme:     shadowwire.SchemeShadowWire,
		maxRetries: 1,
		timeout:    shadowwire.DefaultTimeouts.RequestTimeout,
		headers:    make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	if client.wallet == nil {
		return nil, fmt.Errorf("shadowwire: wallet is required")
	}
	if client.converter == nil {
		return nil, fmt.Errorf("shadowwire: converter is required")
	}
	return client, nil
}

// WithWallet sets the transfer capability.
func WithWallet(wallet shadowwire.Wallet) ClientOption {
	return func(c *Client) error {
		c.wallet = wallet
		return nil
	}
}

// WithConverter sets the token/unit conversion capability.
func WithConverter(converter shadowwire.Converter) ClientOption {
	return func(c *Client) error {
		c.converter = converter
		return nil
	}
}

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		if httpClient == nil {
			return fmt.Errorf("shadowwire: http client must not be nil")
		}
		c.httpClient = httpClient
		return nil
	}
}

// WithSender sets the paying account identity attached to transfers and proofs.
func WithSender(sender string) ClientOption {
	return func(c *Client) error {
		c.sender = sender
		return nil
	}
}

// WithTransferMode sets the preferred transfer mode.
func WithTransferMode(mode shadowwire.TransferMode) ClientOption {
	return func(c *Client) error {
		c.mode = mode
		return nil
	}
}

// WithMaxRetries sets how many times the paid request is retried after the
// first paid attempt. Negative values are rejected.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("shadowwire: max retries must not be negative")
		}
		c.maxRetries = n
		return nil
	}
}

// WithRequestTimeout sets the per-call timeout for outbound requests.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("shadowwire: request timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithDefaultHeader adds a header sent on every request. Caller-supplied
// per-request headers override it.
func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) error {
		c.headers[key] = value
		return nil
	}
}

// WithPaymentCallbacks sets the lifecycle callbacks. Pass nil for any
// callback you don't want.
func WithPaymentCallbacks(onAttempt, onSuccess, onFailure shadowwire.PaymentCallback) ClientOption {
	return func(c *Client) error {
		c.onAttempt = onAttempt
		c.onSuccess = onSuccess
		c.onFailure = onFailure
		return nil
	}
}

// RequestOptions carries per-request parameters for Request.
type RequestOptions struct {
	// Method defaults to GET.
	Method string

	// Headers are merged over the client's default headers.
	Headers map[string]string

	// Body is the optional request body.
	Body []byte
}

// PaymentInfo records the payment a Request made.
type PaymentInfo struct {
	// Transfer is the wallet's transfer result.
	Transfer *shadowwire.TransferResult `json:"transfer"`

	// Header is the encoded proof sent in X-Payment.
	Header string `json:"-"`

	// Requirement is the offer that was paid.
	Requirement shadowwire.PaymentRequirement `json:"requirement"`

	// Settlement is the server's settle result, when it exposed one.
	Settlement *shadowwire.SettleResult `json:"settlement,omitempty"`
}

// Result is the outcome of a Request.
type Result struct {
	// Success is true when the final response status is in the 2xx range.
	Success bool

	// StatusCode and Status describe the final response.
	StatusCode int
	Status     string

	// Data is the raw response body.
	Data json.RawMessage

	// Payment is set when a payment was made during the flow.
	Payment *PaymentInfo
}

// Sentinels classifying non-success responses inside the retry loop. A
// server error backs off before the next attempt; any other non-success
// status retries immediately.
var (
	errServerStatus  = errors.New("shadowwire: server error status")
	errFailureStatus = errors.New("shadowwire: non-success response status")
)

// Request performs the full challenge, pay, retry flow against url.
//
// The state machine is strictly sequential: initial fetch, challenge parse,
// offer selection, payment, then the paid retry loop. A non-402 response
// terminates immediately. A second 402 after payment is a protocol-level
// rejection and terminates the flow rather than looping. Any other
// non-success response after payment consumes the configured retry budget
// before the failure is surfaced; server errors additionally back off
// between attempts, capped at one second of added delay in total.
func (c *Client) Request(ctx context.Context, url string, opts *RequestOptions) (*Result, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	status, body, _, err := c.do(ctx, url, opts, "")
	if err != nil {
		return nil, err
	}

	if status != http.StatusPaymentRequired {
		return &Result{
			Success:    status >= 200 && status < 300,
			StatusCode: status,
			Status:     http.StatusText(status),
			Data:       body,
		}, nil
	}

	challenge, ok := shadowwire.ParseChallenge(body)
	if !ok || len(challenge.Accepts) == 0 {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeInvalidChallenge, "402 response carries no usable offers", shadowwire.ErrInvalidChallenge)
	}

	offer, found := shadowwire.FindOffer(challenge.Accepts, c.scheme)
	if !found {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeNoMatchingOffer, "no offer matches scheme "+c.scheme, shadowwire.ErrNoMatchingOffer)
	}

	started := time.Now()
	c.emit(c.onAttempt, shadowwire.PaymentEvent{
		Type:      shadowwire.PaymentEventAttempt,
		Timestamp: started,
		URL:       url,
		Amount:    offer.Amount,
		Asset:     offer.Asset,
		Network:   offer.Network,
		Scheme:    offer.Scheme,
		Recipient: offer.PayTo,
	})

	payment, err := c.Pay(ctx, *offer)
	if err != nil {
		c.emit(c.onFailure, shadowwire.PaymentEvent{
			Type:      shadowwire.PaymentEventFailure,
			Timestamp: time.Now(),
			URL:       url,
			Scheme:    offer.Scheme,
			Error:     err,
			Duration:  time.Since(started),
		})
		return nil, err
	}

	result, err := c.paidRetry(ctx, url, opts, payment)
	if err != nil {
		c.emit(c.onFailure, shadowwire.PaymentEvent{
			Type:      shadowwire.PaymentEventFailure,
			Timestamp: time.Now(),
			URL:       url,
			Scheme:    offer.Scheme,
			Error:     err,
			Duration:  time.Since(started),
		})
		return nil, err
	}

	if result.Success {
		c.emit(c.onSuccess, shadowwire.PaymentEvent{
			Type:        shadowwire.PaymentEventSuccess,
			Timestamp:   time.Now(),
			URL:         url,
			Amount:      offer.Amount,
			Asset:       offer.Asset,
			Network:     offer.Network,
			Scheme:      offer.Scheme,
			Recipient:   offer.PayTo,
			TxSignature: payment.Transfer.TxSignature,
			Duration:    time.Since(started),
		})
	}
	return result, nil
}

// paidRetry reissues the original request with the proof attached, up to
// maxRetries+1 attempts. Every non-success status except a repeated 402 is
// retried; only server errors incur the backoff delay.
func (c *Client) paidRetry(ctx context.Context, url string, opts *RequestOptions, payment *PaymentInfo) (*Result, error) {
	cfg := retry.Config{
		MaxAttempts:   c.maxRetries + 1,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      800 * time.Millisecond,
		MaxTotalDelay: time.Second,
		Multiplier:    2.0,
		Backoff: func(err error) bool {
			return errors.Is(err, errServerStatus)
		},
	}

	result, err := retry.WithRetry(ctx, cfg, func(err error) bool {
		return errors.Is(err, errServerStatus) || errors.Is(err, errFailureStatus)
	}, func() (*Result, error) {
		status, body, header, err := c.do(ctx, url, opts, payment.Header)
		if err != nil {
			return nil, err
		}

		if status == http.StatusPaymentRequired {
			// A repeated challenge after payment is a rejection, not a
			// transient fault.
			return nil, shadowwire.NewPaymentError(
				shadowwire.ErrCodePaymentRejected, "server re-challenged after payment", shadowwire.ErrPaymentRejected)
		}

		res := &Result{
			Success:    status >= 200 && status < 300,
			StatusCode: status,
			Status:     http.StatusText(status),
			Data:       body,
			Payment:    payment,
		}
		if res.Success {
			payment.Settlement = helpers.ParseSettlement(header.Get(shadowwire.HeaderPaymentResponse))
			return res, nil
		}
		if status >= 500 {
			return res, fmt.Errorf("%w: %d", errServerStatus, status)
		}
		return res, fmt.Errorf("%w: %d", errFailureStatus, status)
	})

	// The retry budget ran out on a non-success status: surface the final
	// response as a failed result rather than an error.
	if result != nil && (errors.Is(err, errServerStatus) || errors.Is(err, errFailureStatus)) {
		return result, nil
	}
	return result, err
}

// Pay executes the payment for one offer and returns the encoded proof.
//
// The scheme precondition is checked before anything else; an offer for a
// foreign scheme is a hard error, not a retryable fault. Errors and panics
// from the wallet are converted into structured transfer failures.
func (c *Client) Pay(ctx context.Context, requirement shadowwire.PaymentRequirement) (*PaymentInfo, error) {
	if requirement.Scheme != c.scheme {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeUnsupportedScheme,
			"offer scheme "+requirement.Scheme+" is not supported",
			shadowwire.ErrUnsupportedScheme,
		).WithDetails("supported", c.scheme)
	}

	amount, err := c.converter.ToNativeUnits(requirement.Amount, requirement.Asset)
	if err != nil {
		return nil, err
	}

	transfer, err := c.transfer(ctx, shadowwire.TransferRequest{
		Sender:    c.sender,
		Recipient: requirement.PayTo,
		Amount:    amount,
		Asset:     requirement.Asset,
		Mode:      c.mode,
	})
	if err != nil {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeTransferFailed, "transfer failed", err)
	}
	if !transfer.Success {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeTransferFailed, "transfer reported failure", shadowwire.ErrTransferFailed)
	}

	proof := shadowwire.PaymentProof{
		X402Version: shadowwire.ProtocolVersion,
		Scheme:      c.scheme,
		Network:     requirement.Network,
		Payload: shadowwire.ProofPayload{
			Signature:    transfer.TxSignature,
			AmountHidden: transfer.AmountHidden,
			Resource:     requirement.Resource,
			PayTo:        requirement.PayTo,
			Sender:       c.sender,
		},
	}
	header, err := encoding.EncodeProof(proof)
	if err != nil {
		return nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeMalformedHeader, "failed to encode proof", err)
	}

	return &PaymentInfo{
		Transfer:    transfer,
		Header:      header,
		Requirement: requirement,
	}, nil
}

// transfer invokes the wallet with panic isolation, since the transfer
// capability is external code.
func (c *Client) transfer(ctx context.Context, req shadowwire.TransferRequest) (result *shadowwire.TransferResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("%w: wallet panicked: %v", shadowwire.ErrTransferFailed, rec)
		}
	}()
	return c.wallet.Transfer(ctx, req)
}

// do issues one bounded HTTP request and reads the full response.
func (c *Client) do(ctx context.Context, url string, opts *RequestOptions, paymentHeader string) (int, []byte, http.Header, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	reqCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if len(opts.Body) > 0 {
		bodyReader = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
	if err != nil {
		return 0, nil, nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeNetworkError, "failed to build request", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}
	if paymentHeader != "" {
		req.Header.Set(shadowwire.HeaderPayment, paymentHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return 0, nil, nil, shadowwire.NewPaymentError(
				shadowwire.ErrCodeRequestTimeout, "request to "+url+" timed out", shadowwire.ErrRequestTimeout)
		}
		return 0, nil, nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeNetworkError, "request to "+url+" failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, shadowwire.NewPaymentError(
			shadowwire.ErrCodeNetworkError, "failed to read response body", err)
	}
	return resp.StatusCode, body, resp.Header, nil
}

// emit invokes a payment callback if set.
func (c *Client) emit(callback shadowwire.PaymentCallback, event shadowwire.PaymentEvent) {
	if callback != nil {
		callback(event)
	}
}

package shadowwire

import "errors"

// Sentinel errors for ShadowWire payment operations.
var (
	// ErrInvalidRequirement indicates a malformed payment requirement.
	ErrInvalidRequirement = errors.New("shadowwire: invalid payment requirement")

	// ErrInvalidChallenge indicates the 402 body is not a usable challenge.
	ErrInvalidChallenge = errors.New("shadowwire: invalid challenge document")

	// ErrNoMatchingOffer indicates no offered scheme is supported.
	ErrNoMatchingOffer = errors.New("shadowwire: no compatible payment option")

	// ErrInvalidAmount indicates an unparsable or non-positive amount.
	ErrInvalidAmount = errors.New("shadowwire: invalid amount")

	// ErrUnknownAsset indicates an asset the converter does not know.
	ErrUnknownAsset = errors.New("shadowwire: unknown asset")

	// ErrUnsupportedScheme indicates a scheme this implementation does not support.
	ErrUnsupportedScheme = errors.New("shadowwire: unsupported payment scheme")

	// ErrUnsupportedVersion indicates a foreign protocol version.
	ErrUnsupportedVersion = errors.New("shadowwire: unsupported protocol version")

	// ErrMalformedHeader indicates the X-Payment header does not decode to a proof.
	ErrMalformedHeader = errors.New("shadowwire: malformed payment header")

	// ErrHeaderTooLarge indicates the X-Payment header exceeds the size cap.
	ErrHeaderTooLarge = errors.New("shadowwire: payment header exceeds size limit")

	// ErrTransferFailed indicates the wallet transfer did not complete.
	ErrTransferFailed = errors.New("shadowwire: transfer failed")

	// ErrPaymentRejected indicates the server re-challenged after payment.
	ErrPaymentRejected = errors.New("shadowwire: payment not accepted by server")

	// ErrRequestTimeout indicates an outbound call exceeded its deadline.
	ErrRequestTimeout = errors.New("shadowwire: request timed out")

	// ErrNetworkError indicates a non-timeout transport failure.
	ErrNetworkError = errors.New("shadowwire: network error")
)

// ErrorCode represents payment error codes for programmatic handling.
type ErrorCode string

const (
	ErrCodeInvalidRequirement ErrorCode = "INVALID_REQUIREMENT"
	ErrCodeInvalidChallenge   ErrorCode = "INVALID_CHALLENGE"
	ErrCodeNoMatchingOffer    ErrorCode = "NO_MATCHING_OFFER"
	ErrCodeInvalidAmount      ErrorCode = "INVALID_AMOUNT"
	ErrCodeUnsupportedScheme  ErrorCode = "UNSUPPORTED_SCHEME"
	ErrCodeUnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION"
	ErrCodeMalformedHeader    ErrorCode = "MALFORMED_HEADER"
	ErrCodeHeaderTooLarge     ErrorCode = "HEADER_TOO_LARGE"
	ErrCodeTransferFailed     ErrorCode = "TRANSFER_FAILED"
	ErrCodePaymentRejected    ErrorCode = "PAYMENT_REJECTED"
	ErrCodeRequestTimeout     ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeNetworkError       ErrorCode = "NETWORK_ERROR"
)

// PaymentError provides structured error information.
type PaymentError struct {
	// Code is the error code for programmatic handling.
	Code ErrorCode

	// Message is the human-readable error message.
	Message string

	// Details contains additional error context.
	Details map[string]interface{}

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError with the given code and message.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetails adds additional context to the error.
// Lazily initializes the Details map if nil.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

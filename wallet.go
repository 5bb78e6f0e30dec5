package shadowwire

import "context"

// TransferMode selects how a transfer is executed by the wallet.
type TransferMode string

const (
	// TransferModeShielded hides the transferred amount from public view.
	TransferModeShielded TransferMode = "shielded"

	// TransferModePublic executes an ordinary public transfer.
	TransferModePublic TransferMode = "public"
)

// TransferRequest describes one transfer to execute.
type TransferRequest struct {
	// Sender is the paying account identity.
	Sender string

	// Recipient is the receiving account.
	Recipient string

	// Amount is the transfer amount in native units of Asset.
	Amount uint64

	// Asset is the token identifier.
	Asset string

	// Mode selects shielded or public execution.
	Mode TransferMode
}

// TransferResult is the wallet's report of a completed transfer attempt.
type TransferResult struct {
	// Success reports whether the transfer completed.
	Success bool `json:"success"`

	// TxSignature is the transfer signature/identifier.
	TxSignature string `json:"tx_signature"`

	// AmountHidden reports whether the amount is hidden on the ledger.
	AmountHidden bool `json:"amount_hidden"`
}

// Wallet is the external value-transfer capability. Implementations live
// outside this module; the orchestrator only calls Transfer and treats any
// error or panic from it as a structured transfer failure.
type Wallet interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// Converter is the token/unit conversion capability. It is a required
// injected dependency of the orchestrator rather than a runtime-optional
// lookup, so a missing asset table fails loudly at construction time.
type Converter interface {
	// ToNativeUnits converts an atomic decimal amount string into the
	// transfer mechanism's native integer unit for the given asset.
	// Non-positive, fractional, or unparsable amounts are rejected.
	ToNativeUnits(amount, asset string) (uint64, error)

	// FromNativeUnits renders a native amount as a display decimal string.
	FromNativeUnits(amount uint64, asset string) (string, error)

	// IsKnownAsset reports whether the asset is in the conversion table.
	IsKnownAsset(asset string) bool
}

// FeeQuote is a fee estimate for a prospective transfer.
type FeeQuote struct {
	// Fee is the fee in native units.
	Fee uint64 `json:"fee"`

	// FeePercentage is the fee as a percentage of the amount.
	FeePercentage float64 `json:"fee_percentage"`

	// NetAmount is the amount the recipient receives after fees.
	NetAmount uint64 `json:"net_amount"`
}

// FeeEstimator is the balance/fee query capability of the transfer mechanism.
type FeeEstimator interface {
	GetBalance(ctx context.Context, account, asset string) (uint64, error)
	EstimateFee(ctx context.Context, amount uint64, asset string) (*FeeQuote, error)
}

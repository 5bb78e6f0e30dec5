package shadowwire

import (
	"math"

	"github.com/shopspring/decimal"
)

// AssetInfo describes one token known to the Registry.
type AssetInfo struct {
	// Symbol is the token identifier used in requirements (e.g. "USDC").
	Symbol string

	// Decimals is the number of decimal places of the token's atomic unit.
	Decimals int32
}

// Registry is a Converter backed by a static asset table. A Registry is
// immutable after construction and safe for concurrent use.
type Registry struct {
	assets map[string]AssetInfo
}

// DefaultAssets is the asset table shipped with this implementation.
var DefaultAssets = []AssetInfo{
	{Symbol: "USDC", Decimals: 6},
	{Symbol: "USDT", Decimals: 6},
	{Symbol: "SOL", Decimals: 9},
	{Symbol: "RADR", Decimals: 9},
}

// NewRegistry builds a Registry from the given assets. With no arguments it
// uses DefaultAssets.
func NewRegistry(assets ...AssetInfo) *Registry {
	if len(assets) == 0 {
		assets = DefaultAssets
	}
	table := make(map[string]AssetInfo, len(assets))
	for _, a := range assets {
		table[a.Symbol] = a
	}
	return &Registry{assets: table}
}

var _ Converter = (*Registry)(nil)

// IsKnownAsset reports whether the asset is in the table.
func (r *Registry) IsKnownAsset(asset string) bool {
	_, ok := r.assets[asset]
	return ok
}

// ToNativeUnits converts an atomic decimal amount string into native units.
// The amount must be a positive integer that fits in a uint64, and the asset
// must be known.
func (r *Registry) ToNativeUnits(amount, asset string) (uint64, error) {
	if !r.IsKnownAsset(asset) {
		return 0, NewPaymentError(ErrCodeInvalidAmount, "unknown asset "+asset, ErrUnknownAsset)
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, NewPaymentError(ErrCodeInvalidAmount, "unparsable amount "+amount, ErrInvalidAmount)
	}
	if !value.IsInteger() {
		return 0, NewPaymentError(ErrCodeInvalidAmount, "amount must be an integer in atomic units", ErrInvalidAmount)
	}
	if value.Sign() <= 0 {
		return 0, NewPaymentError(ErrCodeInvalidAmount, "amount must be positive", ErrInvalidAmount)
	}
	if value.Cmp(decimal.NewFromUint64(math.MaxUint64)) > 0 {
		return 0, NewPaymentError(ErrCodeInvalidAmount, "amount overflows native units", ErrInvalidAmount)
	}
	return value.BigInt().Uint64(), nil
}

// FromNativeUnits renders a native amount as a display decimal string using
// the asset's decimal places ("1500000" USDC becomes "1.5").
func (r *Registry) FromNativeUnits(amount uint64, asset string) (string, error) {
	info, ok := r.assets[asset]
	if !ok {
		return "", NewPaymentError(ErrCodeInvalidAmount, "unknown asset "+asset, ErrUnknownAsset)
	}
	return decimal.NewFromUint64(amount).Shift(-info.Decimals).String(), nil
}

// ParseDisplayAmount converts a display decimal string ("1.5" USDC) into
// native units, rejecting amounts with more precision than the asset allows.
func (r *Registry) ParseDisplayAmount(display, asset string) (uint64, error) {
	info, ok := r.assets[asset]
	if !ok {
		return 0, NewPaymentError(ErrCodeInvalidAmount, "unknown asset "+asset, ErrUnknownAsset)
	}
	value, err := decimal.NewFromString(display)
	if err != nil {
		return 0, NewPaymentError(ErrCodeInvalidAmount, "unparsable amount "+display, ErrInvalidAmount)
	}
	scaled := value.Shift(info.Decimals)
	if !scaled.IsInteger() {
		return 0, NewPaymentError(ErrCodeInvalidAmount, "amount has too many decimal places for "+asset, ErrInvalidAmount)
	}
	return r.ToNativeUnits(scaled.String(), asset)
}

package token

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/solana-airdrop-api/pkg/types"
)

var maxRaw = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// maxExponent caps the decimal exponent accepted from callers so that
// scaling never materializes an enormous integer.
const maxExponent = 512

// ToRaw scales a UI amount to base units (amount × 10^decimals) without
// going through floating point.
func ToRaw(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if amount.Sign() <= 0 {
		return 0, types.NewValidationError("amount", "amount must be positive")
	}
	if amount.Exponent() > maxExponent {
		return 0, types.NewValidationError("amount", "amount too large")
	}
	if amount.Exponent() < -maxExponent {
		return 0, types.NewValidationError("amount", "amount exceeds token precision")
	}
	raw := amount.Shift(int32(decimals))
	if !raw.IsInteger() {
		return 0, types.NewValidationError("amount", "amount exceeds token precision")
	}
	if raw.GreaterThan(maxRaw) {
		return 0, types.NewValidationError("amount", "amount too large")
	}
	return raw.BigInt().Uint64(), nil
}

// FromRaw converts base units back to a UI amount.
func FromRaw(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals))
}

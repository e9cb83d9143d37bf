// Package units converts between on-chain fixed-point integers and decimal strings.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the scale used by every token amount this module handles.
const TokenDecimals = 18

// maxDigits is the number of decimal digits in the largest uint256.
const maxDigits = 78

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrTooPrecise    = errors.New("amount has more fractional digits than the token supports")
)

// FromWei scales a raw on-chain integer down to a decimal value.
func FromWei(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -TokenDecimals)
}

// ToWei scales a decimal value up to its raw on-chain integer. Values with
// more than TokenDecimals fractional digits are rejected rather than rounded.
func ToWei(d decimal.Decimal) (*big.Int, error) {
	if err := checkMagnitude(d); err != nil {
		return nil, err
	}
	scaled := d.Shift(TokenDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrTooPrecise
	}
	return scaled.BigInt(), nil
}

// checkMagnitude bounds the exponent before any scaling, since Shift and
// Truncate materialise the full integer.
func checkMagnitude(d decimal.Decimal) error {
	digits := len(new(big.Int).Abs(d.Coefficient()).Text(10))
	exp := int64(d.Exponent())
	if int64(digits)+exp > maxDigits-TokenDecimals {
		return fmt.Errorf("%w: exceeds %d integer digits", ErrInvalidAmount, maxDigits-TokenDecimals)
	}
	if exp < -(maxDigits + TokenDecimals) {
		return ErrTooPrecise
	}
	return nil
}

// Format renders a raw integer balance as a decimal string ("10000", "0.5").
func Format(raw *big.Int) string {
	return FromWei(raw).String()
}

// Parse reads a decimal string into its raw integer representation.
func Parse(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return ToWei(d)
}

// MustParse is Parse for package-level constants.
func MustParse(amount string) *big.Int {
	v, err := Parse(amount)
	if err != nil {
		panic(err)
	}
	return v
}

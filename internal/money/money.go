package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits stored for clearing amounts.
const Scale = 4

// MaxIntegerDigits matches numeric(18,4): 18 digits of precision, 4 of them fractional.
const MaxIntegerDigits = 14

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrAmountTooLarge  = errors.New("amount is too large")
)

// Tolerance is the currency rounding slack allowed between the two sides of a basket.
var Tolerance = decimal.New(1, -2)

func Parse(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	unsigned := trimmed
	switch unsigned[0] {
	case '-', '+':
		unsigned = unsigned[1:]
	}
	parts := strings.SplitN(unsigned, ".", 2)
	wholePart := parts[0]
	if wholePart == "" {
		wholePart = "0"
	}
	if !isDigits(wholePart) {
		return decimal.Zero, ErrInvalidAmount
	}
	if len(strings.TrimLeft(wholePart, "0")) > MaxIntegerDigits {
		return decimal.Zero, ErrAmountTooLarge
	}
	if len(parts) == 2 {
		fracPart := parts[1]
		if fracPart == "" || !isDigits(fracPart) {
			return decimal.Zero, ErrInvalidAmount
		}
		if len(fracPart) > Scale {
			return decimal.Zero, ErrTooManyDecimals
		}
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

// Format renders two decimals unless the value carries finer precision.
func Format(value decimal.Decimal) string {
	if value.Equal(value.Round(2)) {
		return value.StringFixed(2)
	}
	return value.StringFixed(Scale)
}

// Balanced reports whether two basket sides agree within Tolerance.
func Balanced(debit, credit decimal.Decimal) bool {
	return debit.Sub(credit).Abs().LessThan(Tolerance)
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

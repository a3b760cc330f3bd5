package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimalToCents converts a user-entered decimal string to cents.
// Calculations always use integer cents; decimals exist only at the input
// boundary.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Only strictly positive amounts are valid.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0).IntPart()
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

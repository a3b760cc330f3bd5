// Package core holds the domain types of the finance engine: month keys,
// money, monthly item instances, debts and the derived summary.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// MonthKey identifies a calendar month. It replaces the raw "YYYY-MM" strings
// used as lookup keys at the storage boundary: arithmetic and ordering are
// defined here instead of relying on lexicographic string comparison.
type MonthKey struct {
	Year  int
	Month int // 1-12
}

// ParseMonthKey parses the fixed "YYYY-MM" format.
func ParseMonthKey(s string) (MonthKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return MonthKey{}, fmt.Errorf("%w: month key %q must be YYYY-MM", ErrInvalidInput, s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return MonthKey{}, fmt.Errorf("%w: month key %q has invalid year", ErrInvalidInput, s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return MonthKey{}, fmt.Errorf("%w: month key %q has invalid month", ErrInvalidInput, s)
	}
	if year < 1 {
		return MonthKey{}, fmt.Errorf("%w: month key %q has invalid year", ErrInvalidInput, s)
	}
	return MonthKey{Year: year, Month: month}, nil
}

// String returns the canonical zero-padded "YYYY-MM" form.
func (m MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// IsZero reports whether the key is the zero value.
func (m MonthKey) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m MonthKey) index() int {
	return m.Year*12 + m.Month - 1
}

// Prev returns the preceding month, rolling January back to December.
func (m MonthKey) Prev() MonthKey {
	if m.Month == 1 {
		return MonthKey{Year: m.Year - 1, Month: 12}
	}
	return MonthKey{Year: m.Year, Month: m.Month - 1}
}

// Next returns the following month, rolling December into January.
func (m MonthKey) Next() MonthKey {
	if m.Month == 12 {
		return MonthKey{Year: m.Year + 1, Month: 1}
	}
	return MonthKey{Year: m.Year, Month: m.Month + 1}
}

// Before reports whether m is strictly earlier than other.
func (m MonthKey) Before(other MonthKey) bool {
	return m.index() < other.index()
}

// After reports whether m is strictly later than other.
func (m MonthKey) After(other MonthKey) bool {
	return m.index() > other.index()
}

// Compare returns -1, 0 or +1 ordering m against other.
func (m MonthKey) Compare(other MonthKey) int {
	switch {
	case m.index() < other.index():
		return -1
	case m.index() > other.index():
		return 1
	default:
		return 0
	}
}

func (m MonthKey) Validate() error {
	if m.Month < 1 || m.Month > 12 {
		return fmt.Errorf("%w: month out of range", ErrInvalidInput)
	}
	if m.Year < 1 {
		return fmt.Errorf("%w: year out of range", ErrInvalidInput)
	}
	return nil
}

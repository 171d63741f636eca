package core

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
)

// ErrInvalidAmount is returned for text that is not a plain decimal number.
var ErrInvalidAmount = errors.New("invalid amount")

var decimalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// Amount is a money value kept in its decimal textual form, e.g. "25000.00".
// The zero value is not a valid amount.
//
// In JSON it is written as a bare number and read from a number or a quoted string.
type Amount string

// ParseAmount validates s as a plain decimal number.
func ParseAmount(s string) (Amount, error) {
	if !decimalPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	return Amount(s), nil
}

// MustParseAmount is ParseAmount for literals; it panics on invalid input.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}

	return a
}

// String returns the decimal text.
func (a Amount) String() string {
	return string(a)
}

// Sign returns -1, 0, or +1. An invalid amount counts as 0.
func (a Amount) Sign() int {
	if !decimalPattern.MatchString(string(a)) {
		return 0
	}

	r, ok := new(big.Rat).SetString(string(a))
	if !ok {
		return 0
	}

	return r.Sign()
}

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool {
	return a.Sign() > 0
}

// Equal compares numerically, so "10" equals "10.00".
func (a Amount) Equal(other Amount) bool {
	x, okX := new(big.Rat).SetString(string(a))
	y, okY := new(big.Rat).SetString(string(other))

	return okX && okY && x.Cmp(y) == 0
}

// MarshalJSON writes the amount as a JSON number, the zero amount as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}

	if !decimalPattern.MatchString(string(a)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, string(a))
	}

	return []byte(a), nil
}

// UnmarshalJSON accepts a JSON number or a string holding a decimal.
func (a *Amount) UnmarshalJSON(data []byte) error {
	text := string(data)
	if text == "null" {
		return nil
	}

	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}

	parsed, err := ParseAmount(text)
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}

// Value stores the amount as text. The zero amount is stored as NULL.
func (a Amount) Value() (driver.Value, error) {
	if a == "" {
		return nil, nil
	}

	return string(a), nil
}

// Scan reads an amount from TEXT or NUMERIC columns. NULL and empty text scan to the zero amount.
func (a *Amount) Scan(src any) error {
	var text string

	switch v := src.(type) {
	case nil:
		*a = ""
		return nil
	case string:
		text = v
	case []byte:
		text = string(v)
	case int64:
		text = strconv.FormatInt(v, 10)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidAmount, src)
	}

	if text == "" {
		*a = ""
		return nil
	}

	parsed, err := ParseAmount(text)
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}

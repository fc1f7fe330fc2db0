package model

import (
	"fmt"
	"regexp"
)

// StockCode is a fixed 6-digit numeric instrument code, as used on the
// Korean exchanges. It is validated at every boundary: decode, cache read,
// and constructor.
type StockCode string

var stockCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// NewStockCode validates s and returns it as a StockCode.
func NewStockCode(s string) (StockCode, error) {
	if !stockCodePattern.MatchString(s) {
		return "", fmt.Errorf("model: invalid stock code %q: must be 6 digits", s)
	}
	return StockCode(s), nil
}

func (c StockCode) String() string { return string(c) }

// Valid reports whether c is a well-formed 6-digit stock code.
func (c StockCode) Valid() bool {
	return stockCodePattern.MatchString(string(c))
}

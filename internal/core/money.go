// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals end to end so that ledger sums and the
// cached balance compare exactly.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol prefixes formatted amounts.
const DefaultCurrencySymbol = "₹"

// ParseAmount converts a form-entered decimal string to a positive amount
// with at most two decimal places.
//
// Commas group thousands, in western (1,234,567) or lakh (12,34,567) style.
// A single comma followed by one or two digits, with no dot, is a decimal
// comma (12,50). Returns ErrInvalidAmount for signed, malformed,
// non-positive or over-precise input.
//
// Examples:
//
//	ParseAmount("12.34")     -> 12.34, nil
//	ParseAmount("12,34")     -> 12.34, nil
//	ParseAmount("12,500")    -> 12500, nil
//	ParseAmount("1,234.5")   -> 1234.50, nil
//	ParseAmount("12.345")    -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	normalized, ok := normalizeSeparators(s)
	if !ok {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.Equal(d.Round(2)) || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// normalizeSeparators rewrites s, which holds only digits, dots and commas,
// into a plain dotted decimal.
func normalizeSeparators(s string) (string, bool) {
	if !strings.Contains(s, ",") {
		return s, true
	}
	intPart, frac, hasDot := strings.Cut(s, ".")
	if !hasDot && strings.Count(s, ",") == 1 {
		whole, cents, _ := strings.Cut(s, ",")
		if whole != "" && (len(cents) == 1 || len(cents) == 2) {
			return whole + "." + cents, true
		}
	}
	groups := strings.Split(intPart, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 || len(groups[len(groups)-1]) != 3 {
		return "", false
	}
	for _, g := range groups[1 : len(groups)-1] {
		if len(g) != 2 && len(g) != 3 {
			return "", false
		}
	}
	out := strings.Join(groups, "")
	if hasDot {
		if strings.Contains(frac, ",") {
			return "", false
		}
		out += "." + frac
	}
	return out, true
}

// FormatAmount renders d with two decimals behind symbol, e.g. "₹1234.50".
func FormatAmount(symbol string, d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + symbol + d.Neg().StringFixed(2)
	}
	return symbol + d.StringFixed(2)
}

// SumRecords adds up the amounts of records.
func SumRecords(records []Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

package importer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DirectionMode selects how a row's debit/credit direction is detected.
type DirectionMode string

const (
	// ModeSign treats negative amounts as debits.
	ModeSign DirectionMode = "sign"
	// ModeType scans the indicator column for keywords.
	ModeType DirectionMode = "type"
	// ModeAuto prefers the indicator column and falls back to the sign.
	ModeAuto DirectionMode = "auto"
)

func (m DirectionMode) Valid() bool {
	return m == ModeSign || m == ModeType || m == ModeAuto
}

// ParseDirectionMode accepts the mode names, empty meaning ModeAuto.
func ParseDirectionMode(s string) (DirectionMode, error) {
	m := DirectionMode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return ModeAuto, nil
	}
	if !m.Valid() {
		return "", fmt.Errorf("unknown direction mode %q (want sign, type or auto)", s)
	}
	return m, nil
}

type Direction string

const (
	Debit   Direction = "debit"
	Credit  Direction = "credit"
	Unknown Direction = "unknown"
)

var (
	debitKeywords  = []string{"dr", "debit", "withdraw", "payment"}
	creditKeywords = []string{"cr", "credit", "deposit"}
)

// DirectionFromIndicator matches keywords anywhere in the text. Debit
// keywords win when both kinds appear.
func DirectionFromIndicator(indicator string) Direction {
	v := strings.ToLower(indicator)
	if v == "" {
		return Unknown
	}
	for _, k := range debitKeywords {
		if strings.Contains(v, k) {
			return Debit
		}
	}
	for _, k := range creditKeywords {
		if strings.Contains(v, k) {
			return Credit
		}
	}
	return Unknown
}

// DirectionFromSign: negative is a debit, zero or positive a credit.
func DirectionFromSign(amount decimal.Decimal, ok bool) Direction {
	if !ok {
		return Unknown
	}
	if amount.IsNegative() {
		return Debit
	}
	return Credit
}

// DetectDirection combines both detectors according to mode.
func DetectDirection(mode DirectionMode, amount decimal.Decimal, ok bool, indicator string) Direction {
	switch mode {
	case ModeSign:
		return DirectionFromSign(amount, ok)
	case ModeType:
		return DirectionFromIndicator(indicator)
	default:
		if d := DirectionFromIndicator(indicator); d != Unknown {
			return d
		}
		return DirectionFromSign(amount, ok)
	}
}

package importer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a bank-export amount cell. Currency symbols and
// thousands separators are dropped and "(500)" reads as -500. ok is false
// when nothing numeric remains.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.NewReplacer(",", "", "₹", "", "$", "", "€", "").Replace(s)
	if strings.Contains(s, "(") && strings.Contains(s, ")") {
		s = strings.NewReplacer("(", "-", ")", "").Replace(s)
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '-' || r == '.' {
			return r
		}
		return -1
	}, s)
	switch cleaned {
	case "", "-", ".":
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

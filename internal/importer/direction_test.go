package importer

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDetectDirection_Sign(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		ok     bool
		want   Direction
	}{
		{"negative is debit", "-200", true, Debit},
		{"positive is credit", "300", true, Credit},
		{"zero is credit", "0", true, Credit},
		{"null amount is unknown", "0", false, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectDirection(ModeSign, decimal.RequireFromString(tt.amount), tt.ok, "DR")
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDetectDirection_Type(t *testing.T) {
	tests := []struct {
		indicator string
		want      Direction
	}{
		{"DR - ATM", Debit},
		{"Salary CREDIT", Credit},
		{"", Unknown},
		{"UPI Payment", Debit},
		{"Cash Deposit", Credit},
		{"Withdrawal", Debit},
		{"transfer", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.indicator, func(t *testing.T) {
			got := DetectDirection(ModeType, decimal.NewFromInt(-5), true, tt.indicator)
			if got != tt.want {
				t.Errorf("DetectDirection(type, %q) = %s, want %s", tt.indicator, got, tt.want)
			}
		})
	}
}

func TestDetectDirection_AutoPrefersIndicator(t *testing.T) {
	if got := DetectDirection(ModeAuto, decimal.NewFromInt(-5), true, "CR"); got != Credit {
		t.Errorf("indicator should win over sign, got %s", got)
	}
	if got := DetectDirection(ModeAuto, decimal.NewFromInt(-5), true, ""); got != Debit {
		t.Errorf("blank indicator should fall back to sign, got %s", got)
	}
	if got := DetectDirection(ModeAuto, decimal.Zero, false, "n/a"); got != Unknown {
		t.Errorf("no indicator match and no amount should be unknown, got %s", got)
	}
}

func TestParseDirectionMode(t *testing.T) {
	if m, err := ParseDirectionMode(""); err != nil || m != ModeAuto {
		t.Errorf("empty mode = %q, %v", m, err)
	}
	if m, err := ParseDirectionMode(" SIGN "); err != nil || m != ModeSign {
		t.Errorf("SIGN = %q, %v", m, err)
	}
	if _, err := ParseDirectionMode("guess"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

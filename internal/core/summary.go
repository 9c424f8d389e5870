package core

import "github.com/shopspring/decimal"

// SummaryEntry is the narrow view of a record handed to the insight
// summarizer. Date stays a string: entries with an unparseable date are
// dropped from monthly aggregation, not rejected.
type SummaryEntry struct {
	Name        string          `json:"name"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty"`
	Source      string          `json:"source,omitempty"`
	Description string          `json:"description"`
}

// Snapshot is the full transaction set of one account in summary form.
type Snapshot struct {
	Incomes  []SummaryEntry `json:"income"`
	Expenses []SummaryEntry `json:"expenses"`
}

// Empty reports whether the snapshot holds no records at all.
func (s Snapshot) Empty() bool {
	return len(s.Incomes) == 0 && len(s.Expenses) == 0
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

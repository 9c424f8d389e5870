// Package insights summarizes an account's transactions for budget advice.
package insights

import (
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// MonthLayout renders month labels, e.g. "July 2025".
const MonthLayout = "January 2006"

const uncategorized = "Miscellaneous"

// Month totals one calendar month. Categories hold expenses only.
type Month struct {
	Label      string                     `json:"label"`
	Start      time.Time                  `json:"-"`
	Income     decimal.Decimal            `json:"income"`
	Expense    decimal.Decimal            `json:"expense"`
	Categories map[string]decimal.Decimal `json:"categories"`
}

// SortedCategories returns categories by amount, largest first; ties by name.
func (m Month) SortedCategories() []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(m.Categories))
	for name, amt := range m.Categories {
		out = append(out, core.CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopCategory returns the largest expense category; ok is false for a month
// without expenses.
func (m Month) TopCategory() (core.CategoryAmount, bool) {
	cats := m.SortedCategories()
	if len(cats) == 0 {
		return core.CategoryAmount{}, false
	}
	return cats[0], true
}

// Aggregate is the monthly view of a snapshot. Totals cover every record;
// Months only those with a parseable date, newest first.
type Aggregate struct {
	Months       []Month         `json:"months"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
}

// SpendingRatio is expenses as a percentage of income, 0 without income.
func (a Aggregate) SpendingRatio() float64 {
	if !a.TotalIncome.IsPositive() {
		return 0
	}
	ratio, _ := a.TotalExpense.Div(a.TotalIncome).Mul(decimal.NewFromInt(100)).Float64()
	return ratio
}

// Summarize builds the Aggregate of snap.
func Summarize(snap core.Snapshot) Aggregate {
	agg := Aggregate{TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
	months := map[time.Time]*Month{}

	month := func(kind, date string) *Month {
		d, err := core.ParseDate(date)
		if err != nil {
			slog.Warn("Skipping record with unparseable date in summary", "kind", kind, "date", date)
			return nil
		}
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		m, ok := months[start]
		if !ok {
			m = &Month{
				Label:      start.Format(MonthLayout),
				Start:      start,
				Income:     decimal.Zero,
				Expense:    decimal.Zero,
				Categories: map[string]decimal.Decimal{},
			}
			months[start] = m
		}
		return m
	}

	for _, e := range snap.Expenses {
		agg.TotalExpense = agg.TotalExpense.Add(e.Amount)
		m := month("expense", e.Date)
		if m == nil {
			continue
		}
		category := e.Category
		if category == "" {
			category = uncategorized
		}
		m.Expense = m.Expense.Add(e.Amount)
		m.Categories[category] = m.Categories[category].Add(e.Amount)
	}
	for _, in := range snap.Incomes {
		agg.TotalIncome = agg.TotalIncome.Add(in.Amount)
		m := month("income", in.Date)
		if m == nil {
			continue
		}
		m.Income = m.Income.Add(in.Amount)
	}

	agg.Months = make([]Month, 0, len(months))
	for _, m := range months {
		agg.Months = append(agg.Months, *m)
	}
	sort.Slice(agg.Months, func(i, j int) bool {
		return agg.Months[i].Start.After(agg.Months[j].Start)
	})
	return agg
}

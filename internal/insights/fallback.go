package insights

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
)

const (
	NoDataMessage = "No financial data available. Please add some income or expenses to get started."

	// UnavailableNotice closes every locally computed answer.
	UnavailableNotice = "\n\nNote: the AI assistant is unavailable. This is a basic summary from your data."

	fallbackMonths = 3
)

// Fallback renders a rule-based summary of agg: totals, the most recent
// months with their top category and a remark on the spending ratio.
func Fallback(agg Aggregate, symbol string) string {
	if len(agg.Months) == 0 {
		return NoDataMessage
	}
	parts := []string{fmt.Sprintf("Financial Summary: Total income %s, total expenses %s.",
		core.FormatAmount(symbol, agg.TotalIncome), core.FormatAmount(symbol, agg.TotalExpense))}

	months := agg.Months
	if len(months) > fallbackMonths {
		months = months[:fallbackMonths]
	}
	for _, m := range months {
		parts = append(parts, fmt.Sprintf("\n%s: Income %s, Expenses %s",
			m.Label, core.FormatAmount(symbol, m.Income), core.FormatAmount(symbol, m.Expense)))
		if top, ok := m.TopCategory(); ok {
			parts = append(parts, fmt.Sprintf(" (Top spending: %s %s)", top.Name, core.FormatAmount(symbol, top.Amount)))
		}
	}

	if agg.TotalIncome.IsPositive() {
		ratio := agg.SpendingRatio()
		parts = append(parts, fmt.Sprintf("\n\nOverall you're spending %.1f%% of your income.", ratio))
		parts = append(parts, ratioRemark(ratio))
	}

	parts = append(parts, UnavailableNotice)
	return strings.Join(parts, " ")
}

func ratioRemark(ratio float64) string {
	switch {
	case ratio > 80:
		return " Recommendation: reduce discretionary spending and build an emergency fund."
	case ratio < 50:
		return " Nice work, your expenses are under control."
	default:
		return " Consider reviewing recurring costs."
	}
}

package insights

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
)

// SystemInstruction is sent with every remote request.
const SystemInstruction = "You are FinBot, a financial assistant. Answer questions directly using the user's financial data. " +
	"Be specific, helpful, and concise (2-3 sentences). Never add disclaimers or unnecessary warnings."

// SummaryText renders agg as the structured summary embedded in prompts.
func SummaryText(agg Aggregate, symbol string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Overall Total: Income %s, Expenses %s\n\n",
		core.FormatAmount(symbol, agg.TotalIncome), core.FormatAmount(symbol, agg.TotalExpense))
	sb.WriteString("Month-by-Month Breakdown:\n")

	for _, m := range agg.Months {
		fmt.Fprintf(&sb, "\n%s:\n", m.Label)
		fmt.Fprintf(&sb, "  Income: %s\n", core.FormatAmount(symbol, m.Income))
		fmt.Fprintf(&sb, "  Expenses: %s\n", core.FormatAmount(symbol, m.Expense))
		if cats := m.SortedCategories(); len(cats) > 0 {
			sb.WriteString("  Spending by category:\n")
			for _, c := range cats {
				fmt.Fprintf(&sb, "    - %s: %s\n", c.Name, core.FormatAmount(symbol, c.Amount))
			}
		}
	}

	fmt.Fprintf(&sb, "\nOverall spending: %.1f%% of income\n", agg.SpendingRatio())
	return sb.String()
}

// Prompt is the user message for a remote request.
func Prompt(query string, agg Aggregate, symbol string) string {
	return fmt.Sprintf("Question: %s\n\nMy Financial Summary:\n%s\n"+
		"Answer the question directly based on my data above. Give practical advice in 2-3 clear sentences. "+
		"Be specific about my spending patterns.", strings.TrimSpace(query), SummaryText(agg, symbol))
}

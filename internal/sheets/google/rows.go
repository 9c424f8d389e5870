package google

import (
	"sort"
	"strings"

	"fintrack/internal/core"
)

const maxTabName = 100

var header = []interface{}{"Kind", "Date", "Name", "Amount", "Category", "Source", "Description"}

// buildRows lays out a snapshot as a header plus one row per record, sorted
// by date then kind. Amounts are plain decimals so sheet formulas can use them.
func buildRows(snap core.Snapshot) [][]interface{} {
	type line struct {
		kind core.Kind
		e    core.SummaryEntry
	}
	lines := make([]line, 0, len(snap.Incomes)+len(snap.Expenses))
	for _, e := range snap.Incomes {
		lines = append(lines, line{core.KindIncome, e})
	}
	for _, e := range snap.Expenses {
		lines = append(lines, line{core.KindExpense, e})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].e.Date != lines[j].e.Date {
			return lines[i].e.Date < lines[j].e.Date
		}
		return lines[i].kind > lines[j].kind
	})

	rows := make([][]interface{}, 0, len(lines)+1)
	rows = append(rows, header)
	for _, l := range lines {
		rows = append(rows, []interface{}{
			string(l.kind), l.e.Date, l.e.Name, l.e.Amount.StringFixed(2), l.e.Category, l.e.Source, l.e.Description,
		})
	}
	return rows
}

// tabName derives a valid sheet title from the user's email.
func tabName(prefix, email string) string {
	name := prefix + strings.ToLower(strings.TrimSpace(email))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\', '\'':
			return '_'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > maxTabName {
		name = string(r[:maxTabName])
	}
	return name
}

func quoteTab(tab string) string {
	return "'" + tab + "'"
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out
}

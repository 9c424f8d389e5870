package http

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/insights"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r.Context())
	balance := account.Balance()
	if queryBool(r, "recompute") {
		var err error
		if balance, err = account.GetBalance(r.Context()); err != nil {
			s.writeError(w, r, "balance", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance":   balance.StringFixed(2),
		"formatted": core.FormatAmount(s.symbol, balance),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := accountFrom(r.Context()).FormatForSummary(r.Context())
	if err != nil {
		s.writeError(w, r, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type monthReport struct {
	Label       string                `json:"label"`
	Income      decimal.Decimal       `json:"income"`
	Expense     decimal.Decimal       `json:"expense"`
	Net         decimal.Decimal       `json:"net"`
	Categories  []core.CategoryAmount `json:"categories"`
	TopCategory *core.CategoryAmount  `json:"top_category,omitempty"`
}

type monthlyReport struct {
	Months        []monthReport   `json:"months"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpense  decimal.Decimal `json:"total_expense"`
	SpendingRatio float64         `json:"spending_ratio"`
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	snap, err := accountFrom(r.Context()).FormatForSummary(r.Context())
	if err != nil {
		s.writeError(w, r, "monthly_report", err)
		return
	}
	agg := insights.Summarize(snap)

	report := monthlyReport{
		Months:        make([]monthReport, 0, len(agg.Months)),
		TotalIncome:   agg.TotalIncome,
		TotalExpense:  agg.TotalExpense,
		SpendingRatio: agg.SpendingRatio(),
	}
	for _, m := range agg.Months {
		mr := monthReport{
			Label:      m.Label,
			Income:     m.Income,
			Expense:    m.Expense,
			Net:        m.Income.Sub(m.Expense),
			Categories: m.SortedCategories(),
		}
		if top, ok := m.TopCategory(); ok {
			mr.TopCategory = &top
		}
		report.Months = append(report.Months, mr)
	}
	writeJSON(w, http.StatusOK, report)
}

type insightRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if s.advisor == nil {
		s.writeError(w, r, "insights", fmt.Errorf("insights are not configured"))
		return
	}
	var req insightRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "insights", err)
		return
	}
	query := sanitizeInput(req.Query)
	if query == "" {
		s.writeError(w, r, "insights", fmt.Errorf("%w: query is required", errInvalidInput))
		return
	}

	snap, err := accountFrom(r.Context()).FormatForSummary(r.Context())
	if err != nil {
		s.writeError(w, r, "insights", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": s.advisor.Answer(r.Context(), query, snap)})
}

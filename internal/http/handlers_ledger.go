package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

// ledgerOps adapts one kind of record to the shared CRUD handlers.
type ledgerOps struct {
	kind   core.Kind
	path   string
	list   func(ctx context.Context, a *services.Account) (any, error)
	get    func(ctx context.Context, a *services.Account, id int64) (any, error)
	create func(ctx context.Context, a *services.Account, p recordPayload) (any, decimal.Decimal, error)
	update func(ctx context.Context, a *services.Account, id int64, p recordPayload) (any, decimal.Decimal, error)
	remove func(ctx context.Context, a *services.Account, id int64) error
}

func expenseOps() ledgerOps {
	return ledgerOps{
		kind: core.KindExpense,
		path: "expenses",
		list: func(ctx context.Context, a *services.Account) (any, error) {
			return a.ExpenseList(ctx)
		},
		get: func(ctx context.Context, a *services.Account, id int64) (any, error) {
			return a.GetExpense(ctx, id)
		},
		create: func(ctx context.Context, a *services.Account, p recordPayload) (any, decimal.Decimal, error) {
			e, err := p.expense()
			if err != nil {
				return nil, decimal.Zero, err
			}
			if e.ID, err = a.AddExpense(ctx, e); err != nil {
				return nil, decimal.Zero, err
			}
			return e, e.Amount, nil
		},
		update: func(ctx context.Context, a *services.Account, id int64, p recordPayload) (any, decimal.Decimal, error) {
			e, err := p.expense()
			if err != nil {
				return nil, decimal.Zero, err
			}
			if err := a.UpdateExpense(ctx, id, e); err != nil {
				return nil, decimal.Zero, err
			}
			e.ID = id
			return e, e.Amount, nil
		},
		remove: func(ctx context.Context, a *services.Account, id int64) error {
			return a.DeleteExpense(ctx, id)
		},
	}
}

func incomeOps() ledgerOps {
	return ledgerOps{
		kind: core.KindIncome,
		path: "income",
		list: func(ctx context.Context, a *services.Account) (any, error) {
			return a.IncomeList(ctx)
		},
		get: func(ctx context.Context, a *services.Account, id int64) (any, error) {
			return a.GetIncome(ctx, id)
		},
		create: func(ctx context.Context, a *services.Account, p recordPayload) (any, decimal.Decimal, error) {
			in, err := p.income()
			if err != nil {
				return nil, decimal.Zero, err
			}
			if in.ID, err = a.AddIncome(ctx, in); err != nil {
				return nil, decimal.Zero, err
			}
			return in, in.Amount, nil
		},
		update: func(ctx context.Context, a *services.Account, id int64, p recordPayload) (any, decimal.Decimal, error) {
			in, err := p.income()
			if err != nil {
				return nil, decimal.Zero, err
			}
			if err := a.UpdateIncome(ctx, id, in); err != nil {
				return nil, decimal.Zero, err
			}
			in.ID = id
			return in, in.Amount, nil
		},
		remove: func(ctx context.Context, a *services.Account, id int64) error {
			return a.DeleteIncome(ctx, id)
		},
	}
}

func (s *Server) handleList(ops ledgerOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := ops.list(r.Context(), accountFrom(r.Context()))
		if err != nil {
			s.writeError(w, r, applog.OpList, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func (s *Server) handleGet(ops ledgerOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, applog.OpRead, err)
			return
		}
		item, err := ops.get(r.Context(), accountFrom(r.Context()), id)
		if err != nil {
			s.writeError(w, r, applog.OpRead, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (s *Server) handleCreate(ops ledgerOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p recordPayload
		if err := decodeJSON(w, r, &p); err != nil {
			s.writeError(w, r, applog.OpCreate, err)
			return
		}
		account := accountFrom(r.Context())
		item, amount, err := ops.create(r.Context(), account, p)
		if err != nil {
			s.writeError(w, r, applog.OpCreate, err)
			return
		}
		s.logChange(r.Context(), account, ops.kind, applog.OpCreate, item, amount)
		writeJSON(w, http.StatusCreated, item)
	}
}

func (s *Server) handleUpdate(ops ledgerOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, applog.OpUpdate, err)
			return
		}
		var p recordPayload
		if err := decodeJSON(w, r, &p); err != nil {
			s.writeError(w, r, applog.OpUpdate, err)
			return
		}
		account := accountFrom(r.Context())
		item, amount, err := ops.update(r.Context(), account, id, p)
		if err != nil {
			s.writeError(w, r, applog.OpUpdate, err)
			return
		}
		s.logChange(r.Context(), account, ops.kind, applog.OpUpdate, item, amount)
		writeJSON(w, http.StatusOK, item)
	}
}

func (s *Server) handleDelete(ops ledgerOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, applog.OpDelete, err)
			return
		}
		account := accountFrom(r.Context())
		if err := ops.remove(r.Context(), account, id); err != nil {
			s.writeError(w, r, applog.OpDelete, err)
			return
		}
		s.events.LogRecordChanged(r.Context(), account.Owner(), string(ops.kind), applog.OpDelete, id, "")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) logChange(ctx context.Context, a *services.Account, kind core.Kind, op string, item any, amount decimal.Decimal) {
	var id int64
	switch v := item.(type) {
	case core.Expense:
		id = v.ID
	case core.Income:
		id = v.ID
	}
	s.events.LogRecordChanged(ctx, a.Owner(), string(kind), op, id, amount.StringFixed(2))
}

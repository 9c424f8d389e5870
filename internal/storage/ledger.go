package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// SQLiteLedger stores one record kind in its own table.
type SQLiteLedger struct {
	db          *sql.DB
	kind        core.Kind
	table       string
	labelColumn string
}

var _ Ledger = (*SQLiteLedger)(nil)

func newSQLiteLedger(db *sql.DB, kind core.Kind) *SQLiteLedger {
	l := &SQLiteLedger{db: db, kind: kind}
	switch kind {
	case core.KindIncome:
		l.table, l.labelColumn = "income", "source"
	default:
		l.table, l.labelColumn = "expenses", "category"
	}
	return l
}

func (l *SQLiteLedger) Add(ctx context.Context, r core.Record) (int64, error) {
	query := fmt.Sprintf(`INSERT INTO %s (name, date, amount, %s, description) VALUES (?, ?, ?, ?, ?)`,
		l.table, l.labelColumn)
	res, err := l.db.ExecContext(ctx, query, r.Name, r.Date.String(), r.Amount.String(), r.Label, r.Description)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", l.kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: last insert id: %w", l.kind, err)
	}

	slog.DebugContext(ctx, "Record saved to SQLite",
		"kind", l.kind,
		"id", id,
		"amount", r.Amount.String(),
		"date", r.Date.String())

	return id, nil
}

func (l *SQLiteLedger) List(ctx context.Context) ([]core.Record, error) {
	query := fmt.Sprintf(`SELECT id, name, date, amount, %s, description FROM %s ORDER BY id ASC`,
		l.labelColumn, l.table)
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", l.kind, err)
	}
	defer rows.Close()

	out := []core.Record{}
	for rows.Next() {
		r, err := l.scan(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", l.kind, err)
	}
	return out, nil
}

func (l *SQLiteLedger) Get(ctx context.Context, id int64) (core.Record, error) {
	query := fmt.Sprintf(`SELECT id, name, date, amount, %s, description FROM %s WHERE id = ?`,
		l.labelColumn, l.table)
	r, err := l.scan(ctx, l.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return core.Record{}, fmt.Errorf("%s %d: %w", l.kind, id, core.ErrNotFound)
	}
	return r, err
}

func (l *SQLiteLedger) Update(ctx context.Context, id int64, r core.Record) error {
	query := fmt.Sprintf(`UPDATE %s SET name = ?, date = ?, amount = ?, %s = ?, description = ? WHERE id = ?`,
		l.table, l.labelColumn)
	res, err := l.db.ExecContext(ctx, query, r.Name, r.Date.String(), r.Amount.String(), r.Label, r.Description, id)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", l.kind, id, err)
	}
	return l.expectOne(res, "update", id)
}

func (l *SQLiteLedger) Delete(ctx context.Context, id int64) error {
	res, err := l.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, l.table), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", l.kind, id, err)
	}
	return l.expectOne(res, "delete", id)
}

func (l *SQLiteLedger) expectOne(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s %d: rows affected: %w", op, l.kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", l.kind, id, core.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row. A stored date that no longer parses is kept as the
// zero Date so the record still lists; summaries skip it.
func (l *SQLiteLedger) scan(ctx context.Context, s scanner) (core.Record, error) {
	var (
		r               core.Record
		date, amountStr string
	)
	if err := s.Scan(&r.ID, &r.Name, &date, &amountStr, &r.Label, &r.Description); err != nil {
		if err == sql.ErrNoRows {
			return r, err
		}
		return r, fmt.Errorf("scan %s: %w", l.kind, err)
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return r, fmt.Errorf("scan %s %d: amount %q: %w", l.kind, r.ID, amountStr, err)
	}
	r.Amount = amount
	if d, err := core.ParseDate(date); err == nil {
		r.Date = d
	} else {
		slog.WarnContext(ctx, "Stored record has unparseable date", "kind", l.kind, "id", r.ID, "date", date)
	}
	return r, nil
}

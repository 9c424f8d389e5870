package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// DefaultSource labels imported incomes.
const DefaultSource = "Other"

const maxLabelLength = 200

var ErrUnknownColumn = errors.New("unknown column")

// FallbackPolicy decides what happens to rows of unknown direction.
type FallbackPolicy string

const (
	FallbackSkip   FallbackPolicy = "skip"
	FallbackDebit  FallbackPolicy = "debit"
	FallbackCredit FallbackPolicy = "credit"
)

// ParseFallbackPolicy accepts the policy names, empty meaning skip.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	p := FallbackPolicy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return FallbackSkip, nil
	case FallbackSkip, FallbackDebit, FallbackCredit:
		return p, nil
	}
	return "", fmt.Errorf("unknown fallback policy %q (want skip, debit or credit)", s)
}

// Mapping is the user's choice of column roles and classification policy.
// DateColumn and TypeColumn are optional.
type Mapping struct {
	AmountColumn   string
	CategoryColumn string
	DateColumn     string
	TypeColumn     string

	Mode     DirectionMode
	Fallback FallbackPolicy

	DefaultCategory string
	DefaultSource   string

	// NameOverride replaces the category text as record name when set.
	NameOverride        string
	DescriptionOverride string

	// AutoCategorize replaces the category cell with a keyword guess.
	AutoCategorize bool
}

func (m Mapping) withDefaults() Mapping {
	if m.Mode == "" {
		m.Mode = ModeAuto
	}
	if m.Fallback == "" {
		m.Fallback = FallbackSkip
	}
	if strings.TrimSpace(m.DefaultCategory) == "" {
		m.DefaultCategory = DefaultCategory
	}
	if strings.TrimSpace(m.DefaultSource) == "" {
		m.DefaultSource = DefaultSource
	}
	return m
}

// Row is one previewed line of the upload.
type Row struct {
	Index     int             `json:"index"`
	Raw       []string        `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	AmountOK  bool            `json:"amount_ok"`
	Direction Direction       `json:"direction"`
	Category  string          `json:"category"`
	Date      core.Date       `json:"date"`
	// DateParsed is false when Date was substituted with today.
	DateParsed bool `json:"date_parsed"`
}

// RowError reports a row that failed to commit.
type RowError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Result counts the outcome of a commit.
type Result struct {
	Added     int        `json:"added"`
	Skipped   int        `json:"skipped"`
	Errors    int        `json:"errors"`
	RowErrors []RowError `json:"row_errors,omitempty"`
}

// Sink receives committed rows. *services.Account satisfies it.
type Sink interface {
	AddExpense(ctx context.Context, e core.Expense) (int64, error)
	AddIncome(ctx context.Context, in core.Income) (int64, error)
}

// Classifier turns tables into previews and commits them.
type Classifier struct {
	categorizer *Categorizer
	now         func() time.Time
}

type Option func(*Classifier)

// WithCategorizer sets the keyword guesser used by Mapping.AutoCategorize.
func WithCategorizer(c *Categorizer) Option {
	return func(cl *Classifier) { cl.categorizer = c }
}

// WithClock overrides the date used when a row has none.
func WithClock(now func() time.Time) Option {
	return func(cl *Classifier) { cl.now = now }
}

func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{categorizer: NewCategorizer(nil), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Preview classifies every row of t without committing anything.
func (c *Classifier) Preview(t Table, m Mapping) ([]Row, error) {
	m = m.withDefaults()
	if !m.Mode.Valid() {
		return nil, fmt.Errorf("invalid direction mode %q", m.Mode)
	}

	amountIdx, err := requireColumn(t, "amount", m.AmountColumn)
	if err != nil {
		return nil, err
	}
	categoryIdx, err := requireColumn(t, "category", m.CategoryColumn)
	if err != nil {
		return nil, err
	}
	dateIdx, err := optionalColumn(t, "date", m.DateColumn)
	if err != nil {
		return nil, err
	}
	typeIdx, err := optionalColumn(t, "type", m.TypeColumn)
	if err != nil {
		return nil, err
	}

	today := core.DateOf(c.now())
	rows := make([]Row, 0, len(t.Rows))
	for i, rec := range t.Rows {
		amount, ok := ParseAmount(rec[amountIdx])
		indicator := ""
		if typeIdx >= 0 {
			indicator = rec[typeIdx]
		}

		category := truncate(strings.TrimSpace(rec[categoryIdx]), maxLabelLength)
		if m.AutoCategorize {
			category = c.categorizer.Guess(category)
		}

		row := Row{
			Index:     i,
			Raw:       rec,
			Amount:    amount.Abs(),
			AmountOK:  ok,
			Direction: DetectDirection(m.Mode, amount, ok, indicator),
			Category:  category,
			Date:      today,
		}
		if dateIdx >= 0 {
			if d, ok := ParseDate(rec[dateIdx]); ok {
				row.Date, row.DateParsed = d, true
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Commit adds rows to sink in order. Rows without a parsed amount are
// skipped whatever the policy. A failing row is counted and the pass
// continues; earlier rows stay committed.
func (c *Classifier) Commit(ctx context.Context, sink Sink, rows []Row, m Mapping) Result {
	m = m.withDefaults()
	var res Result

	for _, row := range rows {
		if !row.AmountOK {
			res.Skipped++
			continue
		}

		direction := row.Direction
		if direction == Unknown {
			switch m.Fallback {
			case FallbackDebit:
				direction = Debit
			case FallbackCredit:
				direction = Credit
			default:
				res.Skipped++
				continue
			}
		}

		name := strings.TrimSpace(m.NameOverride)
		if name == "" {
			name = row.Category
		}
		description := strings.TrimSpace(m.DescriptionOverride)

		var err error
		if direction == Debit {
			category := row.Category
			if category == "" {
				category = m.DefaultCategory
			}
			_, err = sink.AddExpense(ctx, core.Expense{
				Name: name, Date: row.Date, Amount: row.Amount, Category: category, Description: description,
			})
		} else {
			_, err = sink.AddIncome(ctx, core.Income{
				Name: name, Date: row.Date, Amount: row.Amount, Source: m.DefaultSource, Description: description,
			})
		}
		if err != nil {
			res.Errors++
			res.RowErrors = append(res.RowErrors, RowError{Index: row.Index, Error: err.Error()})
			slog.WarnContext(ctx, "Import row failed", "row", row.Index, "error", err)
			continue
		}
		res.Added++
	}

	slog.InfoContext(ctx, "Import finished",
		"added", res.Added, "skipped", res.Skipped, "errors", res.Errors)
	return res
}

var dateLayouts = []string{
	core.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"02 Jan 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"1/2/2006",
	"1/2/06",
}

// ParseDate tries the common bank-export date layouts. Day-first layouts
// are tried before month-first ones.
func ParseDate(s string) (core.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), true
		}
	}
	return core.Date{}, false
}

func requireColumn(t Table, role, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return -1, fmt.Errorf("%w: no %s column selected", ErrUnknownColumn, role)
	}
	return optionalColumn(t, role, name)
}

func optionalColumn(t Table, role, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return -1, nil
	}
	idx := t.Column(name)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %s column %q", ErrUnknownColumn, role, name)
	}
	return idx, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// DateLayout is the storage and wire format of a Date.
const DateLayout = "2006-01-02"

// Placeholder is the unselected value of a category or source picker.
const Placeholder = "-"

const maxNameLength = 200

type (
	Kind string

	Date struct {
		time.Time
	}

	// Record is the storage shape shared by both ledgers. Label holds the
	// category of an expense or the source of an income.
	Record struct {
		ID          int64
		Name        string
		Date        Date
		Amount      decimal.Decimal
		Label       string
		Description string
	}

	Expense struct {
		ID          int64           `json:"id"`
		Name        string          `json:"name"`
		Date        Date            `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
	}

	Income struct {
		ID          int64           `json:"id"`
		Name        string          `json:"name"`
		Date        Date            `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		Source      string          `json:"source"`
		Description string          `json:"description"`
	}
)

var (
	ErrInvalidAmount = errors.New("amount must be greater than 0")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyCategory = errors.New("select a valid category")
	ErrEmptySource   = errors.New("select a valid income source")
	ErrNameTooLong   = fmt.Errorf("name too long (max %d characters)", maxNameLength)

	ErrNotFound  = errors.New("record not found")
	ErrInvalidID = fmt.Errorf("invalid id: %w", ErrNotFound)
)

func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// String returns the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func validateCommon(name string, date Date, amount decimal.Decimal) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len([]rune(name)) > maxNameLength {
		return ErrNameTooLong
	}
	if err := date.Validate(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func blankLabel(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == Placeholder
}

// Validate checks the form-entry contract. Stores and the account accept
// whatever they are given; callers validate before reaching them.
func (e Expense) Validate() error {
	if err := validateCommon(e.Name, e.Date, e.Amount); err != nil {
		return err
	}
	if blankLabel(e.Category) {
		return ErrEmptyCategory
	}
	return nil
}

func (i Income) Validate() error {
	if err := validateCommon(i.Name, i.Date, i.Amount); err != nil {
		return err
	}
	if blankLabel(i.Source) {
		return ErrEmptySource
	}
	return nil
}

func (e Expense) Record() Record {
	return Record{ID: e.ID, Name: e.Name, Date: e.Date, Amount: e.Amount, Label: e.Category, Description: e.Description}
}

func (i Income) Record() Record {
	return Record{ID: i.ID, Name: i.Name, Date: i.Date, Amount: i.Amount, Label: i.Source, Description: i.Description}
}

func (r Record) Expense() Expense {
	return Expense{ID: r.ID, Name: r.Name, Date: r.Date, Amount: r.Amount, Category: r.Label, Description: r.Description}
}

func (r Record) Income() Income {
	return Income{ID: r.ID, Name: r.Name, Date: r.Date, Amount: r.Amount, Source: r.Label, Description: r.Description}
}

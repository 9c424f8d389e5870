package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/importer"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newClassifier() *importer.Classifier {
	return importer.NewClassifier(importer.WithClock(func() time.Time { return fixedNow }))
}

func scenarioTable(t *testing.T) importer.Table {
	t.Helper()
	tbl, err := importer.ReadCSV(strings.NewReader("Amount,Desc,Type\n-500,Lunch,DR\n20000,Salary,CR\n100,Misc,\n"))
	require.NoError(t, err)
	return tbl
}

func newAccount(t *testing.T) *services.Account {
	t.Helper()
	a, err := services.OpenAccount(context.Background(), "import@example.com", memory.New(), nil)
	require.NoError(t, err)
	return a
}

func TestImport_TypeModeScenario(t *testing.T) {
	ctx := context.Background()
	acct := newAccount(t)
	c := newClassifier()
	m := importer.Mapping{AmountColumn: "Amount", CategoryColumn: "Desc", TypeColumn: "Type", Mode: importer.ModeType, Fallback: importer.FallbackSkip}

	rows, err := c.Preview(scenarioTable(t), m)
	require.NoError(t, err)
	res := c.Commit(ctx, acct, rows, m)

	assert.Equal(t, importer.Result{Added: 2, Skipped: 1}, res)
	balance, err := acct.GetBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(19500)), "balance %s", balance)

	expenses, err := acct.ExpenseList(ctx)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "Lunch", expenses[0].Name)
	assert.Equal(t, "Lunch", expenses[0].Category)
	assert.True(t, expenses[0].Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "2025-06-15", expenses[0].Date.String())

	incomes, err := acct.IncomeList(ctx)
	require.NoError(t, err)
	require.Len(t, incomes, 1)
	assert.Equal(t, importer.DefaultSource, incomes[0].Source)
	assert.Equal(t, "Salary", incomes[0].Name)
}

// In auto mode the blank indicator on the third row falls back to the
// sign of its amount, so the row is a credit rather than a skip.
func TestImport_AutoModeScenario(t *testing.T) {
	ctx := context.Background()
	acct := newAccount(t)
	c := newClassifier()
	m := importer.Mapping{AmountColumn: "Amount", CategoryColumn: "Desc", TypeColumn: "Type", Mode: importer.ModeAuto, Fallback: importer.FallbackSkip}

	rows, err := c.Preview(scenarioTable(t), m)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []importer.Direction{importer.Debit, importer.Credit, importer.Credit},
		[]importer.Direction{rows[0].Direction, rows[1].Direction, rows[2].Direction})

	res := c.Commit(ctx, acct, rows, m)
	assert.Equal(t, importer.Result{Added: 3}, res)
	assert.True(t, acct.Balance().Equal(decimal.NewFromInt(19600)), "balance %s", acct.Balance())
}

func TestImport_NullAmountSkippedRegardlessOfPolicy(t *testing.T) {
	ctx := context.Background()
	tbl, err := importer.ReadCSV(strings.NewReader("Amount,Desc\nabc,Thing\n"))
	require.NoError(t, err)

	for _, policy := range []importer.FallbackPolicy{importer.FallbackSkip, importer.FallbackDebit, importer.FallbackCredit} {
		t.Run(string(policy), func(t *testing.T) {
			acct := newAccount(t)
			c := newClassifier()
			m := importer.Mapping{AmountColumn: "Amount", CategoryColumn: "Desc", Mode: importer.ModeSign, Fallback: policy}
			rows, err := c.Preview(tbl, m)
			require.NoError(t, err)
			assert.Equal(t, importer.Result{Skipped: 1}, c.Commit(ctx, acct, rows, m))
		})
	}
}

func TestImport_FallbackPolicies(t *testing.T) {
	ctx := context.Background()
	tbl, err := importer.ReadCSV(strings.NewReader("Amount,Desc,Type\n50,,transfer\n"))
	require.NoError(t, err)

	t.Run("debit uses default category", func(t *testing.T) {
		acct := newAccount(t)
		c := newClassifier()
		m := importer.Mapping{AmountColumn: "Amount", CategoryColumn: "Desc", TypeColumn: "Type", Mode: importer.ModeType, Fallback: importer.FallbackDebit, NameOverride: "Imported"}
		rows, err := c.Preview(tbl, m)
		require.NoError(t, err)
		require.Equal(t, importer.Unknown, rows[0].Direction)

		assert.Equal(t, importer.Result{Added: 1}, c.Commit(ctx, acct, rows, m))
		expenses, err := acct.ExpenseList(ctx)
		require.NoError(t, err)
		require.Len(t, expenses, 1)
		assert.Equal(t, importer.DefaultCategory, expenses[0].Category)
		assert.Equal(t, "Imported", expenses[0].Name)
	})

	t.Run("credit uses configured source", func(t *testing.T) {
		acct := newAccount(t)
		c := newClassifier()
		m := importer.Mapping{AmountColumn: "Amount", CategoryColumn: "Desc", TypeColumn: "Type", Mode: importer.ModeType, Fallback: importer.FallbackCredit, DefaultSource: "Bank", DescriptionOverride: "from statement"}
		rows, err := c.Preview(tbl, m)
		require.NoError(t, err)

		assert.Equal(t, importer.Result{Added: 1}, c.Commit(ctx, acct, rows, m))
		incomes, err := acct.IncomeList(ctx)
		require.NoError(t, err)
		require.Len(t, incomes, 1)
		assert.Equal(t, "Bank", incomes[0].Source)
		assert.Equal(t, "from statement", incomes[0].Description)
		assert.True(t, acct.Balance().Equal(decimal.NewFromInt(50)))
	})
}

func TestPreview_Dates(t *testing.T) {
	tbl, err := importer.ReadCSV(strings.NewReader("Date,Amount,Desc\n2025-01-31,1,a\n31/01/2025,1,b\nyesterday,1,c\n"))
	require.NoError(t, err)

	rows, err := newClassifier().Preview(tbl, importer.Mapping{AmountColumn: "Amount", CategoryColumn: "Desc", DateColumn: "Date"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2025-01-31", rows[0].Date.String())
	assert.True(t, rows[0].DateParsed)
	assert.Equal(t, "2025-01-31", rows[1].Date.String())
	assert.Equal(t, "2025-06-15", rows[2].Date.String())
	assert.False(t, rows[2].DateParsed)
}

func TestPreview_UnknownColumn(t *testing.T) {
	tbl := scenarioTable(t)
	c := newClassifier()

	_, err := c.Preview(tbl, importer.Mapping{AmountColumn: "Value", CategoryColumn: "Desc"})
	assert.ErrorIs(t, err, importer.ErrUnknownColumn)
	_, err = c.Preview(tbl, importer.Mapping{AmountColumn: "Amount"})
	assert.ErrorIs(t, err, importer.ErrUnknownColumn)
	_, err = c.Preview(tbl, importer.Mapping{AmountColumn: "Amount", CategoryColumn: "Desc", TypeColumn: "Kind"})
	assert.ErrorIs(t, err, importer.ErrUnknownColumn)
}

func TestPreview_AutoCategorize(t *testing.T) {
	tbl, err := importer.ReadCSV(strings.NewReader("Amount,Narration\n-120,UBER BV trip\n-80,Corner shop\n"))
	require.NoError(t, err)

	m := importer.Mapping{AmountColumn: "Amount", CategoryColumn: "Narration", Mode: importer.ModeSign}
	rows, err := newClassifier().Preview(tbl, m)
	require.NoError(t, err)
	assert.Equal(t, "UBER BV trip", rows[0].Category)

	m.AutoCategorize = true
	rows, err = newClassifier().Preview(tbl, m)
	require.NoError(t, err)
	assert.Equal(t, "Transport", rows[0].Category)
	assert.Equal(t, importer.DefaultCategory, rows[1].Category)
}

func TestPreview_TruncatesLongLabels(t *testing.T) {
	long := strings.Repeat("é", 250)
	tbl, err := importer.ReadCSV(strings.NewReader("Amount,Desc\n-1," + long + "\n"))
	require.NoError(t, err)

	rows, err := newClassifier().Preview(tbl, importer.Mapping{AmountColumn: "Amount", CategoryColumn: "Desc"})
	require.NoError(t, err)
	assert.Len(t, []rune(rows[0].Category), 200)
}

type failingSink struct {
	calls int
}

func (s *failingSink) AddExpense(context.Context, core.Expense) (int64, error) {
	s.calls++
	if s.calls == 2 {
		return 0, errors.New("disk full")
	}
	return int64(s.calls), nil
}

func (s *failingSink) AddIncome(context.Context, core.Income) (int64, error) {
	s.calls++
	return int64(s.calls), nil
}

func TestCommit_RowErrorsDoNotStopThePass(t *testing.T) {
	tbl, err := importer.ReadCSV(strings.NewReader("Amount,Desc\n-1,a\n-2,b\n-3,c\n"))
	require.NoError(t, err)
	m := importer.Mapping{AmountColumn: "Amount", CategoryColumn: "Desc", Mode: importer.ModeSign}
	c := newClassifier()
	rows, err := c.Preview(tbl, m)
	require.NoError(t, err)

	sink := &failingSink{}
	res := c.Commit(context.Background(), sink, rows, m)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 1, res.Errors)
	require.Len(t, res.RowErrors, 1)
	assert.Equal(t, 1, res.RowErrors[0].Index)
	assert.Equal(t, 3, sink.calls)
}

package commands_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/auth"
	"fintrack/internal/commands"
	"fintrack/internal/core"
	"fintrack/internal/insights"
)

// isolate points the configuration at a fresh data directory and clears
// every variable that would reach an external service.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("FINTRACK_CONFIG", "")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("JWT_SECRET", "test-secret-0123456789")
	t.Setenv("CURRENCY_SYMBOL", "$")
	t.Setenv("CATEGORY_RULES", "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRegisterAndBalance(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, "register", "--email", "Ann@Example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Registered ann@example.com\n", out)

	_, err = runCLI(t, "register", "--email", "ann@example.com", "--password", "secret1")
	assert.ErrorIs(t, err, auth.ErrAlreadyExists)

	_, err = runCLI(t, "register", "--email", "bob@example.com")
	assert.ErrorContains(t, err, "--password is required")

	out, err = runCLI(t, "balance", "--email", "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, core.FormatAmount("$", decimal.Zero)+"\n", out)

	_, err = runCLI(t, "balance", "--email", "nobody@example.com")
	assert.ErrorContains(t, err, "unknown user")
}

const statement = "Date,Details,Amount\n" +
	"2025-07-01,Salary,1000\n" +
	"2025-07-02,Groceries,-150.50\n" +
	"2025-07-03,Refund,n/a\n"

func TestImportPreviewThenCommit(t *testing.T) {
	dir := isolate(t)
	_, err := runCLI(t, "register", "--email", "ann@example.com", "--password", "secret1")
	require.NoError(t, err)

	path := filepath.Join(dir, "statement.csv")
	require.NoError(t, os.WriteFile(path, []byte(statement), 0644))
	mapping := []string{"--email", "ann@example.com", "--amount-column", "Amount", "--category-column", "Details", "--date-column", "Date", "--mode", "sign"}

	out, err := runCLI(t, append([]string{"import", path}, mapping...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, "3 rows previewed")

	out, err = runCLI(t, "balance", "--email", "ann@example.com", "--recompute")
	require.NoError(t, err)
	assert.Equal(t, core.FormatAmount("$", decimal.Zero)+"\n", out)

	out, err = runCLI(t, append([]string{"import", path, "--commit"}, mapping...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 rows, skipped 1, failed 0")

	out, err = runCLI(t, "balance", "--email", "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, core.FormatAmount("$", decimal.RequireFromString("849.50"))+"\n", out)
}

func TestImportRejectsBadInput(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "statement.csv")
	require.NoError(t, os.WriteFile(path, []byte(statement), 0644))

	_, err := runCLI(t, "import", path, "--email", "a@b.c", "--mode", "guess")
	assert.Error(t, err)

	_, err = runCLI(t, "import", filepath.Join(dir, "statement.pdf"), "--email", "a@b.c")
	assert.Error(t, err)

	_, err = runCLI(t, "import", path)
	assert.ErrorContains(t, err, "--email is required")
}

func TestAskUsesLocalSummaryWithoutAPIKey(t *testing.T) {
	isolate(t)
	_, err := runCLI(t, "register", "--email", "ann@example.com", "--password", "secret1")
	require.NoError(t, err)

	out, err := runCLI(t, "ask", "--email", "ann@example.com", "how", "am", "I", "doing?")
	require.NoError(t, err)
	assert.Equal(t, insights.NoDataMessage+"\n", out)
}

func TestWorkerRequiresSpreadsheet(t *testing.T) {
	isolate(t)
	_, err := runCLI(t, "worker", "--once")
	assert.ErrorContains(t, err, "GOOGLE_SPREADSHEET_ID")
}

func TestInvalidConfigurationFails(t *testing.T) {
	isolate(t)
	t.Setenv("DATA_BACKEND", "sheets")
	_, err := runCLI(t, "balance", "--email", "ann@example.com")
	assert.ErrorContains(t, err, "configuration validation failed")
}

func TestWorkerCommandStandalone(t *testing.T) {
	cmd := commands.NewWorkerCommand()
	assert.Equal(t, "fintrack-worker", cmd.Name())
	for _, name := range []string{"config", "env-file", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.NotNil(t, cmd.Flags().Lookup("once"))
}

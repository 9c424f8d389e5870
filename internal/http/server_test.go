package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/core"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"
)

// fakeAuth issues "token-<email>" for any registered user.
type fakeAuth struct {
	users map[string]string
}

func newFakeAuth() *fakeAuth { return &fakeAuth{users: map[string]string{}} }

func (f *fakeAuth) Register(_ context.Context, email, password string) error {
	email = strings.ToLower(email)
	if !strings.Contains(email, "@") {
		return auth.ErrInvalidEmail
	}
	if _, ok := f.users[email]; ok {
		return auth.ErrAlreadyExists
	}
	f.users[email] = password
	return nil
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (string, error) {
	email = strings.ToLower(email)
	if pw, ok := f.users[email]; !ok || pw != password {
		return "", auth.ErrInvalidCredentials
	}
	return "token-" + email, nil
}

func (f *fakeAuth) ParseToken(token string) (string, error) {
	email, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return "", auth.ErrInvalidToken
	}
	return email, nil
}

type fakeAdvisor struct {
	query string
	snap  core.Snapshot
}

func (f *fakeAdvisor) Answer(_ context.Context, query string, snap core.Snapshot) string {
	f.query, f.snap = query, snap
	return "spend less"
}

type fixture struct {
	server   *Server
	registry *services.Registry
	advisor  *fakeAdvisor
}

func newFixture(t *testing.T, checks ...ReadyCheck) *fixture {
	t.Helper()
	factory, err := backend.NewFactory(backend.Config{Type: backend.MemoryBackend}, nil)
	require.NoError(t, err)
	registry := services.NewRegistry(factory)
	t.Cleanup(func() { _ = registry.Close() })

	fa := newFakeAuth()
	fa.users["ann@example.com"] = "secret"
	adv := &fakeAdvisor{}

	s := NewServer(":0", Deps{
		Accounts:    registry,
		Auth:        fa,
		Advisor:     adv,
		RateLimit:   ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000},
		ReadyChecks: checks,
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &fixture{server: s, registry: registry, advisor: adv}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer token-ann@example.com")
	rec := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t,
		ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }},
	)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := newFixture(t,
		ReadyCheck{Name: "amqp", Check: func(context.Context) error { return errors.New("down") }},
	)
	rec = failing.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "unavailable", body["status"])
	assert.Equal(t, "down", body["checks"].(map[string]any)["amqp"])
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/register", `{"email":"Bob@Example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "bob@example.com", decodeBody(t, rec)["email"])

	rec = f.do(t, http.MethodPost, "/api/register", `{"email":"bob@example.com","password":"x"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/register", `{"email":"nope","password":"hunter22"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/register", `{"email":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/login", `{"email":"bob@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "token-bob@example.com", decodeBody(t, rec)["token"])

	rec = f.do(t, http.MethodPost, "/api/login", `{"email":"bob@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	form := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("email=ann%40example.com&password=secret"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	out := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(out, form)
	assert.Equal(t, http.StatusOK, out.Code)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer forged"} {
		req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		f.server.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	}
}

func TestExpenseCRUD(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/expenses",
		`{"name":"Lunch","date":"2025-07-14","amount":"12,50","category":"Food","description":"tacos"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	id := int64(created["id"].(float64))
	assert.Positive(t, id)
	assert.Equal(t, "2025-07-14", created["date"])
	assert.Equal(t, "12.5", created["amount"])

	path := "/api/expenses/" + strconv.FormatInt(id, 10)

	rec = f.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lunch", decodeBody(t, rec)["name"])

	rec = f.do(t, http.MethodPut, path, `{"name":"Dinner","date":"2025-07-15","amount":20,"category":"Food"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/expenses", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var list []core.Expense
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Dinner", list[0].Name)
	assert.Equal(t, "20.00", list[0].Amount.StringFixed(2))

	rec = f.do(t, http.MethodGet, "/api/balance", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "-20.00", decodeBody(t, rec)["balance"])

	rec = f.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodPut, path, `{"name":"X","amount":"1","category":"Food"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/balance?recompute=true", "")
	assert.Equal(t, "0.00", decodeBody(t, rec)["balance"])
}

func TestIncomeCRUDAndBalance(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/income", `{"name":"Salary","date":"2025-07-01","amount":"1000","source":"Work"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/api/expenses", `{"name":"Rent","date":"2025-07-02","amount":"400","category":"Housing"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/balance", "")
	body := decodeBody(t, rec)
	assert.Equal(t, "600.00", body["balance"])
	assert.Equal(t, core.FormatAmount(core.DefaultCurrencySymbol, decimal.NewFromInt(600)), body["formatted"])

	rec = f.do(t, http.MethodGet, "/api/income", "")
	var list []core.Income
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Work", list[0].Source)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"malformed json", "/api/expenses", `{"name":`, http.StatusBadRequest},
		{"unknown field", "/api/expenses", `{"name":"A","amount":"1","category":"F","bogus":1}`, http.StatusBadRequest},
		{"negative amount", "/api/expenses", `{"name":"A","amount":"-5","category":"F"}`, http.StatusUnprocessableEntity},
		{"zero amount", "/api/expenses", `{"name":"A","amount":0,"category":"F"}`, http.StatusUnprocessableEntity},
		{"missing amount", "/api/expenses", `{"name":"A","category":"F"}`, http.StatusUnprocessableEntity},
		{"bad date", "/api/expenses", `{"name":"A","date":"14/07/2025","amount":"1","category":"F"}`, http.StatusUnprocessableEntity},
		{"empty name", "/api/expenses", `{"name":"  ","amount":"1","category":"F"}`, http.StatusUnprocessableEntity},
		{"empty category", "/api/expenses", `{"name":"A","amount":"1"}`, http.StatusUnprocessableEntity},
		{"empty source", "/api/income", `{"name":"A","amount":"1"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}

	rec := f.do(t, http.MethodGet, "/api/balance", "")
	assert.Equal(t, "0.00", decodeBody(t, rec)["balance"])
}

func TestAmountForms(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		body string
		want string
	}{
		{`{"name":"Rent","amount":"12,500","category":"Housing"}`, "12500"},
		{`{"name":"TV","amount":"1,23,456.50","category":"Home"}`, "123456.5"},
		{`{"name":"Tea","amount":"12,50","category":"Food"}`, "12.5"},
		{`{"name":"Bulk","amount":1e3,"category":"Food"}`, "1000"},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodPost, "/api/expenses", tt.body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, tt.want, decodeBody(t, rec)["amount"], tt.body)
	}

	for _, body := range []string{
		`{"name":"A","amount":"12.345","category":"F"}`,
		`{"name":"A","amount":12.345,"category":"F"}`,
		`{"name":"A","amount":"1,234,56","category":"F"}`,
	} {
		rec := f.do(t, http.MethodPost, "/api/expenses", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
	}
}

func TestAuthRoutesWithoutIdentity(t *testing.T) {
	s := NewServer(":0", Deps{RateLimit: ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000}})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	for _, path := range []string{"/api/register", "/api/login"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"email":"a@b.co","password":"secret1"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		require.NotPanics(t, func() { s.Handler.ServeHTTP(rec, req) })
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
	}
}

// releaseCounter records how often the server opens and releases accounts.
type releaseCounter struct {
	*services.Registry
	opens, releases int
}

func (c *releaseCounter) Open(ctx context.Context, email string) (*services.Account, error) {
	c.opens++
	return c.Registry.Open(ctx, email)
}

func (c *releaseCounter) Release(a *services.Account) {
	c.releases++
	c.Registry.Release(a)
}

func TestAccountReleasedAfterRequest(t *testing.T) {
	factory, err := backend.NewFactory(backend.Config{Type: backend.MemoryBackend}, nil)
	require.NoError(t, err)
	counter := &releaseCounter{Registry: services.NewRegistry(factory)}
	t.Cleanup(func() { _ = counter.Close() })

	fa := newFakeAuth()
	s := NewServer(":0", Deps{
		Accounts:  counter,
		Auth:      fa,
		RateLimit: ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000},
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	for _, path := range []string{"/api/balance", "/api/expenses", "/api/expenses/99"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer token-ann@example.com")
		s.Handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 3, counter.opens)
	assert.Equal(t, counter.opens, counter.releases)
}

func TestAccountsAreIsolated(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/expenses", `{"name":"A","amount":"5","category":"F"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("Authorization", "Bearer token-zed@example.com")
	out := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
	assert.JSONEq(t, `[]`, out.Body.String())
}

func TestSummaryReportAndInsights(t *testing.T) {
	f := newFixture(t)
	for _, call := range []struct{ path, body string }{
		{"/api/income", `{"name":"Salary","date":"2025-06-01","amount":"1000","source":"Work"}`},
		{"/api/expenses", `{"name":"Rent","date":"2025-06-02","amount":"400","category":"Housing"}`},
		{"/api/expenses", `{"name":"Food","date":"2025-07-03","amount":"100","category":"Food"}`},
	} {
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, call.path, call.body).Code)
	}

	rec := f.do(t, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap core.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Incomes, 1)
	assert.Len(t, snap.Expenses, 2)

	rec = f.do(t, http.MethodGet, "/api/report/monthly", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report monthlyReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Months, 2)
	assert.Equal(t, "July 2025", report.Months[0].Label)
	assert.Equal(t, "June 2025", report.Months[1].Label)
	require.NotNil(t, report.Months[1].TopCategory)
	assert.Equal(t, "Housing", report.Months[1].TopCategory.Name)
	assert.Equal(t, "600", report.Months[1].Net.String())
	assert.InDelta(t, 50.0, report.SpendingRatio, 0.001)

	rec = f.do(t, http.MethodPost, "/api/insights", `{"query":"  how am I doing?  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "spend less", decodeBody(t, rec)["answer"])
	assert.Equal(t, "how am I doing?", f.advisor.query)
	assert.Len(t, f.advisor.snap.Expenses, 2)

	rec = f.do(t, http.MethodPost, "/api/insights", `{"query":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *fixture) upload(t *testing.T, path, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, filename, content, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer token-ann@example.com")
	rec := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(rec, req)
	return rec
}

const statementCSV = "Date,Details,Amount\n" +
	"2025-07-01,Salary,1000\n" +
	"2025-07-02,Groceries,-150.50\n" +
	"2025-07-03,Refund,abc\n"

func TestImportPreviewAndCommit(t *testing.T) {
	f := newFixture(t)
	fields := map[string]string{
		"amount_column":   "Amount",
		"category_column": "Details",
		"date_column":     "Date",
		"mode":            "sign",
	}

	rec := f.upload(t, "/api/import/preview", "statement.csv", statementCSV, fields)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview struct {
		Columns []string `json:"columns"`
		Rows    []struct {
			Direction string `json:"direction"`
			AmountOK  bool   `json:"amount_ok"`
		} `json:"rows"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, []string{"Date", "Details", "Amount"}, preview.Columns)
	assert.Equal(t, 3, preview.Count)
	assert.Equal(t, "credit", preview.Rows[0].Direction)
	assert.Equal(t, "debit", preview.Rows[1].Direction)
	assert.False(t, preview.Rows[2].AmountOK)

	// Preview does not write.
	assert.Equal(t, "0.00", decodeBody(t, f.do(t, http.MethodGet, "/api/balance", ""))["balance"])

	rec = f.upload(t, "/api/import/commit", "statement.csv", statementCSV, fields)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["added"])
	assert.EqualValues(t, 1, body["skipped"])

	assert.Equal(t, "849.50", decodeBody(t, f.do(t, http.MethodGet, "/api/balance", ""))["balance"])
}

func TestImportErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.upload(t, "/api/import/preview", "statement.csv", statementCSV,
		map[string]string{"amount_column": "Nope", "category_column": "Details"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.upload(t, "/api/import/preview", "statement.pdf", statementCSV,
		map[string]string{"amount_column": "Amount", "category_column": "Details"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.upload(t, "/api/import/preview", "statement.csv", statementCSV,
		map[string]string{"amount_column": "Amount", "category_column": "Details", "mode": "guess"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", strings.NewReader("x"))
	req.Header.Set("Authorization", "Bearer token-ann@example.com")
	out := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestRoutingFallbacks(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/nothing", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodPatch, "/api/balance", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/expenses/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/.env", "").Code)

	m := f.server.Metrics()
	assert.EqualValues(t, 1, m["blocked_requests"])
}

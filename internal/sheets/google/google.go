package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	ports "fintrack/internal/sheets"

	"fintrack/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	// TabPrefix is prepended to every per-user tab name.
	TabPrefix string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabPrefix     string
}

// Ensure interface conformance
var _ ports.Exporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		tabPrefix:     cfg.TabPrefix,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over a file; GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	file := strings.TrimSpace(cfg.CredentialsFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// newHTTPClientWithPooling creates an HTTP client optimized for Google Sheets API
// with connection pooling, proper timeouts, and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// ExportUser rewrites the user's tab with snap, creating the tab on first use.
func (c *Client) ExportUser(ctx context.Context, email string, snap core.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	tab := tabName(c.tabPrefix, email)

	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	rng := quoteTab(tab) + "!A:G"
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", tab, err)
	}

	rows := buildRows(snap)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoteTab(tab)+"!A1", &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", tab, err)
	}

	slog.InfoContext(ctx, "Exported ledger to Google Sheets",
		"email", email,
		"tab", tab,
		"rows", len(rows)-1)
	return nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", tab, err)
	}
	slog.InfoContext(ctx, "Created sheet tab", "tab", tab)
	return nil
}

// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/importer"
	"fintrack/internal/middleware/trace"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadSize = 10 << 20
)

// RequestBodyParser reads a body once and exposes it as key/value pairs,
// whether it was sent as JSON or form-encoded.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: %v", errBadRequest, err)
			return p.err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errBadRequest, p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// decodeJSON strictly decodes a single JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// pathID returns the {id} route variable.
func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id %q: %w", raw, core.ErrInvalidID)
	}
	return id, nil
}

// queryBool reads a boolean query parameter; anything unparseable is false.
func queryBool(r *http.Request, key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && b
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

// amountField holds the text of an amount sent either as a JSON number or as
// a string such as "12,50". Numbers are stored in plain decimal notation, so
// 1e3 arrives as "1000".
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	if string(b) == "null" {
		*a = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return fmt.Errorf("amount %s: %w", n, core.ErrInvalidAmount)
	}
	*a = amountField(d.String())
	return nil
}

// recordPayload is the JSON body of an expense or income create/update.
type recordPayload struct {
	Name        string      `json:"name"`
	Date        string      `json:"date"`
	Amount      amountField `json:"amount"`
	Category    string      `json:"category,omitempty"`
	Source      string      `json:"source,omitempty"`
	Description string      `json:"description"`
}

// common parses the fields shared by both kinds. An empty date means today.
func (p recordPayload) common() (name string, date core.Date, amount string, err error) {
	name = sanitizeInput(p.Name)
	date = core.Today()
	if d := strings.TrimSpace(p.Date); d != "" {
		if date, err = core.ParseDate(d); err != nil {
			return "", core.Date{}, "", err
		}
	}
	return name, date, strings.TrimSpace(string(p.Amount)), nil
}

func (p recordPayload) expense() (core.Expense, error) {
	name, date, raw, err := p.common()
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		Name:        name,
		Date:        date,
		Amount:      amount,
		Category:    sanitizeInput(p.Category),
		Description: sanitizeInput(p.Description),
	}
	return e, e.Validate()
}

func (p recordPayload) income() (core.Income, error) {
	name, date, raw, err := p.common()
	if err != nil {
		return core.Income{}, err
	}
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return core.Income{}, err
	}
	in := core.Income{
		Name:        name,
		Date:        date,
		Amount:      amount,
		Source:      sanitizeInput(p.Source),
		Description: sanitizeInput(p.Description),
	}
	return in, in.Validate()
}

// parseUpload reads the multipart "file" field into a table and the form
// fields into a mapping.
func parseUpload(w http.ResponseWriter, r *http.Request) (importer.Table, importer.Mapping, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return importer.Table{}, importer.Mapping{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return importer.Table{}, importer.Mapping{}, fmt.Errorf("%w: missing file field", errInvalidInput)
		}
		return importer.Table{}, importer.Mapping{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer file.Close()

	mapping, err := parseMapping(r.MultipartForm.Value)
	if err != nil {
		return importer.Table{}, importer.Mapping{}, err
	}
	table, err := importer.ReadTable(header.Filename, file)
	if err != nil {
		return importer.Table{}, importer.Mapping{}, err
	}
	return table, mapping, nil
}

// parseMapping reads the column roles and policies of an import.
func parseMapping(form url.Values) (importer.Mapping, error) {
	get := func(key string) string { return sanitizeInput(form.Get(key)) }

	mode, err := importer.ParseDirectionMode(get("mode"))
	if err != nil {
		return importer.Mapping{}, fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	fallback, err := importer.ParseFallbackPolicy(get("fallback"))
	if err != nil {
		return importer.Mapping{}, fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	auto, _ := strconv.ParseBool(get("auto_categorize"))

	return importer.Mapping{
		AmountColumn:        get("amount_column"),
		CategoryColumn:      get("category_column"),
		DateColumn:          get("date_column"),
		TypeColumn:          get("type_column"),
		Mode:                mode,
		Fallback:            fallback,
		DefaultCategory:     get("default_category"),
		DefaultSource:       get("default_source"),
		NameOverride:        get("name"),
		DescriptionOverride: get("description"),
		AutoCategorize:      auto,
	}, nil
}

package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyTable        = errors.New("uploaded file is empty")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Table is an uploaded file: a header row plus data rows, every row padded
// to the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named header, or -1.
func (t Table) Column(name string) int {
	name = strings.TrimSpace(name)
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// ReadTable picks a reader from the file extension.
func ReadTable(filename string, r io.Reader) (Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(r)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// ReadCSV reads a CSV table. Rows may be ragged.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("reading CSV: %w", err)
	}
	return newTable(records)
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("reading XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmptyTable
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return newTable(rows)
}

func newTable(records [][]string) (Table, error) {
	// Leading blank lines are not a header.
	for len(records) > 0 && blankRow(records[0]) {
		records = records[1:]
	}
	if len(records) < 2 {
		return Table{}, ErrEmptyTable
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := Table{Header: header}
	for _, rec := range records[1:] {
		if blankRow(rec) {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) == 0 {
		return Table{}, ErrEmptyTable
	}
	return t, nil
}

func blankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

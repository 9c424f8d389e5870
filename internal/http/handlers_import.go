package http

import (
	"net/http"

	applog "fintrack/internal/log"
)

type previewResponse struct {
	Columns []string `json:"columns"`
	Rows    any      `json:"rows"`
	Count   int      `json:"count"`
}

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	table, mapping, err := parseUpload(w, r)
	if err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	rows, err := s.importer.Preview(table, mapping)
	if err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Columns: table.Header, Rows: rows, Count: len(rows)})
}

// handleImportCommit previews and commits the upload in one request. Rows
// that fail to commit are reported in the result, not as an HTTP error.
func (s *Server) handleImportCommit(w http.ResponseWriter, r *http.Request) {
	table, mapping, err := parseUpload(w, r)
	if err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	rows, err := s.importer.Preview(table, mapping)
	if err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}

	account := accountFrom(r.Context())
	result := s.importer.Commit(r.Context(), account, rows, mapping)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Import committed",
		applog.FieldUser, account.Owner(),
		applog.FieldRows, len(rows),
		"added", result.Added,
		"skipped", result.Skipped,
		"errors", result.Errors)
	writeJSON(w, http.StatusOK, result)
}

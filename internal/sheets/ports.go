package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// Exporter mirrors one user's full transaction set to an external
	// spreadsheet, replacing whatever was there before.
	Exporter interface {
		ExportUser(ctx context.Context, email string, snap core.Snapshot) error
	}
)

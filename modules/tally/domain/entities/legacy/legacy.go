package legacy

import (
	"context"
	"time"

	"github.com/vtlabs/tallysync/pkg/serrors"
)

var (
	// ErrSourceUnavailable marks a legacy table that could not be reached.
	// The engine abandons that source and counts one batch-level error.
	ErrSourceUnavailable = serrors.NewError(serrors.CodeSourceUnavailable, "legacy source unreachable")

	// ErrTableNotFound marks a legacy table absent from the export schema.
	// Backups are optional, so the engine skips the source silently.
	ErrTableNotFound = serrors.NewError(serrors.CodeSourceUnavailable, "legacy table does not exist")
)

// Row is one record of a flat legacy export table. Exports are immutable
// once produced; this system never writes to them.
type Row struct {
	GUID      string
	AlterID   int64
	UpdatedAt time.Time
	Fields    map[string]any
}

type Batch struct {
	Rows []Row
	// NextCursor resumes the scan after the last row of this batch;
	// empty when the source is exhausted.
	NextCursor string
}

// Source reads legacy export tables in bounded batches.
type Source interface {
	FetchBatch(ctx context.Context, table string, cursor string, limit int) (Batch, error)
}

package record

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Record is one row of a normalized VT table. The guid is the natural key
// carried over from the legacy export; id is the stable VT primary key.
// A row counts as locally modified when UpdatedAt is later than
// LastSyncedAt; the sync engine refuses to overwrite such rows.
type Record struct {
	ID         uuid.UUID
	CompanyID  string
	DivisionID string

	GUID    string
	Name    string
	AlterID int64
	Amount  decimal.Decimal
	Data    map[string]any

	SourceUpdatedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastSyncedAt    time.Time
}

func (r Record) LocallyModified() bool {
	return r.UpdatedAt.After(r.LastSyncedAt)
}

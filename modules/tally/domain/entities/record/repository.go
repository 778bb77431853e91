package record

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vtlabs/tallysync/pkg/repo"
	"github.com/vtlabs/tallysync/pkg/serrors"
)

var (
	ErrNotFound  = serrors.NewError(serrors.CodeNotFound, "record not found")
	ErrGUIDTaken = serrors.NewError(serrors.CodeConstraintViolation, "guid already exists for tenant")
)

type Filter struct {
	Field string
	Op    repo.Op
	Value any
}

type FindParams struct {
	Limit  int
	Offset int
	// Q is matched case-insensitively as a substring against the entity's
	// configured search fields.
	Q       string
	SortBy  repo.SortBy
	Filters []Filter
}

// Repository is the tenant-scoped access to one normalized VT table. The
// tenant is read from the context on every call; no operation can observe
// or mutate rows of another tenant.
type Repository interface {
	GetPaginated(ctx context.Context, params *FindParams) ([]Record, int64, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (Record, error)
	GetByGUID(ctx context.Context, guid string) (Record, error)
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, id uuid.UUID, rec Record) (Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// BatchCreate writes all rows in one transaction; any constraint
	// violation fails the whole batch, naming the offending guid.
	BatchCreate(ctx context.Context, recs []Record) ([]Record, error)
}

type UpsertOutcome int

const (
	// OutcomeInserted: no row existed for (tenant, guid).
	OutcomeInserted UpsertOutcome = iota
	// OutcomeUpdated: the candidate was newer and the row had no local edits.
	OutcomeUpdated
	// OutcomeUnchanged: the stored row is already at or past the candidate.
	OutcomeUnchanged
	// OutcomeConflict: the row was locally modified after its last sync;
	// the local edit is preserved and the candidate dropped.
	OutcomeConflict
)

type UpsertParams struct {
	GUID            string
	Name            string
	AlterID         int64
	Amount          decimal.Decimal
	Data            map[string]any
	SourceUpdatedAt time.Time
}

// SyncStore is the write path reserved for the sync engine. Keyed on
// (tenant, guid); writes for one guid are strictly ordered within a run.
type SyncStore interface {
	Upsert(ctx context.Context, params UpsertParams) (UpsertOutcome, error)
}

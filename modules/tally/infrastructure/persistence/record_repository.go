package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/record"
	"github.com/vtlabs/tallysync/modules/tally/infrastructure/persistence/models"
	"github.com/vtlabs/tallysync/modules/tally/mapping"
	"github.com/vtlabs/tallysync/pkg/composables"
	"github.com/vtlabs/tallysync/pkg/repo"
	"github.com/vtlabs/tallysync/pkg/serrors"
)

const recordColumnList = `id, company_id, division_id, guid, name, alter_id, amount::text, data, source_updated_at, created_at, updated_at, last_synced_at`

// recordColumns whitelists filterable/sortable columns. Anything else is
// treated as an entity attribute inside the data jsonb.
var recordColumns = map[string]string{
	"id":                "id",
	"guid":              "guid",
	"name":              "name",
	"alter_id":          "alter_id",
	"amount":            "amount",
	"source_updated_at": "source_updated_at",
	"created_at":        "created_at",
	"updated_at":        "updated_at",
	"last_synced_at":    "last_synced_at",
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func fieldExpr(field string) (string, error) {
	if col, ok := recordColumns[field]; ok {
		return col, nil
	}
	if identPattern.MatchString(field) {
		return fmt.Sprintf("data->>'%s'", field), nil
	}
	return "", serrors.NewValidationError("invalid filter field %q", field)
}

// RecordRepository is the tenant-scoped access to one normalized VT table.
// It also carries the sync engine's upsert path (record.SyncStore).
type RecordRepository struct {
	entity mapping.Entity
}

func NewRecordRepository(entity mapping.Entity) *RecordRepository {
	return &RecordRepository{entity: entity}
}

var (
	_ record.Repository = (*RecordRepository)(nil)
	_ record.SyncStore  = (*RecordRepository)(nil)
)

func (r *RecordRepository) GetPaginated(ctx context.Context, params *record.FindParams) ([]record.Record, int64, error) {
	if params == nil {
		params = &record.FindParams{}
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	where, args, err := r.buildFilters(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 25
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	orderBy, err := r.orderClause(params.SortBy)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s %s %s",
		recordColumnList, r.entity.Table, strings.Join(where, " AND "), orderBy,
		repo.FormatLimitOffset(limit, offset),
	)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, gerrors.Wrap(err, "failed to query records")
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, gerrors.Wrap(err, "row iteration error")
	}

	total, err := r.count(ctx, tx, where, args)
	if err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

func (r *RecordRepository) Count(ctx context.Context, params *record.FindParams) (int64, error) {
	if params == nil {
		params = &record.FindParams{}
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	where, args, err := r.buildFilters(ctx, params)
	if err != nil {
		return 0, err
	}
	return r.count(ctx, tx, where, args)
}

func (r *RecordRepository) count(ctx context.Context, tx repo.Tx, where []string, args []any) (int64, error) {
	var total int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", r.entity.Table, strings.Join(where, " AND "))
	if err := tx.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, gerrors.Wrap(err, "failed to count records")
	}
	return total, nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id uuid.UUID) (record.Record, error) {
	return r.getOne(ctx, "id = $3", id.String())
}

func (r *RecordRepository) GetByGUID(ctx context.Context, guid string) (record.Record, error) {
	return r.getOne(ctx, "guid = $3", strings.TrimSpace(guid))
}

func (r *RecordRepository) getOne(ctx context.Context, predicate string, arg any) (record.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return record.Record{}, err
	}
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return record.Record{}, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE company_id = $1 AND division_id = $2 AND %s",
		recordColumnList, r.entity.Table, predicate,
	)
	row := tx.QueryRow(ctx, query, tenant.CompanyID, tenant.DivisionID, arg)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record.Record{}, record.ErrNotFound
		}
		return record.Record{}, err
	}
	return rec, nil
}

func (r *RecordRepository) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return record.Record{}, err
	}
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return record.Record{}, err
	}
	return r.insert(ctx, tx, tenant, rec)
}

func (r *RecordRepository) insert(ctx context.Context, tx repo.Tx, tenant composables.Tenant, rec record.Record) (record.Record, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	data, err := marshalData(rec.Data)
	if err != nil {
		return record.Record{}, err
	}

	// Locally created rows carry an epoch last_synced_at, which marks them
	// as locally modified so a later sync run cannot clobber them.
	query := fmt.Sprintf(`
		INSERT INTO %s (id, company_id, division_id, guid, name, alter_id, amount, data, source_updated_at, created_at, updated_at, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::jsonb, to_timestamp(0), now(), now(), to_timestamp(0))
		RETURNING %s
	`, r.entity.Table, recordColumnList)

	row := tx.QueryRow(
		ctx,
		query,
		rec.ID.String(),
		tenant.CompanyID,
		tenant.DivisionID,
		strings.TrimSpace(rec.GUID),
		strings.TrimSpace(rec.Name),
		rec.AlterID,
		rec.Amount.String(),
		data,
	)
	created, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return record.Record{}, record.ErrGUIDTaken
		}
		return record.Record{}, gerrors.Wrap(err, "failed to create record")
	}
	return created, nil
}

func (r *RecordRepository) Update(ctx context.Context, id uuid.UUID, rec record.Record) (record.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return record.Record{}, err
	}
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return record.Record{}, err
	}
	data, err := marshalData(rec.Data)
	if err != nil {
		return record.Record{}, err
	}

	// updated_at moves but last_synced_at stays put: that gap is what the
	// sync engine reads as "locally modified".
	// alter_id belongs to the legacy export; local edits never touch it.
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $4, amount = $5::numeric, data = $6::jsonb, updated_at = now()
		WHERE company_id = $1 AND division_id = $2 AND id = $3
		RETURNING %s
	`, r.entity.Table, recordColumnList)

	row := tx.QueryRow(
		ctx,
		query,
		tenant.CompanyID,
		tenant.DivisionID,
		id.String(),
		strings.TrimSpace(rec.Name),
		rec.Amount.String(),
		data,
	)
	updated, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record.Record{}, record.ErrNotFound
		}
		return record.Record{}, gerrors.Wrap(err, "failed to update record")
	}
	return updated, nil
}

func (r *RecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE company_id = $1 AND division_id = $2 AND id = $3", r.entity.Table)
	tag, err := tx.Exec(ctx, query, tenant.CompanyID, tenant.DivisionID, id.String())
	if err != nil {
		return gerrors.Wrap(err, "failed to delete record")
	}
	if tag.RowsAffected() == 0 {
		return record.ErrNotFound
	}
	return nil
}

// BatchCreate writes all rows in one transaction; any failing row aborts
// the whole batch and the error names the offending guid.
func (r *RecordRepository) BatchCreate(ctx context.Context, recs []record.Record) ([]record.Record, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]record.Record, error) {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return nil, err
		}
		out := make([]record.Record, 0, len(recs))
		for _, rec := range recs {
			created, err := r.insert(txCtx, tx, tenant, rec)
			if err != nil {
				if errors.Is(err, record.ErrGUIDTaken) {
					return nil, serrors.NewConstraintViolation("batch insert failed: guid %q already exists", rec.GUID)
				}
				return nil, gerrors.Wrapf(err, "batch insert failed for guid %q", rec.GUID)
			}
			out = append(out, created)
		}
		return out, nil
	})
}

// Upsert is the sync engine's write path, keyed on (tenant, guid). The
// update arm fires only when the candidate is newer than the stored
// snapshot and the row has no local edits; a zero-row result is classified
// by re-reading the stored timestamps.
func (r *RecordRepository) Upsert(ctx context.Context, params record.UpsertParams) (record.UpsertOutcome, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return record.OutcomeUnchanged, err
	}
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return record.OutcomeUnchanged, err
	}
	data, err := marshalData(params.Data)
	if err != nil {
		return record.OutcomeUnchanged, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (id, company_id, division_id, guid, name, alter_id, amount, data, source_updated_at, created_at, updated_at, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::jsonb, $9, now(), now(), now())
		ON CONFLICT (company_id, division_id, guid) DO UPDATE SET
			name = EXCLUDED.name,
			alter_id = EXCLUDED.alter_id,
			amount = EXCLUDED.amount,
			data = EXCLUDED.data,
			source_updated_at = EXCLUDED.source_updated_at,
			updated_at = now(),
			last_synced_at = now()
		WHERE %[1]s.updated_at <= %[1]s.last_synced_at
			AND EXCLUDED.source_updated_at > %[1]s.source_updated_at
		RETURNING (xmax = 0)
	`, r.entity.Table)

	var inserted bool
	err = tx.QueryRow(
		ctx,
		query,
		uuid.New().String(),
		tenant.CompanyID,
		tenant.DivisionID,
		strings.TrimSpace(params.GUID),
		strings.TrimSpace(params.Name),
		params.AlterID,
		params.Amount.String(),
		data,
		params.SourceUpdatedAt,
	).Scan(&inserted)
	if err == nil {
		if inserted {
			return record.OutcomeInserted, nil
		}
		return record.OutcomeUpdated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return record.OutcomeUnchanged, gerrors.Wrap(err, "failed to upsert record")
	}

	return r.classifySkip(ctx, tx, tenant, params.GUID)
}

func (r *RecordRepository) classifySkip(ctx context.Context, tx repo.Tx, tenant composables.Tenant, guid string) (record.UpsertOutcome, error) {
	query := fmt.Sprintf(
		"SELECT updated_at, last_synced_at FROM %s WHERE company_id = $1 AND division_id = $2 AND guid = $3",
		r.entity.Table,
	)
	var row models.Record
	err := tx.QueryRow(ctx, query, tenant.CompanyID, tenant.DivisionID, strings.TrimSpace(guid)).
		Scan(&row.UpdatedAt, &row.LastSyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row vanished between statements; the next run will insert it.
			return record.OutcomeUnchanged, nil
		}
		return record.OutcomeUnchanged, gerrors.Wrap(err, "failed to classify skipped upsert")
	}
	if row.UpdatedAt.After(row.LastSyncedAt) {
		return record.OutcomeConflict, nil
	}
	return record.OutcomeUnchanged, nil
}

func (r *RecordRepository) buildFilters(ctx context.Context, params *record.FindParams) ([]string, []any, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, nil, err
	}

	where := []string{"company_id = $1", "division_id = $2"}
	args := []any{tenant.CompanyID, tenant.DivisionID}
	argPos := 3

	for _, f := range params.Filters {
		expr, err := fieldExpr(f.Field)
		if err != nil {
			return nil, nil, err
		}
		op, err := f.Op.SQL()
		if err != nil {
			return nil, nil, err
		}
		where = append(where, fmt.Sprintf("%s %s $%d", expr, op, argPos))
		args = append(args, f.Value)
		argPos++
	}

	if q := strings.TrimSpace(params.Q); q != "" {
		searchTerms := make([]string, 0, len(r.entity.SearchFields))
		for _, field := range r.entity.SearchFields {
			expr, err := fieldExpr(field)
			if err != nil {
				return nil, nil, err
			}
			searchTerms = append(searchTerms, fmt.Sprintf("%s ILIKE $%d", expr, argPos))
		}
		where = append(where, "("+strings.Join(searchTerms, " OR ")+")")
		args = append(args, "%"+q+"%")
		argPos++
	}

	return where, args, nil
}

func (r *RecordRepository) orderClause(sortBy repo.SortBy) (string, error) {
	if sortBy.Field == "" {
		return "ORDER BY name ASC", nil
	}
	col, ok := recordColumns[sortBy.Field]
	if !ok {
		return "", serrors.NewValidationError("invalid sort field %q", sortBy.Field)
	}
	return fmt.Sprintf("ORDER BY %s %s", col, sortBy.Direction()), nil
}

func marshalData(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	out, err := json.Marshal(data)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to encode record data")
	}
	return out, nil
}

func scanRecord(row pgx.Row) (record.Record, error) {
	var m models.Record
	if err := row.Scan(
		&m.ID,
		&m.CompanyID,
		&m.DivisionID,
		&m.GUID,
		&m.Name,
		&m.AlterID,
		&m.Amount,
		&m.Data,
		&m.SourceUpdatedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.LastSyncedAt,
	); err != nil {
		return record.Record{}, err
	}
	return toDomainRecord(&m)
}

func toDomainRecord(m *models.Record) (record.Record, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return record.Record{}, gerrors.Wrap(err, "invalid record id")
	}
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return record.Record{}, gerrors.Wrap(err, "invalid record amount")
	}
	var data map[string]any
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return record.Record{}, gerrors.Wrap(err, "invalid record data")
		}
	}
	return record.Record{
		ID:              id,
		CompanyID:       m.CompanyID,
		DivisionID:      m.DivisionID,
		GUID:            m.GUID,
		Name:            m.Name,
		AlterID:         m.AlterID,
		Amount:          amount,
		Data:            data,
		SourceUpdatedAt: m.SourceUpdatedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		LastSyncedAt:    m.LastSyncedAt,
	}, nil
}

package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cast"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/legacy"
	"github.com/vtlabs/tallysync/modules/tally/mapping"
	"github.com/vtlabs/tallysync/pkg/serrors"
)

// undefinedTable is the SQLSTATE for a missing relation. Backup aliases
// only exist after an export run has produced one, so this is not an error
// for them.
const undefinedTable = "42P01"

// Scan cursors are opaque to callers and never empty mid-scan. Rows with
// a NULL or empty guid cannot key a guid cursor, so the scan runs in two
// phases: the blank prefix paged by offset, then the valid rows by guid
// keyset. A bare guid cursor would read a full batch of blank rows as
// end-of-scan and drop everything behind them.
const (
	blankCursorPrefix = "blank:"
	guidCursorPrefix  = "guid:"
)

type scanCursor struct {
	blankPhase bool
	offset     int
	afterGUID  string
}

func parseScanCursor(cursor string) (scanCursor, error) {
	switch {
	case cursor == "":
		return scanCursor{blankPhase: true}, nil
	case strings.HasPrefix(cursor, blankCursorPrefix):
		offset, err := strconv.Atoi(strings.TrimPrefix(cursor, blankCursorPrefix))
		if err != nil || offset < 0 {
			return scanCursor{}, serrors.NewValidationError("malformed scan cursor %q", cursor)
		}
		return scanCursor{blankPhase: true, offset: offset}, nil
	case strings.HasPrefix(cursor, guidCursorPrefix):
		return scanCursor{afterGUID: strings.TrimPrefix(cursor, guidCursorPrefix)}, nil
	}
	return scanCursor{}, serrors.NewValidationError("malformed scan cursor %q", cursor)
}

// next returns the cursor resuming after this batch. Only a short batch in
// the guid phase ends the scan; a short blank batch hands over to the guid
// phase instead.
func (c scanCursor) next(rows, limit int, lastGUID string) string {
	if c.blankPhase {
		if rows == limit {
			return blankCursorPrefix + strconv.Itoa(c.offset+rows)
		}
		return guidCursorPrefix
	}
	if rows == limit {
		return guidCursorPrefix + lastGUID
	}
	return ""
}

// PgLegacySource reads flat Tally export tables over a dedicated pool.
// Export rows are immutable; this system never writes to them.
type PgLegacySource struct {
	pool *pgxpool.Pool
}

func NewPgLegacySource(pool *pgxpool.Pool) *PgLegacySource {
	return &PgLegacySource{pool: pool}
}

var _ legacy.Source = (*PgLegacySource)(nil)

func (s *PgLegacySource) FetchBatch(ctx context.Context, table string, cursor string, limit int) (legacy.Batch, error) {
	if _, ok := mapping.Lookup(table); !ok {
		return legacy.Batch{}, serrors.NewValidationError("unmapped legacy table %q", table)
	}
	if limit <= 0 {
		limit = 500
	}
	cur, err := parseScanCursor(cursor)
	if err != nil {
		return legacy.Batch{}, err
	}

	// Blank-guid rows are surfaced to the engine, which counts them as
	// validation errors rather than dropping them. Exports are immutable,
	// so ctid order is stable across the batches of one run.
	var (
		query string
		args  []any
	)
	if cur.blankPhase {
		query = fmt.Sprintf(`
			SELECT COALESCE(t.guid, ''), to_jsonb(t)
			FROM %s t
			WHERE t.guid IS NULL OR t.guid = ''
			ORDER BY t.ctid
			LIMIT $1 OFFSET $2
		`, table)
		args = []any{limit, cur.offset}
	} else {
		query = fmt.Sprintf(`
			SELECT t.guid, to_jsonb(t)
			FROM %s t
			WHERE t.guid > $1
			ORDER BY t.guid
			LIMIT $2
		`, table)
		args = []any{cur.afterGUID, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return legacy.Batch{}, classifyFetchErr(table, err)
	}
	defer rows.Close()

	batch := legacy.Batch{Rows: make([]legacy.Row, 0, limit)}
	for rows.Next() {
		var (
			guid string
			raw  []byte
		)
		if err := rows.Scan(&guid, &raw); err != nil {
			return legacy.Batch{}, classifyFetchErr(table, err)
		}
		row, err := decodeLegacyRow(guid, raw)
		if err != nil {
			return legacy.Batch{}, err
		}
		batch.Rows = append(batch.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return legacy.Batch{}, classifyFetchErr(table, err)
	}

	lastGUID := ""
	if len(batch.Rows) > 0 {
		lastGUID = batch.Rows[len(batch.Rows)-1].GUID
	}
	batch.NextCursor = cur.next(len(batch.Rows), limit, lastGUID)
	return batch, nil
}

func classifyFetchErr(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return errors.Join(legacy.ErrTableNotFound, gerrors.Wrapf(err, "table %s", table))
	}
	return errors.Join(legacy.ErrSourceUnavailable, gerrors.Wrapf(err, "table %s", table))
}

func decodeLegacyRow(guid string, raw []byte) (legacy.Row, error) {
	fields := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return legacy.Row{}, gerrors.Wrap(err, "failed to decode legacy row")
		}
	}

	row := legacy.Row{GUID: guid, Fields: fields}
	if v, ok := fields["alterid"]; ok {
		row.AlterID = cast.ToInt64(v)
	}
	if v, ok := fields["updated_at"]; ok {
		if t, err := cast.ToTimeE(v); err == nil {
			row.UpdatedAt = t
		}
	}
	if row.UpdatedAt.IsZero() {
		// Exports without timestamps still sync once: a zero time loses to
		// nothing on first insert and never forces a rewrite after.
		row.UpdatedAt = time.Unix(0, 0).UTC()
	}
	return row, nil
}

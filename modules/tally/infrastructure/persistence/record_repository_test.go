package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/legacy"
	"github.com/vtlabs/tallysync/modules/tally/domain/entities/record"
	"github.com/vtlabs/tallysync/modules/tally/mapping"
	"github.com/vtlabs/tallysync/pkg/composables"
	"github.com/vtlabs/tallysync/pkg/repo"
	"github.com/vtlabs/tallysync/pkg/serrors"
)

func ledgerRepo(t *testing.T) *RecordRepository {
	t.Helper()
	entity, ok := mapping.ByKey("ledgers")
	require.True(t, ok)
	return NewRecordRepository(entity)
}

func tenantCtx(t *testing.T) context.Context {
	t.Helper()
	tenant, err := composables.NewTenant("acme", "main")
	require.NoError(t, err)
	return composables.WithTenant(context.Background(), tenant)
}

func TestFieldExpr_KnownColumnsPassThrough(t *testing.T) {
	expr, err := fieldExpr("guid")
	require.NoError(t, err)
	require.Equal(t, "guid", expr)

	expr, err = fieldExpr("updated_at")
	require.NoError(t, err)
	require.Equal(t, "updated_at", expr)
}

func TestFieldExpr_UnknownFieldsReadFromData(t *testing.T) {
	expr, err := fieldExpr("parent_group")
	require.NoError(t, err)
	require.Equal(t, "data->>'parent_group'", expr)
}

func TestFieldExpr_RejectsUnsafeIdentifiers(t *testing.T) {
	for _, field := range []string{"foo; drop table x", "UPPER", "a-b", "1col", "a'b"} {
		_, err := fieldExpr(field)
		require.Error(t, err, field)
		require.Equal(t, serrors.CodeValidation, serrors.Code(err))
	}
}

func TestBuildFilters_TenantPredicatesComeFirst(t *testing.T) {
	r := ledgerRepo(t)
	where, args, err := r.buildFilters(tenantCtx(t), &record.FindParams{
		Filters: []record.Filter{
			{Field: "alter_id", Op: repo.OpGt, Value: int64(10)},
		},
		Q: "cash",
	})
	require.NoError(t, err)

	require.Equal(t, []string{
		"company_id = $1",
		"division_id = $2",
		"alter_id > $3",
		"(name ILIKE $4 OR guid ILIKE $4)",
	}, where)
	require.Equal(t, []any{"acme", "main", int64(10), "%cash%"}, args)
}

func TestBuildFilters_RequiresTenant(t *testing.T) {
	r := ledgerRepo(t)
	_, _, err := r.buildFilters(context.Background(), &record.FindParams{})
	require.ErrorIs(t, err, composables.ErrNoTenant)
}

func TestBuildFilters_RejectsUnknownOperator(t *testing.T) {
	r := ledgerRepo(t)
	_, _, err := r.buildFilters(tenantCtx(t), &record.FindParams{
		Filters: []record.Filter{{Field: "name", Op: repo.Op("like"), Value: "x"}},
	})
	require.Error(t, err)
}

func TestOrderClause_DefaultsToName(t *testing.T) {
	r := ledgerRepo(t)

	clause, err := r.orderClause(repo.SortBy{})
	require.NoError(t, err)
	require.Equal(t, "ORDER BY name ASC", clause)

	clause, err = r.orderClause(repo.SortBy{Field: "updated_at", Ascending: false})
	require.NoError(t, err)
	require.Equal(t, "ORDER BY updated_at DESC", clause)
}

func TestOrderClause_RejectsDataFields(t *testing.T) {
	r := ledgerRepo(t)
	_, err := r.orderClause(repo.SortBy{Field: "parent_group"})
	require.Equal(t, serrors.CodeValidation, serrors.Code(err))
}

func TestClassifyFetchErr_MissingTable(t *testing.T) {
	err := classifyFetchErr("bkp_tally_mst_ledger", &pgconn.PgError{Code: undefinedTable})
	require.ErrorIs(t, err, legacy.ErrTableNotFound)
}

func TestClassifyFetchErr_OtherFailuresAreUnavailable(t *testing.T) {
	err := classifyFetchErr("tally_mst_ledger", errors.New("connection refused"))
	require.ErrorIs(t, err, legacy.ErrSourceUnavailable)
	require.NotErrorIs(t, err, legacy.ErrTableNotFound)
}

func TestDecodeLegacyRow_MapsKnownFields(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	raw := []byte(`{"guid":"g-1","alterid":7,"updated_at":"` + now.Format(time.RFC3339) + `","name":"Cash"}`)

	row, err := decodeLegacyRow("g-1", raw)
	require.NoError(t, err)
	require.Equal(t, "g-1", row.GUID)
	require.Equal(t, int64(7), row.AlterID)
	require.Equal(t, now, row.UpdatedAt.UTC())
	require.Equal(t, "Cash", row.Fields["name"])
}

func TestDecodeLegacyRow_MissingTimestampDefaultsToEpoch(t *testing.T) {
	row, err := decodeLegacyRow("g-1", []byte(`{"guid":"g-1","name":"Cash"}`))
	require.NoError(t, err)
	require.Equal(t, time.Unix(0, 0).UTC(), row.UpdatedAt)
}

func TestMarshalData_NilBecomesEmptyObject(t *testing.T) {
	out, err := marshalData(nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(out))
}

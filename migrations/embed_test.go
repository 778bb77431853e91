package migrations

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var versionedName = regexp.MustCompile(`^\d+_[a-z0-9_]+\.sql$`)

func TestEmbeddedMigrations_AreVersionedAndReversible(t *testing.T) {
	entries, err := fs.ReadDir(FS, ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		require.True(t, versionedName.MatchString(entry.Name()), entry.Name())

		data, err := fs.ReadFile(FS, entry.Name())
		require.NoError(t, err)
		content := string(data)
		require.Contains(t, content, "-- +goose Up", entry.Name())
		require.Contains(t, content, "-- +goose Down", entry.Name())
	}
}

func TestEmbeddedMigrations_SchemaCoversEveryNormalizedTable(t *testing.T) {
	data, err := fs.ReadFile(FS, "0001_vt_schema.sql")
	require.NoError(t, err)
	content := string(data)

	for _, table := range []string{
		"vt_companies", "vt_groups", "vt_ledgers", "vt_cost_categories",
		"vt_cost_centres", "vt_stock_groups", "vt_stock_items",
		"vt_voucher_types", "vt_vouchers", "vt_ledger_entries",
	} {
		require.Contains(t, content, "CREATE TABLE IF NOT EXISTS "+table, table)
		require.Contains(t, content, "DROP TABLE IF EXISTS "+table, table)
	}

	// down section reverses the up section
	up := strings.Index(content, "-- +goose Up")
	down := strings.Index(content, "-- +goose Down")
	require.Greater(t, down, up)
}

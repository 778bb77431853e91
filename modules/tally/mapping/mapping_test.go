package mapping

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtlabs/tallysync/pkg/serrors"
)

func TestValidate_BuiltInMappingIsValid(t *testing.T) {
	require.NoError(t, Validate(Entities()))
}

func TestValidate_RejectsDuplicateKeys(t *testing.T) {
	entries := []Entity{
		{Key: "ledgers", LegacySource: "a", Table: "vt_ledgers", NameField: "name", SearchFields: []string{"name"}},
		{Key: "ledgers", LegacySource: "b", Table: "vt_groups", NameField: "name", SearchFields: []string{"name"}},
	}
	err := Validate(entries)
	require.Error(t, err)
	require.Equal(t, serrors.CodeConfiguration, serrors.Code(err))
	require.Contains(t, err.Error(), "duplicate mapping key")
}

func TestValidate_RejectsSharedLegacyTable(t *testing.T) {
	entries := []Entity{
		{Key: "ledgers", LegacySource: "tally_mst_ledger", Table: "vt_ledgers", NameField: "name", SearchFields: []string{"name"}},
		{Key: "groups", LegacySource: "tally_mst_ledger", Table: "vt_groups", NameField: "name", SearchFields: []string{"name"}},
	}
	err := Validate(entries)
	require.Error(t, err)
	require.Equal(t, serrors.CodeConfiguration, serrors.Code(err))
}

func TestValidate_RejectsUnknownDestinationTable(t *testing.T) {
	entries := []Entity{
		{Key: "ledgers", LegacySource: "tally_mst_ledger", Table: "vt_nonexistent", NameField: "name", SearchFields: []string{"name"}},
	}
	err := Validate(entries)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown normalized table")
}

func TestValidate_RejectsIncompleteEntries(t *testing.T) {
	base := Entity{Key: "ledgers", LegacySource: "tally_mst_ledger", Table: "vt_ledgers", NameField: "name", SearchFields: []string{"name"}}

	noKey := base
	noKey.Key = ""
	require.Error(t, Validate([]Entity{noKey}))

	noSource := base
	noSource.LegacySource = ""
	require.Error(t, Validate([]Entity{noSource}))

	noName := base
	noName.NameField = ""
	require.Error(t, Validate([]Entity{noName}))

	noSearch := base
	noSearch.SearchFields = nil
	require.Error(t, Validate([]Entity{noSearch}))
}

func TestSources_BackupComesFirst(t *testing.T) {
	e, ok := ByKey("ledgers")
	require.True(t, ok)
	require.Equal(t, []string{"bkp_tally_mst_ledger", "tally_mst_ledger"}, e.Sources())
}

func TestLookup_ResolvesActiveAndBackupAliases(t *testing.T) {
	active, ok := Lookup("tally_trn_voucher")
	require.True(t, ok)
	require.Equal(t, "vouchers", active.Key)

	backup, ok := Lookup("bkp_tally_trn_voucher")
	require.True(t, ok)
	require.Equal(t, "vouchers", backup.Key)

	_, ok = Lookup("tally_mst_unknown")
	require.False(t, ok)
}

func TestEntities_ReturnsACopy(t *testing.T) {
	first := Entities()
	first[0].Key = "mutated"
	require.NotEqual(t, "mutated", Entities()[0].Key)
}

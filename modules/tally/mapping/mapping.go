// Package mapping holds the static table mapping between the flat Tally
// export schema and the normalized VT schema. The mapping is configuration,
// not computed: it is validated exhaustively at startup and a bad entry
// halts sync before any I/O.
package mapping

import (
	"strings"

	"github.com/vtlabs/tallysync/pkg/serrors"
)

// Entity binds one legacy source table (and its timestamped backup alias)
// to a normalized VT table, plus the field knowledge the repository and
// sync mapper need.
type Entity struct {
	// Key identifies the entity in URLs and service registries.
	Key string
	// LegacySource is the active export table.
	LegacySource string
	// LegacyBackup is the backup alias written by an export run. Backups,
	// once present, are the authoritative snapshot: rows read from the
	// backup win over rows with the same guid in the active table.
	LegacyBackup string
	// Table is the normalized destination.
	Table string
	// NameField is the legacy field mapped to the name column.
	NameField string
	// AmountField, when set, is the legacy field mapped to the amount
	// column (vouchers, ledger entries).
	AmountField string
	// SearchFields are matched by the repository's free-text search.
	SearchFields []string
}

// Sources returns the legacy tables to read for this entity, backup first
// so that deduplication by guid prefers the backup row.
func (e Entity) Sources() []string {
	if e.LegacyBackup == "" {
		return []string{e.LegacySource}
	}
	return []string{e.LegacyBackup, e.LegacySource}
}

var entities = []Entity{
	{
		Key:          "companies",
		LegacySource: "tally_mst_company",
		LegacyBackup: "bkp_tally_mst_company",
		Table:        "vt_companies",
		NameField:    "name",
		SearchFields: []string{"name", "guid"},
	},
	{
		Key:          "groups",
		LegacySource: "tally_mst_group",
		LegacyBackup: "bkp_tally_mst_group",
		Table:        "vt_groups",
		NameField:    "name",
		SearchFields: []string{"name", "guid"},
	},
	{
		Key:          "ledgers",
		LegacySource: "tally_mst_ledger",
		LegacyBackup: "bkp_tally_mst_ledger",
		Table:        "vt_ledgers",
		NameField:    "name",
		AmountField:  "opening_balance",
		SearchFields: []string{"name", "guid"},
	},
	{
		Key:          "cost-categories",
		LegacySource: "tally_mst_cost_category",
		LegacyBackup: "bkp_tally_mst_cost_category",
		Table:        "vt_cost_categories",
		NameField:    "name",
		SearchFields: []string{"name", "guid"},
	},
	{
		Key:          "cost-centres",
		LegacySource: "tally_mst_cost_centre",
		LegacyBackup: "bkp_tally_mst_cost_centre",
		Table:        "vt_cost_centres",
		NameField:    "name",
		SearchFields: []string{"name", "guid"},
	},
	{
		Key:          "stock-groups",
		LegacySource: "tally_mst_stock_group",
		LegacyBackup: "bkp_tally_mst_stock_group",
		Table:        "vt_stock_groups",
		NameField:    "name",
		SearchFields: []string{"name", "guid"},
	},
	{
		Key:          "stock-items",
		LegacySource: "tally_mst_stock_item",
		LegacyBackup: "bkp_tally_mst_stock_item",
		Table:        "vt_stock_items",
		NameField:    "name",
		AmountField:  "opening_value",
		SearchFields: []string{"name", "guid"},
	},
	{
		Key:          "voucher-types",
		LegacySource: "tally_mst_voucher_type",
		LegacyBackup: "bkp_tally_mst_voucher_type",
		Table:        "vt_voucher_types",
		NameField:    "name",
		SearchFields: []string{"name", "guid"},
	},
	{
		Key:          "vouchers",
		LegacySource: "tally_trn_voucher",
		LegacyBackup: "bkp_tally_trn_voucher",
		Table:        "vt_vouchers",
		NameField:    "voucher_number",
		AmountField:  "amount",
		SearchFields: []string{"name", "guid"},
	},
	{
		Key:          "ledger-entries",
		LegacySource: "tally_trn_accounting",
		LegacyBackup: "bkp_tally_trn_accounting",
		Table:        "vt_ledger_entries",
		NameField:    "ledger",
		AmountField:  "amount",
		SearchFields: []string{"name", "guid"},
	},
}

// vtTables is the set of schema-known normalized tables. Validation rejects
// any mapping entry whose destination is not listed here.
var vtTables = map[string]struct{}{
	"vt_companies":       {},
	"vt_groups":          {},
	"vt_ledgers":         {},
	"vt_cost_categories": {},
	"vt_cost_centres":    {},
	"vt_stock_groups":    {},
	"vt_stock_items":     {},
	"vt_voucher_types":   {},
	"vt_vouchers":        {},
	"vt_ledger_entries":  {},
}

func Entities() []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)
	return out
}

func ByKey(key string) (Entity, bool) {
	for _, e := range entities {
		if e.Key == key {
			return e, true
		}
	}
	return Entity{}, false
}

// Lookup resolves a legacy table name, active or backup alias, to its
// entity. Multiple legacy sources may map to the same normalized table;
// the engine deduplicates by guid.
func Lookup(legacyTable string) (Entity, bool) {
	name := strings.TrimSpace(legacyTable)
	for _, e := range entities {
		if e.LegacySource == name || (e.LegacyBackup != "" && e.LegacyBackup == name) {
			return e, true
		}
	}
	return Entity{}, false
}

// Validate checks the mapping exhaustively. A failure is a fatal
// misconfiguration: the sync engine refuses to start rather than silently
// drop data.
func Validate(entries []Entity) error {
	seenKeys := make(map[string]struct{}, len(entries))
	seenSources := make(map[string]string, len(entries)*2)

	for _, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			return serrors.NewConfigurationError("mapping entry for table %q has no key", e.Table)
		}
		if _, dup := seenKeys[e.Key]; dup {
			return serrors.NewConfigurationError("duplicate mapping key %q", e.Key)
		}
		seenKeys[e.Key] = struct{}{}

		if strings.TrimSpace(e.LegacySource) == "" {
			return serrors.NewConfigurationError("mapping %q has no legacy source table", e.Key)
		}
		if strings.TrimSpace(e.Table) == "" {
			return serrors.NewConfigurationError("mapping %q has no normalized table", e.Key)
		}
		if _, known := vtTables[e.Table]; !known {
			return serrors.NewConfigurationError("mapping %q targets unknown normalized table %q", e.Key, e.Table)
		}
		if strings.TrimSpace(e.NameField) == "" {
			return serrors.NewConfigurationError("mapping %q has no name field", e.Key)
		}
		if len(e.SearchFields) == 0 {
			return serrors.NewConfigurationError("mapping %q has no search fields", e.Key)
		}

		for _, src := range e.Sources() {
			if owner, dup := seenSources[src]; dup {
				return serrors.NewConfigurationError("legacy table %q mapped by both %q and %q", src, owner, e.Key)
			}
			seenSources[src] = e.Key
		}
	}
	return nil
}

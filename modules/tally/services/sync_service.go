package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"golang.org/x/sync/singleflight"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/legacy"
	"github.com/vtlabs/tallysync/modules/tally/domain/entities/record"
	"github.com/vtlabs/tallysync/modules/tally/domain/entities/syncrun"
	"github.com/vtlabs/tallysync/modules/tally/domain/events"
	"github.com/vtlabs/tallysync/modules/tally/mapping"
	"github.com/vtlabs/tallysync/pkg/composables"
	"github.com/vtlabs/tallysync/pkg/eventbus"
	"github.com/vtlabs/tallysync/pkg/metrics"
	"github.com/vtlabs/tallysync/pkg/serrors"
)

// SyncConfig bounds one run's I/O. Values come from configuration and are
// validated there; the zero value is not usable.
type SyncConfig struct {
	BatchSize     int
	FetchTimeout  time.Duration
	UpsertTimeout time.Duration
}

// SyncService pulls flat Tally export rows into the normalized VT schema.
// Runs are serialized per tenant: concurrent requests for the same tenant
// join the in-flight run and share its result. Partial failures are
// tallied, never fatal.
type SyncService struct {
	source    legacy.Source
	stores    map[string]record.SyncStore
	publisher eventbus.EventBus
	status    *SyncStatusStore
	conf      SyncConfig
	log       *logrus.Logger

	group *singleflight.Group
}

// NewSyncService validates the table mapping before anything else; a bad
// mapping is a fatal misconfiguration and the service refuses to exist.
func NewSyncService(
	source legacy.Source,
	stores map[string]record.SyncStore,
	publisher eventbus.EventBus,
	status *SyncStatusStore,
	conf SyncConfig,
	log *logrus.Logger,
) (*SyncService, error) {
	if err := mapping.Validate(mapping.Entities()); err != nil {
		return nil, err
	}
	for _, e := range mapping.Entities() {
		if _, ok := stores[e.Key]; !ok {
			return nil, serrors.NewConfigurationError("no sync store registered for entity %q", e.Key)
		}
	}
	return &SyncService{
		source:    source,
		stores:    stores,
		publisher: publisher,
		status:    status,
		conf:      conf,
		log:       log,
		group:     &singleflight.Group{},
	}, nil
}

func (s *SyncService) Status(companyID, divisionID string) (SyncStatus, error) {
	tenant, err := composables.NewTenant(companyID, divisionID)
	if err != nil {
		return SyncStatus{}, err
	}
	return s.status.Status(tenant.Key()), nil
}

// SyncTenant runs a full pass over every mapped entity for one tenant.
// A second call for the same tenant while a run is in flight blocks and
// returns that run's result instead of starting another.
func (s *SyncService) SyncTenant(ctx context.Context, companyID, divisionID string) (*syncrun.Result, error) {
	tenant, err := composables.NewTenant(companyID, divisionID)
	if err != nil {
		return nil, err
	}

	key := tenant.Key()
	out, err, _ := s.group.Do(key, func() (interface{}, error) {
		s.status.Begin(key)

		// The run outlives the triggering request: joined callers may hang
		// up without aborting work the survivors are waiting on.
		runCtx := composables.WithTenant(context.WithoutCancel(ctx), tenant)
		if pool, perr := composables.UsePool(ctx); perr == nil {
			runCtx = composables.WithPool(runCtx, pool)
		}

		result := s.run(runCtx, tenant)
		s.status.Finish(key, result)
		s.publisher.Publish(events.SyncCompleted{Result: result})
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*syncrun.Result), nil
}

func (s *SyncService) run(ctx context.Context, tenant composables.Tenant) *syncrun.Result {
	result := &syncrun.Result{
		CompanyID:  tenant.CompanyID,
		DivisionID: tenant.DivisionID,
		StartedAt:  time.Now(),
	}
	log := s.log.WithFields(logrus.Fields{
		"company":  tenant.CompanyID,
		"division": tenant.DivisionID,
	})
	log.Info("sync run started")

	for _, entity := range mapping.Entities() {
		s.syncEntity(ctx, entity, result, log)
	}

	result.FinishedAt = time.Now()

	labels := []string{tenant.CompanyID, tenant.DivisionID}
	metrics.SyncRunsTotal.WithLabelValues(labels...).Inc()
	metrics.SyncRecordsProcessed.WithLabelValues(labels...).Add(float64(result.RecordsProcessed))
	metrics.SyncErrors.WithLabelValues(labels...).Add(float64(result.Errors))
	metrics.SyncRunDuration.WithLabelValues(labels...).Observe(result.Duration().Seconds())

	log.WithFields(logrus.Fields{
		"records_processed": result.RecordsProcessed,
		"errors":            result.Errors,
		"duration":          result.Duration().String(),
	}).Info("sync run finished")
	return result
}

// syncEntity reads the entity's sources backup first. Within one entity a
// guid is written at most once per run, so a backup row shadows the active
// row with the same guid.
func (s *SyncService) syncEntity(ctx context.Context, entity mapping.Entity, result *syncrun.Result, log *logrus.Entry) {
	store := s.stores[entity.Key]
	seen := make(map[string]struct{})

	for _, table := range entity.Sources() {
		if err := s.syncSource(ctx, entity, table, store, seen, result); err != nil {
			if errors.Is(err, legacy.ErrTableNotFound) {
				// Backup aliases only exist after an export run; nothing to do.
				continue
			}
			result.Errors++
			log.WithError(err).WithField("table", table).Warn("legacy source abandoned")
		}
	}
}

func (s *SyncService) syncSource(
	ctx context.Context,
	entity mapping.Entity,
	table string,
	store record.SyncStore,
	seen map[string]struct{},
	result *syncrun.Result,
) error {
	cursor := ""
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, s.conf.FetchTimeout)
		batch, err := s.source.FetchBatch(fetchCtx, table, cursor, s.conf.BatchSize)
		cancel()
		if err != nil {
			return err
		}

		for _, row := range batch.Rows {
			s.syncRow(ctx, entity, store, row, seen, result)
		}

		if batch.NextCursor == "" {
			return nil
		}
		cursor = batch.NextCursor
	}
}

func (s *SyncService) syncRow(
	ctx context.Context,
	entity mapping.Entity,
	store record.SyncStore,
	row legacy.Row,
	seen map[string]struct{},
	result *syncrun.Result,
) {
	guid := strings.TrimSpace(row.GUID)
	if guid == "" {
		result.Errors++
		return
	}
	if _, dup := seen[guid]; dup {
		return
	}
	seen[guid] = struct{}{}

	params, err := buildUpsertParams(entity, guid, row)
	if err != nil {
		result.Errors++
		return
	}

	upsertCtx, cancel := context.WithTimeout(ctx, s.conf.UpsertTimeout)
	outcome, err := store.Upsert(upsertCtx, params)
	cancel()
	if err != nil {
		result.Errors++
		return
	}

	switch outcome {
	case record.OutcomeInserted, record.OutcomeUpdated:
		result.RecordsProcessed++
	case record.OutcomeConflict:
		result.Errors++
	case record.OutcomeUnchanged:
		// Already at or past the candidate; repeated runs converge to zero.
	}
}

func buildUpsertParams(entity mapping.Entity, guid string, row legacy.Row) (record.UpsertParams, error) {
	name := strings.TrimSpace(cast.ToString(row.Fields[entity.NameField]))
	if name == "" {
		return record.UpsertParams{}, serrors.NewValidationError("row %q has no %s", guid, entity.NameField)
	}

	amount := decimal.Zero
	if entity.AmountField != "" {
		raw := strings.TrimSpace(cast.ToString(row.Fields[entity.AmountField]))
		if raw != "" {
			parsed, err := decimal.NewFromString(raw)
			if err != nil {
				return record.UpsertParams{}, serrors.NewValidationError("row %q has malformed %s: %v", guid, entity.AmountField, err)
			}
			amount = parsed
		}
	}

	return record.UpsertParams{
		GUID:            guid,
		Name:            name,
		AlterID:         row.AlterID,
		Amount:          amount,
		Data:            row.Fields,
		SourceUpdatedAt: row.UpdatedAt,
	}, nil
}

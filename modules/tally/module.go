package tally

import (
	"github.com/go-playground/validator/v10"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/record"
	"github.com/vtlabs/tallysync/modules/tally/infrastructure/persistence"
	"github.com/vtlabs/tallysync/modules/tally/mapping"
	"github.com/vtlabs/tallysync/modules/tally/presentation/controllers"
	"github.com/vtlabs/tallysync/modules/tally/services"
	"github.com/vtlabs/tallysync/pkg/application"
	"github.com/vtlabs/tallysync/pkg/configuration"
)

type Module struct{}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "tally"
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	v := validator.New(validator.WithRequiredStructEnabled())

	entityServices := make([]*services.EntityService, 0, len(mapping.Entities()))
	stores := make(map[string]record.SyncStore, len(mapping.Entities()))
	for _, entity := range mapping.Entities() {
		repository := persistence.NewRecordRepository(entity)
		stores[entity.Key] = repository
		entityServices = append(entityServices, services.NewEntityService(entity, repository, v))
	}

	statusStore := services.NewSyncStatusStore()
	syncService, err := services.NewSyncService(
		persistence.NewPgLegacySource(app.Pool()),
		stores,
		app.EventPublisher(),
		statusStore,
		services.SyncConfig{
			BatchSize:     conf.Sync.BatchSize,
			FetchTimeout:  conf.Sync.FetchTimeout,
			UpsertTimeout: conf.Sync.UpsertTimeout,
		},
		app.Logger(),
	)
	if err != nil {
		return err
	}

	app.RegisterService(services.NewEntityRegistry(entityServices...))
	app.RegisterService(statusStore)
	app.RegisterService(syncService)

	app.RegisterControllers(
		controllers.NewSyncController(app),
		controllers.NewRecordsController(app),
	)
	return nil
}

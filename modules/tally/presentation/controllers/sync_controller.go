package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/syncrun"
	"github.com/vtlabs/tallysync/modules/tally/services"
	"github.com/vtlabs/tallysync/pkg/application"
	"github.com/vtlabs/tallysync/pkg/composables"
	"github.com/vtlabs/tallysync/pkg/middleware"
)

type syncRunner interface {
	SyncTenant(ctx context.Context, companyID, divisionID string) (*syncrun.Result, error)
	Status(companyID, divisionID string) (services.SyncStatus, error)
}

type SyncController struct {
	app      application.Application
	runner   syncRunner
	basePath string
}

func NewSyncController(app application.Application) application.Controller {
	return &SyncController{
		app:      app,
		runner:   app.Service(services.SyncService{}).(*services.SyncService),
		basePath: "/tally/api/sync",
	}
}

func (c *SyncController) Key() string {
	return c.basePath
}

func (c *SyncController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.ProvideTenant())
	router.HandleFunc("", c.Sync).Methods(http.MethodPost)
	router.HandleFunc("/status", c.Status).Methods(http.MethodGet)
}

// Sync triggers a run for the request's tenant and blocks until it
// finishes. Concurrent requests for the same tenant share one run.
func (c *SyncController) Sync(w http.ResponseWriter, r *http.Request) {
	tenant, err := composables.UseTenant(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := c.runner.SyncTenant(r.Context(), tenant.CompanyID, tenant.DivisionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *SyncController) Status(w http.ResponseWriter, r *http.Request) {
	tenant, err := composables.UseTenant(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := c.runner.Status(tenant.CompanyID, tenant.DivisionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

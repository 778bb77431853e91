package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/record"
	"github.com/vtlabs/tallysync/modules/tally/services"
	"github.com/vtlabs/tallysync/pkg/application"
	"github.com/vtlabs/tallysync/pkg/configuration"
	"github.com/vtlabs/tallysync/pkg/middleware"
	"github.com/vtlabs/tallysync/pkg/repo"
	"github.com/vtlabs/tallysync/pkg/serrors"
)

// RecordsController exposes the normalized entities under one generic
// CRUD surface; the {entity} path segment picks the mapping entry.
type RecordsController struct {
	app      application.Application
	registry *services.EntityRegistry
	basePath string
}

func NewRecordsController(app application.Application) application.Controller {
	return &RecordsController{
		app:      app,
		registry: app.Service(services.EntityRegistry{}).(*services.EntityRegistry),
		basePath: "/tally/api/entities",
	}
}

func (c *RecordsController) Key() string {
	return c.basePath
}

func (c *RecordsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.ProvideTenant(), middleware.WithTransaction())
	router.HandleFunc("/{entity}", c.List).Methods(http.MethodGet)
	router.HandleFunc("/{entity}", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/{entity}/batch", c.BatchCreate).Methods(http.MethodPost)
	router.HandleFunc("/{entity}/stats", c.Stats).Methods(http.MethodGet)
	router.HandleFunc("/{entity}/name-available", c.NameAvailable).Methods(http.MethodGet)
	router.HandleFunc("/{entity}/by-guid/{guid}", c.GetByGUID).Methods(http.MethodGet)
	router.HandleFunc("/{entity}/by-name/{name}", c.GetByName).Methods(http.MethodGet)
	router.HandleFunc("/{entity}/{id}", c.GetByID).Methods(http.MethodGet)
	router.HandleFunc("/{entity}/{id}", c.Update).Methods(http.MethodPut)
	router.HandleFunc("/{entity}/{id}", c.Delete).Methods(http.MethodDelete)
}

func (c *RecordsController) service(r *http.Request) (*services.EntityService, error) {
	return c.registry.Get(mux.Vars(r)["entity"])
}

type recordResponse struct {
	ID              string         `json:"id"`
	GUID            string         `json:"guid"`
	Name            string         `json:"name"`
	AlterID         int64          `json:"alter_id"`
	Amount          string         `json:"amount"`
	Data            map[string]any `json:"data,omitempty"`
	SourceUpdatedAt string         `json:"source_updated_at"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
	LastSyncedAt    string         `json:"last_synced_at"`
	LocallyModified bool           `json:"locally_modified"`
}

func toResponse(rec record.Record) recordResponse {
	return recordResponse{
		ID:              rec.ID.String(),
		GUID:            rec.GUID,
		Name:            rec.Name,
		AlterID:         rec.AlterID,
		Amount:          rec.Amount.String(),
		Data:            rec.Data,
		SourceUpdatedAt: rec.SourceUpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		CreatedAt:       rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       rec.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		LastSyncedAt:    rec.LastSyncedAt.Format("2006-01-02T15:04:05Z07:00"),
		LocallyModified: rec.LocallyModified(),
	}
}

func toResponses(recs []record.Record) []recordResponse {
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toResponse(rec))
	}
	return out
}

type listResponse struct {
	Items  []recordResponse `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func (c *RecordsController) List(w http.ResponseWriter, r *http.Request) {
	svc, err := c.service(r)
	if err != nil {
		writeError(w, err)
		return
	}
	params, err := findParamsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	items, total, err := svc.GetPaginated(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Items:  toResponses(items),
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
}

func findParamsFromQuery(r *http.Request) (*record.FindParams, error) {
	conf := configuration.Use()
	q := r.URL.Query()

	limit := conf.PageSize
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, serrors.NewValidationError("invalid limit %q", raw)
		}
		limit = parsed
	}
	if limit > conf.MaxPageSize {
		limit = conf.MaxPageSize
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return nil, serrors.NewValidationError("invalid offset %q", raw)
		}
		offset = parsed
	}

	params := &record.FindParams{
		Limit:  limit,
		Offset: offset,
		Q:      strings.TrimSpace(q.Get("q")),
	}
	if field := strings.TrimSpace(q.Get("sort_by")); field != "" {
		params.SortBy = repo.SortBy{Field: field, Ascending: q.Get("order") != "desc"}
	}
	return params, nil
}

func (c *RecordsController) Stats(w http.ResponseWriter, r *http.Request) {
	svc, err := c.service(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (c *RecordsController) NameAvailable(w http.ResponseWriter, r *http.Request) {
	svc, err := c.service(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, serrors.NewValidationError("name query parameter is required"))
		return
	}
	excludeID := uuid.Nil
	if raw := r.URL.Query().Get("exclude_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, serrors.NewValidationError("invalid exclude_id %q", raw))
			return
		}
		excludeID = parsed
	}
	available, err := svc.NameAvailable(r.Context(), name, excludeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (c *RecordsController) GetByID(w http.ResponseWriter, r *http.Request) {
	svc, err := c.service(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, serrors.NewValidationError("invalid record id"))
		return
	}
	rec, err := svc.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (c *RecordsController) GetByGUID(w http.ResponseWriter, r *http.Request) {
	svc, err := c.service(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := svc.GetByGUID(r.Context(), mux.Vars(r)["guid"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (c *RecordsController) GetByName(w http.ResponseWriter, r *http.Request) {
	svc, err := c.service(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := svc.GetByName(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (c *RecordsController) Create(w http.ResponseWriter, r *http.Request) {
	svc, err := c.service(r)
	if err != nil {
		writeError(w, err)
		return
	}
	dto := &record.CreateDTO{}
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		writeError(w, serrors.NewValidationError("malformed request body: %v", err))
		return
	}
	rec, err := svc.Create(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(rec))
}

func (c *RecordsController) BatchCreate(w http.ResponseWriter, r *http.Request) {
	svc, err := c.service(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var dtos []*record.CreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
		writeError(w, serrors.NewValidationError("malformed request body: %v", err))
		return
	}
	if len(dtos) == 0 {
		writeError(w, serrors.NewValidationError("batch is empty"))
		return
	}
	recs, err := svc.BatchCreate(r.Context(), dtos)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponses(recs))
}

func (c *RecordsController) Update(w http.ResponseWriter, r *http.Request) {
	svc, err := c.service(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, serrors.NewValidationError("invalid record id"))
		return
	}
	dto := &record.UpdateDTO{}
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		writeError(w, serrors.NewValidationError("malformed request body: %v", err))
		return
	}
	rec, err := svc.Update(r.Context(), id, dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (c *RecordsController) Delete(w http.ResponseWriter, r *http.Request) {
	svc, err := c.service(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, serrors.NewValidationError("invalid record id"))
		return
	}
	if err := svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

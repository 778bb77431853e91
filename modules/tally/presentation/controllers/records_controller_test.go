package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/record"
	"github.com/vtlabs/tallysync/modules/tally/mapping"
	"github.com/vtlabs/tallysync/modules/tally/services"
	"github.com/vtlabs/tallysync/pkg/composables"
)

// cannedRepo returns fixed data; write paths report what they were given.
type cannedRepo struct {
	recs    []record.Record
	created []record.Record
	err     error
}

var _ record.Repository = (*cannedRepo)(nil)

func (c *cannedRepo) GetPaginated(ctx context.Context, params *record.FindParams) ([]record.Record, int64, error) {
	if c.err != nil {
		return nil, 0, c.err
	}
	return c.recs, int64(len(c.recs)), nil
}

func (c *cannedRepo) Count(ctx context.Context, params *record.FindParams) (int64, error) {
	return int64(len(c.recs)), c.err
}

func (c *cannedRepo) GetByID(ctx context.Context, id uuid.UUID) (record.Record, error) {
	if c.err != nil {
		return record.Record{}, c.err
	}
	for _, rec := range c.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return record.Record{}, record.ErrNotFound
}

func (c *cannedRepo) GetByGUID(ctx context.Context, guid string) (record.Record, error) {
	if c.err != nil {
		return record.Record{}, c.err
	}
	for _, rec := range c.recs {
		if rec.GUID == guid {
			return rec, nil
		}
	}
	return record.Record{}, record.ErrNotFound
}

func (c *cannedRepo) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	if c.err != nil {
		return record.Record{}, c.err
	}
	rec.ID = uuid.New()
	c.created = append(c.created, rec)
	return rec, nil
}

func (c *cannedRepo) Update(ctx context.Context, id uuid.UUID, rec record.Record) (record.Record, error) {
	if c.err != nil {
		return record.Record{}, c.err
	}
	rec.ID = id
	return rec, nil
}

func (c *cannedRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return c.err
}

func (c *cannedRepo) BatchCreate(ctx context.Context, recs []record.Record) ([]record.Record, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.created = append(c.created, recs...)
	return recs, nil
}

func recordsController(t *testing.T, repo *cannedRepo) *RecordsController {
	t.Helper()
	entity, ok := mapping.ByKey("ledgers")
	require.True(t, ok)
	registry := services.NewEntityRegistry(
		services.NewEntityService(entity, repo, validator.New(validator.WithRequiredStructEnabled())),
	)
	return &RecordsController{registry: registry, basePath: "/tally/api/entities"}
}

func entityRequest(t *testing.T, method, target string, body string, vars map[string]string) *http.Request {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	tenant, err := composables.NewTenant("acme", "main")
	require.NoError(t, err)
	req = req.WithContext(composables.WithTenant(req.Context(), tenant))
	return mux.SetURLVars(req, vars)
}

func TestRecordsList_ReturnsItemsAndTotal(t *testing.T) {
	repo := &cannedRepo{recs: []record.Record{
		{ID: uuid.New(), GUID: "g-1", Name: "Cash", Amount: decimal.RequireFromString("10.50")},
		{ID: uuid.New(), GUID: "g-2", Name: "Bank"},
	}}
	c := recordsController(t, repo)

	rec := httptest.NewRecorder()
	c.List(rec, entityRequest(t, http.MethodGet, "/tally/api/entities/ledgers", "", map[string]string{"entity": "ledgers"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	require.Equal(t, int64(2), body.Total)
	require.Equal(t, "10.5", body.Items[0].Amount)
}

func TestRecordsList_UnknownEntityIs404(t *testing.T) {
	c := recordsController(t, &cannedRepo{})

	rec := httptest.NewRecorder()
	c.List(rec, entityRequest(t, http.MethodGet, "/tally/api/entities/widgets", "", map[string]string{"entity": "widgets"}))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestRecordsList_RejectsBadPagination(t *testing.T) {
	c := recordsController(t, &cannedRepo{})

	rec := httptest.NewRecorder()
	c.List(rec, entityRequest(t, http.MethodGet, "/tally/api/entities/ledgers?limit=zero", "", map[string]string{"entity": "ledgers"}))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRecordsGetByID_MapsNotFound(t *testing.T) {
	c := recordsController(t, &cannedRepo{})

	rec := httptest.NewRecorder()
	c.GetByID(rec, entityRequest(t, http.MethodGet, "/tally/api/entities/ledgers/"+uuid.NewString(), "", map[string]string{
		"entity": "ledgers",
		"id":     uuid.NewString(),
	}))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	c.GetByID(rec, entityRequest(t, http.MethodGet, "/tally/api/entities/ledgers/nope", "", map[string]string{
		"entity": "ledgers",
		"id":     "nope",
	}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRecordsCreate_WritesAndReturns201(t *testing.T) {
	repo := &cannedRepo{}
	c := recordsController(t, repo)

	rec := httptest.NewRecorder()
	c.Create(rec, entityRequest(t, http.MethodPost, "/tally/api/entities/ledgers",
		`{"guid":"g-9","name":"Cash","amount":"55.25"}`,
		map[string]string{"entity": "ledgers"}))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.created, 1)
	require.Equal(t, "g-9", repo.created[0].GUID)
}

func TestRecordsCreate_MapsConstraintViolationsTo409(t *testing.T) {
	c := recordsController(t, &cannedRepo{err: record.ErrGUIDTaken})

	rec := httptest.NewRecorder()
	c.Create(rec, entityRequest(t, http.MethodPost, "/tally/api/entities/ledgers",
		`{"guid":"g-9","name":"Cash"}`,
		map[string]string{"entity": "ledgers"}))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "CONSTRAINT_VIOLATION")
}

func TestRecordsCreate_RejectsMalformedBody(t *testing.T) {
	c := recordsController(t, &cannedRepo{})

	rec := httptest.NewRecorder()
	c.Create(rec, entityRequest(t, http.MethodPost, "/tally/api/entities/ledgers",
		`{"name":`, map[string]string{"entity": "ledgers"}))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRecordsNameAvailable(t *testing.T) {
	repo := &cannedRepo{recs: []record.Record{{ID: uuid.New(), Name: "Cash"}}}
	c := recordsController(t, repo)

	rec := httptest.NewRecorder()
	c.NameAvailable(rec, entityRequest(t, http.MethodGet, "/tally/api/entities/ledgers/name-available?name=Cash", "", map[string]string{"entity": "ledgers"}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"available": false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	c.NameAvailable(rec, entityRequest(t, http.MethodGet, "/tally/api/entities/ledgers/name-available", "", map[string]string{"entity": "ledgers"}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRecordsDelete_Returns204(t *testing.T) {
	c := recordsController(t, &cannedRepo{})

	rec := httptest.NewRecorder()
	c.Delete(rec, entityRequest(t, http.MethodDelete, "/tally/api/entities/ledgers/"+uuid.NewString(), "", map[string]string{
		"entity": "ledgers",
		"id":     uuid.NewString(),
	}))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

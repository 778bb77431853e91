package services

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/record"
	"github.com/vtlabs/tallysync/modules/tally/mapping"
	"github.com/vtlabs/tallysync/pkg/repo"
	"github.com/vtlabs/tallysync/pkg/serrors"
)

// Stats is the per-entity tenant summary.
type Stats struct {
	Total             int64 `json:"total"`
	UpdatedLast30Days int64 `json:"updated_last_30_days"`
}

// EntityService is the application-facing access to one normalized entity.
// All reads and writes are tenant-scoped through the context.
type EntityService struct {
	entity    mapping.Entity
	repo      record.Repository
	validator *validator.Validate
}

func NewEntityService(entity mapping.Entity, repository record.Repository, v *validator.Validate) *EntityService {
	return &EntityService{entity: entity, repo: repository, validator: v}
}

func (s *EntityService) Entity() mapping.Entity {
	return s.entity
}

func (s *EntityService) GetPaginated(ctx context.Context, params *record.FindParams) ([]record.Record, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

func (s *EntityService) Count(ctx context.Context, params *record.FindParams) (int64, error) {
	return s.repo.Count(ctx, params)
}

func (s *EntityService) GetByID(ctx context.Context, id uuid.UUID) (record.Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *EntityService) GetByGUID(ctx context.Context, guid string) (record.Record, error) {
	return s.repo.GetByGUID(ctx, guid)
}

// GetByName returns the first record matching name exactly within the
// tenant. Names are not unique; callers wanting uniqueness use
// NameAvailable before writing.
func (s *EntityService) GetByName(ctx context.Context, name string) (record.Record, error) {
	matches, _, err := s.repo.GetPaginated(ctx, &record.FindParams{
		Limit:   1,
		Filters: []record.Filter{{Field: "name", Op: repo.OpEq, Value: name}},
		SortBy:  repo.SortBy{Field: "created_at", Ascending: true},
	})
	if err != nil {
		return record.Record{}, err
	}
	if len(matches) == 0 {
		return record.Record{}, record.ErrNotFound
	}
	return matches[0], nil
}

// NameAvailable reports whether no other record of this entity uses the
// name within the tenant. excludeID skips the record being renamed.
func (s *EntityService) NameAvailable(ctx context.Context, name string, excludeID uuid.UUID) (bool, error) {
	matches, _, err := s.repo.GetPaginated(ctx, &record.FindParams{
		Limit:   2,
		Filters: []record.Filter{{Field: "name", Op: repo.OpEq, Value: name}},
	})
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		if m.ID != excludeID {
			return false, nil
		}
	}
	return true, nil
}

func (s *EntityService) Stats(ctx context.Context) (Stats, error) {
	total, err := s.repo.Count(ctx, nil)
	if err != nil {
		return Stats{}, err
	}
	recent, err := s.repo.Count(ctx, &record.FindParams{
		Filters: []record.Filter{{
			Field: "updated_at",
			Op:    repo.OpGte,
			Value: time.Now().AddDate(0, 0, -30),
		}},
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{Total: total, UpdatedLast30Days: recent}, nil
}

func (s *EntityService) Create(ctx context.Context, dto *record.CreateDTO) (record.Record, error) {
	if err := dto.Ok(s.validator); err != nil {
		return record.Record{}, serrors.NewValidationError("invalid %s payload: %v", s.entity.Key, err)
	}
	rec, err := dtoToRecord(dto)
	if err != nil {
		return record.Record{}, err
	}
	return s.repo.Create(ctx, rec)
}

func (s *EntityService) Update(ctx context.Context, id uuid.UUID, dto *record.UpdateDTO) (record.Record, error) {
	if err := dto.Ok(s.validator); err != nil {
		return record.Record{}, serrors.NewValidationError("invalid %s payload: %v", s.entity.Key, err)
	}
	amount, err := dto.DecimalAmount()
	if err != nil {
		return record.Record{}, serrors.NewValidationError("invalid %s amount: %v", s.entity.Key, err)
	}
	return s.repo.Update(ctx, id, record.Record{
		Name:   dto.Name,
		Amount: amount,
		Data:   dto.Data,
	})
}

func (s *EntityService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// BatchCreate validates every payload up front, then writes the batch in
// one transaction. One bad row rejects the whole batch.
func (s *EntityService) BatchCreate(ctx context.Context, dtos []*record.CreateDTO) ([]record.Record, error) {
	recs := make([]record.Record, 0, len(dtos))
	for i, dto := range dtos {
		if err := dto.Ok(s.validator); err != nil {
			return nil, serrors.NewValidationError("invalid %s payload at index %d: %v", s.entity.Key, i, err)
		}
		rec, err := dtoToRecord(dto)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return s.repo.BatchCreate(ctx, recs)
}

func dtoToRecord(dto *record.CreateDTO) (record.Record, error) {
	amount, err := dto.DecimalAmount()
	if err != nil {
		return record.Record{}, serrors.NewValidationError("invalid amount: %v", err)
	}
	guid := dto.GUID
	if guid == "" {
		guid = uuid.NewString()
	}
	return record.Record{
		GUID:   guid,
		Name:   dto.Name,
		Amount: amount,
		Data:   dto.Data,
	}, nil
}

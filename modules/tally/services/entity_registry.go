package services

import (
	"github.com/vtlabs/tallysync/pkg/serrors"
)

// EntityRegistry resolves the EntityService for a mapped entity key.
type EntityRegistry struct {
	byKey map[string]*EntityService
}

func NewEntityRegistry(entries ...*EntityService) *EntityRegistry {
	byKey := make(map[string]*EntityService, len(entries))
	for _, svc := range entries {
		byKey[svc.Entity().Key] = svc
	}
	return &EntityRegistry{byKey: byKey}
}

func (r *EntityRegistry) Get(key string) (*EntityService, error) {
	svc, ok := r.byKey[key]
	if !ok {
		return nil, serrors.NewError(serrors.CodeNotFound, "unknown entity "+key)
	}
	return svc, nil
}

func (r *EntityRegistry) Keys() []string {
	keys := make([]string, 0, len(r.byKey))
	for key := range r.byKey {
		keys = append(keys, key)
	}
	return keys
}

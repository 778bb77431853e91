package services

import (
	"sync"

	"github.com/vtlabs/tallysync/modules/tally/domain/entities/syncrun"
)

// SyncStatus is what the status endpoint reports for one tenant.
type SyncStatus struct {
	InFlight bool            `json:"in_flight"`
	Last     *syncrun.Result `json:"last,omitempty"`
}

// SyncStatusStore keeps per-tenant run state. It is the only place run
// state lives; nothing here is global to the process beyond this struct.
type SyncStatusStore struct {
	mu       sync.RWMutex
	inFlight map[string]struct{}
	last     map[string]*syncrun.Result
}

func NewSyncStatusStore() *SyncStatusStore {
	return &SyncStatusStore{
		inFlight: make(map[string]struct{}),
		last:     make(map[string]*syncrun.Result),
	}
}

func (s *SyncStatusStore) Begin(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight[key] = struct{}{}
}

func (s *SyncStatusStore) Finish(key string, result *syncrun.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
	if result != nil {
		s.last[key] = result
	}
}

func (s *SyncStatusStore) Status(key string) SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, running := s.inFlight[key]
	return SyncStatus{InFlight: running, Last: s.last[key]}
}

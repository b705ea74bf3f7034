// Package memjobs is the in-memory fallback job store used when Redis
// is unreachable. Contents are lost on restart, an accepted trade-off
// for keeping job creation available.
package memjobs

import (
	"fmt"
	"sync"

	"github.com/truescore/truescore/internal/domain"
)

// Store keeps jobs in a mutex-guarded map.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

func New() *Store {
	return &Store{jobs: make(map[string]domain.Job)}
}

func (s *Store) Create(_ domain.Context, j domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("op=job.mem_create id=%s: %w", j.ID, domain.ErrConflict)
	}
	s.jobs[j.ID] = j
	return nil
}

func (s *Store) Update(_ domain.Context, j domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return fmt.Errorf("op=job.mem_update id=%s: %w", j.ID, domain.ErrNotFound)
	}
	s.jobs[j.ID] = j
	return nil
}

func (s *Store) Get(_ domain.Context, id string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("op=job.mem_get id=%s: %w", id, domain.ErrNotFound)
	}
	return j, nil
}

// Ping always succeeds; the in-memory store cannot be unavailable.
func (s *Store) Ping(_ domain.Context) error { return nil }

// Len reports the number of stored jobs, for readiness reporting.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

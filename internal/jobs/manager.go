// Package jobs coordinates the deep-research job state machine over a
// primary persistent store with an in-memory fallback.
package jobs

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/truescore/truescore/internal/domain"
)

// Manager owns job lifecycle transitions. The store is chosen per job
// at creation time and pinned: a job created in the fallback never
// migrates back to the primary.
type Manager struct {
	Primary  domain.JobStore
	Fallback domain.JobStore

	mu       sync.RWMutex
	affinity map[string]domain.JobStore
}

// NewManager constructs a Manager. Primary may be nil, in which case
// every job lives in the fallback store.
func NewManager(primary, fallback domain.JobStore) *Manager {
	return &Manager{
		Primary:  primary,
		Fallback: fallback,
		affinity: make(map[string]domain.JobStore),
	}
}

// Create persists a new pending job and returns it. Store selection
// probes the primary once; an unreachable primary falls through to the
// in-memory store without failing the call.
func (m *Manager) Create(ctx domain.Context) (domain.Job, error) {
	j := domain.Job{
		ID:        uuid.New().String(),
		Status:    domain.JobPending,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
	store := m.pickStore(ctx)
	if err := store.Create(ctx, j); err != nil {
		if store != m.Fallback {
			slog.Warn("primary job store rejected create, using fallback", slog.String("job_id", j.ID), slog.Any("error", err))
			store = m.Fallback
			if err := store.Create(ctx, j); err != nil {
				return domain.Job{}, fmt.Errorf("op=jobs.create: %w", err)
			}
		} else {
			return domain.Job{}, fmt.Errorf("op=jobs.create: %w", err)
		}
	}
	m.pin(j.ID, store)
	return j, nil
}

// CreateCompleted fabricates an already-terminal job so polling clients
// handle cached results the same way as fresh ones.
func (m *Manager) CreateCompleted(ctx domain.Context, result []byte) (domain.Job, error) {
	now := time.Now().UTC()
	j := domain.Job{
		ID:          uuid.New().String(),
		Status:      domain.JobCompleted,
		Progress:    100,
		CurrentStep: "Complete",
		Result:      result,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	store := m.pickStore(ctx)
	if err := store.Create(ctx, j); err != nil {
		if store == m.Fallback {
			return domain.Job{}, fmt.Errorf("op=jobs.create_completed: %w", err)
		}
		store = m.Fallback
		if err := store.Create(ctx, j); err != nil {
			return domain.Job{}, fmt.Errorf("op=jobs.create_completed: %w", err)
		}
	}
	m.pin(j.ID, store)
	return j, nil
}

// Get returns a job by id, consulting the pinned store first and then
// both backends for jobs created by a previous process.
func (m *Manager) Get(ctx domain.Context, id string) (domain.Job, error) {
	if store := m.pinned(id); store != nil {
		return store.Get(ctx, id)
	}
	if m.Primary != nil {
		if j, err := m.Primary.Get(ctx, id); err == nil {
			return j, nil
		}
	}
	return m.Fallback.Get(ctx, id)
}

// UpdateProgress advances a processing job. Calls against terminal jobs
// are no-ops, and progress never moves backwards.
func (m *Manager) UpdateProgress(ctx domain.Context, id string, progress int, step string) error {
	store, j, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return nil
	}
	if progress < j.Progress {
		progress = j.Progress
	}
	j.Status = domain.JobProcessing
	j.Progress = progress
	j.CurrentStep = step
	if err := store.Update(ctx, j); err != nil {
		return fmt.Errorf("op=jobs.update_progress: %w", err)
	}
	return nil
}

// Complete writes the terminal completed state with its result payload.
// A second terminal write is a no-op.
func (m *Manager) Complete(ctx domain.Context, id string, result []byte) error {
	store, j, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return nil
	}
	now := time.Now().UTC()
	j.Status = domain.JobCompleted
	j.Progress = 100
	j.CurrentStep = "Complete"
	j.Result = result
	j.Error = ""
	j.CompletedAt = &now
	if err := store.Update(ctx, j); err != nil {
		return fmt.Errorf("op=jobs.complete: %w", err)
	}
	return nil
}

// Fail writes the terminal failed state with the error message.
func (m *Manager) Fail(ctx domain.Context, id string, cause error) error {
	store, j, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return nil
	}
	now := time.Now().UTC()
	j.Status = domain.JobFailed
	j.Error = cause.Error()
	j.CompletedAt = &now
	if err := store.Update(ctx, j); err != nil {
		return fmt.Errorf("op=jobs.fail: %w", err)
	}
	return nil
}

func (m *Manager) load(ctx domain.Context, id string) (domain.JobStore, domain.Job, error) {
	store := m.pinned(id)
	if store == nil {
		store = m.Fallback
		if m.Primary != nil {
			if _, err := m.Primary.Get(ctx, id); err == nil {
				store = m.Primary
			}
		}
	}
	j, err := store.Get(ctx, id)
	if err != nil {
		return nil, domain.Job{}, err
	}
	return store, j, nil
}

func (m *Manager) pickStore(ctx domain.Context) domain.JobStore {
	if m.Primary != nil && m.Primary.Ping(ctx) == nil {
		return m.Primary
	}
	return m.Fallback
}

func (m *Manager) pin(id string, store domain.JobStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.affinity[id] = store
}

func (m *Manager) pinned(id string) domain.JobStore {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.affinity[id]
}

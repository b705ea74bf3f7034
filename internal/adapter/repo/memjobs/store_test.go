package memjobs

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truescore/truescore/internal/domain"
)

func TestCreateGetUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.Job{ID: "j1", Status: domain.JobPending}))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, got.Status)

	require.NoError(t, s.Update(ctx, domain.Job{ID: "j1", Status: domain.JobProcessing, Progress: 30}))
	got, err = s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.Progress)
}

func TestCreateDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.Job{ID: "j1"}))
	assert.ErrorIs(t, s.Create(ctx, domain.Job{ID: "j1"}), domain.ErrConflict)
}

func TestUpdateUnknown(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Update(context.Background(), domain.Job{ID: "ghost"}), domain.ErrNotFound)
}

func TestGetUnknown(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentWriters(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("j%d", n)
			_ = s.Create(ctx, domain.Job{ID: id, Status: domain.JobPending})
			_ = s.Update(ctx, domain.Job{ID: id, Status: domain.JobProcessing})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

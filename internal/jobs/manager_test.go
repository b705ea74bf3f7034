package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truescore/truescore/internal/adapter/repo/memjobs"
	"github.com/truescore/truescore/internal/domain"
)

// downStore fails every call, standing in for an unreachable Redis.
type downStore struct{}

var errDown = errors.New("connection refused")

func (downStore) Create(domain.Context, domain.Job) error      { return errDown }
func (downStore) Update(domain.Context, domain.Job) error      { return errDown }
func (downStore) Get(domain.Context, string) (domain.Job, error) {
	return domain.Job{}, errDown
}
func (downStore) Ping(domain.Context) error { return errDown }

func TestCreateStartsPending(t *testing.T) {
	m := NewManager(nil, memjobs.New())
	ctx := context.Background()

	j, err := m.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, j.Status)
	assert.Equal(t, 0, j.Progress)
	assert.NotEmpty(t, j.ID)
	assert.Nil(t, j.CompletedAt)
}

func TestLifecycle(t *testing.T) {
	m := NewManager(nil, memjobs.New())
	ctx := context.Background()

	j, err := m.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, m.UpdateProgress(ctx, j.ID, 30, "Analyzing ingredients"))
	got, err := m.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobProcessing, got.Status)
	assert.Equal(t, 30, got.Progress)
	assert.Equal(t, "Analyzing ingredients", got.CurrentStep)

	require.NoError(t, m.Complete(ctx, j.ID, []byte(`{"ok":true}`)))
	got, err = m.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.NotNil(t, got.CompletedAt)
	assert.JSONEq(t, `{"ok":true}`, string(got.Result))
}

func TestTerminalIsWriteOnce(t *testing.T) {
	m := NewManager(nil, memjobs.New())
	ctx := context.Background()

	j, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Complete(ctx, j.ID, []byte(`{"n":1}`)))

	// Late worker writes after completion change nothing.
	require.NoError(t, m.UpdateProgress(ctx, j.ID, 110, "late step"))
	require.NoError(t, m.Fail(ctx, j.ID, errors.New("late failure")))

	got, err := m.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Empty(t, got.Error)
	assert.JSONEq(t, `{"n":1}`, string(got.Result))
}

func TestProgressMonotonic(t *testing.T) {
	m := NewManager(nil, memjobs.New())
	ctx := context.Background()

	j, err := m.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, m.UpdateProgress(ctx, j.ID, 50, "halfway"))
	require.NoError(t, m.UpdateProgress(ctx, j.ID, 20, "stale update"))

	got, err := m.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)
}

func TestFail(t *testing.T) {
	m := NewManager(nil, memjobs.New())
	ctx := context.Background()

	j, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Fail(ctx, j.ID, errors.New("model unavailable")))

	got, err := m.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, got.Status)
	assert.Equal(t, "model unavailable", got.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestGetUnknown(t *testing.T) {
	m := NewManager(nil, memjobs.New())

	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFallbackWhenPrimaryDown(t *testing.T) {
	m := NewManager(downStore{}, memjobs.New())
	ctx := context.Background()

	j, err := m.Create(ctx)
	require.NoError(t, err)

	got, err := m.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, got.Status)
}

func TestBackendAffinity(t *testing.T) {
	primary := memjobs.New()
	fallback := memjobs.New()
	m := NewManager(primary, fallback)
	ctx := context.Background()

	j, err := m.Create(ctx)
	require.NoError(t, err)

	// The job lives only in the primary; the fallback never sees it.
	_, err = primary.Get(ctx, j.ID)
	assert.NoError(t, err)
	_, err = fallback.Get(ctx, j.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateCompleted(t *testing.T) {
	m := NewManager(nil, memjobs.New())
	ctx := context.Background()

	j, err := m.CreateCompleted(ctx, []byte(`{"cached":true}`))
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, j.Status)
	assert.Equal(t, 100, j.Progress)
	assert.NotNil(t, j.CompletedAt)

	got, err := m.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cached":true}`, string(got.Result))
}

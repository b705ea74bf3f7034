package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/truescore/truescore/internal/domain"
)

// JobRepo persists deep-research jobs in PostgreSQL. Updates overwrite
// the whole record; the manager enforces state-machine rules before
// calling in.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// Create inserts a new job record.
func (r *JobRepo) Create(ctx domain.Context, j domain.Job) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "jobs"))

	q := `INSERT INTO jobs (id, status, progress, current_step, result, error, created_at, completed_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.Pool.Exec(ctx, q, j.ID, j.Status, j.Progress, j.CurrentStep, []byte(j.Result), j.Error, j.CreatedAt, j.CompletedAt)
	if err != nil {
		return fmt.Errorf("op=job.create: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a job.
func (r *JobRepo) Update(ctx domain.Context, j domain.Job) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Update")
	defer span.End()

	q := `UPDATE jobs SET status=$2, progress=$3, current_step=$4, result=$5, error=$6, completed_at=$7 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, j.ID, j.Status, j.Progress, j.CurrentStep, []byte(j.Result), j.Error, j.CompletedAt)
	if err != nil {
		return fmt.Errorf("op=job.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.update: %w", domain.ErrNotFound)
	}
	return nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()

	q := `SELECT id, status, progress, current_step, COALESCE(result,'null'), COALESCE(error,''), created_at, completed_at FROM jobs WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var j domain.Job
	var result []byte
	if err := row.Scan(&j.ID, &j.Status, &j.Progress, &j.CurrentStep, &result, &j.Error, &j.CreatedAt, &j.CompletedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Job{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=job.get: %w", err)
	}
	if string(result) != "null" {
		j.Result = result
	}
	return j, nil
}

// Ping reports whether the backing database is reachable.
func (r *JobRepo) Ping(ctx domain.Context) error {
	if err := r.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("op=job.ping: %w", err)
	}
	return nil
}

// PruneCompleted deletes terminal jobs older than the retention window.
func (r *JobRepo) PruneCompleted(ctx domain.Context, olderThan time.Duration) (int64, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.PruneCompleted")
	defer span.End()

	q := `DELETE FROM jobs WHERE status IN ('completed','failed') AND created_at < $1`
	tag, err := r.Pool.Exec(ctx, q, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("op=job.prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

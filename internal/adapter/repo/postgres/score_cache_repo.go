package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/truescore/truescore/internal/domain"
)

// ScoreCacheRepo stores scoring reports keyed by normalized product key.
// Rows older than the freshness window read as misses; they are kept in
// place and overwritten by the next Put.
type ScoreCacheRepo struct {
	Pool      PgxPool
	Freshness time.Duration
}

// NewScoreCacheRepo constructs a ScoreCacheRepo with the given pool and
// freshness window.
func NewScoreCacheRepo(p PgxPool, freshness time.Duration) *ScoreCacheRepo {
	return &ScoreCacheRepo{Pool: p, Freshness: freshness}
}

// Get loads a cached score. Stale and absent rows both return ErrNotFound.
func (r *ScoreCacheRepo) Get(ctx domain.Context, key string) (domain.CachedScore, error) {
	tracer := otel.Tracer("repo.score_cache")
	ctx, span := tracer.Start(ctx, "score_cache.Get")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "scoring_cache"))

	q := `SELECT cache_key, product_name, brand, data, updated_at FROM scoring_cache WHERE cache_key=$1`
	row := r.Pool.QueryRow(ctx, q, key)
	var entry domain.CachedScore
	var data []byte
	if err := row.Scan(&entry.Key, &entry.ProductName, &entry.Brand, &data, &entry.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.CachedScore{}, fmt.Errorf("op=score_cache.get: %w", domain.ErrNotFound)
		}
		return domain.CachedScore{}, fmt.Errorf("op=score_cache.get: %w", err)
	}
	if time.Since(entry.UpdatedAt) > r.Freshness {
		return domain.CachedScore{}, fmt.Errorf("op=score_cache.get stale: %w", domain.ErrNotFound)
	}
	if err := json.Unmarshal(data, &entry.Result); err != nil {
		return domain.CachedScore{}, fmt.Errorf("op=score_cache.get decode: %w", err)
	}
	return entry, nil
}

// Put upserts a cached score; the last writer for a key wins.
func (r *ScoreCacheRepo) Put(ctx domain.Context, entry domain.CachedScore) error {
	tracer := otel.Tracer("repo.score_cache")
	ctx, span := tracer.Start(ctx, "score_cache.Put")
	defer span.End()

	data, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("op=score_cache.put encode: %w", err)
	}
	q := `INSERT INTO scoring_cache (cache_key, product_name, brand, data, updated_at)
	      VALUES ($1,$2,$3,$4,$5)
	      ON CONFLICT (cache_key) DO UPDATE SET product_name=$2, brand=$3, data=$4, updated_at=$5`
	if _, err := r.Pool.Exec(ctx, q, entry.Key, entry.ProductName, entry.Brand, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=score_cache.put: %w", err)
	}
	return nil
}

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

// ResearchCacheRepo stores deep-research reports. Entries never expire;
// a rendered PDF can be attached to an existing row later.
type ResearchCacheRepo struct{ Pool PgxPool }

// NewResearchCacheRepo constructs a ResearchCacheRepo with the given pool.
func NewResearchCacheRepo(p PgxPool) *ResearchCacheRepo {
	return &ResearchCacheRepo{Pool: p}
}

// Get loads a cached research report by key.
func (r *ResearchCacheRepo) Get(ctx domain.Context, key string) (domain.CachedResearch, error) {
	tracer := otel.Tracer("repo.research_cache")
	ctx, span := tracer.Start(ctx, "research_cache.Get")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "research_cache"))

	q := `SELECT cache_key, product_name, brand, category, report, full_report, created_at, updated_at
	      FROM research_cache WHERE cache_key=$1`
	row := r.Pool.QueryRow(ctx, q, key)
	var entry domain.CachedResearch
	var report []byte
	err := row.Scan(&entry.Key, &entry.ProductName, &entry.Brand, &entry.Category,
		&report, &entry.FullReport, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.CachedResearch{}, fmt.Errorf("op=research_cache.get: %w", domain.ErrNotFound)
		}
		return domain.CachedResearch{}, fmt.Errorf("op=research_cache.get: %w", err)
	}
	if err := json.Unmarshal(report, &entry.Report); err != nil {
		return domain.CachedResearch{}, fmt.Errorf("op=research_cache.get decode: %w", err)
	}
	return entry, nil
}

// Put upserts a research report, preserving created_at on update.
func (r *ResearchCacheRepo) Put(ctx domain.Context, entry domain.CachedResearch) error {
	tracer := otel.Tracer("repo.research_cache")
	ctx, span := tracer.Start(ctx, "research_cache.Put")
	defer span.End()

	report, err := json.Marshal(entry.Report)
	if err != nil {
		return fmt.Errorf("op=research_cache.put encode: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO research_cache (cache_key, product_name, brand, category, report, full_report, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
	      ON CONFLICT (cache_key) DO UPDATE SET product_name=$2, brand=$3, category=$4, report=$5, full_report=$6, updated_at=$7`
	if _, err := r.Pool.Exec(ctx, q, entry.Key, entry.ProductName, entry.Brand, entry.Category, report, entry.FullReport, now); err != nil {
		return fmt.Errorf("op=research_cache.put: %w", err)
	}
	return nil
}

// AttachPDF stores the rendered document for an existing report.
func (r *ResearchCacheRepo) AttachPDF(ctx domain.Context, key string, pdf []byte) error {
	tracer := otel.Tracer("repo.research_cache")
	ctx, span := tracer.Start(ctx, "research_cache.AttachPDF")
	defer span.End()

	q := `UPDATE research_cache SET pdf_bytes=$2, updated_at=$3 WHERE cache_key=$1`
	tag, err := r.Pool.Exec(ctx, q, key, pdf, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=research_cache.attach_pdf: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=research_cache.attach_pdf: %w", domain.ErrNotFound)
	}
	return nil
}

// GetPDF loads the attached document, ErrNotFound when the row or the
// attachment is missing.
func (r *ResearchCacheRepo) GetPDF(ctx domain.Context, key string) ([]byte, error) {
	tracer := otel.Tracer("repo.research_cache")
	ctx, span := tracer.Start(ctx, "research_cache.GetPDF")
	defer span.End()

	q := `SELECT pdf_bytes FROM research_cache WHERE cache_key=$1`
	var pdf []byte
	if err := r.Pool.QueryRow(ctx, q, key).Scan(&pdf); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("op=research_cache.get_pdf: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("op=research_cache.get_pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("op=research_cache.get_pdf empty: %w", domain.ErrNotFound)
	}
	return pdf, nil
}

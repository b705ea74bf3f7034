// Command migrate creates the Postgres schema used by the caches and
// the persistent job store. All statements are idempotent.
package main

import (
	"context"
	"log"

	"github.com/truescore/truescore/internal/adapter/repo/postgres"
	"github.com/truescore/truescore/internal/config"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS scoring_cache (
		cache_key    TEXT PRIMARY KEY,
		product_name TEXT NOT NULL,
		brand        TEXT NOT NULL DEFAULT '',
		data         JSONB NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS research_cache (
		cache_key    TEXT PRIMARY KEY,
		product_name TEXT NOT NULL,
		brand        TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL DEFAULT '',
		report       JSONB NOT NULL,
		full_report  TEXT NOT NULL DEFAULT '',
		pdf_bytes    BYTEA,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id           TEXT PRIMARY KEY,
		status       TEXT NOT NULL,
		progress     INT NOT NULL DEFAULT 0,
		current_step TEXT NOT NULL DEFAULT '',
		result       JSONB,
		error        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs (status, completed_at)`,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatal(err)
		}
	}
	log.Println("schema up to date")
}

// Package redisjobs is the primary job store: one JSON value per job
// under a "job:" key with a TTL so finished jobs age out on their own.
package redisjobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/truescore/truescore/internal/domain"
)

const keyPrefix = "job:"

// Store persists jobs in Redis.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

// New constructs a Store with the given client and job TTL.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

// Create writes the initial job record.
func (s *Store) Create(ctx domain.Context, j domain.Job) error {
	return s.write(ctx, j, "job.redis_create")
}

// Update overwrites the record, refreshing the TTL.
func (s *Store) Update(ctx domain.Context, j domain.Job) error {
	return s.write(ctx, j, "job.redis_update")
}

func (s *Store) write(ctx domain.Context, j domain.Job, op string) error {
	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("op=%s encode: %w", op, err)
	}
	if err := s.Client.Set(ctx, keyPrefix+j.ID, b, s.TTL).Err(); err != nil {
		return fmt.Errorf("op=%s: %w", op, err)
	}
	return nil
}

// Get loads a job by id; expired and unknown ids are both ErrNotFound.
func (s *Store) Get(ctx domain.Context, id string) (domain.Job, error) {
	b, err := s.Client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Job{}, fmt.Errorf("op=job.redis_get: %w", domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=job.redis_get: %w", err)
	}
	var j domain.Job
	if err := json.Unmarshal(b, &j); err != nil {
		return domain.Job{}, fmt.Errorf("op=job.redis_get decode: %w", err)
	}
	return j, nil
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx domain.Context) error {
	if err := s.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("op=job.redis_ping: %w", err)
	}
	return nil
}

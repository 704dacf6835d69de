// Package postgres persists the crawl checkpoint in a Postgres table, giving a
// single crawler a durable cursor that outlives its host. Only one crawler may
// advance a given checkpoint row at a time.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/vacation-rental-crawler/internal/checkpoint"
	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	pgstorage "github.com/JakeFAU/vacation-rental-crawler/internal/storage/postgres"
)

// Store implements crawler.CheckpointStore keyed by checkpoint name.
type Store struct {
	pool  pgstorage.Pool
	table string
	name  string
}

// NewStore wraps pool. An empty table defaults to crawl_checkpoints.
func NewStore(pool pgstorage.Pool, table, name string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := pgstorage.TableName(table, "crawl_checkpoints")
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "default"
	}
	return &Store{pool: pool, table: table, name: name}, nil
}

// EnsureSchema creates the checkpoint table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	name TEXT PRIMARY KEY,
	last_region_index INTEGER NOT NULL,
	last_listing_index INTEGER NOT NULL,
	last_region TEXT NOT NULL DEFAULT '',
	last_listing TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create checkpoint table: %w", err)
	}
	return nil
}

// Load implements crawler.CheckpointStore.
func (s *Store) Load(ctx context.Context) (crawler.Checkpoint, error) {
	query := fmt.Sprintf(`
SELECT last_region_index, last_listing_index, last_region, last_listing, updated_at
FROM %s WHERE name = $1`, s.table)

	var (
		cp        crawler.Checkpoint
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, query, s.name).Scan(
		&cp.LastRegionIndex,
		&cp.LastListingIndex,
		&cp.LastRegion,
		&cp.LastListing,
		&updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Checkpoint{}, fmt.Errorf("%w: no checkpoint named %q", crawler.ErrConfig, s.name)
	}
	if err != nil {
		return crawler.Checkpoint{}, fmt.Errorf("select checkpoint: %w", err)
	}
	cp.UpdatedAt = updatedAt
	if err := checkpoint.Validate(cp); err != nil {
		return crawler.Checkpoint{}, err
	}
	return cp, nil
}

// Save implements crawler.CheckpointStore.
func (s *Store) Save(ctx context.Context, cp crawler.Checkpoint) error {
	if err := checkpoint.Validate(cp); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (name, last_region_index, last_listing_index, last_region, last_listing, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name) DO UPDATE SET
	last_region_index = EXCLUDED.last_region_index,
	last_listing_index = EXCLUDED.last_listing_index,
	last_region = EXCLUDED.last_region,
	last_listing = EXCLUDED.last_listing,
	updated_at = EXCLUDED.updated_at`, s.table)

	_, err := s.pool.Exec(ctx, query,
		s.name,
		cp.LastRegionIndex,
		cp.LastListingIndex,
		cp.LastRegion,
		cp.LastListing,
		cp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

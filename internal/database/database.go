// Package database opens the Postgres pool and bootstraps the schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inventoryapi/internal/config"

	_ "github.com/lib/pq"
)

// Open returns a pooled connection that has answered a ping.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id BIGINT PRIMARY KEY,
		sku TEXT NOT NULL,
		requires_shipping BOOLEAN,
		cost NUMERIC(20, 4),
		country_code_of_origin TEXT,
		province_code_of_origin TEXT,
		tracked BOOLEAN,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		address1 TEXT NOT NULL,
		address2 TEXT,
		city TEXT NOT NULL DEFAULT '',
		zip TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL,
		phone TEXT,
		province_code TEXT,
		country_code TEXT,
		country_name TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_levels (
		inventory_item_id BIGINT NOT NULL REFERENCES inventory_items (id) ON DELETE CASCADE,
		location_id BIGINT NOT NULL REFERENCES locations (id) ON DELETE CASCADE,
		available BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (inventory_item_id, location_id)
	)`,
	`CREATE INDEX IF NOT EXISTS inventory_levels_location_idx ON inventory_levels (location_id)`,
	`CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		aggregate_id UUID NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_data JSONB NOT NULL,
		metadata JSONB,
		version INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (aggregate_id, version)
	)`,
}

// Migrate creates any missing tables. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

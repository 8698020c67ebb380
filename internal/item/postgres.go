// internal/item/postgres.go
package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventoryapi/internal/apperr"
	"inventoryapi/internal/level"

	"github.com/lib/pq"
)

const itemColumns = `id, sku, requires_shipping, cost, country_code_of_origin, province_code_of_origin, tracked, created_at, updated_at`

type postgresRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresRepository returns a Repository backed by the inventory_items table.
func NewPostgresRepository(db *sql.DB, timeout time.Duration) Repository {
	return &postgresRepository{db: db, timeout: timeout}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	item := &Item{}
	err := row.Scan(
		&item.ID,
		&item.SKU,
		&item.RequiresShipping,
		&item.Cost,
		&item.CountryCodeOfOrigin,
		&item.ProvinceCodeOfOrigin,
		&item.Tracked,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (r *postgresRepository) Insert(ctx context.Context, item *Item) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO inventory_items (id, sku, requires_shipping, cost, country_code_of_origin, province_code_of_origin, tracked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + itemColumns
	stored, err := scanItem(r.db.QueryRowContext(ctx, query,
		item.ID,
		item.SKU,
		item.RequiresShipping,
		item.Cost,
		item.CountryCodeOfOrigin,
		item.ProvinceCodeOfOrigin,
		item.Tracked,
		item.CreatedAt,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrConflict
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.ErrConflict
		}
		return fmt.Errorf("insert inventory item: %w", err)
	}
	*item = *stored
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id int64) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = $1`
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select inventory item: %w", err)
	}
	return item, nil
}

func (r *postgresRepository) GetMany(ctx context.Context, ids []int64) (map[int64]*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select inventory items: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]*Item, len(ids))
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		found[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory items: %w", err)
	}
	return found, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + itemColumns + ` FROM inventory_items ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	defer rows.Close()

	items := []*Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory items: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) Update(ctx context.Context, item *Item) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE inventory_items
		SET sku = $2, requires_shipping = $3, cost = $4, country_code_of_origin = $5,
		    province_code_of_origin = $6, tracked = $7, updated_at = $8
		WHERE id = $1
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		item.ID,
		item.SKU,
		item.RequiresShipping,
		item.Cost,
		item.CountryCodeOfOrigin,
		item.ProvinceCodeOfOrigin,
		item.Tracked,
		item.UpdatedAt,
	).Scan(&item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("update inventory item: %w", err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, ids ...int64) (int64, []level.Key, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin delete inventory items: %w", err)
	}
	defer tx.Rollback()

	// Locking the items blocks concurrent connects until the delete commits,
	// so every cascaded level is in the returned keys.
	if _, err := tx.ExecContext(ctx, `SELECT id FROM inventory_items WHERE id = ANY($1) FOR UPDATE`, pq.Array(ids)); err != nil {
		return 0, nil, fmt.Errorf("lock inventory items: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		DELETE FROM inventory_levels WHERE inventory_item_id = ANY($1)
		RETURNING inventory_item_id, location_id
		`, pq.Array(ids))
	if err != nil {
		return 0, nil, fmt.Errorf("delete inventory levels: %w", err)
	}
	detached, err := level.CollectKeys(rows)
	if err != nil {
		return 0, nil, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, nil, fmt.Errorf("delete inventory items: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, nil, fmt.Errorf("delete inventory items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit delete inventory items: %w", err)
	}
	return deleted, detached, nil
}

func (r *postgresRepository) Exists(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM inventory_items WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check inventory item: %w", err)
	}
	return exists, nil
}

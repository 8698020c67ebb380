// internal/level/postgres.go
package level

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventoryapi/internal/apperr"

	"github.com/lib/pq"
)

const levelColumns = `inventory_item_id, location_id, available, updated_at`

type postgresRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresRepository returns a Repository backed by the inventory_levels table.
func NewPostgresRepository(db *sql.DB, timeout time.Duration) Repository {
	return &postgresRepository{db: db, timeout: timeout}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLevel(row rowScanner) (*Level, error) {
	l := &Level{}
	err := row.Scan(&l.InventoryItemID, &l.LocationID, &l.Available, &l.UpdatedAt)
	return l, err
}

func (r *postgresRepository) Insert(ctx context.Context, l *Level) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO inventory_levels (inventory_item_id, location_id, available, updated_at)
		SELECT $1::bigint, $2::bigint, $3::bigint, $4::timestamptz
		WHERE EXISTS (SELECT 1 FROM inventory_items WHERE id = $1::bigint)
		  AND EXISTS (SELECT 1 FROM locations WHERE id = $2::bigint)
		ON CONFLICT (inventory_item_id, location_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, l.InventoryItemID, l.LocationID, l.Available, l.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		// 23503: the item or location was deleted between the EXISTS check and the insert.
		if errors.As(err, &pqErr) && (pqErr.Code == "23503" || pqErr.Code == "23505") {
			return false, nil
		}
		return false, fmt.Errorf("insert inventory level: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert inventory level: %w", err)
	}
	return n == 1, nil
}

func (r *postgresRepository) Get(ctx context.Context, itemID, locationID int64) (*Level, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + levelColumns + ` FROM inventory_levels WHERE inventory_item_id = $1 AND location_id = $2`
	l, err := scanLevel(r.db.QueryRowContext(ctx, query, itemID, locationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select inventory level: %w", err)
	}
	return l, nil
}

func (r *postgresRepository) GetMany(ctx context.Context, itemIDs, locationIDs []int64) (map[Key]*Level, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + levelColumns + ` FROM inventory_levels
		WHERE inventory_item_id = ANY($1) AND location_id = ANY($2)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(itemIDs), pq.Array(locationIDs))
	if err != nil {
		return nil, fmt.Errorf("select inventory levels: %w", err)
	}
	defer rows.Close()

	found := make(map[Key]*Level)
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory level: %w", err)
		}
		found[l.Key()] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory levels: %w", err)
	}
	return found, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]*Level, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+levelColumns+` FROM inventory_levels ORDER BY inventory_item_id, location_id`)
	if err != nil {
		return nil, fmt.Errorf("list inventory levels: %w", err)
	}
	defer rows.Close()

	levels := []*Level{}
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory level: %w", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory levels: %w", err)
	}
	return levels, nil
}

func (r *postgresRepository) Exists(ctx context.Context, itemID, locationID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM inventory_levels WHERE inventory_item_id = $1 AND location_id = $2)`,
		itemID, locationID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check inventory level: %w", err)
	}
	return exists, nil
}

func (r *postgresRepository) Set(ctx context.Context, itemID, locationID, available int64, at time.Time) (*Level, error) {
	query := `
		UPDATE inventory_levels
		SET available = $3, updated_at = $4
		WHERE inventory_item_id = $1 AND location_id = $2
		RETURNING ` + levelColumns
	return r.update(ctx, query, itemID, locationID, available, at)
}

func (r *postgresRepository) Adjust(ctx context.Context, itemID, locationID, delta int64, at time.Time) (*Level, error) {
	query := `
		UPDATE inventory_levels
		SET available = available + $3, updated_at = $4
		WHERE inventory_item_id = $1 AND location_id = $2
		RETURNING ` + levelColumns
	return r.update(ctx, query, itemID, locationID, delta, at)
}

func (r *postgresRepository) update(ctx context.Context, query string, itemID, locationID, value int64, at time.Time) (*Level, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	l, err := scanLevel(r.db.QueryRowContext(ctx, query, itemID, locationID, value, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		var pqErr *pq.Error
		// 22003: available + delta left the bigint range.
		if errors.As(err, &pqErr) && pqErr.Code == "22003" {
			return nil, fmt.Errorf("%w: available out of range", apperr.ErrInvalidInput)
		}
		return nil, fmt.Errorf("update inventory level: %w", err)
	}
	return l, nil
}

func (r *postgresRepository) Delete(ctx context.Context, itemID, locationID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM inventory_levels WHERE inventory_item_id = $1 AND location_id = $2`,
		itemID, locationID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete inventory level: %w", err)
	}
	return result.RowsAffected()
}

// CollectKeys reads (inventory_item_id, location_id) rows, as returned by a
// DELETE ... RETURNING on inventory_levels, and closes rows.
func CollectKeys(rows *sql.Rows) ([]Key, error) {
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.ItemID, &k.LocationID); err != nil {
			return nil, fmt.Errorf("scan inventory level key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory level keys: %w", err)
	}
	return keys, nil
}

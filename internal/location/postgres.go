// internal/location/postgres.go
package location

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

const locationColumns = `id, name, address1, address2, city, zip, province, country, phone,
	province_code, country_code, country_name, active, created_at, updated_at`

type postgresRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresRepository returns a Repository backed by the locations table.
func NewPostgresRepository(db *sql.DB, timeout time.Duration) Repository {
	return &postgresRepository{db: db, timeout: timeout}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*Location, error) {
	l := &Location{}
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Address1,
		&l.Address2,
		&l.City,
		&l.Zip,
		&l.Province,
		&l.Country,
		&l.Phone,
		&l.ProvinceCode,
		&l.CountryCode,
		&l.CountryName,
		&l.Active,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

func (r *postgresRepository) Insert(ctx context.Context, l *Location) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO locations (id, name, address1, address2, city, zip, province, country, phone,
			province_code, country_code, country_name, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		l.ID, l.Name, l.Address1, l.Address2, l.City, l.Zip, l.Province, l.Country, l.Phone,
		l.ProvinceCode, l.CountryCode, l.CountryName, l.Active, l.CreatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrConflict
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.ErrConflict
		}
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id int64) (*Location, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	l, err := scanLocation(r.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select location: %w", err)
	}
	return l, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]*Location, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	locations := []*Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return locations, nil
}

func (r *postgresRepository) Delete(ctx context.Context, id int64) (int64, []level.Key, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin delete location: %w", err)
	}
	defer tx.Rollback()

	// The row lock holds off connects to this location until commit.
	if _, err := tx.ExecContext(ctx, `SELECT id FROM locations WHERE id = $1 FOR UPDATE`, id); err != nil {
		return 0, nil, fmt.Errorf("lock location: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		DELETE FROM inventory_levels WHERE location_id = $1
		RETURNING inventory_item_id, location_id
		`, id)
	if err != nil {
		return 0, nil, fmt.Errorf("delete inventory levels: %w", err)
	}
	detached, err := level.CollectKeys(rows)
	if err != nil {
		return 0, nil, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return 0, nil, fmt.Errorf("delete location: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, nil, fmt.Errorf("delete location: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit delete location: %w", err)
	}
	return deleted, detached, nil
}

func (r *postgresRepository) Exists(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check location: %w", err)
	}
	return exists, nil
}

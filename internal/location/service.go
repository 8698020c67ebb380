// internal/location/service.go
package location

import (
	"context"

	"inventoryapi/internal/level"
)

// Service defines the interface for the location service.
type Service interface {
	CreateLocation(ctx context.Context, id int64, fields Fields) (*Location, error)
	GetLocation(ctx context.Context, id int64) (*Location, error)
	ListLocations(ctx context.Context) ([]*Location, error)
	DeleteLocation(ctx context.Context, id int64) (int64, error)
}

// Repository is the persistence contract for locations.
type Repository interface {
	// Insert returns apperr.ErrConflict when the id is taken.
	Insert(ctx context.Context, location *Location) error
	Get(ctx context.Context, id int64) (*Location, error)
	List(ctx context.Context) ([]*Location, error)

	// Delete removes the location and its levels, returning the keys of the
	// levels that went with it.
	Delete(ctx context.Context, id int64) (int64, []level.Key, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// LevelDetacher is told about levels removed together with a location.
type LevelDetacher interface {
	Detached(ctx context.Context, keys []level.Key)
}

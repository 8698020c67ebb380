// internal/level/service.go
package level

import (
	"context"
	"time"

	"inventoryapi/internal/batch"
)

// Service defines the interface for the inventory level service.
type Service interface {
	Connect(ctx context.Context, itemID, locationID int64) (*Level, error)
	Set(ctx context.Context, itemID, locationID, available int64) (*Level, error)
	Adjust(ctx context.Context, itemID, locationID, delta int64) (*Level, error)
	RetrieveLevels(ctx context.Context, itemIDs, locationIDs []int64) ([]batch.Entry[Level], error)
	ListLevels(ctx context.Context) ([]*Level, error)
	Delete(ctx context.Context, itemID, locationID int64) (int64, error)
	History(ctx context.Context, itemID, locationID int64) ([]Change, error)

	// Detached records levels that were removed along with their item or
	// location.
	Detached(ctx context.Context, keys []Key)
}

// Repository is the persistence contract for levels. Every write is a single
// atomic statement.
type Repository interface {
	// Insert creates level only if its item and location exist and the pair is
	// not yet connected. It reports whether a row was created.
	Insert(ctx context.Context, level *Level) (bool, error)

	// Get returns apperr.ErrNotFound when the pair is not connected.
	Get(ctx context.Context, itemID, locationID int64) (*Level, error)

	// GetMany returns the connected pairs among the cross product of ids.
	GetMany(ctx context.Context, itemIDs, locationIDs []int64) (map[Key]*Level, error)

	List(ctx context.Context) ([]*Level, error)
	Exists(ctx context.Context, itemID, locationID int64) (bool, error)

	// Set and Adjust return apperr.ErrNotFound when the pair is not connected.
	Set(ctx context.Context, itemID, locationID, available int64, at time.Time) (*Level, error)
	Adjust(ctx context.Context, itemID, locationID, delta int64, at time.Time) (*Level, error)

	Delete(ctx context.Context, itemID, locationID int64) (int64, error)
}

// Journal keeps the history of changes per level.
type Journal interface {
	Record(ctx context.Context, change Change) error
	History(ctx context.Context, itemID, locationID int64) ([]Change, error)
}

// Notifier announces level changes to other systems.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// RoutingKeyUpdated is the routing key of every published level change.
const RoutingKeyUpdated = "inventory_level.updated"

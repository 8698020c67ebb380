// internal/item/service.go
package item

import (
	"context"

	"inventoryapi/internal/batch"
	"inventoryapi/internal/level"
)

// Service defines the interface for the inventory item service.
type Service interface {
	CreateItem(ctx context.Context, id int64, fields Fields) (*Item, error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	GetItems(ctx context.Context, ids []int64) ([]batch.Entry[Item], error)
	ListItems(ctx context.Context) ([]*Item, error)
	EditItem(ctx context.Context, id int64, fields Fields) (*Item, error)
	DeleteItem(ctx context.Context, id int64) (int64, error)
	DeleteItems(ctx context.Context, ids []int64) (int64, error)
}

// Repository is the persistence contract for items.
type Repository interface {
	// Insert stores item unless its id is taken, in which case it returns
	// apperr.ErrConflict. On success item holds the stored row.
	Insert(ctx context.Context, item *Item) error

	// Get returns apperr.ErrNotFound when no item has the id.
	Get(ctx context.Context, id int64) (*Item, error)

	// GetMany returns the items that exist among ids, keyed by id.
	GetMany(ctx context.Context, ids []int64) (map[int64]*Item, error)

	List(ctx context.Context) ([]*Item, error)

	// Update overwrites the mutable fields and UpdatedAt of an existing item and
	// fills in the stored CreatedAt. Returns apperr.ErrNotFound when absent.
	Update(ctx context.Context, item *Item) error

	// Delete removes the items with the given ids and their levels. It reports
	// how many items existed and which levels went with them.
	Delete(ctx context.Context, ids ...int64) (int64, []level.Key, error)

	Exists(ctx context.Context, id int64) (bool, error)
}

// LevelDetacher is told about levels removed together with an item.
type LevelDetacher interface {
	Detached(ctx context.Context, keys []level.Key)
}

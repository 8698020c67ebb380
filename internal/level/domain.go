// internal/level/domain.go
package level

import (
	"fmt"
	"math"
	"time"

	"inventoryapi/internal/apperr"
)

// Level is the stock of one inventory item at one location.
type Level struct {
	InventoryItemID int64     `json:"inventory_item_id"`
	LocationID      int64     `json:"location_id"`
	Available       int64     `json:"available"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Key identifies a level.
type Key struct {
	ItemID     int64
	LocationID int64
}

func (l *Level) Key() Key {
	return Key{ItemID: l.InventoryItemID, LocationID: l.LocationID}
}

// AddAvailable returns current+delta, or apperr.ErrInvalidInput when the sum
// does not fit in an int64.
func AddAvailable(current, delta int64) (int64, error) {
	if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
		return 0, fmt.Errorf("%w: adjusting %d by %d is out of range", apperr.ErrInvalidInput, current, delta)
	}
	return current + delta, nil
}

// Change types recorded in a level's history.
const (
	ChangeConnected = "connected"
	ChangeSet       = "set"
	ChangeAdjusted  = "adjusted"
	ChangeDeleted   = "deleted"
)

// Change describes one write to a level.
type Change struct {
	Type            string    `json:"type"`
	InventoryItemID int64     `json:"inventory_item_id"`
	LocationID      int64     `json:"location_id"`
	Available       int64     `json:"available"`
	Adjustment      int64     `json:"available_adjustment,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
	Version         int       `json:"version,omitempty"`
}

func changeFor(kind string, l *Level) Change {
	return Change{
		Type:            kind,
		InventoryItemID: l.InventoryItemID,
		LocationID:      l.LocationID,
		Available:       l.Available,
		OccurredAt:      l.UpdatedAt,
	}
}

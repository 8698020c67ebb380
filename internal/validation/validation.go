// Package validation answers the existence questions that guard writes to
// inventory levels.
package validation

import (
	"context"
	"fmt"

	"inventoryapi/internal/apperr"
)

// ItemChecker reports whether an inventory item exists.
type ItemChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// LocationChecker reports whether a location exists.
type LocationChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// LevelChecker reports whether a level exists for an item/location pair.
type LevelChecker interface {
	Exists(ctx context.Context, itemID, locationID int64) (bool, error)
}

type Validator struct {
	items     ItemChecker
	locations LocationChecker
	levels    LevelChecker
}

func New(items ItemChecker, locations LocationChecker, levels LevelChecker) *Validator {
	return &Validator{items: items, locations: locations, levels: levels}
}

func (v *Validator) ItemExists(ctx context.Context, id int64) (bool, error) {
	ok, err := v.items.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check inventory item %d: %w", id, err)
	}
	return ok, nil
}

func (v *Validator) LocationExists(ctx context.Context, id int64) (bool, error) {
	ok, err := v.locations.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check location %d: %w", id, err)
	}
	return ok, nil
}

func (v *Validator) LevelExists(ctx context.Context, itemID, locationID int64) (bool, error) {
	ok, err := v.levels.Exists(ctx, itemID, locationID)
	if err != nil {
		return false, fmt.Errorf("check inventory level %d/%d: %w", itemID, locationID, err)
	}
	return ok, nil
}

// CanConnect returns nil when a level may be created for the pair. Otherwise
// it returns, in order of precedence, ErrBothMissing, ErrLocationMissing,
// ErrItemMissing or ErrAlreadyConnected.
func (v *Validator) CanConnect(ctx context.Context, itemID, locationID int64) error {
	itemOK, err := v.ItemExists(ctx, itemID)
	if err != nil {
		return err
	}
	locationOK, err := v.LocationExists(ctx, locationID)
	if err != nil {
		return err
	}

	switch {
	case !itemOK && !locationOK:
		return fmt.Errorf("item %d, location %d: %w", itemID, locationID, apperr.ErrBothMissing)
	case !locationOK:
		return fmt.Errorf("location %d: %w", locationID, apperr.ErrLocationMissing)
	case !itemOK:
		return fmt.Errorf("item %d: %w", itemID, apperr.ErrItemMissing)
	}

	connected, err := v.LevelExists(ctx, itemID, locationID)
	if err != nil {
		return err
	}
	if connected {
		return fmt.Errorf("item %d at location %d: %w", itemID, locationID, apperr.ErrAlreadyConnected)
	}
	return nil
}

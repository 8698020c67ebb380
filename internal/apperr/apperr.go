// Package apperr holds the error taxonomy shared by the inventory domains.
// Repositories translate driver errors into these sentinels and services wrap
// them with context, so callers should always match with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a lookup by key matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a create would violate a unique key.
	ErrConflict = errors.New("already exists")

	// ErrItemMissing is returned by connect when the inventory item does not exist.
	ErrItemMissing = errors.New("inventory item does not exist")

	// ErrLocationMissing is returned by connect when the location does not exist.
	ErrLocationMissing = errors.New("location does not exist")

	// ErrBothMissing is returned by connect when neither the item nor the location exist.
	ErrBothMissing = errors.New("inventory item and location do not exist")

	// ErrAlreadyConnected is returned by connect when a level already exists for the pair.
	ErrAlreadyConnected = errors.New("inventory level already connected")

	// ErrInvalidInput is returned when a request cannot be turned into a domain call.
	ErrInvalidInput = errors.New("invalid input")
)

// IsMissingReference reports whether err is one of the connect precondition failures.
func IsMissingReference(err error) bool {
	return errors.Is(err, ErrItemMissing) ||
		errors.Is(err, ErrLocationMissing) ||
		errors.Is(err, ErrBothMissing)
}

// Package memstore keeps items, locations and levels in process memory behind
// the same repository interfaces as the Postgres store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"inventoryapi/internal/apperr"
	"inventoryapi/internal/item"
	"inventoryapi/internal/level"
	"inventoryapi/internal/location"
)

// Store guards all three collections with one mutex so cross-collection rules
// (guarded connect, cascade delete) hold atomically.
type Store struct {
	mu        sync.RWMutex
	items     map[int64]item.Item
	locations map[int64]location.Location
	levels    map[level.Key]level.Level
}

func New() *Store {
	return &Store{
		items:     make(map[int64]item.Item),
		locations: make(map[int64]location.Location),
		levels:    make(map[level.Key]level.Level),
	}
}

func (s *Store) Items() item.Repository         { return itemRepo{s} }
func (s *Store) Locations() location.Repository { return locationRepo{s} }
func (s *Store) Levels() level.Repository       { return levelRepo{s} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// cascade drops every level referencing a removed item or location and
// returns their keys in order. Callers hold the write lock.
func (s *Store) cascade(match func(level.Key) bool) []level.Key {
	var removed []level.Key
	for key := range s.levels {
		if match(key) {
			delete(s.levels, key)
			removed = append(removed, key)
		}
	}
	sortKeys(removed)
	return removed
}

func sortKeys(keys []level.Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ItemID != keys[j].ItemID {
			return keys[i].ItemID < keys[j].ItemID
		}
		return keys[i].LocationID < keys[j].LocationID
	})
}

type itemRepo struct{ s *Store }

func (r itemRepo) Insert(_ context.Context, it *item.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[it.ID]; ok {
		return apperr.ErrConflict
	}
	r.s.items[it.ID] = *it
	return nil
}

func (r itemRepo) Get(_ context.Context, id int64) (*item.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	it, ok := r.s.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &it, nil
}

func (r itemRepo) GetMany(_ context.Context, ids []int64) (map[int64]*item.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	found := make(map[int64]*item.Item, len(ids))
	for _, id := range ids {
		if it, ok := r.s.items[id]; ok {
			found[id] = &it
		}
	}
	return found, nil
}

func (r itemRepo) List(context.Context) ([]*item.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := make([]*item.Item, 0, len(r.s.items))
	for _, it := range r.s.items {
		items = append(items, &it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r itemRepo) Update(_ context.Context, it *item.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.items[it.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	it.CreatedAt = stored.CreatedAt
	r.s.items[it.ID] = *it
	return nil
}

func (r itemRepo) Delete(_ context.Context, ids ...int64) (int64, []level.Key, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var (
		deleted  int64
		detached []level.Key
	)
	for _, id := range ids {
		if _, ok := r.s.items[id]; !ok {
			continue
		}
		delete(r.s.items, id)
		detached = append(detached, r.s.cascade(func(k level.Key) bool { return k.ItemID == id })...)
		deleted++
	}
	sortKeys(detached)
	return deleted, detached, nil
}

func (r itemRepo) Exists(_ context.Context, id int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.items[id]
	return ok, nil
}

type locationRepo struct{ s *Store }

func (r locationRepo) Insert(_ context.Context, l *location.Location) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.locations[l.ID]; ok {
		return apperr.ErrConflict
	}
	r.s.locations[l.ID] = *l
	return nil
}

func (r locationRepo) Get(_ context.Context, id int64) (*location.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.locations[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &l, nil
}

func (r locationRepo) List(context.Context) ([]*location.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	locations := make([]*location.Location, 0, len(r.s.locations))
	for _, l := range r.s.locations {
		locations = append(locations, &l)
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].ID < locations[j].ID })
	return locations, nil
}

func (r locationRepo) Delete(_ context.Context, id int64) (int64, []level.Key, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.locations[id]; !ok {
		return 0, nil, nil
	}
	delete(r.s.locations, id)
	return 1, r.s.cascade(func(k level.Key) bool { return k.LocationID == id }), nil
}

func (r locationRepo) Exists(_ context.Context, id int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.locations[id]
	return ok, nil
}

type levelRepo struct{ s *Store }

func (r levelRepo) Insert(_ context.Context, l *level.Level) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[l.InventoryItemID]; !ok {
		return false, nil
	}
	if _, ok := r.s.locations[l.LocationID]; !ok {
		return false, nil
	}
	if _, ok := r.s.levels[l.Key()]; ok {
		return false, nil
	}
	r.s.levels[l.Key()] = *l
	return true, nil
}

func (r levelRepo) Get(_ context.Context, itemID, locationID int64) (*level.Level, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.levels[level.Key{ItemID: itemID, LocationID: locationID}]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &l, nil
}

func (r levelRepo) GetMany(_ context.Context, itemIDs, locationIDs []int64) (map[level.Key]*level.Level, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	found := make(map[level.Key]*level.Level)
	for _, itemID := range itemIDs {
		for _, locationID := range locationIDs {
			key := level.Key{ItemID: itemID, LocationID: locationID}
			if l, ok := r.s.levels[key]; ok {
				found[key] = &l
			}
		}
	}
	return found, nil
}

func (r levelRepo) List(context.Context) ([]*level.Level, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	levels := make([]*level.Level, 0, len(r.s.levels))
	for _, l := range r.s.levels {
		levels = append(levels, &l)
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].InventoryItemID != levels[j].InventoryItemID {
			return levels[i].InventoryItemID < levels[j].InventoryItemID
		}
		return levels[i].LocationID < levels[j].LocationID
	})
	return levels, nil
}

func (r levelRepo) Exists(_ context.Context, itemID, locationID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.levels[level.Key{ItemID: itemID, LocationID: locationID}]
	return ok, nil
}

func (r levelRepo) Set(_ context.Context, itemID, locationID, available int64, at time.Time) (*level.Level, error) {
	return r.update(itemID, locationID, at, func(int64) (int64, error) { return available, nil })
}

func (r levelRepo) Adjust(_ context.Context, itemID, locationID, delta int64, at time.Time) (*level.Level, error) {
	return r.update(itemID, locationID, at, func(current int64) (int64, error) {
		return level.AddAvailable(current, delta)
	})
}

func (r levelRepo) update(itemID, locationID int64, at time.Time, next func(int64) (int64, error)) (*level.Level, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := level.Key{ItemID: itemID, LocationID: locationID}
	l, ok := r.s.levels[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	available, err := next(l.Available)
	if err != nil {
		return nil, err
	}
	l.Available = available
	l.UpdatedAt = at
	r.s.levels[key] = l
	return &l, nil
}

func (r levelRepo) Delete(_ context.Context, itemID, locationID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := level.Key{ItemID: itemID, LocationID: locationID}
	if _, ok := r.s.levels[key]; !ok {
		return 0, nil
	}
	delete(r.s.levels, key)
	return 1, nil
}

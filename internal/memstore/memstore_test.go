package memstore

import (
	"context"
	"math"
	"testing"
	"time"

	"inventoryapi/internal/apperr"
	"inventoryapi/internal/item"
	"inventoryapi/internal/level"
	"inventoryapi/internal/location"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []int64{1, 2} {
		require.NoError(t, s.Items().Insert(ctx, &item.Item{ID: id, Fields: item.Fields{SKU: "SKU"}, CreatedAt: now}))
	}
	for _, id := range []int64{10, 20} {
		require.NoError(t, s.Locations().Insert(ctx, &location.Location{ID: id, Active: true, CreatedAt: now}))
	}
	for _, pair := range [][2]int64{{1, 10}, {1, 20}, {2, 10}} {
		ok, err := s.Levels().Insert(ctx, &level.Level{InventoryItemID: pair[0], LocationID: pair[1], UpdatedAt: now})
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestLevelInsertIsGuarded(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	for _, pair := range [][2]int64{{1, 10}, {3, 10}, {1, 30}} {
		ok, err := s.Levels().Insert(ctx, &level.Level{InventoryItemID: pair[0], LocationID: pair[1]})
		require.NoError(t, err)
		assert.False(t, ok, "pair %v", pair)
	}
}

func TestDeleteItemCascades(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	n, detached, err := s.Items().Delete(ctx, 1, 1, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []level.Key{{ItemID: 1, LocationID: 10}, {ItemID: 1, LocationID: 20}}, detached)

	levels, err := s.Levels().List(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, level.Key{ItemID: 2, LocationID: 10}, levels[0].Key())
}

func TestDeleteLocationCascades(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	n, detached, err := s.Locations().Delete(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []level.Key{{ItemID: 1, LocationID: 10}, {ItemID: 2, LocationID: 10}}, detached)

	n, detached, err = s.Locations().Delete(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, detached)

	exists, err := s.Levels().Exists(ctx, 2, 10)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = s.Levels().Exists(ctx, 1, 20)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	got, err := s.Levels().Get(ctx, 1, 10)
	require.NoError(t, err)
	got.Available = 500

	again, err := s.Levels().Get(ctx, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, again.Available)
}

func TestUpdateMissing(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Levels().Adjust(ctx, 1, 10, 5, time.Now())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = s.Items().Update(ctx, &item.Item{ID: 7})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdjustRejectsOverflow(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	_, err := s.Levels().Set(ctx, 1, 10, math.MaxInt64, at)
	require.NoError(t, err)
	_, err = s.Levels().Adjust(ctx, 1, 10, 1, at.Add(time.Second))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = s.Levels().Set(ctx, 1, 20, math.MinInt64, at)
	require.NoError(t, err)
	_, err = s.Levels().Adjust(ctx, 1, 20, -1, at.Add(time.Second))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	l, err := s.Levels().Get(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), l.Available)
	assert.True(t, l.UpdatedAt.Equal(at), "failed adjust must not touch the level")
}

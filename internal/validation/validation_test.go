package validation

import (
	"context"
	"errors"
	"testing"

	"inventoryapi/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idSet map[int64]bool

func (s idSet) Exists(_ context.Context, id int64) (bool, error) {
	return s[id], nil
}

type pairSet map[[2]int64]bool

func (s pairSet) Exists(_ context.Context, itemID, locationID int64) (bool, error) {
	return s[[2]int64{itemID, locationID}], nil
}

type failing struct{}

func (failing) Exists(context.Context, int64) (bool, error) {
	return false, errors.New("connection refused")
}

func TestCanConnectPrecedence(t *testing.T) {
	v := New(idSet{1: true}, idSet{10: true}, pairSet{{1, 10}: true})
	ctx := context.Background()

	tests := []struct {
		name       string
		itemID     int64
		locationID int64
		want       error
	}{
		{"both missing", 2, 20, apperr.ErrBothMissing},
		{"location missing", 1, 20, apperr.ErrLocationMissing},
		{"item missing", 2, 10, apperr.ErrItemMissing},
		{"already connected", 1, 10, apperr.ErrAlreadyConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.CanConnect(ctx, tt.itemID, tt.locationID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestCanConnectAllowsNewPair(t *testing.T) {
	v := New(idSet{1: true}, idSet{10: true, 20: true}, pairSet{{1, 10}: true})

	assert.NoError(t, v.CanConnect(context.Background(), 1, 20))
}

func TestCanConnectPropagatesStoreErrors(t *testing.T) {
	v := New(failing{}, idSet{10: true}, pairSet{})

	err := v.CanConnect(context.Background(), 1, 10)
	require.Error(t, err)
	assert.False(t, apperr.IsMissingReference(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestExistenceChecks(t *testing.T) {
	v := New(idSet{1: true}, idSet{10: true}, pairSet{{1, 10}: true})
	ctx := context.Background()

	ok, err := v.ItemExists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.LocationExists(ctx, 11)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.LevelExists(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

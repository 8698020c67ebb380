package level_test

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sync"
	"testing"
	"time"

	"inventoryapi/internal/apperr"
	"inventoryapi/internal/eventstore"
	"inventoryapi/internal/item"
	"inventoryapi/internal/level"
	"inventoryapi/internal/location"
	"inventoryapi/internal/memstore"
	"inventoryapi/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

type published struct {
	routingKey string
	change     level.Change
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []published
	ctxErrs []error
	err     error
}

func (n *recordingNotifier) Publish(ctx context.Context, routingKey string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, published{routingKey: routingKey, change: payload.(level.Change)})
	return nil
}

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

type fixture struct {
	store    *memstore.Store
	svc      level.Service
	notifier *recordingNotifier
}

func newFixture(t tb) *fixture {
	t.Helper()
	store := memstore.New()
	notifier := &recordingNotifier{}

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	validator := validation.New(store.Items(), store.Locations(), store.Levels())
	journal := level.NewJournal(eventstore.NewMemoryStore())
	svc := level.NewService(store.Levels(), validator, journal, notifier, zap.NewNop(), now)
	return &fixture{store: store, svc: svc, notifier: notifier}
}

func (f *fixture) addItems(t tb, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.store.Items().Insert(context.Background(), &item.Item{ID: id, Fields: item.Fields{SKU: "S"}}))
	}
}

func (f *fixture) addLocations(t tb, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.store.Locations().Insert(context.Background(), &location.Location{ID: id, Active: true}))
	}
}

func TestConnectPrecedence(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.addLocations(t, 10)
	ctx := context.Background()

	_, err := f.svc.Connect(ctx, 1, 10)
	require.NoError(t, err)

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
			_, err := f.svc.Connect(ctx, tt.itemID, tt.locationID)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConnectStartsEmpty(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.addLocations(t, 10)

	l, err := f.svc.Connect(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.Available)
	assert.False(t, l.UpdatedAt.IsZero())

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, level.RoutingKeyUpdated, f.notifier.sent[0].routingKey)
	assert.Equal(t, level.ChangeConnected, f.notifier.sent[0].change.Type)
}

func TestConcurrentConnectCreatesOneLevel(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.addLocations(t, 10)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Connect(context.Background(), 1, 10)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrAlreadyConnected)
	}
	assert.Equal(t, 1, succeeded)
}

func TestSetAndAdjust(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.addLocations(t, 10)
	ctx := context.Background()

	connected, err := f.svc.Connect(ctx, 1, 10)
	require.NoError(t, err)

	set, err := f.svc.Set(ctx, 1, 10, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), set.Available)
	assert.True(t, set.UpdatedAt.After(connected.UpdatedAt))

	adjusted, err := f.svc.Adjust(ctx, 1, 10, -10)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), adjusted.Available)
}

func TestWritesOnAbsentLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Set(ctx, 1, 10, 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Adjust(ctx, 1, 10, 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	n, err := f.svc.Delete(ctx, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.notifier.sent)
}

func TestAdjustAddsDelta(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t)
		f.addItems(t, 1)
		f.addLocations(t, 10)
		ctx := context.Background()

		_, err := f.svc.Connect(ctx, 1, 10)
		require.NoError(t, err)

		start := rapid.Int64Range(-1_000_000, 1_000_000).Draw(t, "start")
		_, err = f.svc.Set(ctx, 1, 10, start)
		require.NoError(t, err)

		expected := start
		for _, delta := range rapid.SliceOfN(rapid.Int64Range(-10_000, 10_000), 1, 20).Draw(t, "deltas") {
			l, err := f.svc.Adjust(ctx, 1, 10, delta)
			require.NoError(t, err)
			expected += delta
			if l.Available != expected {
				t.Fatalf("available = %d after delta %d, want %d", l.Available, delta, expected)
			}
		}
	})
}

func TestRetrieveLevelsCartesianOrder(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1, 2)
	f.addLocations(t, 10, 20)
	ctx := context.Background()

	for _, pair := range [][2]int64{{1, 10}, {2, 10}, {2, 20}} {
		_, err := f.svc.Connect(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	entries, err := f.svc.RetrieveLevels(ctx, []int64{1, 2}, []int64{10, 20})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, level.Key{ItemID: 1, LocationID: 10}, entries[0].Record.Key())
	assert.False(t, entries[1].OK())
	assert.Equal(t, "inventory level for item 1 at location 20 not found", entries[1].Missing)
	assert.Equal(t, level.Key{ItemID: 2, LocationID: 10}, entries[2].Record.Key())
	assert.Equal(t, level.Key{ItemID: 2, LocationID: 20}, entries[3].Record.Key())
}

func TestRetrieveLevelsOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t)
		f.addItems(t, 1, 2, 3)
		f.addLocations(t, 10, 20, 30)
		ctx := context.Background()

		for _, itemID := range []int64{1, 2, 3} {
			for _, locationID := range []int64{10, 20, 30} {
				if rapid.Bool().Draw(t, "connect") {
					_, err := f.svc.Connect(ctx, itemID, locationID)
					require.NoError(t, err)
				}
			}
		}

		itemIDs := rapid.SliceOfN(rapid.Int64Range(1, 4), 1, 4).Draw(t, "items")
		locationIDs := rapid.SliceOfN(rapid.Int64Range(10, 40), 1, 4).Draw(t, "locations")

		entries, err := f.svc.RetrieveLevels(ctx, itemIDs, locationIDs)
		require.NoError(t, err)
		require.Len(t, entries, len(itemIDs)*len(locationIDs))

		for i, itemID := range itemIDs {
			for j, locationID := range locationIDs {
				entry := entries[i*len(locationIDs)+j]
				exists, err := f.store.Levels().Exists(ctx, itemID, locationID)
				require.NoError(t, err)
				if entry.OK() != exists {
					t.Fatalf("entry (%d,%d) ok=%v, level exists=%v", itemID, locationID, entry.OK(), exists)
				}
				if entry.OK() && entry.Record.Key() != (level.Key{ItemID: itemID, LocationID: locationID}) {
					t.Fatalf("entry %d holds %+v, want (%d,%d)", i*len(locationIDs)+j, entry.Record.Key(), itemID, locationID)
				}
			}
		}
	})
}

func TestHistoryRecordsEveryWrite(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.addLocations(t, 10)
	ctx := context.Background()

	_, err := f.svc.Connect(ctx, 1, 10)
	require.NoError(t, err)
	_, err = f.svc.Set(ctx, 1, 10, 4)
	require.NoError(t, err)
	_, err = f.svc.Adjust(ctx, 1, 10, 3)
	require.NoError(t, err)
	_, err = f.svc.Delete(ctx, 1, 10)
	require.NoError(t, err)

	changes, err := f.svc.History(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, changes, 4)

	types := []string{changes[0].Type, changes[1].Type, changes[2].Type, changes[3].Type}
	assert.Equal(t, []string{level.ChangeConnected, level.ChangeSet, level.ChangeAdjusted, level.ChangeDeleted}, types)
	assert.Equal(t, int64(3), changes[2].Adjustment)
	assert.Equal(t, int64(7), changes[2].Available)
	for i, c := range changes {
		assert.Equal(t, i+1, c.Version)
	}

	other, err := f.svc.History(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.addLocations(t, 10)
	f.notifier.err = errors.New("broker unavailable")

	l, err := f.svc.Connect(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.Available)
}

func TestSideEffectsOutliveCanceledRequest(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.addLocations(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Connect(ctx, 1, 10)
	require.NoError(t, err)

	require.Len(t, f.notifier.ctxErrs, 1)
	assert.NoError(t, f.notifier.ctxErrs[0])

	changes, err := f.svc.History(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}

func TestAdjustByMinInt64(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1)
	f.addLocations(t, 10)
	ctx := context.Background()

	_, err := f.svc.Connect(ctx, 1, 10)
	require.NoError(t, err)

	var l *level.Level
	require.NotPanics(t, func() {
		l, err = f.svc.Adjust(ctx, 1, 10, math.MinInt64)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), l.Available)

	changes, err := f.svc.History(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, int64(math.MinInt64), changes[1].Adjustment)
}

func TestAdjustOverflowIsRejected(t *testing.T) {
	tests := []struct {
		name  string
		start int64
		delta int64
	}{
		{"above max", math.MaxInt64, 1},
		{"below min", math.MinInt64, -1},
		{"large positive", math.MaxInt64 - 5, 10},
		{"large negative", -10, math.MinInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addItems(t, 1)
			f.addLocations(t, 10)
			ctx := context.Background()

			_, err := f.svc.Connect(ctx, 1, 10)
			require.NoError(t, err)
			_, err = f.svc.Set(ctx, 1, 10, tt.start)
			require.NoError(t, err)

			_, err = f.svc.Adjust(ctx, 1, 10, tt.delta)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)

			entries, err := f.svc.RetrieveLevels(ctx, []int64{1}, []int64{10})
			require.NoError(t, err)
			assert.Equal(t, tt.start, entries[0].Record.Available)
			assert.Len(t, f.notifier.sent, 2, "rejected adjust must not publish")
		})
	}
}

func TestAddAvailable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := rapid.Int64().Draw(t, "current")
		delta := rapid.Int64().Draw(t, "delta")

		sum, err := level.AddAvailable(current, delta)
		exact := new(big.Int).Add(big.NewInt(current), big.NewInt(delta))
		if !exact.IsInt64() {
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Fatalf("%d + %d: got err %v, want invalid input", current, delta, err)
			}
			return
		}
		if err != nil || sum != exact.Int64() {
			t.Fatalf("%d + %d = %d, %v; want %s", current, delta, sum, err, exact)
		}
	})
}

func TestItemDeleteRecordsCascadedLevels(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1, 2)
	f.addLocations(t, 10, 20)
	ctx := context.Background()

	for _, pair := range [][2]int64{{1, 10}, {1, 20}, {2, 10}} {
		_, err := f.svc.Connect(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	items := item.NewService(f.store.Items(), f.svc, zap.NewNop(), nil)
	n, err := items.DeleteItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for _, locationID := range []int64{10, 20} {
		changes, err := f.svc.History(ctx, 1, locationID)
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Equal(t, level.ChangeDeleted, changes[1].Type)
	}

	untouched, err := f.svc.History(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, untouched, 1)

	require.Len(t, f.notifier.sent, 5)
	assert.Equal(t, level.ChangeDeleted, f.notifier.sent[3].change.Type)
	assert.Equal(t, level.ChangeDeleted, f.notifier.sent[4].change.Type)
}

func TestLocationDeleteRecordsCascadedLevels(t *testing.T) {
	f := newFixture(t)
	f.addItems(t, 1, 2)
	f.addLocations(t, 10, 20)
	ctx := context.Background()

	for _, pair := range [][2]int64{{1, 10}, {2, 10}, {2, 20}} {
		_, err := f.svc.Connect(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	locations := location.NewService(f.store.Locations(), f.svc, zap.NewNop(), nil)
	_, err := locations.DeleteLocation(ctx, 10)
	require.NoError(t, err)

	for _, itemID := range []int64{1, 2} {
		changes, err := f.svc.History(ctx, itemID, 10)
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Equal(t, level.ChangeDeleted, changes[1].Type)
	}

	n, err := locations.DeleteLocation(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.notifier.sent, 5)
}

func TestHistoryWithoutJournal(t *testing.T) {
	store := memstore.New()
	validator := validation.New(store.Items(), store.Locations(), store.Levels())
	svc := level.NewService(store.Levels(), validator, nil, nil, zap.NewNop(), nil)

	changes, err := svc.History(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestAggregateIDIsStable(t *testing.T) {
	assert.Equal(t, level.AggregateID(1, 10), level.AggregateID(1, 10))
	assert.NotEqual(t, level.AggregateID(1, 10), level.AggregateID(10, 1))
}

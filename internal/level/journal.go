// internal/level/journal.go
package level

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"inventoryapi/internal/eventstore"

	"github.com/google/uuid"
)

const aggregateType = "inventory_level"

// aggregateNamespace scopes the deterministic stream ids of levels.
var aggregateNamespace = uuid.MustParse("5d0c6f7e-2a43-4c59-9a3e-8f3f0f6f7b21")

// AggregateID is the event stream id of the level for the pair.
func AggregateID(itemID, locationID int64) uuid.UUID {
	name := strconv.FormatInt(itemID, 10) + ":" + strconv.FormatInt(locationID, 10)
	return uuid.NewSHA1(aggregateNamespace, []byte(name))
}

type eventJournal struct {
	store eventstore.Store
}

// NewJournal records level changes as events in store.
func NewJournal(store eventstore.Store) Journal {
	return &eventJournal{store: store}
}

func (j *eventJournal) Record(ctx context.Context, change Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal level change: %w", err)
	}

	_, err = j.store.Append(ctx, eventstore.Event{
		AggregateID:   AggregateID(change.InventoryItemID, change.LocationID),
		AggregateType: aggregateType,
		EventType:     change.Type,
		EventData:     data,
		CreatedAt:     change.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("append level change: %w", err)
	}
	return nil
}

func (j *eventJournal) History(ctx context.Context, itemID, locationID int64) ([]Change, error) {
	events, err := j.store.Load(ctx, AggregateID(itemID, locationID))
	if err != nil {
		return nil, fmt.Errorf("load level changes: %w", err)
	}

	changes := make([]Change, 0, len(events))
	for _, event := range events {
		var change Change
		if err := json.Unmarshal(event.EventData, &change); err != nil {
			return nil, fmt.Errorf("decode level change %d: %w", event.ID, err)
		}
		change.Version = event.Version
		changes = append(changes, change)
	}
	return changes, nil
}

package eventstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps events in process. It backs STORE_DRIVER=memory.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	streams map[uuid.UUID][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[uuid.UUID][]Event)}
}

func (m *MemoryStore) Append(_ context.Context, event Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	event.ID = m.nextID
	event.Version = len(m.streams[event.AggregateID]) + 1
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	m.streams[event.AggregateID] = append(m.streams[event.AggregateID], event)
	return event, nil
}

func (m *MemoryStore) Load(_ context.Context, aggregateID uuid.UUID) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stream := m.streams[aggregateID]
	events := make([]Event, len(stream))
	copy(events, stream)
	return events, nil
}

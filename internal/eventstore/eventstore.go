// Package eventstore is an append-only log of versioned events per aggregate.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")

const maxAppendAttempts = 3

// Event is one entry in an aggregate's stream.
type Event struct {
	ID            int64             `json:"id"`
	AggregateID   uuid.UUID         `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	EventType     string            `json:"event_type"`
	EventData     json.RawMessage   `json:"event_data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Version       int               `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Store appends events and loads them back in version order.
type Store interface {
	// Append stores event as the next version of its aggregate and returns
	// it with ID, Version and CreatedAt filled in.
	Append(ctx context.Context, event Event) (Event, error)
	Load(ctx context.Context, aggregateID uuid.UUID) ([]Event, error)
}

// EventStore is the Postgres implementation of Store.
type EventStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{
		db:     db,
		tracer: otel.Tracer("inventoryapi/eventstore"),
	}
}

// Append retries when a concurrent writer takes the same version.
func (es *EventStore) Append(ctx context.Context, event Event) (Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", event.AggregateID.String()),
			attribute.String("aggregate.type", event.AggregateType),
			attribute.String("event.type", event.EventType),
		),
	)
	defer span.End()

	var err error
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		var stored Event
		stored, err = es.appendOnce(ctx, event)
		if err == nil {
			span.SetAttributes(
				attribute.Int64("event.id", stored.ID),
				attribute.Int("event.version", stored.Version),
				attribute.Int("append.attempts", attempt),
			)
			return stored, nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			break
		}
		span.AddEvent("append.conflict", trace.WithAttributes(attribute.Int("attempt", attempt)))
	}

	span.RecordError(err)
	return Event{}, err
}

func (es *EventStore) appendOnce(ctx context.Context, event Event) (Event, error) {
	tx, err := es.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return Event{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE aggregate_id = $1
	`, event.AggregateID).Scan(&currentVersion)
	if err != nil {
		return Event{}, conflictOr(fmt.Errorf("query current version: %w", err))
	}

	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return Event{}, fmt.Errorf("marshal metadata: %w", err)
	}

	event.Version = currentVersion + 1
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO events (aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		[]byte(event.EventData),
		metadataJSON,
		event.Version,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return Event{}, conflictOr(fmt.Errorf("insert event: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return Event{}, conflictOr(fmt.Errorf("commit transaction: %w", err))
	}
	return event, nil
}

// conflictOr maps unique violations and serialization failures to
// ErrConcurrencyConflict.
func conflictOr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == "23505" || pqErr.Code == "40001") {
		return ErrConcurrencyConflict
	}
	return err
}

// Load returns every event of the aggregate in version order.
func (es *EventStore) Load(ctx context.Context, aggregateID uuid.UUID) ([]Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID.String())),
	)
	defer span.End()

	rows, err := es.db.QueryContext(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at
		FROM events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var event Event
		var data, metadataJSON []byte

		err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.AggregateType,
			&event.EventType,
			&data,
			&metadataJSON,
			&event.Version,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.EventData = json.RawMessage(data)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of event %d: %w", event.ID, err)
			}
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// internal/level/implementation.go
package level

import (
	"context"
	"fmt"
	"time"

	"inventoryapi/internal/apperr"
	"inventoryapi/internal/batch"
	"inventoryapi/internal/clock"
	"inventoryapi/internal/validation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const journalTimeout = 2 * time.Second

type service struct {
	repo      Repository
	validator *validation.Validator
	journal   Journal
	notifier  Notifier
	log       *zap.Logger
	now       clock.Func
	tracer    trace.Tracer
}

// NewService creates a new inventory level service. journal and notifier are
// optional.
func NewService(repo Repository, validator *validation.Validator, journal Journal, notifier Notifier, log *zap.Logger, now clock.Func) Service {
	return &service{
		repo:      repo,
		validator: validator,
		journal:   journal,
		notifier:  notifier,
		log:       log,
		now:       clock.OrNow(now),
		tracer:    otel.Tracer("inventoryapi/level"),
	}
}

func pairAttributes(itemID, locationID int64) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.Int64("item.id", itemID),
		attribute.Int64("location.id", locationID),
	)
}

// Connect creates an empty level for an existing item and location.
func (s *service) Connect(ctx context.Context, itemID, locationID int64) (*Level, error) {
	ctx, span := s.tracer.Start(ctx, "level.connect", pairAttributes(itemID, locationID))
	defer span.End()

	level := &Level{
		InventoryItemID: itemID,
		LocationID:      locationID,
		Available:       0,
		UpdatedAt:       s.now(),
	}

	inserted, err := s.repo.Insert(ctx, level)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("connect inventory level: %w", err)
	}
	if !inserted {
		// The guarded insert declined; work out which precondition failed.
		if err := s.validator.CanConnect(ctx, itemID, locationID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("connect inventory level: %w", err)
		}
		return nil, fmt.Errorf("connect inventory level: item %d at location %d: %w", itemID, locationID, apperr.ErrAlreadyConnected)
	}

	s.log.Info("Inventory level connected", zap.Int64("item_id", itemID), zap.Int64("location_id", locationID))
	s.afterWrite(ctx, changeFor(ChangeConnected, level))
	return level, nil
}

// Set overwrites the available quantity of a connected level.
func (s *service) Set(ctx context.Context, itemID, locationID, available int64) (*Level, error) {
	ctx, span := s.tracer.Start(ctx, "level.set", pairAttributes(itemID, locationID))
	defer span.End()

	level, err := s.repo.Set(ctx, itemID, locationID, available, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("set inventory level %d/%d: %w", itemID, locationID, err)
	}

	s.log.Info("Inventory level set",
		zap.Int64("item_id", itemID),
		zap.Int64("location_id", locationID),
		zap.Int64("available", available),
	)
	s.afterWrite(ctx, changeFor(ChangeSet, level))
	return level, nil
}

// Adjust adds delta to the available quantity. Results may go negative.
func (s *service) Adjust(ctx context.Context, itemID, locationID, delta int64) (*Level, error) {
	ctx, span := s.tracer.Start(ctx, "level.adjust", pairAttributes(itemID, locationID))
	defer span.End()
	span.SetAttributes(attribute.Int64("available.adjustment", delta))

	level, err := s.repo.Adjust(ctx, itemID, locationID, delta, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("adjust inventory level %d/%d: %w", itemID, locationID, err)
	}

	observeAdjustment(delta)
	s.log.Info("Inventory level adjusted",
		zap.Int64("item_id", itemID),
		zap.Int64("location_id", locationID),
		zap.Int64("adjustment", delta),
		zap.Int64("available", level.Available),
	)

	change := changeFor(ChangeAdjusted, level)
	change.Adjustment = delta
	s.afterWrite(ctx, change)
	return level, nil
}

// RetrieveLevels returns one entry per (item, location) pair, items in the
// outer loop.
func (s *service) RetrieveLevels(ctx context.Context, itemIDs, locationIDs []int64) ([]batch.Entry[Level], error) {
	ctx, span := s.tracer.Start(ctx, "level.retrieve", trace.WithAttributes(
		attribute.Int("item_ids.count", len(itemIDs)),
		attribute.Int("location_ids.count", len(locationIDs)),
	))
	defer span.End()

	found, err := s.repo.GetMany(ctx, itemIDs, locationIDs)
	if err != nil {
		return nil, fmt.Errorf("retrieve inventory levels: %w", err)
	}

	entries := make([]batch.Entry[Level], 0, len(itemIDs)*len(locationIDs))
	for _, itemID := range itemIDs {
		for _, locationID := range locationIDs {
			if level, ok := found[Key{ItemID: itemID, LocationID: locationID}]; ok {
				entries = append(entries, batch.Found(level))
				continue
			}
			entries = append(entries, batch.Missing[Level]("inventory level for item %d at location %d not found", itemID, locationID))
		}
	}
	return entries, nil
}

func (s *service) ListLevels(ctx context.Context) ([]*Level, error) {
	ctx, span := s.tracer.Start(ctx, "level.list")
	defer span.End()

	levels, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inventory levels: %w", err)
	}
	return levels, nil
}

// Delete disconnects a level. Deleting an unconnected pair is not an error.
func (s *service) Delete(ctx context.Context, itemID, locationID int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "level.delete", pairAttributes(itemID, locationID))
	defer span.End()

	deleted, err := s.repo.Delete(ctx, itemID, locationID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("delete inventory level %d/%d: %w", itemID, locationID, err)
	}

	s.log.Info("Inventory level deleted",
		zap.Int64("item_id", itemID),
		zap.Int64("location_id", locationID),
		zap.Int64("deleted", deleted),
	)
	if deleted > 0 {
		s.afterWrite(ctx, Change{
			Type:            ChangeDeleted,
			InventoryItemID: itemID,
			LocationID:      locationID,
			OccurredAt:      s.now(),
		})
	}
	return deleted, nil
}

func (s *service) Detached(ctx context.Context, keys []Key) {
	if len(keys) == 0 {
		return
	}
	ctx, span := s.tracer.Start(ctx, "level.detached", trace.WithAttributes(attribute.Int("levels.count", len(keys))))
	defer span.End()

	at := s.now()
	for _, key := range keys {
		s.log.Info("Inventory level removed by cascade",
			zap.Int64("item_id", key.ItemID),
			zap.Int64("location_id", key.LocationID),
		)
		s.afterWrite(ctx, Change{
			Type:            ChangeDeleted,
			InventoryItemID: key.ItemID,
			LocationID:      key.LocationID,
			OccurredAt:      at,
		})
	}
}

// History returns the recorded changes of a level, oldest first.
func (s *service) History(ctx context.Context, itemID, locationID int64) ([]Change, error) {
	ctx, span := s.tracer.Start(ctx, "level.history", pairAttributes(itemID, locationID))
	defer span.End()

	if s.journal == nil {
		return []Change{}, nil
	}

	changes, err := s.journal.History(ctx, itemID, locationID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("inventory level history %d/%d: %w", itemID, locationID, err)
	}
	return changes, nil
}

// afterWrite records and publishes a change. The write has already happened,
// so failures are logged and counted instead of returned, and the caller
// going away does not cancel them.
func (s *service) afterWrite(ctx context.Context, change Change) {
	ctx = context.WithoutCancel(ctx)

	if s.journal != nil {
		recordCtx, cancel := context.WithTimeout(ctx, journalTimeout)
		err := s.journal.Record(recordCtx, change)
		cancel()
		if err != nil {
			sideEffectFailuresTotal.WithLabelValues("journal").Inc()
			s.log.Warn("Failed to record inventory level change",
				zap.String("type", change.Type),
				zap.Int64("item_id", change.InventoryItemID),
				zap.Int64("location_id", change.LocationID),
				zap.Error(err),
			)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, RoutingKeyUpdated, change); err != nil {
			sideEffectFailuresTotal.WithLabelValues("publisher").Inc()
			s.log.Warn("Failed to publish inventory level change",
				zap.String("type", change.Type),
				zap.Int64("item_id", change.InventoryItemID),
				zap.Int64("location_id", change.LocationID),
				zap.Error(err),
			)
		}
	}
}

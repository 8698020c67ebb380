// internal/item/implementation.go
package item

import (
	"context"
	"fmt"

	"inventoryapi/internal/batch"
	"inventoryapi/internal/clock"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	levels LevelDetacher
	log    *zap.Logger
	now    clock.Func
	tracer trace.Tracer
}

// NewService creates a new inventory item service instance. levels may be nil.
func NewService(repo Repository, levels LevelDetacher, log *zap.Logger, now clock.Func) Service {
	return &service{
		repo:   repo,
		levels: levels,
		log:    log,
		now:    clock.OrNow(now),
		tracer: otel.Tracer("inventoryapi/item"),
	}
}

// CreateItem stores a new item. The id must not be in use.
func (s *service) CreateItem(ctx context.Context, id int64, fields Fields) (*Item, error) {
	ctx, span := s.tracer.Start(ctx, "item.create", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	item := &Item{
		ID:        id,
		Fields:    fields,
		CreatedAt: s.now(),
	}

	if err := s.repo.Insert(ctx, item); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create inventory item %d: %w", id, err)
	}

	s.log.Info("Inventory item created", zap.Int64("item_id", id), zap.String("sku", fields.SKU))
	return item, nil
}

// GetItem retrieves an item by its id.
func (s *service) GetItem(ctx context.Context, id int64) (*Item, error) {
	ctx, span := s.tracer.Start(ctx, "item.get", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inventory item %d: %w", id, err)
	}
	return item, nil
}

// GetItems looks up every id in order. Missing ids yield a placeholder
// entry instead of failing the batch.
func (s *service) GetItems(ctx context.Context, ids []int64) ([]batch.Entry[Item], error) {
	ctx, span := s.tracer.Start(ctx, "item.get_many", trace.WithAttributes(attribute.Int("ids.count", len(ids))))
	defer span.End()

	found, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get inventory items: %w", err)
	}

	entries := make([]batch.Entry[Item], 0, len(ids))
	for _, id := range ids {
		if item, ok := found[id]; ok {
			entries = append(entries, batch.Found(item))
			continue
		}
		entries = append(entries, batch.Missing[Item]("inventory item %d not found", id))
	}

	span.SetAttributes(attribute.Int("items.found", len(found)))
	return entries, nil
}

// ListItems returns every stored item.
func (s *service) ListItems(ctx context.Context) ([]*Item, error) {
	ctx, span := s.tracer.Start(ctx, "item.list")
	defer span.End()

	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	return items, nil
}

// EditItem replaces the mutable fields of an existing item.
func (s *service) EditItem(ctx context.Context, id int64, fields Fields) (*Item, error) {
	ctx, span := s.tracer.Start(ctx, "item.edit", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	updatedAt := s.now()
	item := &Item{
		ID:        id,
		Fields:    fields,
		UpdatedAt: &updatedAt,
	}

	if err := s.repo.Update(ctx, item); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("edit inventory item %d: %w", id, err)
	}

	s.log.Info("Inventory item updated", zap.Int64("item_id", id))
	return item, nil
}

// DeleteItem removes an item. Deleting an unknown id is not an error.
func (s *service) DeleteItem(ctx context.Context, id int64) (int64, error) {
	return s.DeleteItems(ctx, []int64{id})
}

// DeleteItems removes each id and reports how many items were actually removed.
func (s *service) DeleteItems(ctx context.Context, ids []int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "item.delete", trace.WithAttributes(attribute.Int("ids.count", len(ids))))
	defer span.End()

	deleted, detached, err := s.repo.Delete(ctx, ids...)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("delete inventory items: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("items.deleted", deleted),
		attribute.Int("levels.detached", len(detached)),
	)
	s.log.Info("Inventory items deleted",
		zap.Int64s("item_ids", ids),
		zap.Int64("deleted", deleted),
		zap.Int("levels_detached", len(detached)),
	)
	if s.levels != nil {
		s.levels.Detached(ctx, detached)
	}
	return deleted, nil
}

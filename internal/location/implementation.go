// internal/location/implementation.go
package location

import (
	"context"
	"fmt"

	"inventoryapi/internal/clock"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type service struct {
	repo   Repository
	levels LevelDetacher
	log    *zap.Logger
	now    clock.Func
	tracer trace.Tracer
}

// NewService creates a new location service instance.
func NewService(repo Repository, levels LevelDetacher, log *zap.Logger, now clock.Func) Service {
	return &service{
		repo:   repo,
		levels: levels,
		log:    log,
		now:    clock.OrNow(now),
		tracer: otel.Tracer("inventoryapi/location"),
	}
}

// CreateLocation stores a new, active location.
func (s *service) CreateLocation(ctx context.Context, id int64, fields Fields) (*Location, error) {
	ctx, span := s.tracer.Start(ctx, "location.create", trace.WithAttributes(attribute.Int64("location.id", id)))
	defer span.End()

	location := &Location{
		ID:        id,
		Fields:    fields,
		Active:    true,
		CreatedAt: s.now(),
	}

	if err := s.repo.Insert(ctx, location); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create location %d: %w", id, err)
	}

	s.log.Info("Location created", zap.Int64("location_id", id), zap.String("name", fields.Name))
	return location, nil
}

func (s *service) GetLocation(ctx context.Context, id int64) (*Location, error) {
	ctx, span := s.tracer.Start(ctx, "location.get", trace.WithAttributes(attribute.Int64("location.id", id)))
	defer span.End()

	location, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("location %d: %w", id, err)
	}
	return location, nil
}

func (s *service) ListLocations(ctx context.Context) ([]*Location, error) {
	ctx, span := s.tracer.Start(ctx, "location.list")
	defer span.End()

	locations, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

// DeleteLocation removes a location together with its inventory levels.
func (s *service) DeleteLocation(ctx context.Context, id int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "location.delete", trace.WithAttributes(attribute.Int64("location.id", id)))
	defer span.End()

	deleted, detached, err := s.repo.Delete(ctx, id)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("delete location %d: %w", id, err)
	}

	s.log.Info("Location deleted",
		zap.Int64("location_id", id),
		zap.Int64("deleted", deleted),
		zap.Int("levels_detached", len(detached)),
	)
	if s.levels != nil {
		s.levels.Detached(ctx, detached)
	}
	return deleted, nil
}

// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"inventoryapi/internal/api"
	"inventoryapi/internal/config"
	"inventoryapi/internal/database"
	"inventoryapi/internal/events"
	"inventoryapi/internal/eventstore"
	"inventoryapi/internal/health"
	"inventoryapi/internal/idempotency"
	"inventoryapi/internal/item"
	"inventoryapi/internal/level"
	"inventoryapi/internal/location"
	"inventoryapi/internal/logging"
	"inventoryapi/internal/memstore"
	"inventoryapi/internal/telemetry"
	"inventoryapi/internal/validation"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// stores bundles the repositories of whichever backend is configured.
type stores struct {
	items     item.Repository
	locations location.Repository
	levels    level.Repository
	events    eventstore.Store
	check     health.Check
	close     func() error
}

func main() {
	cfg := config.Load()

	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Inventory service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Inventory service starting",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
	)

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("Tracer shutdown error", zap.Error(err))
		}
	}()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	checks := []health.Check{st.check}

	var notifier level.Notifier
	if cfg.RabbitMQURL != "" {
		publisher, err := events.NewPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, level change events disabled", zap.Error(err))
		} else {
			defer publisher.Close()
			notifier = publisher
			checks = append(checks, health.Check{Name: "rabbitmq", Probe: func(context.Context) error {
				if !publisher.IsHealthy() {
					return errors.New("connection closed")
				}
				return nil
			}})
		}
	}

	var claimer idempotency.Claimer
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unavailable, idempotency keys disabled", zap.Error(err))
		} else {
			claimer = idempotency.NewRedisClaimer(client)
			checks = append(checks, health.Check{Name: "redis", Probe: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}})
		}
	}

	validator := validation.New(st.items, st.locations, st.levels)
	checker := health.NewChecker(log, checks...)
	levels := level.NewService(st.levels, validator, level.NewJournal(st.events), notifier, log, nil)

	router := api.NewRouter(ctx, api.Dependencies{
		Config:      cfg,
		Log:         log,
		Items:       item.NewService(st.items, levels, log, nil),
		Locations:   location.NewService(st.locations, levels, log, nil),
		Levels:      levels,
		Health:      checker,
		Idempotency: claimer,
	})

	grpcServer := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, health.NewServer(checker))
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen on gRPC port: %w", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("Starting gRPC health server", zap.String("address", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("serve gRPC: %w", err)
		}
	}()
	go func() {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve HTTP: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-errCh:
		log.Error("Server error, shutting down", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()

	log.Info("Server stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("Using in-memory store, data is lost on exit")
		mem := memstore.New()
		return &stores{
			items:     mem.Items(),
			locations: mem.Locations(),
			levels:    mem.Levels(),
			events:    eventstore.NewMemoryStore(),
			check:     health.Check{Name: "store", Probe: mem.Ping},
			close:     func() error { return nil },
		}, nil

	case config.StoreDriverPostgres:
		log.Info("Connecting to database...")
		db, err := database.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.MigrateOnStart {
			log.Info("Running database migrations...")
			if err := database.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &stores{
			items:     item.NewPostgresRepository(db, cfg.QueryTimeout),
			locations: location.NewPostgresRepository(db, cfg.QueryTimeout),
			levels:    level.NewPostgresRepository(db, cfg.QueryTimeout),
			events:    eventstore.NewEventStore(db),
			check:     health.Check{Name: "database", Probe: db.PingContext},
			close:     db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

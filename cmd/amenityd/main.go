package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/amenity-booking/internal/application"
	"github.com/example/amenity-booking/internal/config"
	"github.com/example/amenity-booking/internal/events"
	httptransport "github.com/example/amenity-booking/internal/http"
	"github.com/example/amenity-booking/internal/logging"
	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/persistence/memory"
	"github.com/example/amenity-booking/internal/persistence/postgres"
	"github.com/example/amenity-booking/internal/persistence/sqlite"
	"github.com/example/amenity-booking/internal/seed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "amenityd",
	})

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("amenityd stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, store, cfg.SeedFile, logger); err != nil {
			return err
		}
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := publisher.Close(); cerr != nil {
			logger.Error("failed to close event publisher", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           buildHandler(cfg, store, publisher, time.Now, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("amenity booking API listening", "addr", server.Addr, "store", cfg.Store, "time_zone", cfg.TimeZone)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// openStore opens and migrates the configured backend.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.Open(), nil
	case config.StorePostgres:
		storage, err := postgres.Open(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return storage, nil
	case config.StoreSQLite:
		storage, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func applySeed(ctx context.Context, store persistence.CatalogWriter, path string, logger *slog.Logger) error {
	doc, err := seed.Load(path)
	if err != nil {
		return err
	}
	counts, err := seed.Apply(ctx, store, doc, time.Now())
	if err != nil {
		return err
	}
	logger.Info("seed applied",
		"file", path,
		"buildings", counts.Buildings,
		"spaces", counts.Spaces,
		"users", counts.Users,
	)
	return nil
}

func newPublisher(cfg config.Config, logger *slog.Logger) (events.Publisher, error) {
	if !cfg.KafkaEnabled() {
		return events.Noop{}, nil
	}
	publisher, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return publisher, nil
}

// buildHandler wires every service over store and returns the HTTP entry point.
func buildHandler(cfg config.Config, store persistence.Store, publisher events.Publisher, now func() time.Time, logger *slog.Logger) http.Handler {
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	restrictions := application.NewRestrictionService(store, store, publisher, now, logger)
	bookings := application.NewBookingService(application.BookingServiceDeps{
		Bookings:     store,
		Spaces:       store,
		Restrictions: restrictions,
		Publisher:    publisher,
		IDGenerator:  uuid.NewString,
		Now:          now,
		Location:     location,
		Logger:       logger,
	})
	calendars := application.NewCalendarService(application.CalendarServiceDeps{
		Bookings:       store,
		Spaces:         store,
		Users:          store,
		Restrictions:   restrictions,
		Now:            now,
		Location:       location,
		BuildingWindow: cfg.BuildingWindow,
		Logger:         logger,
	})
	stats := application.NewStatsService(store, store, store, now, cfg.StatsWindowMonths, logger)
	export := application.NewExportService(application.ExportServiceDeps{
		Bookings:  store,
		Spaces:    store,
		Users:     store,
		Now:       now,
		ProdID:    cfg.ICSProdID,
		UIDDomain: cfg.ICSUIDDomain,
		Logger:    logger,
	})
	feeds := application.NewFeedService(application.FeedServiceDeps{
		Feeds:       store,
		Spaces:      store,
		Exporter:    export,
		IDGenerator: uuid.NewString,
		Now:         now,
		Logger:      logger,
	})

	return httptransport.NewRouter(httptransport.RouterConfig{
		Health:       httptransport.NewHealthHandler(store, logger),
		Bookings:     httptransport.NewBookingHandler(bookings, logger),
		Calendars:    httptransport.NewCalendarHandler(calendars, stats, export, logger),
		Restrictions: httptransport.NewRestrictionHandler(restrictions, logger),
		Feeds:        httptransport.NewFeedHandler(feeds, logger),
		Logger:       logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recover(logger),
			httptransport.Identity(logger),
		},
	})
}

// Package sqlite implements persistence.Store on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage is the SQLite backed store. Every write transaction starts with
// BEGIN IMMEDIATE, so writers are serialised by the database lock.
type Storage struct {
	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open opens the database at path with the default configuration.
func Open(path string, logger *slog.Logger) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(path), logger)
}

// OpenWithConfig opens the database described by config.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if !config.ImmediateTransactions {
		return nil, fmt.Errorf("sqlite: immediate transactions are required for booking serialisation")
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{pool: pool, logger: logger}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	files, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: migrations: %w", err)
	}
	manager := migration.NewManager(migration.NewFileScanner(), migration.NewSQLiteExecutor(s.pool.DB()), files, s.logger)
	return manager.RunMigrations(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Ping checks the connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

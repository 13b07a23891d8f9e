package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/persistence/memory"
	"github.com/example/amenity-booking/internal/persistence/sqlite"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSQLiteStore opens a migrated SQLite store on a temporary file. The store
// is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) persistence.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "amenity.db")
	storage, err := sqlite.Open(path, DiscardLogger())
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	tb.Cleanup(func() { _ = storage.Close() })
	return storage
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(tb testing.TB) persistence.Store {
	tb.Helper()
	storage := memory.Open()
	tb.Cleanup(func() { _ = storage.Close() })
	return storage
}

// StoreFactory opens a fresh store for one test.
type StoreFactory struct {
	Name string
	Open func(tb testing.TB) persistence.Store
}

// StoreFactories lists every backend. The Postgres entry skips its tests when
// no test database is configured.
func StoreFactories() []StoreFactory {
	return []StoreFactory{
		{Name: "memory", Open: NewMemoryStore},
		{Name: "sqlite", Open: NewSQLiteStore},
		{Name: "postgres", Open: NewPostgresStore},
	}
}

package testfixtures

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/persistence/postgres"
)

// PostgresURLEnv names the variable holding the test database DSN.
const PostgresURLEnv = "AMENITY_TEST_POSTGRES_URL"

const testDBLockID int64 = 742019332

// NewPostgresStore connects to the database named by AMENITY_TEST_POSTGRES_URL,
// migrates it and empties every table. Tests are skipped when the variable is
// unset or the database is unreachable. Tests sharing the database are
// serialized with an advisory lock.
func NewPostgresStore(tb testing.TB) persistence.Store {
	tb.Helper()

	dsn := os.Getenv(PostgresURLEnv)
	if dsn == "" {
		tb.Skipf("skipping Postgres tests: %s not set", PostgresURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		tb.Fatalf("failed to parse config: %v", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		tb.Fatalf("failed to create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		tb.Skipf("skipping Postgres tests: %v", err)
	}
	tb.Cleanup(pool.Close)

	lockTestDB(tb, pool)

	storage := postgres.New(pool, DiscardLogger())
	if err := storage.Migrate(ctx); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE calendar_feeds, common_space_restrictions, common_space_bookings, common_spaces, users, buildings CASCADE`); err != nil {
		tb.Fatalf("truncate: %v", err)
	}
	return storage
}

func lockTestDB(tb testing.TB, pool *pgxpool.Pool) {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		tb.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		conn.Release()
		tb.Fatalf("acquire test lock: %v", err)
	}

	tb.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		conn.Release()
	})
}

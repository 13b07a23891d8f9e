// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_initial_schema.sql") and are read from an fs.FS, usually an
// embed.FS compiled into the binary. Applied versions are tracked in a
// schema_migrations table so each file runs exactly once, inside its own
// transaction.
//
// Example usage:
//
//	manager := NewManager(NewFileScanner(), NewSQLiteExecutor(db), files, logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration

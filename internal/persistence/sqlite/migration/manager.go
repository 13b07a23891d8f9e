package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
)

// Manager orchestrates the migration process
type Manager struct {
	scanner  FileScanner
	executor Executor
	files    fs.FS
	logger   *slog.Logger
}

// NewManager creates a Manager reading migrations from files.
func NewManager(scanner FileScanner, executor Executor, files fs.FS, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		files:    files,
		logger:   logger.With("component", "migration"),
	}
}

// RunMigrations executes all pending migrations in sequential order
func (m *Manager) RunMigrations(ctx context.Context) error {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.PendingMigrations) == 0 {
		m.logger.Debug("schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.Info("applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.PendingMigrations),
	)

	for i, migration := range status.PendingMigrations {
		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			m.logger.Error("migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return fileError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		m.logger.Info("migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"step", i+1,
			"of", len(status.PendingMigrations),
			"duration", elapsed,
		)
	}
	return nil
}

// Status compares the files with the version table. An applied version with
// no file, or whose file changed since it ran, is a conflict.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	available, err := m.scanner.ScanMigrations(m.files)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	byVersion := make(map[string]Migration, len(available))
	for _, migration := range available {
		byVersion[migration.Version] = migration
	}

	status := &Status{AppliedMigrations: applied}
	appliedSet := make(map[string]struct{}, len(applied))
	maxVersion := -1
	for _, a := range applied {
		migration, ok := byVersion[a.Version]
		if !ok {
			return nil, fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return nil, fileError(a.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
		appliedSet[a.Version] = struct{}{}
		if v, err := strconv.Atoi(a.Version); err == nil && v > maxVersion {
			maxVersion = v
			status.CurrentVersion = a.Version
		}
	}

	for _, migration := range available {
		if _, ok := appliedSet[migration.Version]; !ok {
			status.PendingMigrations = append(status.PendingMigrations, migration)
		}
	}
	return status, nil
}

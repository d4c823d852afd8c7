package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations once each, recording
// applied versions in schema_migrations.
type Migrator struct {
	db     *sql.DB
	driver string
	files  fs.FS
}

// MigrationStatus represents the status of migrations.
type MigrationStatus struct {
	Applied []string `json:"applied"`
	Pending []string `json:"pending"`
}

// UpToDate reports whether nothing is pending.
func (s *MigrationStatus) UpToDate() bool {
	return len(s.Pending) == 0
}

// NewMigrator creates a migrator for the given driver.
func NewMigrator(db *sql.DB, driver string) *Migrator {
	sub, _ := fs.Sub(migrationFiles, "migrations")
	return &Migrator{db: db, driver: driver, files: sub}
}

// Status compares the embedded migrations against the recorded versions.
func (m *Migrator) Status(ctx context.Context) (*MigrationStatus, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	versions, err := m.listMigrations()
	if err != nil {
		return nil, err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{Applied: []string{}, Pending: []string{}}
	for _, v := range versions {
		if applied[v] {
			status.Applied = append(status.Applied, v)
		} else {
			status.Pending = append(status.Pending, v)
		}
	}
	return status, nil
}

// Up applies every pending migration in version order and returns the
// versions it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	applied := []string{}
	for _, version := range status.Pending {
		if err := m.apply(ctx, version); err != nil {
			return applied, fmt.Errorf("run migration %s: %w", version, err)
		}
		applied = append(applied, version)
	}
	return applied, nil
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// listMigrations returns migration versions for this driver. SQLite prefers a
// "<version>_sqlite.sql" variant when one exists; Postgres ignores them.
func (m *Migrator) listMigrations() ([]string, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		seen[strings.TrimSuffix(strings.TrimSuffix(name, ".sql"), "_sqlite")] = true
	}

	versions := make([]string, 0, len(seen))
	for v := range seen {
		if _, err := m.fileFor(v); err == nil {
			versions = append(versions, v)
		}
	}
	sort.Strings(versions)
	return versions, nil
}

func (m *Migrator) fileFor(version string) (string, error) {
	candidates := []string{version + ".sql"}
	if m.driver == DriverSQLite || m.driver == "" {
		candidates = []string{version + "_sqlite.sql", version + ".sql"}
	}
	for _, name := range candidates {
		if _, err := fs.Stat(m.files, name); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("no migration file for %s", version)
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, version string) error {
	name, err := m.fileFor(version)
	if err != nil {
		return err
	}
	data, err := fs.ReadFile(m.files, name)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

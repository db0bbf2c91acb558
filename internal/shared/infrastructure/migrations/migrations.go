// Package migrations applies embedded schema migrations at startup.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/database"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Run applies all pending migrations for the connection's driver.
// Applied migrations are tracked in schema_migrations by filename.
func Run(ctx context.Context, conn database.Connection, logger *slog.Logger) error {
	driver := conn.Driver()

	if err := ensureVersionTable(ctx, conn); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, conn, driver)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}

	names, err := migrationNames(driver)
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		if err := apply(ctx, conn, driver, name); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		logger.Info("migration applied", slog.String("migration", name))
	}

	return nil
}

func ensureVersionTable(ctx context.Context, conn database.Connection) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func appliedVersions(ctx context.Context, conn database.Connection, driver database.Driver) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func migrationNames(driver database.Driver) ([]string, error) {
	entries, err := fs.ReadDir(files, string(driver))
	if err != nil {
		return nil, fmt.Errorf("no migrations for driver %s: %w", driver, err)
	}

	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func apply(ctx context.Context, conn database.Connection, driver database.Driver, name string) error {
	script, err := files.ReadFile(string(driver) + "/" + name)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Statements are separated by semicolons; none of our migrations
	// embed semicolons inside literals.
	for _, stmt := range strings.Split(string(script), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	marker := `INSERT INTO schema_migrations (version) VALUES ($1)`
	if driver == database.DriverSQLite {
		marker = `INSERT INTO schema_migrations (version) VALUES (?)`
	}
	if _, err := tx.Exec(ctx, marker, name); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

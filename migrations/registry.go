package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"

	relay "github.com/goliatone/go-relay"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	SourceLabel = "go-relay"
)

// Steps lists the schema migrations every dialect ships as up/down pairs.
var Steps = []string{"00001_relay_tenants", "00002_relay_messages"}

// Source is one dialect's migration directory.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

// Sources resolves the postgres and sqlite directories under
// data/sql/migrations of root, defaulting to the embedded relay schema.
// Every step must be present with both its up and down file.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = relay.GetMigrationsFS()
	}
	const basePath = "data/sql/migrations"
	base, err := fs.Sub(root, basePath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", basePath, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: basePath + "/sqlite", FS: sqliteFS},
	}
	for _, source := range sources {
		for _, step := range Steps {
			for _, suffix := range []string{".up.sql", ".down.sql"} {
				if _, statErr := fs.Stat(source.FS, step+suffix); statErr != nil {
					return nil, fmt.Errorf("migrations: %s is missing %s%s: %w", source.Dialect, step, suffix, statErr)
				}
			}
		}
	}
	return sources, nil
}

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

// Register hands the embedded source of each requested dialect to
// registerFn. With no dialects both are registered.
func Register(ctx context.Context, registerFn RegisterFunc, dialects ...string) ([]Source, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	targets := []string{DialectPostgres, DialectSQLite}
	if len(dialects) > 0 {
		targets = targets[:0]
		for _, dialect := range dialects {
			dialect = strings.TrimSpace(strings.ToLower(dialect))
			if dialect != DialectPostgres && dialect != DialectSQLite {
				return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
			}
			if !slices.Contains(targets, dialect) {
				targets = append(targets, dialect)
			}
		}
	}

	sources, err := Sources(nil)
	if err != nil {
		return nil, err
	}
	registered := make([]Source, 0, len(targets))
	for _, source := range sources {
		if !slices.Contains(targets, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, SourceLabel, source.FS); err != nil {
			return registered, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		registered = append(registered, source)
	}
	return registered, nil
}

// Apply registers the relay schema for driver on a go-persistence-bun client
// and runs the pending migrations.
func Apply(ctx context.Context, client *persistence.Client, driver string) error {
	if client == nil {
		return fmt.Errorf("migrations: persistence client is required")
	}
	dialect, err := DialectForDriver(driver)
	if err != nil {
		return err
	}
	if _, err := Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, dialect); err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: migrate %s: %w", dialect, err)
	}
	return nil
}

package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	identitysync "github.com/goliatone/go-identity-sync"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultSourceLabel = "go-identity-sync"

	migrationsDir = "data/sql/migrations"
)

// Dialects lists every dialect that ships a migration tree.
var Dialects = []string{DialectPostgres, DialectSQLite}

// Source is the migration tree for one dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel string
	Dialects    []string
	Sources     []Source
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets restricts registration to the named dialects.
func WithValidationTargets(dialects ...string) Option {
	return func(r *Registration) {
		if next := normalizeDialects(dialects); len(next) > 0 {
			r.Dialects = next
		}
	}
}

// Sources resolves the postgres tree (the migrations root) and the sqlite
// tree beneath it. Each must hold at least one *.up.sql file.
func Sources(roots ...fs.FS) ([]Source, error) {
	root := identitysync.GetMigrationsFS()
	if len(roots) > 0 && roots[0] != nil {
		root = roots[0]
	}

	postgresFS, err := fs.Sub(root, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: open %s: %w", migrationsDir, err)
	}
	sqliteFS, err := fs.Sub(postgresFS, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: open sqlite tree: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: migrationsDir, FS: postgresFS},
		{Dialect: DialectSQLite, Path: migrationsDir + "/" + DialectSQLite, FS: sqliteFS},
	}
	for _, source := range sources {
		ups, globErr := fs.Glob(source.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: list %s: %w", source.Path, globErr)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s tree %q has no *.up.sql files", source.Dialect, source.Path)
		}
	}
	return sources, nil
}

// Register calls registerFn once per selected dialect.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: DefaultSourceLabel,
		Dialects:    slices.Clone(Dialects),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	sources, err := Sources()
	if err != nil {
		return reg, err
	}
	reg.Sources = sources

	for _, source := range sources {
		if !slices.Contains(reg.Dialects, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.SourceLabel, source.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
	}
	return reg, nil
}

// ForDialect hands the single tree for dialect to register. It is the shape
// go-persistence-bun's RegisterSQLMigrations expects.
func ForDialect(ctx context.Context, dialect string, register func(fs.FS)) error {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	if !slices.Contains(Dialects, dialect) {
		return fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	if register == nil {
		return fmt.Errorf("migrations: register function is required")
	}
	_, err := Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		register(fsys)
		return nil
	}, WithValidationTargets(dialect))
	return err
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

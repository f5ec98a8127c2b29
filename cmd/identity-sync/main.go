package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	identitysync "github.com/goliatone/go-identity-sync"
	"github.com/goliatone/go-identity-sync/adapters/gologger"
	"github.com/goliatone/go-identity-sync/core"
	identitymigrations "github.com/goliatone/go-identity-sync/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "identity-sync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := core.LoadConfig(ctx, core.NewCfgxConfigProvider(core.NewEnvConfigLoader()), nil, core.Config{})
	if err != nil {
		return err
	}
	logger := gologger.NewConsoleLogger(cfg.ServiceName, gologger.ConsoleOptions{
		Format: cfg.Log.Format,
		Level:  cfg.Log.Level,
	})

	client, err := openPersistence(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer client.Close()

	svc, err := identitysync.New(cfg, client, identitysync.WithLoggerProvider(logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           svc.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr, "webhook_path", cfg.HTTP.WebhookPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openPersistence connects, registers the dialect's migrations and applies
// them before any request is served.
func openPersistence(ctx context.Context, cfg core.DatabaseConfig) (*persistence.Client, error) {
	driver, dialect, migrationDialect, err := resolveDialect(cfg.GetDriver())
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == core.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	err = identitymigrations.ForDialect(ctx, migrationDialect, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return client, nil
}

func resolveDialect(driver string) (string, schema.Dialect, string, error) {
	switch driver {
	case core.DriverPostgres:
		return "postgres", pgdialect.New(), identitymigrations.DialectPostgres, nil
	case core.DriverSQLite:
		return "sqlite3", sqlitedialect.New(), identitymigrations.DialectSQLite, nil
	default:
		return "", nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

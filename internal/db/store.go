// Package db opens the configured store backend and event publisher from
// their connection URLs.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/H3199/duunikanban/internal/migrations"
	"github.com/H3199/duunikanban/internal/store"
	"github.com/H3199/duunikanban/internal/store/postgres"
	"github.com/H3199/duunikanban/internal/store/sqlite"
)

// Backend names the store implementation selected by a database URL.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// BackendFor maps a database URL to its backend.
func BackendFor(databaseURL string) (Backend, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return BackendPostgres, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return BackendSQLite, nil
	}
	return "", fmt.Errorf("unsupported DATABASE_URL scheme in %q", redact(databaseURL))
}

// OpenStore connects to the backend named by databaseURL. Postgres schemas
// are migrated first when migrate is set; SQLite always migrates on open.
func OpenStore(ctx context.Context, databaseURL string, migrate bool) (store.Store, error) {
	backend, err := BackendFor(databaseURL)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendPostgres:
		if migrate {
			if err := migrations.Up(databaseURL); err != nil {
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
			slog.Info("postgres schema up to date")
		}
		return openPostgres(ctx, databaseURL)
	default:
		return sqlite.Open(ctx, sqlite.DSN(databaseURL))
	}
}

// openPostgres builds the pool from databaseURL (pool_* query parameters
// are honoured by pgxpool) and verifies the store answers before returning it.
func openPostgres(ctx context.Context, databaseURL string) (store.Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url %s: %w", redact(databaseURL), err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	st := postgres.New(pool)
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("postgres ping %s: %w", redact(databaseURL), err)
	}
	slog.Info("postgres connected", "url", redact(databaseURL), "max_conns", cfg.MaxConns)
	return st, nil
}

// redact drops everything between the scheme and the host so credentials
// never reach the logs.
func redact(databaseURL string) string {
	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return "<invalid>"
	}
	if _, host, ok := strings.Cut(rest, "@"); ok {
		return scheme + "://***@" + host
	}
	return databaseURL
}

// Package probe performs the best-effort database precondition check that
// runs before service startup. An unreachable server is a warning, never a
// fatal error: the service itself fails fast if storage is truly gone.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultTimeout bounds the whole probe so startup never hangs on a dead host.
const DefaultTimeout = 5 * time.Second

// Target describes the server and database to probe.
type Target struct {
	// AdminURL connects to the server's maintenance database.
	AdminURL string

	// Database is the application database expected to exist.
	Database string

	// Diagnostics reported on failure.
	Host string
	Port int
	User string

	// Timeout for the whole probe; DefaultTimeout when zero.
	Timeout time.Duration
}

// Status is the probe outcome. Err is only informational: the caller logs
// it and proceeds.
type Status struct {
	Reachable       bool
	DatabaseExists  bool
	DatabaseCreated bool
	Err             error
}

// Run checks connectivity to the target server and ensures the application
// database exists, creating it when absent. It never returns a Go error;
// degraded outcomes are carried in the Status.
func Run(ctx context.Context, target Target, log *zap.Logger) Status {
	timeout := target.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, target.AdminURL)
	if err != nil {
		return unreachable(target, err, log)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return unreachable(target, err, log)
	}

	st := Status{Reachable: true}

	var exists bool
	err = pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", target.Database).Scan(&exists)
	if err != nil {
		st.Err = fmt.Errorf("checking for database %q: %w", target.Database, err)
		log.Warn("database catalog check failed", zap.String("database", target.Database), zap.Error(err))
		return st
	}
	if exists {
		st.DatabaseExists = true
		log.Info("database exists", zap.String("database", target.Database))
		return st
	}

	createSQL := fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{target.Database}.Sanitize())
	if _, err := pool.Exec(ctx, createSQL); err != nil {
		st.Err = fmt.Errorf("creating database %q: %w", target.Database, err)
		log.Warn("database creation failed", zap.String("database", target.Database), zap.Error(err))
		return st
	}
	st.DatabaseCreated = true
	log.Info("database created", zap.String("database", target.Database))
	return st
}

func unreachable(target Target, err error, log *zap.Logger) Status {
	log.Warn("database unreachable, continuing startup",
		zap.String("host", target.Host),
		zap.Int("port", target.Port),
		zap.String("user", target.User),
		zap.Error(err),
	)
	return Status{Err: err}
}

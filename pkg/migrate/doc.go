// SPDX-License-Identifier: MIT

// Package migrate keeps a database schema in step with an ordered, linear
// chain of revision files.  It loads *.sql* revision files, tracks applied
// state in a table you choose, and moves the database forward or backward
// to any version you specify.
//
// A thin driver layer (currently PostgreSQL and SQLite) supplies SQL
// dialect differences.  The elyctl CLI wraps this package; the core logic
// is here.
//
// # Quick start
//
//	import (
//	    "context"
//	    "database/sql"
//
//	    _ "github.com/jackc/pgx/v5/stdlib" // or sqlite3
//	    "github.com/elyterrax/elyctl/pkg/migrate"
//	)
//
//	func main() {
//	    db, _ := sql.Open("pgx", os.Getenv("DATABASE_URL"))
//	    cfg := migrate.Config{
//	        Driver:           "pg",
//	        MigrationPattern: "migrations/*.sql",
//	    }
//
//	    o, _ := migrate.New(cfg, db)
//	    o.Up(context.Background())
//	}
//
// # Configuration
//
// Use Config to tweak behaviour:
//
//   - Driver           — database driver name ("pg", "sqlite3")
//   - SchemaTable      — table that stores revision state (default "schemaversion")
//   - MigrationPattern — glob for locating revision files
//   - Newline          — line-ending style used when checksumming
//   - NoChecksums      — skip comparing MD5 hashes before running forward revisions
//
// # Revision files
//
// A revision *pair* is two files with the same version and name:
//
//	001.do.create_users.sql   // apply
//	001.undo.create_users.sql // roll back
//
// Versions may be plain integers (*001*, *002*, …) or timestamps if you
// prefer.  CreateMigration scaffolds these files for you.
//
// # Programmatic API
//
//	New(cfg, db)                     → *Orchestrator
//	(*Orchestrator).Up(ctx)          → []Migration, error
//	(*Orchestrator).Down(ctx, n)     → []Migration, error
//	(*Orchestrator).Current(ctx)     → int, error
//	(*Orchestrator).History(ctx)     → []HistoryEntry, error
//	(*Orchestrator).Reset(ctx, f)    → []Migration, error
//	(*Orchestrator).Migrate(ctx, v)  → []Migration, error
//
// All operations are context-aware; cancel the context to abort long runs.
//
// # Destructive operations
//
// Reset reverts every applied revision back to the empty base state.  It is
// gated by a ConfirmFunc that sees the plan before anything runs; a declined
// confirmation returns ErrCanceled with no side effects.
package migrate

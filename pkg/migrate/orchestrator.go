package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Config holds settings for the revision chain.
type Config struct {
	// Driver is the database driver, e.g., "pg" or "sqlite3".
	Driver string

	// Database is the database name (used by some clients, e.g. PostgreSQL).
	Database string

	// SchemaTable is the name of the revision table.
	SchemaTable string

	// MigrationPattern is the glob pattern for revision files (e.g. "./migrations/*.sql").
	MigrationPattern string

	// Newline is the desired newline style ("LF", "CR", or "CRLF").
	Newline string

	// CurrentSchema is used for PostgreSQL if SchemaTable doesn’t include a dot.
	CurrentSchema string

	// NoChecksums disables validation of applied revision checksums.
	// Validation is on for the zero value.
	NoChecksums bool
}

// DefaultConfig provides default values for configuration.
var DefaultConfig = Config{
	SchemaTable:      "schemaversion",
	MigrationPattern: "migrations/*.sql",
}

// Orchestrator walks a database schema along a single linear chain of
// revision files.
//
// It loads revision files, determines the current database version,
// validates checksums (if enabled), and runs whatever revisions are needed
// to reach a target version.
type Orchestrator struct {
	cfg        Config
	migrations []Migration
	client     Client
}

// New creates an Orchestrator with the provided configuration and database connection.
func New(cfg Config, db *sql.DB) (*Orchestrator, error) {
	// Merge defaults.
	if cfg.SchemaTable == "" {
		cfg.SchemaTable = DefaultConfig.SchemaTable
	}
	if cfg.MigrationPattern == "" {
		cfg.MigrationPattern = DefaultConfig.MigrationPattern
	}
	client, err := NewClient(cfg, db)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:    cfg,
		client: client,
	}, nil
}

// LoadMigrations scans for revision files and loads them into the Orchestrator.
func (o *Orchestrator) LoadMigrations() ([]Migration, error) {
	migs, err := GetMigrations(o.cfg)
	if err != nil {
		return nil, err
	}
	o.migrations = migs
	return migs, nil
}

// RunQuery is a helper to execute a query using the underlying client.
func (o *Orchestrator) RunQuery(ctx context.Context, query string) (*sql.Rows, error) {
	return o.client.RunQuery(ctx, query)
}

// GetDatabaseVersion returns the current database version.
// If the revision table is not initialized, it returns 0.
func (o *Orchestrator) GetDatabaseVersion(ctx context.Context) (int, error) {
	versionSql := o.client.GetDatabaseVersionSql()
	initialized, err := o.client.HasVersionTable(ctx)
	if err != nil {
		return 0, err
	}
	if !initialized {
		return 0, nil
	}
	rows, err := o.client.RunQuery(ctx, versionSql)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var version int
	if rows.Next() {
		if err := rows.Scan(&version); err != nil {
			return 0, err
		}
	}
	return version, nil
}

// GetMaxVersion returns the highest revision version available on disk.
func (o *Orchestrator) GetMaxVersion() (int, error) {
	if len(o.migrations) == 0 {
		if _, err := o.LoadMigrations(); err != nil {
			return 0, err
		}
	}
	max := 0
	for _, m := range o.migrations {
		if m.Version > max {
			max = m.Version
		}
	}
	return max, nil
}

// ValidateMigrations verifies that applied revisions have not changed by comparing MD5 checksums.
func (o *Orchestrator) ValidateMigrations(ctx context.Context, databaseVersion int) error {
	if _, err := o.LoadMigrations(); err != nil {
		return err
	}
	for _, m := range o.migrations {
		if m.Action == "do" && m.Version > 0 && m.Version <= databaseVersion {
			query := o.client.GetMd5Sql(m)
			rows, err := o.client.RunQuery(ctx, query)
			if err != nil {
				return err
			}
			var dbMd5 sql.NullString
			if rows.Next() {
				if err := rows.Scan(&dbMd5); err != nil {
					rows.Close()
					return err
				}
			}
			rows.Close()
			if dbMd5.Valid && m.Md5 != "" && dbMd5.String != m.Md5 {
				return fmt.Errorf("MD5 checksum failed for revision [%d]", m.Version)
			}
		}
	}
	return nil
}

// RunMigrations applies the provided revisions in sequence.
func (o *Orchestrator) RunMigrations(ctx context.Context, migrations []Migration) ([]Migration, error) {
	var applied []Migration
	for _, m := range migrations {
		sqlScript, err := m.GetSQL()
		if err != nil {
			return applied, err
		}
		if err := o.client.RunSqlScript(ctx, sqlScript); err != nil {
			return applied, err
		}
		persistSQL := o.client.PersistActionSql(m)
		if err := o.client.RunSqlScript(ctx, persistSQL); err != nil {
			return applied, err
		}
		applied = append(applied, m)
	}
	return applied, nil
}

// GetRunnableMigrations selects the revisions needed to move between two versions.
func (o *Orchestrator) GetRunnableMigrations(databaseVersion, targetVersion int) ([]Migration, error) {
	if targetVersion > databaseVersion {
		var runnable []Migration
		for _, m := range o.migrations {
			if m.Action == "do" && m.Version > databaseVersion && m.Version <= targetVersion {
				runnable = append(runnable, m)
			}
		}
		sortMigrationsAsc(runnable)
		return runnable, nil
	}

	if targetVersion < databaseVersion {
		var runnable []Migration
		for _, m := range o.migrations {
			if m.Action == "undo" && m.Version <= databaseVersion && m.Version > targetVersion {
				runnable = append(runnable, m)
			}
		}
		sortMigrationsDesc(runnable)
		return runnable, nil
	}

	// targetVersion == databaseVersion
	return nil, nil
}

// Migrate moves the schema to the target version.
// If target is "max" or empty, it migrates to the highest available version.
func (o *Orchestrator) Migrate(ctx context.Context, target string) ([]Migration, error) {
	if err := o.client.EnsureTable(ctx); err != nil {
		return nil, err
	}
	if _, err := o.LoadMigrations(); err != nil {
		return nil, err
	}
	var targetVersion int
	var err error
	cleaned := strings.ToLower(strings.TrimSpace(target))
	if cleaned == "max" || cleaned == "" {
		targetVersion, err = o.GetMaxVersion()
		if err != nil {
			return nil, err
		}
	} else {
		targetVersion, err = strconv.Atoi(cleaned)
		if err != nil {
			return nil, fmt.Errorf("invalid target version: %v", err)
		}
	}
	dbVersion, err := o.GetDatabaseVersion(ctx)
	if err != nil {
		return nil, err
	}
	if !o.cfg.NoChecksums && targetVersion >= dbVersion {
		if err := o.ValidateMigrations(ctx, dbVersion); err != nil {
			return nil, err
		}
	}
	runnable, err := o.GetRunnableMigrations(dbVersion, targetVersion)
	if err != nil {
		return nil, err
	}
	applied, err := o.RunMigrations(ctx, runnable)
	if err != nil {
		return applied, err
	}
	return applied, nil
}

package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// NewClient creates a new Client based on the provided configuration and database connection.
func NewClient(cfg Config, db *sql.DB) (Client, error) {
	switch strings.ToLower(cfg.Driver) {
	case "pg":
		return NewPostgresClient(cfg, db), nil
	case "sqlite3":
		return NewSqlite3Client(cfg, db), nil
	default:
		return nil, fmt.Errorf("db driver '%s' not supported. Must be one of: sqlite3 or pg", cfg.Driver)
	}
}

// Client defines the interface for revision-table clients.
type Client interface {
	RunQuery(ctx context.Context, query string) (*sql.Rows, error)
	RunSqlScript(ctx context.Context, script string) error
	GetDatabaseVersionSql() string
	GetAppliedVersionsSql() string
	HasVersionTable(ctx context.Context) (bool, error)
	EnsureTable(ctx context.Context) error
	GetMd5Sql(m Migration) string
	PersistActionSql(m Migration) string
}

// dialect supplies the driver-specific SQL fragments the BaseClient needs.
type dialect interface {
	quotedSchemaTable() string
	columnsSql() string
	addNameSql() string
	addMd5Sql() string
	addRunAtSql() string
	versionColumnType() string
}

// BaseClient provides the implementation common to both drivers.
type BaseClient struct {
	Config  Config
	DB      *sql.DB
	dialect dialect
}

// RunQuery executes a query. For Postgres, if CurrentSchema is set,
// it first sets the search_path.
func (c *BaseClient) RunQuery(ctx context.Context, query string) (*sql.Rows, error) {
	if strings.ToLower(c.Config.Driver) == "pg" && c.Config.CurrentSchema != "" {
		_, err := c.DB.ExecContext(ctx, fmt.Sprintf("SET search_path = %s", c.Config.CurrentSchema))
		if err != nil {
			return nil, err
		}
	}
	return c.DB.QueryContext(ctx, query)
}

// RunSqlScript executes a SQL script.
func (c *BaseClient) RunSqlScript(ctx context.Context, script string) error {
	_, err := c.DB.ExecContext(ctx, script)
	return err
}

// QuotedSchemaTable returns the revision table name quoted per dialect.
func (c *BaseClient) QuotedSchemaTable() string {
	return c.dialect.quotedSchemaTable()
}

// PersistActionSql returns the SQL for recording a revision action.
func (c *BaseClient) PersistActionSql(m Migration) string {
	qt := c.QuotedSchemaTable()
	now := time.Now().Format("2006-01-02 15:04:05")
	if strings.ToLower(m.Action) == "do" {
		return fmt.Sprintf(`
          INSERT INTO %s (version, name, md5, run_at)
          VALUES (%d, '%s', '%s', '%s');`, qt, m.Version, m.Name, m.Md5, now)
	} else if strings.ToLower(m.Action) == "undo" {
		return fmt.Sprintf(`
          DELETE FROM %s
          WHERE version = %d;`, qt, m.Version)
	}
	return ""
}

// GetMd5Sql returns SQL to fetch the md5 checksum for a revision.
func (c *BaseClient) GetMd5Sql(m Migration) string {
	qt := c.QuotedSchemaTable()
	return fmt.Sprintf(`
      SELECT md5
      FROM %s
      WHERE version = %d;`, qt, m.Version)
}

// GetDatabaseVersionSql returns SQL to get the latest applied version.
func (c *BaseClient) GetDatabaseVersionSql() string {
	qt := c.QuotedSchemaTable()
	return fmt.Sprintf(`
      SELECT version
      FROM %s
      ORDER BY version DESC
      LIMIT 1;`, qt)
}

// GetAppliedVersionsSql returns SQL listing every recorded version with its run timestamp.
func (c *BaseClient) GetAppliedVersionsSql() string {
	qt := c.QuotedSchemaTable()
	return fmt.Sprintf(`
      SELECT version, run_at
      FROM %s
      WHERE version > 0
      ORDER BY version ASC;`, qt)
}

// HasVersionTable checks for the existence of the version table by querying its columns.
func (c *BaseClient) HasVersionTable(ctx context.Context) (bool, error) {
	rows, err := c.DB.QueryContext(ctx, c.dialect.columnsSql())
	if err != nil {
		return false, err
	}
	defer rows.Close()

	// if there is at least one row then we assume the table exists.
	if rows.Next() {
		return true, nil
	}
	return false, nil
}

// Helper function to check for a column name (case insensitive).
func hasColumn(columns []string, name string) bool {
	for _, col := range columns {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return false
}

// EnsureTable checks if the version table exists and creates/updates it if necessary.
func (c *BaseClient) EnsureTable(ctx context.Context) error {
	var columns []string
	rows, err := c.DB.QueryContext(ctx, c.dialect.columnsSql())
	if err != nil {
		return err
	}
	defer rows.Close()

	// Both dialects project a single column_name column.
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return err
		}
		columns = append(columns, col)
	}

	var queries []string
	// If no columns are returned, assume the table does not exist.
	if len(columns) == 0 {
		if strings.ToLower(c.Config.Driver) == "pg" && strings.Contains(c.Config.SchemaTable, ".") {
			// If SchemaTable contains a dot, create the schema first.
			parts := strings.Split(c.Config.SchemaTable, ".")
			queries = append(queries, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s";`, parts[0]))
		}
		queries = append(queries, fmt.Sprintf(`
          CREATE TABLE %s (
            version %s PRIMARY KEY
          );`, c.QuotedSchemaTable(), c.dialect.versionColumnType()))
		queries = append(queries, fmt.Sprintf(`
          INSERT INTO %s (version)
          VALUES (0);`, c.QuotedSchemaTable()))
	}

	// Check for missing columns: name, md5, run_at.
	if !hasColumn(columns, "name") {
		queries = append(queries, c.dialect.addNameSql())
	}
	if !hasColumn(columns, "md5") {
		queries = append(queries, c.dialect.addMd5Sql())
	}
	if !hasColumn(columns, "run_at") {
		queries = append(queries, c.dialect.addRunAtSql())
	}

	for _, q := range queries {
		if _, err := c.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

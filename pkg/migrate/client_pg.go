package migrate

import (
	"database/sql"
	"fmt"
	"strings"
)

// PostgresClient implements Client for PostgreSQL and embeds BaseClient.
type PostgresClient struct {
	BaseClient
}

// NewPostgresClient creates a new PostgresClient.
func NewPostgresClient(cfg Config, db *sql.DB) *PostgresClient {
	c := &PostgresClient{
		BaseClient: BaseClient{
			Config: cfg,
			DB:     db,
		},
	}
	c.BaseClient.dialect = pgDialect{cfg: cfg}
	return c
}

type pgDialect struct {
	cfg Config
}

// quotedSchemaTable returns the revision table name with each part quoted.
func (d pgDialect) quotedSchemaTable() string {
	parts := strings.Split(d.cfg.SchemaTable, ".")
	for i, part := range parts {
		parts[i] = fmt.Sprintf(`"%s"`, part)
	}
	return strings.Join(parts, ".")
}

// columnsSql returns SQL to list columns for the version table in Postgres.
func (d pgDialect) columnsSql() string {
	var schema, table string
	if strings.Contains(d.cfg.SchemaTable, ".") {
		parts := strings.Split(d.cfg.SchemaTable, ".")
		schema = parts[0]
		table = parts[1]
	} else {
		schema = "public"
		table = d.cfg.SchemaTable
	}
	return fmt.Sprintf(`SELECT column_name FROM information_schema.columns WHERE table_schema = '%s' AND table_name = '%s';`, schema, table)
}

func (d pgDialect) addNameSql() string {
	return fmt.Sprintf(`ALTER TABLE %s ADD COLUMN name TEXT;`, d.quotedSchemaTable())
}

func (d pgDialect) addMd5Sql() string {
	return fmt.Sprintf(`ALTER TABLE %s ADD COLUMN md5 TEXT;`, d.quotedSchemaTable())
}

func (d pgDialect) addRunAtSql() string {
	return fmt.Sprintf(`ALTER TABLE %s ADD COLUMN run_at TIMESTAMP;`, d.quotedSchemaTable())
}

func (d pgDialect) versionColumnType() string {
	return "BIGINT"
}

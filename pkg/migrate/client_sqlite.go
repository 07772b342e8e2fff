package migrate

import (
	"database/sql"
	"fmt"
)

// Sqlite3Client implements Client for SQLite and embeds BaseClient.
type Sqlite3Client struct {
	BaseClient
}

// NewSqlite3Client creates a new Sqlite3Client.
func NewSqlite3Client(cfg Config, db *sql.DB) *Sqlite3Client {
	c := &Sqlite3Client{
		BaseClient: BaseClient{
			Config: cfg,
			DB:     db,
		},
	}
	c.BaseClient.dialect = sqliteDialect{cfg: cfg}
	return c
}

type sqliteDialect struct {
	cfg Config
}

// quotedSchemaTable for SQLite is simply the table name.
func (d sqliteDialect) quotedSchemaTable() string {
	return d.cfg.SchemaTable
}

// columnsSql selects column names from SQLite's table_info pragma.
func (d sqliteDialect) columnsSql() string {
	return fmt.Sprintf(`
      SELECT name AS column_name
      FROM pragma_table_info('%s');
    `, d.cfg.SchemaTable)
}

func (d sqliteDialect) addNameSql() string {
	return fmt.Sprintf(`ALTER TABLE %s ADD COLUMN name TEXT;`, d.quotedSchemaTable())
}

func (d sqliteDialect) addMd5Sql() string {
	return fmt.Sprintf(`ALTER TABLE %s ADD COLUMN md5 TEXT;`, d.quotedSchemaTable())
}

// addRunAtSql uses TEXT since SQLite has no dedicated TIMESTAMP type.
func (d sqliteDialect) addRunAtSql() string {
	return fmt.Sprintf(`ALTER TABLE %s ADD COLUMN run_at TEXT;`, d.quotedSchemaTable())
}

func (d sqliteDialect) versionColumnType() string {
	return "INTEGER"
}

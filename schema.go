package sqlkit

import (
	"context"

	"github.com/uptrace/bun"
)

// ColumnInfo describes one table column, in ordinal order, as reported
// by information_schema.
type ColumnInfo struct {
	Name     string
	DataType string
	Nullable bool
	Default  string
}

// TableExists reports whether a table with the given name exists in
// the target database.
func (db *DB) TableExists(ctx context.Context, table string, opts ...Option) (bool, error) {
	if err := validateIdent("table", table); err != nil {
		return false, err
	}

	const query = `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_name = ? AND table_schema NOT IN ('pg_catalog', 'information_schema')
	)`

	o := resolveOptions(opts)
	var exists bool
	if err := db.queryRow(ctx, o.database, "TableExists", query, []any{table}, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

// TableInfo returns the table's columns in ordinal order. The table
// name is validated before any statement is sent; an unknown table is
// a not-found error.
func (db *DB) TableInfo(ctx context.Context, table string, opts ...Option) ([]ColumnInfo, error) {
	if err := validateIdent("table", table); err != nil {
		return nil, err
	}

	const query = `SELECT column_name, data_type, is_nullable, coalesce(column_default, '')
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position`

	rows, err := db.Query(ctx, query, []any{table}, opts...)
	if err != nil {
		return nil, err
	}
	if rows.Len() == 0 {
		return nil, &Error{
			Code:    CodeNotFound,
			Message: "table not found",
			Op:      "TableInfo",
			Table:   table,
		}
	}

	columns := make([]ColumnInfo, 0, rows.Len())
	for _, row := range rows.Tuples() {
		columns = append(columns, ColumnInfo{
			Name:     asString(row[0]),
			DataType: asString(row[1]),
			Nullable: asString(row[2]) == "YES",
			Default:  asString(row[3]),
		})
	}
	return columns, nil
}

// DropTable drops the table if it exists. The table name is validated
// before any statement is sent.
func (db *DB) DropTable(ctx context.Context, table string, opts ...Option) error {
	if err := validateIdent("table", table); err != nil {
		return err
	}
	_, err := db.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table), nil, opts...)
	return err
}

// CreateDatabase creates the named database when it does not already
// exist. CREATE DATABASE cannot run inside a transaction, so this
// bypasses the transactional executor.
func (db *DB) CreateDatabase(ctx context.Context, name string) error {
	if err := validateIdent("database", name); err != nil {
		return err
	}

	var exists bool
	err := db.queryRow(ctx, "", "CreateDatabase",
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = ?)", []any{name}, &exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = db.withConn(ctx, "", func(ctx context.Context, conn bun.Conn) error {
		if _, err := conn.ExecContext(ctx, "CREATE DATABASE "+quoteIdent(name)); err != nil {
			return wrapError(err, "CreateDatabase")
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.Info("database created", "database", name)
	return nil
}

// LastInsertID returns the most recent sequence value of the session
// it happens to run on.
//
// Deprecated: under pooled connections this call cannot reliably
// correlate to a prior insert's session; use InsertReturning, which
// carries the generated key on the insert itself.
func (db *DB) LastInsertID(ctx context.Context, opts ...Option) (int64, error) {
	o := resolveOptions(opts)
	var id int64
	if err := db.queryRow(ctx, o.database, "LastInsertID", "SELECT lastval()", nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

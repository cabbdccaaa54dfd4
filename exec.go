package sqlkit

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// Rows is a fully materialized result set. It keeps one copy of the
// values and offers them in either row shape: positional tuples or
// field-name keyed maps.
type Rows struct {
	columns []string
	values  [][]any
}

// Columns returns the result column names in statement order.
func (r *Rows) Columns() []string {
	return r.columns
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	return len(r.values)
}

// Tuples returns every row as a positional value slice.
func (r *Rows) Tuples() [][]any {
	if r == nil {
		return nil
	}
	return r.values
}

// Maps returns every row as a column-name keyed map.
func (r *Rows) Maps() []map[string]any {
	if r == nil {
		return nil
	}
	out := make([]map[string]any, len(r.values))
	for i, row := range r.values {
		m := make(map[string]any, len(r.columns))
		for j, col := range r.columns {
			m[col] = row[j]
		}
		out[i] = m
	}
	return out
}

// Query runs a single parameterized statement and fetches every row.
// Parameters bind to ? placeholders in the query text.
func (db *DB) Query(ctx context.Context, query string, params []any, opts ...Option) (*Rows, error) {
	o := resolveOptions(opts)

	var rows *Rows
	err := db.withConn(ctx, o.database, func(ctx context.Context, conn bun.Conn) error {
		rs, err := conn.QueryContext(ctx, query, params...)
		if err != nil {
			return wrapError(err, "Query")
		}
		defer rs.Close()

		rows, err = collectRows(rs)
		if err != nil {
			return wrapError(err, "Query")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	db.logger.Debug("query returned rows", "rows", rows.Len())
	return rows, nil
}

// queryRow runs a single-row probe query and scans it into dest.
func (db *DB) queryRow(ctx context.Context, database, op, query string, params []any, dest ...any) error {
	return db.withConn(ctx, database, func(ctx context.Context, conn bun.Conn) error {
		if err := conn.QueryRowContext(ctx, query, params...).Scan(dest...); err != nil {
			return wrapError(err, op)
		}
		return nil
	})
}

// Exec runs a single parameterized write statement inside its own
// transaction, commits, and returns the affected-row count. On any
// failure the transaction is rolled back before the error propagates.
func (db *DB) Exec(ctx context.Context, query string, params []any, opts ...Option) (int64, error) {
	o := resolveOptions(opts)

	var affected int64
	err := db.withTx(ctx, o.database, "Exec", func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.ExecContext(ctx, query, params...)
		if err != nil {
			return wrapError(err, "Exec")
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	db.logger.Debug("statement executed", "rows_affected", affected)
	return affected, nil
}

// ExecBatch runs one statement shape over a sequence of parameter
// tuples on a single connection and transaction, commits once, and
// returns the total affected-row count. Any failure aborts the whole
// batch with a full rollback.
func (db *DB) ExecBatch(ctx context.Context, query string, paramList [][]any, opts ...Option) (int64, error) {
	if len(paramList) == 0 {
		return 0, nil
	}
	o := resolveOptions(opts)

	var total int64
	err := db.withTx(ctx, o.database, "ExecBatch", func(ctx context.Context, tx bun.Tx) error {
		for _, params := range paramList {
			res, err := tx.ExecContext(ctx, query, params...)
			if err != nil {
				return wrapError(err, "ExecBatch")
			}
			affected, _ := res.RowsAffected()
			total += affected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	db.logger.Debug("batch executed", "statements", len(paramList), "rows_affected", total)
	return total, nil
}

// collectRows drains a sql.Rows into a materialized Rows value.
func collectRows(rs *sql.Rows) (*Rows, error) {
	columns, err := rs.Columns()
	if err != nil {
		return nil, err
	}

	out := &Rows{columns: columns}
	for rs.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			// Drivers return text columns as []byte; strings are
			// friendlier for map consumers.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.values = append(out.values, values)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

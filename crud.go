package sqlkit

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// Record is one row's worth of caller-supplied column values. Column
// order in assembled statements is the sorted key order, so identical
// records always produce identical statement text.
type Record map[string]any

// SelectOptions are the clause inputs for Select. Zero values omit
// the corresponding clause. Where and OrderBy are trusted caller
// fragments; Params bind to ? placeholders inside Where.
type SelectOptions struct {
	Columns []string
	Where   string
	Params  []any
	OrderBy string
	Limit   int
	Offset  int
}

// quoteIdent quotes a validated identifier. The validated charset
// cannot contain a double quote, so plain wrapping is safe.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

func quoteIdents(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = quoteIdent(name)
	}
	return out
}

// sortedColumns returns the record's column names in sorted order.
func sortedColumns(record Record) []string {
	cols := make([]string, 0, len(record))
	for col := range record {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// buildInsert assembles a parameterized single-record insert. A
// non-empty returning column appends a RETURNING clause.
func buildInsert(table string, record Record, returning string) (string, []any, error) {
	if err := validateIdent("table", table); err != nil {
		return "", nil, err
	}
	if len(record) == 0 {
		return "", nil, &Error{
			Code:    CodeValidation,
			Message: "insert requires at least one column",
			Op:      "Insert",
			Table:   table,
		}
	}

	cols := sortedColumns(record)
	if err := validateIdents("column", cols); err != nil {
		return "", nil, err
	}

	params := make([]any, len(cols))
	for i, col := range cols {
		params[i] = record[col]
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoteIdents(cols), ", "))
	b.WriteString(") VALUES (")
	b.WriteString(placeholders(len(cols)))
	b.WriteString(")")

	if returning != "" {
		if err := validateIdent("column", returning); err != nil {
			return "", nil, err
		}
		b.WriteString(" RETURNING ")
		b.WriteString(quoteIdent(returning))
	}

	return b.String(), params, nil
}

// buildInsertMany assembles one insert statement shared by every
// record, shaped by the first record's column set. A record missing
// one of those columns is an error rather than the undefined behavior
// the loose contract would allow.
func buildInsertMany(table string, records []Record) (string, [][]any, error) {
	query, _, err := buildInsert(table, records[0], "")
	if err != nil {
		return "", nil, err
	}

	cols := sortedColumns(records[0])
	paramList := make([][]any, len(records))
	for i, record := range records {
		params := make([]any, len(cols))
		for j, col := range cols {
			value, ok := record[col]
			if !ok {
				return "", nil, &Error{
					Code:    CodeValidation,
					Message: "record " + strconv.Itoa(i) + " is missing column " + col,
					Op:      "InsertMany",
					Table:   table,
					Column:  col,
				}
			}
			params[j] = value
		}
		paramList[i] = params
	}

	return query, paramList, nil
}

// buildSelect assembles a select statement, emitting clauses in fixed
// order and omitting any clause whose input is absent.
func buildSelect(table string, o SelectOptions) (string, []any, error) {
	if err := validateIdent("table", table); err != nil {
		return "", nil, err
	}

	columns := "*"
	if len(o.Columns) > 0 {
		if err := validateIdents("column", o.Columns); err != nil {
			return "", nil, err
		}
		columns = strings.Join(quoteIdents(o.Columns), ", ")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(columns)
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(table))

	params := append([]any(nil), o.Params...)
	if o.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(o.Where)
	}
	if o.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(o.OrderBy)
	}
	if o.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, o.Limit)
	}
	if o.Offset > 0 {
		b.WriteString(" OFFSET ?")
		params = append(params, o.Offset)
	}

	return b.String(), params, nil
}

// buildUpdate assembles a parameterized update. Parameter order is
// field values in sorted column order, then the caller's where params.
func buildUpdate(table string, fields Record, where string, whereParams []any) (string, []any, error) {
	if err := validateIdent("table", table); err != nil {
		return "", nil, err
	}
	if len(fields) == 0 {
		return "", nil, &Error{
			Code:    CodeValidation,
			Message: "update requires at least one field",
			Op:      "Update",
			Table:   table,
		}
	}
	if where == "" {
		return "", nil, &Error{
			Code:    CodeValidation,
			Message: "update requires a WHERE fragment",
			Op:      "Update",
			Table:   table,
		}
	}

	cols := sortedColumns(fields)
	if err := validateIdents("column", cols); err != nil {
		return "", nil, err
	}

	assignments := make([]string, len(cols))
	params := make([]any, 0, len(cols)+len(whereParams))
	for i, col := range cols {
		assignments[i] = quoteIdent(col) + " = ?"
		params = append(params, fields[col])
	}
	params = append(params, whereParams...)

	query := "UPDATE " + quoteIdent(table) + " SET " + strings.Join(assignments, ", ") + " WHERE " + where
	return query, params, nil
}

// buildDelete assembles a parameterized hard delete.
func buildDelete(table string, where string) (string, error) {
	if err := validateIdent("table", table); err != nil {
		return "", err
	}
	if where == "" {
		return "", &Error{
			Code:    CodeValidation,
			Message: "delete requires a WHERE fragment",
			Op:      "Delete",
			Table:   table,
		}
	}
	return "DELETE FROM " + quoteIdent(table) + " WHERE " + where, nil
}

// buildUpsert assembles an insert with PostgreSQL's native
// duplicate-key overwrite: ON CONFLICT (...) DO UPDATE SET each update
// column from the excluded (incoming) row. Empty updateColumns means
// every non-conflict column of the record; when nothing is left to
// overwrite the conflict degrades to DO NOTHING.
func buildUpsert(table string, record Record, conflictColumns, updateColumns []string) (string, []any, error) {
	if len(conflictColumns) == 0 {
		return "", nil, &Error{
			Code:    CodeValidation,
			Message: "upsert requires at least one conflict column",
			Op:      "Upsert",
			Table:   table,
		}
	}
	if err := validateIdents("column", conflictColumns); err != nil {
		return "", nil, err
	}

	query, params, err := buildInsert(table, record, "")
	if err != nil {
		return "", nil, err
	}

	if len(updateColumns) == 0 {
		conflict := make(map[string]bool, len(conflictColumns))
		for _, col := range conflictColumns {
			conflict[col] = true
		}
		for _, col := range sortedColumns(record) {
			if !conflict[col] {
				updateColumns = append(updateColumns, col)
			}
		}
	} else if err := validateIdents("column", updateColumns); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString(query)
	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(quoteIdents(conflictColumns), ", "))
	b.WriteString(")")

	if len(updateColumns) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String(), params, nil
	}

	assignments := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		assignments[i] = quoteIdent(col) + " = EXCLUDED." + quoteIdent(col)
	}
	b.WriteString(" DO UPDATE SET ")
	b.WriteString(strings.Join(assignments, ", "))

	return b.String(), params, nil
}

// Insert inserts a single record and returns the affected-row count.
func (db *DB) Insert(ctx context.Context, table string, record Record, opts ...Option) (int64, error) {
	query, params, err := buildInsert(table, record, "")
	if err != nil {
		return 0, err
	}
	return db.Exec(ctx, query, params, opts...)
}

// InsertMany inserts every record with one statement shape shared by
// the batch (the first record's column set) on a single connection and
// transaction. All records must carry that column set.
func (db *DB) InsertMany(ctx context.Context, table string, records []Record, opts ...Option) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	query, paramList, err := buildInsertMany(table, records)
	if err != nil {
		return 0, err
	}
	return db.ExecBatch(ctx, query, paramList, opts...)
}

// InsertReturning inserts a single record and returns the value the
// server generated for the given column, typically the primary key.
// This is the reliable replacement for LastInsertID under pooled
// connections: the generated key comes back on the insert itself.
func (db *DB) InsertReturning(ctx context.Context, table string, record Record, column string, opts ...Option) (any, error) {
	query, params, err := buildInsert(table, record, column)
	if err != nil {
		return nil, err
	}

	o := resolveOptions(opts)
	var value any
	if err := db.queryRow(ctx, o.database, "InsertReturning", query, params, &value); err != nil {
		return nil, err
	}
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	return value, nil
}

// Select fetches rows from a table, assembling WHERE, ORDER BY, LIMIT,
// and OFFSET in that order and omitting absent clauses.
func (db *DB) Select(ctx context.Context, table string, o SelectOptions, opts ...Option) (*Rows, error) {
	query, params, err := buildSelect(table, o)
	if err != nil {
		return nil, err
	}
	return db.Query(ctx, query, params, opts...)
}

// Update sets the given fields on every row matching the where
// fragment and returns the affected-row count. Bound parameter order
// is field values (sorted column order) followed by params.
func (db *DB) Update(ctx context.Context, table string, fields Record, where string, params []any, opts ...Option) (int64, error) {
	query, args, err := buildUpdate(table, fields, where, params)
	if err != nil {
		return 0, err
	}
	return db.Exec(ctx, query, args, opts...)
}

// Delete physically removes every row matching the where fragment and
// returns the affected-row count. See SoftDelete for the
// mark-and-keep variant.
func (db *DB) Delete(ctx context.Context, table string, where string, params []any, opts ...Option) (int64, error) {
	query, err := buildDelete(table, where)
	if err != nil {
		return 0, err
	}
	return db.Exec(ctx, query, params, opts...)
}

// Exists reports whether at least one row matches the where fragment.
func (db *DB) Exists(ctx context.Context, table string, where string, params []any, opts ...Option) (bool, error) {
	if err := validateIdent("table", table); err != nil {
		return false, err
	}

	query := "SELECT EXISTS (SELECT 1 FROM " + quoteIdent(table)
	if where != "" {
		query += " WHERE " + where
	}
	query += ")"

	o := resolveOptions(opts)
	var exists bool
	if err := db.queryRow(ctx, o.database, "Exists", query, params, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Count returns the number of rows matching the where fragment.
func (db *DB) Count(ctx context.Context, table string, where string, params []any, opts ...Option) (int, error) {
	if err := validateIdent("table", table); err != nil {
		return 0, err
	}

	query := "SELECT count(*) FROM " + quoteIdent(table)
	if where != "" {
		query += " WHERE " + where
	}

	o := resolveOptions(opts)
	var count int
	if err := db.queryRow(ctx, o.database, "Count", query, params, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// Upsert inserts the record, overwriting updateColumns from the
// incoming values when the conflictColumns collide with an existing
// row. Empty updateColumns overwrites every non-conflict column.
func (db *DB) Upsert(ctx context.Context, table string, record Record, conflictColumns, updateColumns []string, opts ...Option) (int64, error) {
	query, params, err := buildUpsert(table, record, conflictColumns, updateColumns)
	if err != nil {
		return 0, err
	}
	return db.Exec(ctx, query, params, opts...)
}

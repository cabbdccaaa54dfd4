package sqlkit

import (
	"context"
	"time"
)

// DeletedAtColumn is the timestamp column soft deletes write to.
const DeletedAtColumn = "deleted_at"

// Where fragments for composing soft-delete aware selects.
const (
	// NotDeleted matches rows that have not been soft deleted.
	NotDeleted = DeletedAtColumn + " IS NULL"
	// OnlyDeleted matches rows that have been soft deleted.
	OnlyDeleted = DeletedAtColumn + " IS NOT NULL"
)

// SoftDelete marks matching rows deleted by setting deleted_at to now,
// leaving them physically present. Returns the affected-row count.
func (db *DB) SoftDelete(ctx context.Context, table string, where string, params []any, opts ...Option) (int64, error) {
	return db.Update(ctx, table, Record{DeletedAtColumn: time.Now()}, where, params, opts...)
}

// Restore clears the soft-delete mark on matching rows.
func (db *DB) Restore(ctx context.Context, table string, where string, params []any, opts ...Option) (int64, error) {
	return db.Update(ctx, table, Record{DeletedAtColumn: nil}, where, params, opts...)
}

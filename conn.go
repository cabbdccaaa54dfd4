package sqlkit

import (
	"context"

	"github.com/uptrace/bun"
)

// withConn checks a single connection out of the pool bound to the
// given database, runs fn on it, and returns the connection to the
// pool on every exit path. Releasing an already-released connection is
// a no-op at the database/sql layer, so fn may close early without
// breaking the deferred release.
func (db *DB) withConn(ctx context.Context, database string, fn func(ctx context.Context, conn bun.Conn) error) error {
	pool, err := db.pool(ctx, database)
	if err != nil {
		return err
	}

	conn, err := pool.Conn(ctx)
	if err != nil {
		db.logger.Error("failed to acquire connection",
			"database", database, "error", err.Error())
		return &Error{
			Code:    CodeConnectionFailed,
			Message: "failed to acquire connection",
			Op:      "Conn",
			Cause:   err,
		}
	}
	defer conn.Close()

	return fn(ctx, conn)
}

// withTx checks out a connection, begins a transaction on it, runs fn,
// and commits on success. Any failure rolls the transaction back
// before propagating, so a half-executed statement never leaves
// committed side effects.
func (db *DB) withTx(ctx context.Context, database, op string, fn func(ctx context.Context, tx bun.Tx) error) error {
	return db.withConn(ctx, database, func(ctx context.Context, conn bun.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return wrapError(err, op+".Begin")
		}

		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
		}()

		if err := fn(ctx, tx); err != nil {
			_ = tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return wrapError(err, op+".Commit")
		}
		return nil
	})
}

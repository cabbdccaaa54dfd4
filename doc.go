/*
Package sqlkit is a thin convenience layer over PostgreSQL.

It wraps connection pooling, scoped statement execution, common CRUD
statement assembly, transaction scopes, and batch updates behind a
small API. It is deliberately not an ORM: the facade assembles literal
SQL from caller-supplied table names, column records, and trusted
WHERE fragments, binding all values as ? parameters. Table, column,
and database names are validated against a restricted identifier shape
(alphanumeric plus underscore and hyphen) before interpolation.

# Configuration

Build a Config directly, or resolve one from the environment
(DB_HOST, DB_USER, DB_PASSWORD required; DB_NAME, DB_PORT, DB_SSLMODE
optional):

	cfg, err := sqlkit.FromEnv()
	if err != nil {
	    log.Fatal(err)
	}
	cfg.Logger = slog.Default()
	cfg.LogSlowQueries = 100 * time.Millisecond

	db, err := sqlkit.New(cfg)
	if err != nil {
	    log.Fatal(err)
	}
	defer db.Close()

Every operation accepts WithDatabase to target a named database
instead of the configured default; sqlkit keeps one pool per database
and opens them lazily.

# CRUD

	n, err := db.Insert(ctx, "users", sqlkit.Record{"name": "Ada", "email": "ada@example.com"})

	id, err := db.InsertReturning(ctx, "users", sqlkit.Record{"name": "Ada"}, "id")

	rows, err := db.Select(ctx, "users", sqlkit.SelectOptions{
	    Where:   "active = ?",
	    Params:  []any{true},
	    OrderBy: "created_at DESC",
	    Limit:   10,
	})
	for _, row := range rows.Maps() {
	    fmt.Println(row["email"])
	}

	n, err = db.Update(ctx, "users", sqlkit.Record{"active": false}, "id = ?", []any{id})

	n, err = db.Upsert(ctx, "users", record, []string{"email"}, nil)

	page, err := db.Paginate(ctx, "users", sqlkit.PaginateOptions{Page: 2, PerPage: 10})

# Transactions

	err := db.Transaction(ctx, func(tx *sqlkit.Tx) error {
	    if _, err := tx.ExecContext(ctx, "UPDATE accounts SET balance = balance - ? WHERE id = ?", 10, from); err != nil {
	        return err // rollback
	    }
	    _, err := tx.ExecContext(ctx, "UPDATE accounts SET balance = balance + ? WHERE id = ?", 10, to)
	    return err // commit on nil
	})

Write operations issued outside an explicit transaction (Exec, Insert,
Update, Delete, ExecBatch, BatchUpdate) each run inside their own
transaction, so a failure never leaves committed partial effects.

# Error Handling

	if _, err := db.Insert(ctx, "users", record); err != nil {
	    if sqlkit.IsDuplicate(err) {
	        // handle duplicate key
	    }

	    var dbErr *sqlkit.Error
	    if errors.As(err, &dbErr) {
	        fmt.Println(dbErr.Code)       // DUPLICATE
	        fmt.Println(dbErr.Constraint) // users_email_key
	    }
	}

The only call that swallows errors is TestConnection, which converts
every failure into false for health-check use.
*/
package sqlkit

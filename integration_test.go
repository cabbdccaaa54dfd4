package sqlkit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"
)

// getTestDB returns a database handle for integration tests. The suite
// needs a reachable PostgreSQL instance and is skipped when
// TEST_DATABASE_URL is not set.
func getTestDB(t *testing.T) *DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := New(Config{
		URL:             dbURL,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		Logger:          slog.Default(),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	return db
}

// createAccountsTable provisions a fresh test table. Each test drops
// and recreates it, so no cleanup is needed afterwards.
func createAccountsTable(t *testing.T, db *DB) context.Context {
	t.Helper()
	ctx := context.Background()

	if err := db.DropTable(ctx, "sqlkit_accounts"); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}

	_, err := db.Exec(ctx, `CREATE TABLE sqlkit_accounts (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0,
		deleted_at TIMESTAMPTZ
	)`, nil)
	if err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}

	return ctx
}

func seedAccounts(t *testing.T, db *DB, ctx context.Context, n int) {
	t.Helper()

	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			"email":   fmt.Sprintf("user%d@example.com", i),
			"name":    fmt.Sprintf("User %d", i),
			"balance": 100,
		}
	}

	affected, err := db.InsertMany(ctx, "sqlkit_accounts", records)
	if err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}
	if affected != int64(n) {
		t.Fatalf("expected %d rows inserted, got %d", n, affected)
	}
}

func TestIntegration_InsertAndSelect(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)

	affected, err := db.Insert(ctx, "sqlkit_accounts", Record{
		"email": "ada@example.com",
		"name":  "Ada",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("expected 1 row affected, got %d", affected)
	}

	rows, err := db.Select(ctx, "sqlkit_accounts", SelectOptions{
		Where:  "email = ?",
		Params: []any{"ada@example.com"},
	})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if rows.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", rows.Len())
	}
	if rows.Maps()[0]["name"] != "Ada" {
		t.Errorf("unexpected row: %v", rows.Maps()[0])
	}
}

func TestIntegration_SingleInsertEqualsOneElementBatch(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)

	single, err := db.Insert(ctx, "sqlkit_accounts", Record{
		"email": "one@example.com", "name": "One",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	batch, err := db.InsertMany(ctx, "sqlkit_accounts", []Record{
		{"email": "two@example.com", "name": "Two"},
	})
	if err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	if single != batch {
		t.Errorf("single insert affected %d, one-element batch affected %d", single, batch)
	}
}

func TestIntegration_InsertReturning(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)

	id, err := db.InsertReturning(ctx, "sqlkit_accounts", Record{
		"email": "ada@example.com", "name": "Ada",
	}, "id")
	if err != nil {
		t.Fatalf("InsertReturning failed: %v", err)
	}

	exists, err := db.Exists(ctx, "sqlkit_accounts", "id = ?", []any{id})
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Errorf("inserted row with id %v not found", id)
	}
}

func TestIntegration_ExistsAndCount(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)

	exists, err := db.Exists(ctx, "sqlkit_accounts", "", nil)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Exists should be false on an empty table")
	}

	if _, err := db.Insert(ctx, "sqlkit_accounts", Record{
		"email": "ada@example.com", "name": "Ada",
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	exists, err = db.Exists(ctx, "sqlkit_accounts", "email = ?", []any{"ada@example.com"})
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Exists should be true right after a matching insert")
	}

	count, err := db.Count(ctx, "sqlkit_accounts", "", nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestIntegration_UpdateAndDelete(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)
	seedAccounts(t, db, ctx, 3)

	affected, err := db.Update(ctx, "sqlkit_accounts",
		Record{"balance": 500}, "email = ?", []any{"user1@example.com"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("expected 1 row updated, got %d", affected)
	}

	affected, err = db.Delete(ctx, "sqlkit_accounts", "email = ?", []any{"user2@example.com"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("expected 1 row deleted, got %d", affected)
	}

	count, err := db.Count(ctx, "sqlkit_accounts", "", nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows left, got %d", count)
	}
}

func TestIntegration_SoftDeleteAndRestore(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)
	seedAccounts(t, db, ctx, 2)

	affected, err := db.SoftDelete(ctx, "sqlkit_accounts", "email = ?", []any{"user0@example.com"})
	if err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("expected 1 row soft deleted, got %d", affected)
	}

	// The row is still physically present.
	count, err := db.Count(ctx, "sqlkit_accounts", "", nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("soft delete should keep the row, count = %d", count)
	}

	live, err := db.Count(ctx, "sqlkit_accounts", NotDeleted, nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if live != 1 {
		t.Errorf("expected 1 live row, got %d", live)
	}

	if _, err := db.Restore(ctx, "sqlkit_accounts", "email = ?", []any{"user0@example.com"}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	live, err = db.Count(ctx, "sqlkit_accounts", NotDeleted, nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if live != 2 {
		t.Errorf("expected 2 live rows after restore, got %d", live)
	}
}

func TestIntegration_Upsert(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)

	record := Record{"email": "ada@example.com", "name": "Ada", "balance": 10}
	if _, err := db.Upsert(ctx, "sqlkit_accounts", record, []string{"email"}, nil); err != nil {
		t.Fatalf("Upsert (insert path) failed: %v", err)
	}

	record["name"] = "Ada Lovelace"
	record["balance"] = 20
	if _, err := db.Upsert(ctx, "sqlkit_accounts", record, []string{"email"}, nil); err != nil {
		t.Fatalf("Upsert (update path) failed: %v", err)
	}

	rows, err := db.Select(ctx, "sqlkit_accounts", SelectOptions{
		Where: "email = ?", Params: []any{"ada@example.com"},
	})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if rows.Len() != 1 {
		t.Fatalf("upsert should not duplicate rows, got %d", rows.Len())
	}
	if rows.Maps()[0]["name"] != "Ada Lovelace" {
		t.Errorf("upsert did not overwrite: %v", rows.Maps()[0])
	}
}

func TestIntegration_Paginate(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)
	seedAccounts(t, db, ctx, 25)

	page, err := db.Paginate(ctx, "sqlkit_accounts", PaginateOptions{
		Page: 2, PerPage: 10, OrderBy: "id ASC",
	})
	if err != nil {
		t.Fatalf("Paginate failed: %v", err)
	}

	if page.Data.Len() != 10 {
		t.Errorf("expected 10 rows on page 2, got %d", page.Data.Len())
	}
	if page.Pagination.Total != 25 || page.Pagination.Pages != 3 {
		t.Errorf("unexpected pagination: %+v", page.Pagination)
	}
	if !page.Pagination.HasNext || !page.Pagination.HasPrev {
		t.Errorf("page 2 of 3 should have next and prev: %+v", page.Pagination)
	}

	last, err := db.Paginate(ctx, "sqlkit_accounts", PaginateOptions{
		Page: 3, PerPage: 10, OrderBy: "id ASC",
	})
	if err != nil {
		t.Fatalf("Paginate failed: %v", err)
	}
	if last.Data.Len() != 5 {
		t.Errorf("expected 5 rows on page 3, got %d", last.Data.Len())
	}
	if last.Pagination.HasNext {
		t.Error("last page should not have next")
	}
}

func TestIntegration_BatchUpdate(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)
	seedAccounts(t, db, ctx, 3)

	affected, err := db.BatchUpdate(ctx, "sqlkit_accounts", []Record{
		{"email": "user0@example.com", "balance": 1},
		{"email": "user1@example.com", "balance": 2},
		{"email": "user2@example.com"}, // no non-key fields, contributes zero
	}, "email")
	if err != nil {
		t.Fatalf("BatchUpdate failed: %v", err)
	}
	if affected != 2 {
		t.Errorf("expected 2 rows affected, got %d", affected)
	}
}

func TestIntegration_BatchUpdate_RollsBackWhole(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)
	seedAccounts(t, db, ctx, 3)

	// The second record violates the NOT NULL constraint; the first
	// record's update must be rolled back with it.
	_, err := db.BatchUpdate(ctx, "sqlkit_accounts", []Record{
		{"email": "user0@example.com", "balance": 999},
		{"email": "user1@example.com", "name": nil},
	}, "email")
	if err == nil {
		t.Fatal("expected BatchUpdate to fail")
	}

	count, err := db.Count(ctx, "sqlkit_accounts", "balance = ?", []any{999})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("failed batch left %d updated rows, want 0", count)
	}
}

func TestIntegration_SchemaHelpers(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)

	exists, err := db.TableExists(ctx, "sqlkit_accounts")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if !exists {
		t.Error("TableExists should be true")
	}

	columns, err := db.TableInfo(ctx, "sqlkit_accounts")
	if err != nil {
		t.Fatalf("TableInfo failed: %v", err)
	}
	if len(columns) != 5 {
		t.Fatalf("expected 5 columns, got %d", len(columns))
	}
	if columns[0].Name != "id" || columns[0].Nullable {
		t.Errorf("unexpected first column: %+v", columns[0])
	}

	if _, err := db.TableInfo(ctx, "sqlkit_no_such_table"); !IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}

	if err := db.DropTable(ctx, "sqlkit_accounts"); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}
	exists, err = db.TableExists(ctx, "sqlkit_accounts")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if exists {
		t.Error("TableExists should be false after drop")
	}
}

func TestIntegration_DropTable_RejectsInjection(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)

	err := db.DropTable(ctx, "sqlkit_accounts; DROP TABLE other")
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// The validation fired before any statement was sent.
	exists, err := db.TableExists(ctx, "sqlkit_accounts")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if !exists {
		t.Error("table should survive a rejected drop")
	}
}

func TestIntegration_TestConnection(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	if !db.TestConnection(ctx) {
		t.Error("TestConnection should be true against a live server")
	}
	if db.TestConnection(ctx, WithDatabase("sqlkit_no_such_db")) {
		t.Error("TestConnection should be false for a missing database")
	}
}

func TestIntegration_ConnectionsReleased(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := createAccountsTable(t, db)
	seedAccounts(t, db, ctx, 5)

	for i := 0; i < 10; i++ {
		if _, err := db.Select(ctx, "sqlkit_accounts", SelectOptions{}); err != nil {
			t.Fatalf("Select failed: %v", err)
		}
	}
	// A failing statement must release its connection too.
	if _, err := db.Query(ctx, "SELECT broken syntax", nil); err == nil {
		t.Fatal("expected query to fail")
	}

	if inUse := db.Stats().InUse; inUse != 0 {
		t.Errorf("expected 0 connections in use, got %d", inUse)
	}
}

func TestIntegration_Health(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	status := db.Health(ctx)
	if !status.Healthy {
		t.Errorf("expected healthy, got %+v", status)
	}
	if status.PoolStats.MaxOpenConnections != 5 {
		t.Errorf("unexpected pool stats: %+v", status.PoolStats)
	}
	if !db.IsHealthy(ctx) {
		t.Error("IsHealthy should be true")
	}
}

func TestIntegration_Migrate(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	// Fresh state for each run; the drops double as cleanup for the
	// previous one.
	_, _ = db.Exec(ctx, "DROP TABLE IF EXISTS _sqlkit_migrations", nil)
	_, _ = db.Exec(ctx, "DROP TABLE IF EXISTS sqlkit_widgets", nil)

	migrations := []Migration{
		{ID: "001", Description: "create widgets", SQL: "CREATE TABLE sqlkit_widgets (id BIGSERIAL PRIMARY KEY, name TEXT)"},
		{ID: "002", Description: "add index", SQL: "CREATE INDEX sqlkit_widgets_name_idx ON sqlkit_widgets (name)"},
	}

	result, err := db.Migrate(ctx, migrations)
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if len(result.Applied) != 2 {
		t.Fatalf("expected 2 applied, got %d", len(result.Applied))
	}

	// Second run skips everything.
	result, err = db.Migrate(ctx, migrations)
	if err != nil {
		t.Fatalf("Migrate rerun failed: %v", err)
	}
	if len(result.Skipped) != 2 || len(result.Applied) != 0 {
		t.Errorf("expected all skipped, got %+v", result)
	}

	// A changed statement under an applied ID is rejected.
	migrations[1].SQL = "CREATE INDEX somewhere_else ON sqlkit_widgets (id)"
	if _, err := db.Migrate(ctx, migrations); !IsValidation(err) {
		t.Errorf("expected validation error on checksum mismatch, got %v", err)
	}
}

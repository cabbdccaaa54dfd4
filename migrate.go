package sqlkit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents a single migration to execute
type Migration struct {
	ID          string // Unique identifier (e.g., "001", "20240115120000", or any string)
	Description string // Human-readable description
	SQL         string // SQL statements to execute
}

// MigrationResult represents the result of running migrations
type MigrationResult struct {
	Applied   []AppliedMigration
	Skipped   []string // IDs that were already applied
	TotalTime time.Duration
}

// AppliedMigration represents a successfully applied migration
type AppliedMigration struct {
	ID          string
	Description string
	AppliedAt   time.Time
	Duration    time.Duration
	Checksum    string
}

// migrationsTable is the schema for tracking migrations
const migrationsTable = `
CREATE TABLE IF NOT EXISTS _sqlkit_migrations (
    id VARCHAR(255) PRIMARY KEY,
    description TEXT,
    checksum VARCHAR(64) NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    duration_ms BIGINT NOT NULL
);
`

// Migrate executes migrations in order, skipping already-applied ones.
// Each migration runs inside its own transaction.
func (db *DB) Migrate(ctx context.Context, migrations []Migration, opts ...Option) (*MigrationResult, error) {
	start := time.Now()
	result := &MigrationResult{
		Applied: make([]AppliedMigration, 0),
		Skipped: make([]string, 0),
	}

	applied, err := db.getAppliedMigrations(ctx, opts...)
	if err != nil {
		return nil, err
	}

	for _, m := range migrations {
		checksum := checksumSQL(m.SQL)

		// A changed statement under an applied ID is a hard error:
		// the bookkeeping row no longer describes what actually ran.
		if existing, ok := applied[m.ID]; ok {
			if existing != checksum {
				return nil, &Error{
					Code:    CodeValidation,
					Message: fmt.Sprintf("migration %s has changed (checksum mismatch: expected %s, got %s)", m.ID, existing, checksum),
					Op:      "Migrate",
				}
			}
			result.Skipped = append(result.Skipped, m.ID)
			continue
		}

		migrationStart := time.Now()
		if err := db.applyMigration(ctx, m, checksum, migrationStart, opts...); err != nil {
			return nil, err
		}

		result.Applied = append(result.Applied, AppliedMigration{
			ID:          m.ID,
			Description: m.Description,
			AppliedAt:   time.Now(),
			Duration:    time.Since(migrationStart),
			Checksum:    checksum,
		})
		db.logger.Info("migration applied", "id", m.ID, "description", m.Description)
	}

	result.TotalTime = time.Since(start)
	return result, nil
}

// ensureMigrationsTable creates the bookkeeping table when absent.
func (db *DB) ensureMigrationsTable(ctx context.Context, opts ...Option) error {
	if _, err := db.Exec(ctx, migrationsTable, nil, opts...); err != nil {
		return &Error{
			Code:    CodeUnknown,
			Message: "failed to create migrations table",
			Op:      "Migrate",
			Cause:   err,
		}
	}
	return nil
}

// getAppliedMigrations returns a map of migration ID to checksum
func (db *DB) getAppliedMigrations(ctx context.Context, opts ...Option) (map[string]string, error) {
	if err := db.ensureMigrationsTable(ctx, opts...); err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, "SELECT id, checksum FROM _sqlkit_migrations", nil, opts...)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, rows.Len())
	for _, row := range rows.Tuples() {
		result[asString(row[0])] = asString(row[1])
	}
	return result, nil
}

// applyMigration executes a single migration within a transaction
func (db *DB) applyMigration(ctx context.Context, m Migration, checksum string, startTime time.Time, opts ...Option) error {
	return db.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return &Error{
				Code:    CodeUnknown,
				Message: fmt.Sprintf("migration %s failed: %v", m.ID, err),
				Op:      "Migrate.Apply",
				Query:   truncateSQL(m.SQL, 200),
				Cause:   err,
			}
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO _sqlkit_migrations (id, description, checksum, duration_ms) VALUES (?, ?, ?, ?)",
			m.ID, m.Description, checksum, time.Since(startTime).Milliseconds())
		if err != nil {
			return wrapError(err, "Migrate.Record")
		}

		return nil
	}, opts...)
}

// MigrationStatus returns the status of all known migrations
func (db *DB) MigrationStatus(ctx context.Context, migrations []Migration, opts ...Option) ([]MigrationStatusEntry, error) {
	applied, err := db.getAppliedMigrations(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var result []MigrationStatusEntry
	for _, m := range migrations {
		checksum := checksumSQL(m.SQL)
		entry := MigrationStatusEntry{
			ID:          m.ID,
			Description: m.Description,
			Checksum:    checksum,
		}

		if appliedChecksum, ok := applied[m.ID]; ok {
			entry.Applied = true
			entry.ChecksumMatch = appliedChecksum == checksum
		}

		result = append(result, entry)
	}

	return result, nil
}

// MigrationStatusEntry represents the status of a single migration
type MigrationStatusEntry struct {
	ID            string
	Description   string
	Checksum      string
	Applied       bool
	ChecksumMatch bool // Only relevant if Applied is true
}

// GetAppliedMigrations returns all migrations that have been applied
func (db *DB) GetAppliedMigrations(ctx context.Context, opts ...Option) ([]AppliedMigration, error) {
	if err := db.ensureMigrationsTable(ctx, opts...); err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx,
		"SELECT id, description, checksum, applied_at, duration_ms FROM _sqlkit_migrations ORDER BY applied_at ASC",
		nil, opts...)
	if err != nil {
		return nil, err
	}

	result := make([]AppliedMigration, 0, rows.Len())
	for _, row := range rows.Tuples() {
		entry := AppliedMigration{
			ID:          asString(row[0]),
			Description: asString(row[1]),
			Checksum:    asString(row[2]),
		}
		if at, ok := row[3].(time.Time); ok {
			entry.AppliedAt = at
		}
		if ms, ok := row[4].(int64); ok {
			entry.Duration = time.Duration(ms) * time.Millisecond
		}
		result = append(result, entry)
	}

	return result, nil
}

// checksumSQL creates a SHA256 checksum of SQL content
func checksumSQL(sql string) string {
	hash := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(hash[:])
}

// truncateSQL truncates SQL for error messages
func truncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen] + "..."
}

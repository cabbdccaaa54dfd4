package sqlkit

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrorCode represents a database error classification
type ErrorCode string

const (
	CodeConfig           ErrorCode = "CONFIG"
	CodeValidation       ErrorCode = "VALIDATION"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeForeignKey       ErrorCode = "FOREIGN_KEY"
	CodeCheckViolation   ErrorCode = "CHECK_VIOLATION"
	CodeNotNullViolation ErrorCode = "NOT_NULL"
	CodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeSerialization    ErrorCode = "SERIALIZATION"
	CodeDeadlock         ErrorCode = "DEADLOCK"
	CodeUnknown          ErrorCode = "UNKNOWN"
)

// Sentinel errors for quick checks
var (
	ErrConfig           = errors.New("sqlkit: missing or invalid configuration")
	ErrValidation       = errors.New("sqlkit: invalid input")
	ErrNotFound         = errors.New("sqlkit: record not found")
	ErrDuplicate        = errors.New("sqlkit: duplicate key violation")
	ErrForeignKey       = errors.New("sqlkit: foreign key violation")
	ErrCheckViolation   = errors.New("sqlkit: check constraint violation")
	ErrNotNullViolation = errors.New("sqlkit: not null violation")
	ErrConnection       = errors.New("sqlkit: connection failed")
	ErrTimeout          = errors.New("sqlkit: operation timeout")
	ErrSerialization    = errors.New("sqlkit: serialization failure")
	ErrDeadlock         = errors.New("sqlkit: deadlock detected")
)

// Error is a rich database error with context
type Error struct {
	Code       ErrorCode // Error classification
	Message    string    // Human-readable message
	Op         string    // Operation that failed (e.g., "Insert", "Paginate")
	Table      string    // Table name if known
	Column     string    // Column name if known
	Constraint string    // Constraint name if applicable
	Detail     string    // Additional detail from PostgreSQL
	Hint       string    // Hint from PostgreSQL
	Query      string    // Query that failed (may be empty for security)
	Cause      error     // Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("sqlkit: %s", e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("sqlkit.%s: %s", e.Op, e.Message)
	}
	if e.Table != "" {
		msg += fmt.Sprintf(" (table: %s)", e.Table)
	}
	if e.Constraint != "" {
		msg += fmt.Sprintf(" (constraint: %s)", e.Constraint)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for sentinel error matching
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeConfig:
		return target == ErrConfig
	case CodeValidation:
		return target == ErrValidation
	case CodeNotFound:
		return target == ErrNotFound
	case CodeDuplicate:
		return target == ErrDuplicate
	case CodeForeignKey:
		return target == ErrForeignKey
	case CodeCheckViolation:
		return target == ErrCheckViolation
	case CodeNotNullViolation:
		return target == ErrNotNullViolation
	case CodeConnectionFailed:
		return target == ErrConnection
	case CodeTimeout:
		return target == ErrTimeout
	case CodeSerialization:
		return target == ErrSerialization
	case CodeDeadlock:
		return target == ErrDeadlock
	}
	return false
}

// wrapError converts a raw error to a rich Error
func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}

	// Already wrapped
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}

	// Check for "no rows" error
	if err.Error() == "sql: no rows in result set" {
		return &Error{
			Code:    CodeNotFound,
			Message: "record not found",
			Op:      op,
			Cause:   err,
		}
	}

	// Server errors surfaced by the pgdriver transport
	var drvErr pgdriver.Error
	if errors.As(err, &drvErr) {
		return wrapPgDriverError(drvErr, op)
	}

	// Server errors surfaced by a pgx-backed database/sql handle
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return wrapPgError(pgErr, op)
	}

	// Generic wrapping
	return &Error{
		Code:    CodeUnknown,
		Message: err.Error(),
		Op:      op,
		Cause:   err,
	}
}

// wrapPgDriverError converts pgdriver server errors to rich errors.
// Field bytes follow the PostgreSQL error message protocol.
func wrapPgDriverError(drvErr pgdriver.Error, op string) *Error {
	e := &Error{
		Op:         op,
		Table:      drvErr.Field('t'),
		Column:     drvErr.Field('c'),
		Constraint: drvErr.Field('n'),
		Detail:     drvErr.Field('D'),
		Hint:       drvErr.Field('H'),
		Cause:      drvErr,
	}
	e.Code, e.Message = classifySQLState(drvErr.Field('C'), drvErr.Field('M'))
	return e
}

// wrapPgError converts pgx server errors to rich errors
func wrapPgError(pgErr *pgconn.PgError, op string) *Error {
	e := &Error{
		Op:         op,
		Table:      pgErr.TableName,
		Column:     pgErr.ColumnName,
		Constraint: pgErr.ConstraintName,
		Detail:     pgErr.Detail,
		Hint:       pgErr.Hint,
		Cause:      pgErr,
	}
	e.Code, e.Message = classifySQLState(pgErr.Code, pgErr.Message)
	return e
}

// classifySQLState maps PostgreSQL SQLSTATE codes to error codes.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
func classifySQLState(sqlState, message string) (ErrorCode, string) {
	switch sqlState {
	case "23505": // unique_violation
		return CodeDuplicate, "duplicate key value violates unique constraint"
	case "23503": // foreign_key_violation
		return CodeForeignKey, "foreign key constraint violation"
	case "23502": // not_null_violation
		return CodeNotNullViolation, "null value in column violates not-null constraint"
	case "23514": // check_violation
		return CodeCheckViolation, "check constraint violation"
	case "40001": // serialization_failure
		return CodeSerialization, "serialization failure, retry transaction"
	case "40P01": // deadlock_detected
		return CodeDeadlock, "deadlock detected"
	case "57014": // query_canceled (timeout)
		return CodeTimeout, "query was cancelled due to timeout"
	case "08000", "08003", "08006", "28000", "28P01", "3D000": // connection/auth errors
		return CodeConnectionFailed, "database connection failed"
	default:
		return CodeUnknown, message
	}
}

// IsConfig checks if error is a configuration error
func IsConfig(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsValidation checks if error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate checks if error is a duplicate key error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsForeignKey checks if error is a foreign key error
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// IsCheckViolation checks if error is a check constraint error
func IsCheckViolation(err error) bool {
	return errors.Is(err, ErrCheckViolation)
}

// IsNotNullViolation checks if error is a not null violation error
func IsNotNullViolation(err error) bool {
	return errors.Is(err, ErrNotNullViolation)
}

// IsConnection checks if error is a connection error
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsTimeout checks if error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the error is retryable (serialization, deadlock)
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerialization) || errors.Is(err, ErrDeadlock)
}

// GetErrorCode extracts the error code if it's a sqlkit error
func GetErrorCode(err error) (ErrorCode, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code, true
	}
	return "", false
}

// GetConstraint extracts the constraint name if available
func GetConstraint(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Constraint != "" {
		return dbErr.Constraint, true
	}
	return "", false
}

// GetTable extracts the table name if available
func GetTable(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Table != "" {
		return dbErr.Table, true
	}
	return "", false
}

// GetColumn extracts the column name if available
func GetColumn(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Column != "" {
		return dbErr.Column, true
	}
	return "", false
}

// GetDetail extracts the error detail if available
func GetDetail(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Detail != "" {
		return dbErr.Detail, true
	}
	return "", false
}

// GetHint extracts the error hint if available
func GetHint(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Hint != "" {
		return dbErr.Hint, true
	}
	return "", false
}

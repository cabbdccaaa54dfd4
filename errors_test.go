package sqlkit

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		err      *Error
		expected string
	}{
		{
			err:      &Error{Message: "test error"},
			expected: "sqlkit: test error",
		},
		{
			err:      &Error{Op: "Insert", Message: "failed"},
			expected: "sqlkit.Insert: failed",
		},
		{
			err:      &Error{Op: "Insert", Message: "failed", Table: "users"},
			expected: "sqlkit.Insert: failed (table: users)",
		},
		{
			err:      &Error{Op: "Insert", Message: "failed", Table: "users", Constraint: "users_email_key"},
			expected: "sqlkit.Insert: failed (table: users) (constraint: users_email_key)",
		},
	}

	for _, tt := range tests {
		if tt.err.Error() != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, tt.err.Error())
		}
	}
}

func TestError_Is(t *testing.T) {
	tests := []struct {
		err    *Error
		target error
		match  bool
	}{
		{&Error{Code: CodeConfig}, ErrConfig, true},
		{&Error{Code: CodeValidation}, ErrValidation, true},
		{&Error{Code: CodeNotFound}, ErrNotFound, true},
		{&Error{Code: CodeDuplicate}, ErrDuplicate, true},
		{&Error{Code: CodeForeignKey}, ErrForeignKey, true},
		{&Error{Code: CodeConnectionFailed}, ErrConnection, true},
		{&Error{Code: CodeNotFound}, ErrDuplicate, false},
		{&Error{Code: CodeUnknown}, ErrNotFound, false},
	}

	for _, tt := range tests {
		if errors.Is(tt.err, tt.target) != tt.match {
			t.Errorf("expected Is(%v, %v) = %v", tt.err.Code, tt.target, tt.match)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &Error{Code: CodeUnknown, Cause: cause}

	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestWrapError_Nil(t *testing.T) {
	if wrapError(nil, "Test") != nil {
		t.Error("wrapError(nil) should return nil")
	}
}

func TestWrapError_AlreadyWrapped(t *testing.T) {
	original := &Error{Code: CodeNotFound, Message: "original"}
	wrapped := wrapError(original, "Test")

	if wrapped != original {
		t.Error("already wrapped error should be returned as-is")
	}
}

func TestWrapError_NoRows(t *testing.T) {
	err := errors.New("sql: no rows in result set")
	wrapped := wrapError(err, "Exists")

	var dbErr *Error
	if !errors.As(wrapped, &dbErr) {
		t.Fatal("expected *Error")
	}

	if dbErr.Code != CodeNotFound {
		t.Errorf("expected CodeNotFound, got %s", dbErr.Code)
	}
	if dbErr.Op != "Exists" {
		t.Errorf("expected Exists, got %s", dbErr.Op)
	}
}

func TestWrapError_PgConn(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		Message:        "duplicate key",
		TableName:      "users",
		ConstraintName: "users_email_key",
	}

	wrapped := wrapError(pgErr, "Insert")

	var dbErr *Error
	if !errors.As(wrapped, &dbErr) {
		t.Fatal("expected *Error")
	}
	if dbErr.Code != CodeDuplicate {
		t.Errorf("expected CodeDuplicate, got %s", dbErr.Code)
	}
	if dbErr.Table != "users" {
		t.Errorf("expected users, got %s", dbErr.Table)
	}
	if !IsDuplicate(wrapped) {
		t.Error("expected IsDuplicate to match")
	}
}

func TestClassifySQLState(t *testing.T) {
	tests := []struct {
		sqlState string
		expected ErrorCode
	}{
		{"23505", CodeDuplicate},
		{"23503", CodeForeignKey},
		{"23502", CodeNotNullViolation},
		{"23514", CodeCheckViolation},
		{"40001", CodeSerialization},
		{"40P01", CodeDeadlock},
		{"57014", CodeTimeout},
		{"08006", CodeConnectionFailed},
		{"28P01", CodeConnectionFailed},
		{"3D000", CodeConnectionFailed},
		{"42601", CodeUnknown},
	}

	for _, tt := range tests {
		code, _ := classifySQLState(tt.sqlState, "message")
		if code != tt.expected {
			t.Errorf("classifySQLState(%s): expected %s, got %s", tt.sqlState, tt.expected, code)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&Error{Code: CodeSerialization}) {
		t.Error("serialization failure should be retryable")
	}
	if !IsRetryable(&Error{Code: CodeDeadlock}) {
		t.Error("deadlock should be retryable")
	}
	if IsRetryable(&Error{Code: CodeDuplicate}) {
		t.Error("duplicate should not be retryable")
	}
}

func TestGetters(t *testing.T) {
	err := &Error{
		Code:       CodeDuplicate,
		Table:      "users",
		Column:     "email",
		Constraint: "users_email_key",
		Detail:     "Key (email)=(x) already exists",
		Hint:       "try another",
	}

	if code, ok := GetErrorCode(err); !ok || code != CodeDuplicate {
		t.Errorf("GetErrorCode = %v, %v", code, ok)
	}
	if table, ok := GetTable(err); !ok || table != "users" {
		t.Errorf("GetTable = %v, %v", table, ok)
	}
	if col, ok := GetColumn(err); !ok || col != "email" {
		t.Errorf("GetColumn = %v, %v", col, ok)
	}
	if constraint, ok := GetConstraint(err); !ok || constraint != "users_email_key" {
		t.Errorf("GetConstraint = %v, %v", constraint, ok)
	}
	if detail, ok := GetDetail(err); !ok || detail == "" {
		t.Errorf("GetDetail = %v, %v", detail, ok)
	}
	if hint, ok := GetHint(err); !ok || hint != "try another" {
		t.Errorf("GetHint = %v, %v", hint, ok)
	}

	if _, ok := GetErrorCode(errors.New("plain")); ok {
		t.Error("GetErrorCode should not match plain errors")
	}
}

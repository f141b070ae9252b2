package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// IsUniqueViolation reports whether err is a unique-constraint violation.
// The ingestion pipeline leans on unique indexes for at-most-once
// semantics, so callers convert this error into an idempotent no-op
// instead of failing the run.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	// Fallback for drivers that surface the violation as plain text
	// (sqlmock in tests, older driver versions).
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "Duplicate entry")
}

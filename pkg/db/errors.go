package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
)

// IsUniqueViolation reports a unique constraint failure on Postgres or
// SQLite. A non-empty constraintName narrows the match to that constraint.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if fields, ok := pkgerrors.PG(err); ok {
		if fields.Code != pkgerrors.SQLStateUniqueViolation {
			return false
		}
		return constraintName == "" || fields.Constraint == constraintName
	}
	// SQLite reports the constraint only in the message text.
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

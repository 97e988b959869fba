package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when a user insert collides on the email column.
var ErrEmailTaken = errors.New("email already registered")

// ErrUsernameTaken is returned when a user insert collides on the username column.
var ErrUsernameTaken = errors.New("username already taken")

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// isUniqueViolation reports whether err is a Postgres unique_violation on the
// named constraint. An empty constraint matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// isForeignKeyViolation reports whether err is a Postgres foreign_key_violation.
// Inserts referencing a missing parent row surface this instead of a lookup
// miss, so callers translate it to ErrNotFound.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/clearstack/clearflow/internal/storage"
)

// wrapDBError wraps a database error with operation context.
// sql.ErrNoRows becomes storage.ErrNotFound, context deadline and busy/locked
// conditions become storage.ErrTransient, and unique-constraint violations
// become storage.ErrConflict, so callers can match on the sentinels.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %v: %w", op, err, storage.ErrTransient)
	case isBusy(err):
		return fmt.Errorf("%s: %v: %w", op, err, storage.ErrTransient)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %v: %w", op, err, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

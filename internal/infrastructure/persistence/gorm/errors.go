package gorm

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
)

// translateError maps driver errors onto the pantry sentinels.
// notFound replaces gorm.ErrRecordNotFound.
func translateError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %v", pantry.ErrStoreUnavailable, err)
	}
	return err
}

// isUnavailable reports connectivity failures, as opposed to failures of
// the statement itself
func isUnavailable(err error) bool {
	// Cancellation belongs to the caller, not the store
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception, 57P0x is operator intervention
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "database is locked")
}

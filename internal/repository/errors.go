package repository

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"reconciliation-service/internal/domain"
)

// Postgres SQLSTATE codes the reconciliation path cares about.
const (
	pgUniqueViolation      = "23505"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgAdminShutdown        = "57P01"
	pgConnectionClass      = "08"
)

// ParsePGErrorCode returns the SQLSTATE of err, or "unknown".
func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return "unknown"
}

// classify tags contention and connectivity failures as domain.ErrTransientStorage.
func classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrTransientStorage) {
		return err
	}

	code := ParsePGErrorCode(err)
	switch {
	case code == pgDeadlockDetected,
		code == pgSerializationFailure,
		code == pgLockNotAvailable,
		code == pgQueryCanceled,
		code == pgAdminShutdown,
		strings.HasPrefix(code, pgConnectionClass):
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}

	return err
}

func wrap(op string, err error) error {
	return fmt.Errorf("failed to %s: %w", op, classify(err))
}

package database

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"pos_settlement/pkg/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes that indicate a transaction lost a race and may
// succeed when replayed.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateUniqueViolation      = "23505"
)

// IsRetryable reports whether err is a transient write conflict.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if apperr.HasCode(err, apperr.CodeConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure,
			sqlStateDeadlockDetected,
			sqlStateLockNotAvailable,
			sqlStateUniqueViolation:
			return true
		}
		return false
	}

	// sqlite, used by the test suite
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// WithRetry runs fn until it succeeds, fails with a non-retryable error or
// runs out of attempts. Exhausted retries surface as CONFLICT.
func WithRetry(ctx context.Context, attempts int, backoff time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		log.Printf("⚠️ Retrying after conflict (attempt %d/%d): %v", attempt, attempts, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}

	if apperr.HasCode(err, apperr.CodeConflict) {
		return err
	}
	return apperr.Wrap(apperr.CodeConflict, "concurrent update conflict, please retry", err)
}

package database

import (
	"context"
	"errors"
	"testing"

	"pos_settlement/pkg/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique", &pgconn.PgError{Code: "23505"}, true},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"sqlite locked", errors.New("database is locked"), true},
		{"domain conflict", apperr.New(apperr.CodeConflict, "lost race"), true},
		{"domain validation", apperr.New(apperr.CodeInvalidAmount, "bad"), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestWithRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, 0, func(attempt int) error {
		calls++
		if attempt < 2 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestWithRetryReturnsNonRetryableImmediately(t *testing.T) {
	calls := 0
	want := apperr.New(apperr.CodeOrderAlreadyPaid, "paid")
	err := WithRetry(context.Background(), 3, 0, func(int) error {
		calls++
		return want
	})
	if !errors.Is(err, want) || calls != 1 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}

func TestWithRetryExhaustedIsConflict(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, 0, func(int) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if apperr.CodeOf(err) != apperr.CodeConflict {
		t.Fatalf("code = %s", apperr.CodeOf(err))
	}
}

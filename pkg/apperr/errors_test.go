package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("settle: %w", New(CodeOrderAlreadyPaid, "order is already fully paid"))

	if !errors.Is(err, &Error{Code: CodeOrderAlreadyPaid}) {
		t.Fatal("expected wrapped error to match by code")
	}
	if errors.Is(err, &Error{Code: CodeConflict}) {
		t.Fatal("unexpected match against a different code")
	}
	if got := CodeOf(err); got != CodeOrderAlreadyPaid {
		t.Fatalf("CodeOf = %s", got)
	}
	if CodeOf(errors.New("plain")) != CodeUnknown {
		t.Fatal("plain errors should map to UNKNOWN")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := Wrap(CodeConflict, "settlement conflicted, retry", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	if !HasCode(err, CodeConflict) {
		t.Fatal("HasCode = false")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeOrderNotFound:        http.StatusNotFound,
		CodeOrderAlreadyPaid:     http.StatusConflict,
		CodeSplitInsufficient:    http.StatusBadRequest,
		CodeOutletMismatch:       http.StatusForbidden,
		CodeSessionAlreadyOpen:   http.StatusConflict,
		CodeUnknown:              http.StatusInternalServerError,
		CodeRefundExceedsPayment: http.StatusBadRequest,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s: got %d want %d", code, got, want)
		}
	}
}

// Package apperr provides the settlement error taxonomy.
package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unexpected failure.
	CodeUnknown Code = "UNKNOWN"

	// Order errors
	CodeOrderNotFound    Code = "ORDER_NOT_FOUND"
	CodeOrderAlreadyPaid Code = "ORDER_ALREADY_PAID"
	CodeOrderNotPayable  Code = "ORDER_NOT_PAYABLE"
	CodeOutletRequired   Code = "OUTLET_REQUIRED"
	CodeOutletMismatch   Code = "OUTLET_MISMATCH"

	// Payment errors
	CodeInvalidAmount             Code = "INVALID_AMOUNT"
	CodeInvalidPaymentMode        Code = "INVALID_PAYMENT_MODE"
	CodeSplitInsufficient         Code = "SPLIT_INSUFFICIENT"
	CodePaymentNotFound           Code = "PAYMENT_NOT_FOUND"
	CodePaymentNotRefundable      Code = "PAYMENT_NOT_REFUNDABLE"
	CodeGatewayVerificationFailed Code = "GATEWAY_VERIFICATION_FAILED"

	// Refund errors
	CodeRefundNotFound       Code = "REFUND_NOT_FOUND"
	CodeRefundNotPending     Code = "REFUND_NOT_PENDING"
	CodeRefundExceedsPayment Code = "REFUND_EXCEEDS_PAYMENT"

	// Shift errors
	CodeSessionAlreadyOpen Code = "SESSION_ALREADY_OPEN"
	CodeNoOpenSession      Code = "NO_OPEN_SESSION"

	// Ledger errors
	CodeInvalidLedgerType Code = "INVALID_LEDGER_TYPE"

	// Storage errors
	CodeConflict Code = "CONFLICT"
	CodeNotFound Code = "NOT_FOUND"

	// Request errors
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeForbidden      Code = "FORBIDDEN"
)

// HTTPStatus maps the code to the status returned by the API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeOrderNotFound,
		CodePaymentNotFound,
		CodeRefundNotFound,
		CodeNotFound:
		return http.StatusNotFound

	case CodeOrderAlreadyPaid,
		CodeRefundNotPending,
		CodeSessionAlreadyOpen,
		CodeConflict:
		return http.StatusConflict

	case CodeOutletMismatch,
		CodeForbidden:
		return http.StatusForbidden

	case CodeUnauthorized:
		return http.StatusUnauthorized

	case CodeGatewayVerificationFailed:
		return http.StatusPaymentRequired

	case CodeOrderNotPayable,
		CodeOutletRequired,
		CodeInvalidAmount,
		CodeInvalidPaymentMode,
		CodeSplitInsufficient,
		CodePaymentNotRefundable,
		CodeRefundExceedsPayment,
		CodeNoOpenSession,
		CodeInvalidLedgerType,
		CodeInvalidRequest:
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

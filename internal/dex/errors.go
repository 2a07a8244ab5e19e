package dex

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the structured rejection reported by the
// exchange. Callers are expected to distinguish domain rejections
// (insufficient funds, full queues, zero client ids) from everything
// else by code, not by message.
type ErrorCode string

const (
	CodeInsufficientFunds   ErrorCode = "insufficient_funds"
	CodeRequestQueueFull    ErrorCode = "request_queue_full"
	CodeOpenOrdersSlotsFull ErrorCode = "open_orders_slots_full"
	CodeClientOrderIDZero   ErrorCode = "client_order_id_zero"
	CodeOrderNotFound       ErrorCode = "order_not_found"
	CodeAccountsNotSorted   ErrorCode = "accounts_not_sorted"
	CodeOwnerAccountMissing ErrorCode = "owner_account_missing"
	CodeInvalidAccounts     ErrorCode = "invalid_accounts"
)

// Error is the structured error returned by ProcessInstruction.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dex: %s", e.Code)
	}
	return fmt.Sprintf("dex: %s: %s", e.Code, e.Message)
}

func errCode(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the exchange error code from err, unwrapping as
// needed. The second return is false when err is not an exchange error.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

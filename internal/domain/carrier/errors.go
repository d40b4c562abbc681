package carrier

import (
	"errors"
	"fmt"
)

// Error codes. HTTP failures use "HTTP_<status>" built by HTTPErrorCode.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNetwork             = "NETWORK_ERROR"
	CodeCarrierNotAvailable = "CARRIER_NOT_AVAILABLE"
	CodeNotFiled            = "NOT_FILED"
	CodeAlreadyFiled        = "ALREADY_FILED"
	CodeClaimNotFound       = "CLAIM_NOT_FOUND"
	CodeClaimLocked         = "CLAIM_LOCKED"
	CodeFilingFailed        = "FILING_FAILED"
	CodeSyncFailed          = "SYNC_FAILED"
	CodeAuthFailed          = "AUTH_FAILED"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeInvalidPayload      = "INVALID_PAYLOAD"
	CodeUnsupported         = "UNSUPPORTED_OPERATION"
	CodeCanceled            = "CANCELED"
)

// Error is the tagged failure value carried out of adapters and the carrier
// service. Callers decide whether to retry from Retryable alone.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	Retryable  bool   `json:"retryable"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: CodeNotFiled}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError builds a non-HTTP failure.
func NewError(code, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable}
}

// Errorf builds a non-HTTP failure with a formatted message.
func Errorf(code string, retryable bool, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Retryable: retryable}
}

// HTTPErrorCode returns the code used for a non-2xx carrier response.
func HTTPErrorCode(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}

// IsRetryableStatus reports whether an HTTP status is worth retrying.
func IsRetryableStatus(status int) bool {
	return status >= 500 || status == 429
}

// AsError extracts a *Error from err. Any other non-nil error is wrapped
// under fallbackCode as retryable, matching the orchestrator's catch-all.
func AsError(err error, fallbackCode string) *Error {
	if err == nil {
		return nil
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}
	return &Error{Code: fallbackCode, Message: err.Error(), Retryable: true}
}

// IsRetryable reports whether err is a retryable carrier failure.
func IsRetryable(err error) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Retryable
	}
	return false
}

// CodeOf returns the failure code of err, or "" when err is not a carrier failure.
func CodeOf(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return ""
}

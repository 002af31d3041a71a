package errors

import (
	"fmt"
)

// Code classifies every failure the subsystem can report upward. The code is
// part of the API contract: callers receive a stable {code, message} pair and
// nothing else.
type Code string

const (
	// CodeConfigMissing indicates a fatal startup-time configuration gap
	// (missing contract address, key material, store path).
	CodeConfigMissing Code = "CONFIG_MISSING"

	// CodeAuth indicates the caller identity is invalid or mismatched.
	CodeAuth Code = "AUTH_ERROR"

	// CodeWalletNotFound indicates the user has no linked wallet.
	CodeWalletNotFound Code = "WALLET_NOT_FOUND"

	// CodeNotAParticipant indicates the caller is not tagged on the milestone.
	CodeNotAParticipant Code = "NOT_A_PARTICIPANT"

	// CodeNotAuthorized indicates the caller does not own the resource.
	CodeNotAuthorized Code = "NOT_AUTHORIZED"

	// CodeInsufficientBalance indicates the fee token balance cannot cover
	// the action. Checked before any side effect is performed.
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"

	// CodeApprovalRejected indicates the token permit was reverted on chain.
	CodeApprovalRejected Code = "APPROVAL_REJECTED"

	// CodeLedgerExecutionFailed indicates the relayed call was included but
	// its receipt status was not success.
	CodeLedgerExecutionFailed Code = "LEDGER_EXECUTION_FAILED"

	// CodeLedgerUnavailable indicates the ledger RPC could not be reached.
	// Transient: the whole workflow is safe to retry from scratch.
	CodeLedgerUnavailable Code = "LEDGER_UNAVAILABLE"

	// CodeContentStoreTimeout indicates the content store did not answer in
	// time. Data is temporarily unavailable, never invalid.
	CodeContentStoreTimeout Code = "CONTENT_STORE_TIMEOUT"

	// CodeAlreadyExists indicates a uniqueness conflict, e.g. minting a
	// certificate for a milestone that already has one.
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// CodeNotFound indicates the referenced record does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeValidation indicates malformed caller input.
	CodeValidation Code = "VALIDATION_ERROR"

	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "INTERNAL"
)

// RelayError is the error type every component returns upward. Cause is kept
// for logs and unwrapping but is never serialized to callers.
type RelayError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// New creates a RelayError with the given code and message.
func New(code Code, message string) *RelayError {
	return &RelayError{Code: code, Message: message}
}

// Newf creates a RelayError with a formatted message.
func Newf(code Code, format string, args ...any) *RelayError {
	return &RelayError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause for logging and errors.Is/As.
func (e *RelayError) WithCause(cause error) *RelayError {
	e.Cause = cause
	return e
}

// Error implements the error interface.
func (e *RelayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RelayError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether retrying the whole workflow can succeed
// without operator intervention.
func (e *RelayError) IsRetryable() bool {
	switch e.Code {
	case CodeLedgerUnavailable, CodeContentStoreTimeout:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error code to the status the API layer should use.
func (e *RelayError) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return 400
	case CodeAuth:
		return 401
	case CodeNotAuthorized, CodeNotAParticipant, CodeInsufficientBalance:
		return 403
	case CodeNotFound, CodeWalletNotFound:
		return 404
	case CodeAlreadyExists:
		return 409
	case CodeLedgerUnavailable, CodeContentStoreTimeout:
		return 503
	default:
		return 500
	}
}

package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// AsRelayError converts err to a *RelayError, wrapping unknown errors under
// the given fallback code. Existing RelayErrors pass through untouched so
// the original code survives layer boundaries.
func AsRelayError(err error, fallback Code, message string) *RelayError {
	if err == nil {
		return nil
	}
	var re *RelayError
	if errors.As(err, &re) {
		return re
	}
	return New(fallback, message).WithCause(err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// Is reports whether err matches target, following wrapped causes.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsRetryable reports whether the whole workflow is safe to retry.
func IsRetryable(err error) bool {
	var re *RelayError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}
	return false
}

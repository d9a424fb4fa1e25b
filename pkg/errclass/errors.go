// Package errclass defines the stable, machine-readable error classes of gitgood
// and the process exit codes they map to.
package errclass

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitConflict    = 1
	ExitSubmission  = 2
	ExitGeneralFail = 3
)

// GitGoodError is a stable, machine-readable error class.
type GitGoodError struct {
	Code    string
	Message string
	Cause   error
}

func (e *GitGoodError) Error() string {
	msg := e.Code
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *GitGoodError) Is(target error) bool {
	t, ok := target.(*GitGoodError)
	return ok && e.Code == t.Code
}

func (e *GitGoodError) Unwrap() error {
	return e.Cause
}

// WithMessage returns a new GitGoodError with the same Code but a specific message.
func (e *GitGoodError) WithMessage(msg string) *GitGoodError {
	return &GitGoodError{Code: e.Code, Message: msg, Cause: e.Cause}
}

// WithMessagef returns a new GitGoodError with a formatted message.
func (e *GitGoodError) WithMessagef(format string, args ...any) *GitGoodError {
	return &GitGoodError{Code: e.Code, Message: fmt.Sprintf(format, args...), Cause: e.Cause}
}

// WithCause returns a new GitGoodError wrapping cause.
func (e *GitGoodError) WithCause(cause error) *GitGoodError {
	return &GitGoodError{Code: e.Code, Message: e.Message, Cause: cause}
}

var (
	ErrVCSConflict       = &GitGoodError{Code: "E_VCS_CONFLICT"}
	ErrGitFailed         = &GitGoodError{Code: "E_GIT_FAILED"}
	ErrSubmissionFailed  = &GitGoodError{Code: "E_SUBMISSION_FAILED"}
	ErrInsufficientFunds = &GitGoodError{Code: "E_INSUFFICIENT_FUNDS"}
	ErrMessageTooLong    = &GitGoodError{Code: "E_MESSAGE_TOO_LONG"}
	ErrSlotOverflow      = &GitGoodError{Code: "E_SLOT_OVERFLOW"}
	ErrKeyInvalid        = &GitGoodError{Code: "E_KEY_INVALID"}
	ErrNetworkInvalid    = &GitGoodError{Code: "E_NETWORK_INVALID"}
	ErrCredentialMissing = &GitGoodError{Code: "E_CREDENTIAL_MISSING"}
	ErrStore             = &GitGoodError{Code: "E_STORE"}
	ErrNameInvalid       = &GitGoodError{Code: "E_NAME_INVALID"}
	ErrNotRecorded       = &GitGoodError{Code: "E_NOT_RECORDED"}
	ErrDuplicateCommit   = &GitGoodError{Code: "E_DUPLICATE_COMMIT"}
)

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrVCSConflict):
		return ExitConflict
	case errors.Is(err, ErrSubmissionFailed), errors.Is(err, ErrInsufficientFunds):
		return ExitSubmission
	default:
		return ExitGeneralFail
	}
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode extracts the exit code from err. Errors that are not ExitErrors,
// such as cobra's argument errors, are user errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUserError
}

// userErrors are caused by bad input or configuration rather than by the
// system.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrUnknownKind,
	types.ErrUnknownField,
	types.ErrUnknownCriterion,
	types.ErrEmptyCriterion,
	types.ErrInvalidKind,
	types.ErrTableNotFound,
	types.ErrBackendEmpty,
	types.ErrBackendUnknown,
	types.ErrDSNEmpty,
	types.ErrSyncStrategyUnknown,
	types.ErrBatchSizeInvalid,
	types.ErrBatchIntervalInvalid,
}

// classify wraps err with the exit code its cause calls for.
func classify(message string, err error) *ExitError {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return WrapExitError(ExitUserError, message, err)
		}
	}
	return WrapExitError(ExitSysError, message, err)
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return WrapExitError(ExitSysError, "marshal JSON", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/dylibtree/dylibtree/pkg/types"
)

// ExitError ends a run with Code after fang has rendered Err.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// failed wraps a fatal tree or configuration error.
func failed(err error) *ExitError {
	return &ExitError{Code: types.ExitFailure, Err: err}
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dylibtree exited with status %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap exposes the cause so issueFor can find the catalog entry.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCode maps the error fang.Execute returned to a process exit code.
// Errors raised by cobra itself, such as a wrong argument count, and codes
// outside 0-255 are failures.
func exitCode(err error) int {
	if err == nil {
		return int(types.ExitSuccess)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code.Validate() == nil {
		return int(exitErr.Code)
	}
	return int(types.ExitFailure)
}

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lherron/moviesdb/internal/cli/appctx"
	"github.com/lherron/moviesdb/internal/domain"
)

// Process exit codes
const (
	ExitOK      = 0
	ExitFailure = 1 // transfer failed or stores are inconsistent
	ExitSetup   = 2 // configuration or connection problem
)

// ErrInconsistent is returned by check when the stores differ
var ErrInconsistent = errors.New("destination is not consistent with source")

type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	return &codedError{code: code, err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}

	var setupErr *appctx.SetupError
	var connErr *domain.ConnectionError
	if errors.As(err, &setupErr) || errors.As(err, &connErr) {
		return ExitSetup
	}

	// cobra reports bad flags and arguments as plain errors
	msg := err.Error()
	if strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag") || strings.Contains(msg, "flag needs an argument") ||
		strings.HasPrefix(msg, "invalid argument") {
		return ExitSetup
	}
	return ExitFailure
}

func formatCount(n int64) string {
	return fmt.Sprintf("%d", n)
}

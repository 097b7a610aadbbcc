package main

import "fmt"

const (
	exitUsage   = 64 // command line usage error
	exitFailure = 70 // internal software error
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

func failure(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: exitFailure, Err: err}
}

// Package apperr holds sentinel errors and exit-code carrying errors shared
// by the command line and the pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrFindings   = errors.New("findings reported")
)

// ExitError is an error that carries an explicit process exit code.
// An empty message means the failure was already reported to the user.
type ExitError struct {
	code  int
	msg   string
	cause error
}

func (e *ExitError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	if e.msg == "" {
		return e.cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.msg, e.cause)
}

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int { return e.code }

// Silent reports whether the message was already printed.
func (e *ExitError) Silent() bool { return e.msg == "" }

func (e *ExitError) Unwrap() error { return e.cause }

// Exit returns an ExitError with the given message.
func Exit(code int, msg string) error {
	return &ExitError{code: normalize(code), msg: msg}
}

// Reported returns a silent ExitError wrapping cause. Use it when the
// command has already printed its findings.
func Reported(code int, cause error) error {
	return &ExitError{code: normalize(code), cause: cause}
}

// ExitCodeOf extracts an exit code from any error, defaulting to 1.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 1
}

// Message returns the text main should print for err, or "" if the
// failure was already reported.
func Message(err error) string {
	var ee *ExitError
	if errors.As(err, &ee) && ee.Silent() {
		return ""
	}
	return err.Error()
}

func normalize(code int) int {
	if code <= 0 {
		return 1
	}
	return code
}

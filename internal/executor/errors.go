/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package executor

import (
	"fmt"
)

// ExecErrorKind tags where in the pipeline an execution failed.
type ExecErrorKind string

const (
	// ExecErrorFunction covers backend preparation and policy plumbing
	// failures.
	ExecErrorFunction ExecErrorKind = "function"
	// ExecErrorSandbox covers adapter installation and sandbox
	// rejection failures.
	ExecErrorSandbox ExecErrorKind = "sandbox"
	// ExecErrorTimeout covers deadline kills that could not produce a
	// normal timeout outcome.
	ExecErrorTimeout ExecErrorKind = "timeout"
	// ExecErrorIO covers spawn and stream failures.
	ExecErrorIO ExecErrorKind = "io"
)

// ExecError wraps a pipeline failure with its taxonomy tag.
type ExecError struct {
	Kind ExecErrorKind
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec %v error: %v", e.Kind, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func execErr(kind ExecErrorKind, err error) *ExecError {
	return &ExecError{Kind: kind, Err: err}
}

// RejectionError indicates the command was refused before spawning:
// the user denied it, the approval policy forbids prompting, or the
// turn was aborted mid-prompt.
type RejectionError struct {
	Reason  string
	Aborted bool
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// UnsupportedModeError is returned by a backend asked to prepare an
// execution mode it does not implement.
type UnsupportedModeError struct {
	Backend string
	Mode    ExecutionMode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("%v backend cannot prepare %v executions",
		e.Backend, e.Mode)
}

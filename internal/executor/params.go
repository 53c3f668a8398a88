/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

// Package executor orchestrates one command execution end to end:
// classify against the policy, consult the approval cache and the
// approval broker, select the sandbox adapter, prepare the execution
// backend, spawn with a timeout, classify sandbox denials, and emit
// lifecycle events. The single escalation path (retry without a
// sandbox after explicit re-approval) lives here too.
package executor

import (
	"time"
)

// ExecParams are the concrete process parameters one invocation runs
// with.
type ExecParams struct {
	// Command is the argv to spawn. Command[0] is the program.
	Command []string
	// Cwd is the working directory for the child.
	Cwd string
	// TimeoutMS bounds the child's wall time; nil applies the
	// executor's default timeout.
	TimeoutMS *uint64
	// Env is the child environment. nil inherits the parent
	// environment; an empty non-nil map runs the child with only the
	// sandbox markers.
	Env map[string]string
	// WithEscalatedPermissions is set on retries the user explicitly
	// approved to run without a sandbox.
	WithEscalatedPermissions bool
	// Justification is optional model-supplied text shown with the
	// approval prompt and recorded for audit.
	Justification string
}

// Timeout converts TimeoutMS to a duration, zero when unset; zero
// tells spawn to apply defaultTimeout.
func (p ExecParams) Timeout() time.Duration {
	if p.TimeoutMS == nil {
		return 0
	}
	return time.Duration(*p.TimeoutMS) * time.Millisecond
}

// ExecutionMode distinguishes the kinds of operations the executor can
// dispatch.
type ExecutionMode int

const (
	// ModeShell runs the argv as given.
	ModeShell ExecutionMode = iota
	// ModeApplyPatch re-invokes the current executable to apply a
	// file patch.
	ModeApplyPatch
)

func (m ExecutionMode) String() string {
	switch m {
	case ModeShell:
		return "shell"
	case ModeApplyPatch:
		return "apply_patch"
	default:
		return "unknown"
	}
}

// ApplyPatchPayload carries the structured patch request for
// ModeApplyPatch.
type ApplyPatchPayload struct {
	// Patch is the literal "*** Begin Patch" document.
	Patch string
	// Cwd is the directory relative paths in the patch resolve
	// against.
	Cwd string
	// UserExplicitlyApproved is set when the patch was already
	// approved upstream (e.g. through an approval_request tool round
	// trip) and must not prompt again.
	UserExplicitlyApproved bool
}

// ExecutionRequest is one unit of work for the executor.
type ExecutionRequest struct {
	// Params are the process parameters before backend preparation.
	Params ExecParams
	// ApprovalCommand is the argv shown to the user and used for cache
	// lookups. It defaults to Params.Command when empty.
	ApprovalCommand []string
	// Mode selects the execution backend.
	Mode ExecutionMode
	// Patch must be set when Mode is ModeApplyPatch.
	Patch *ApplyPatchPayload
	// CallID correlates lifecycle events with the originating tool
	// call. Assigned by the executor when empty.
	CallID string
}

// approvalArgv returns the argv to use for prompts and caching.
func (r ExecutionRequest) approvalArgv() []string {
	if len(r.ApprovalCommand) > 0 {
		return r.ApprovalCommand
	}
	return r.Params.Command
}

// ExecOutcome is the normalized result of one completed execution.
type ExecOutcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Aggregated interleaves stdout and stderr in arrival order,
	// truncated to the output cap.
	Aggregated string
	Duration   time.Duration
	TimedOut   bool
	// Escalated is set when the outcome came from the
	// retry-without-sandbox path.
	Escalated bool
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package executor

import (
	"fmt"
	"os"
)

// InternalApplyPatchFlag is the hidden CLI flag the apply-patch backend
// uses to re-invoke the current executable as a patch applier. The CLI
// entry point recognizes it before normal flag parsing.
const InternalApplyPatchFlag = "--apply-patch"

// Backend maps a generic execution request onto concrete process
// parameters for its mode. Adding an execution kind means adding a
// mode and a backend, not touching the orchestrator.
type Backend interface {
	// Prepare finalizes params for the given request. Backends reject
	// modes they do not own with an UnsupportedModeError.
	Prepare(params ExecParams, req ExecutionRequest) (ExecParams, error)
	// StreamsStdout reports whether stdout deltas should be forwarded
	// live while the child runs.
	StreamsStdout() bool
}

// backendFor selects the backend for a mode.
func backendFor(mode ExecutionMode) (Backend, error) {
	switch mode {
	case ModeShell:
		return shellBackend{}, nil
	case ModeApplyPatch:
		return applyPatchBackend{}, nil
	}
	return nil, fmt.Errorf("no backend for execution mode %v", mode)
}

// shellBackend runs the argv exactly as requested.
type shellBackend struct{}

func (shellBackend) Prepare(params ExecParams,
	req ExecutionRequest) (ExecParams, error) {

	if req.Mode != ModeShell {
		return ExecParams{}, &UnsupportedModeError{Backend: "shell",
			Mode: req.Mode}
	}
	return params, nil
}

func (shellBackend) StreamsStdout() bool {
	return true
}

// applyPatchBackend rewrites the request into a re-invocation of the
// current executable with the internal apply-patch flag and the literal
// patch text. The environment is cleared to an empty map so no host
// environment leaks into the patch subprocess; timeout, escalation, and
// justification carry over from the caller.
type applyPatchBackend struct{}

func (applyPatchBackend) Prepare(params ExecParams,
	req ExecutionRequest) (ExecParams, error) {

	if req.Mode != ModeApplyPatch {
		return ExecParams{}, &UnsupportedModeError{Backend: "apply_patch",
			Mode: req.Mode}
	}
	if req.Patch == nil {
		return ExecParams{}, fmt.Errorf("apply_patch request without payload")
	}

	self, err := currentExecutable()
	if err != nil {
		return ExecParams{}, err
	}

	prepared := params
	prepared.Command = []string{self, InternalApplyPatchFlag,
		req.Patch.Patch}
	prepared.Env = map[string]string{}
	if req.Patch.Cwd != "" {
		prepared.Cwd = req.Patch.Cwd
	}
	return prepared, nil
}

func (applyPatchBackend) StreamsStdout() bool {
	// Patch output is captured and summarized, never streamed.
	return false
}

func currentExecutable() (string, error) {
	if exe, err := os.Executable(); err == nil {
		return exe, nil
	}
	if len(os.Args) > 0 && os.Args[0] != "" {
		return os.Args[0], nil
	}
	return "", fmt.Errorf("cannot determine current executable path")
}

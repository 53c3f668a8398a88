/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package sandbox

import (
	"fmt"
)

// InstallFailedError indicates the containment mechanism could not be
// set up. The command does not run; the failure is fatal for the single
// invocation, not the session.
type InstallFailedError struct {
	Op  string
	Err error
}

func (e *InstallFailedError) Error() string {
	return fmt.Sprintf("sandbox install failed: %v: %v", e.Op, e.Err)
}

func (e *InstallFailedError) Unwrap() error {
	return e.Err
}

// UnsupportedPlatformError indicates the requested containment has no
// implementation on this platform.
type UnsupportedPlatformError struct {
	OS string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("no sandbox available on platform %v", e.OS)
}

// PermissionDeniedError indicates a command failed inside the sandbox
// in a way that the classifier attributes to the containment itself
// rather than to the command. The executor uses it to offer escalation.
type PermissionDeniedError struct {
	SandboxType Type
	ExitCode    int
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("command was likely denied by the %v sandbox (exit code %d)",
		e.SandboxType, e.ExitCode)
}

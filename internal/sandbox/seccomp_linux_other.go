/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

//go:build linux && !amd64 && !arm64

package sandbox

import (
	"fmt"
	"runtime"
)

// Network filtering requires direct socket syscalls; architectures that
// multiplex through socketcall(2) are not supported. Failing here keeps
// the guarantee that a network-deny policy is enforced or not run at
// all, never silently skipped.
func installNetworkFilter() error {
	return &InstallFailedError{
		Op:  "seccomp",
		Err: fmt.Errorf("network filtering unsupported on %v", runtime.GOARCH),
	}
}

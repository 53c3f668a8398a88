/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
//go:build !windows

package executor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup places the child in its own process group so a
// timeout kill reaches the whole tree, not just the direct child.
func setProcessGroup(attr *syscall.SysProcAttr) {
	attr.Setpgid = true
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

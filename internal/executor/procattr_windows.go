/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
//go:build windows

package executor

import (
	"os/exec"
	"syscall"
)

func setProcessGroup(attr *syscall.SysProcAttr) {
	// Windows containment rides on the restricted token already set in
	// the SysProcAttr; no process group setup is needed.
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

//go:build windows

package sandbox

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

// Windows containment is an approximation: the child runs under a
// restricted token with all privileges removed, which blocks writes to
// system locations and most privileged operations. Per-directory write
// scoping and socket filtering have no token-level equivalent, so the
// same marker environment is still set for cooperating tools.

type windowsAdapter struct{}

func (windowsAdapter) Type() Type {
	return TypeWindowsRestricted
}

func (a windowsAdapter) Transform(command []string, policy Policy,
	cwd string) (ExecEnv, error) {

	if len(command) == 0 {
		return ExecEnv{}, &InstallFailedError{Op: "restricted token",
			Err: fmt.Errorf("empty command")}
	}

	restricted, err := createRestrictedToken()
	if err != nil {
		return ExecEnv{}, &InstallFailedError{Op: "restricted token",
			Err: err}
	}

	return ExecEnv{
		Command:  command,
		ExtraEnv: markerEnv(TypeWindowsRestricted, policy),
		SysProcAttr: &syscall.SysProcAttr{
			Token: syscall.Token(restricted),
		},
	}, nil
}

func createRestrictedToken() (windows.Token, error) {
	var procToken windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(),
		windows.TOKEN_DUPLICATE|windows.TOKEN_ASSIGN_PRIMARY|
			windows.TOKEN_QUERY, &procToken)
	if err != nil {
		return 0, err
	}
	defer procToken.Close()

	var restricted windows.Token
	err = windows.CreateRestrictedToken(procToken,
		windows.DISABLE_MAX_PRIVILEGE, 0, nil, 0, nil, 0, nil, &restricted)
	if err != nil {
		return 0, err
	}
	return restricted, nil
}

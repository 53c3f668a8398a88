/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

//go:build !windows

package sandbox

import (
	"runtime"
)

type windowsAdapter struct{}

func (windowsAdapter) Type() Type {
	return TypeWindowsRestricted
}

func (windowsAdapter) Transform(command []string, policy Policy,
	cwd string) (ExecEnv, error) {

	return ExecEnv{}, &UnsupportedPlatformError{OS: runtime.GOOS}
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

//go:build !linux

package sandbox

import (
	"runtime"
)

func installAndExec(policy Policy, cwd string, argv []string) error {
	return &UnsupportedPlatformError{OS: runtime.GOOS}
}

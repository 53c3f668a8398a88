/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package sandbox

import (
	"strings"
)

// deniedStderrHints are stderr fragments that point at containment
// rather than ordinary command failure.
var deniedStderrHints = []string{
	"operation not permitted",
	"permission denied",
	"read-only file system",
	"seccomp",
	"sandbox-exec",
}

// IsLikelyDeniedBySandbox classifies a failed sandboxed run: did the
// containment itself block the command? Exit code 126 (found but not
// executable) is the strongest signal; otherwise a small set of stderr
// fragments covers denials that surface through the command's own error
// output. Ordinary failure codes (1, 2, 127) with clean stderr are
// never attributed to the sandbox.
func IsLikelyDeniedBySandbox(t Type, exitCode int, stderr string) bool {
	if t == TypeNone || exitCode == 0 {
		return false
	}
	if exitCode == 126 {
		return true
	}

	lower := strings.ToLower(stderr)
	for _, hint := range deniedStderrHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

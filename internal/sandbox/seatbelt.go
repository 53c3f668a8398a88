/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
)

// macOS containment wraps the command with /usr/bin/sandbox-exec and a
// Seatbelt (SBPL) profile generated from the Policy. Profile generation
// is plain string assembly and is kept platform-independent so it can
// be tested anywhere.

const seatbeltExecutable = "/usr/bin/sandbox-exec"

type seatbeltAdapter struct{}

func (seatbeltAdapter) Type() Type {
	return TypeMacosSeatbelt
}

func (a seatbeltAdapter) Transform(command []string, policy Policy,
	cwd string) (ExecEnv, error) {

	if len(command) == 0 {
		return ExecEnv{}, &InstallFailedError{Op: "seatbelt",
			Err: fmt.Errorf("empty command")}
	}

	profile := SeatbeltProfile(policy, cwd)
	wrapped := make([]string, 0, len(command)+4)
	wrapped = append(wrapped, seatbeltExecutable, "-p", profile, "--")
	wrapped = append(wrapped, command...)

	return ExecEnv{
		Command:  wrapped,
		ExtraEnv: markerEnv(TypeMacosSeatbelt, policy),
	}, nil
}

// SeatbeltProfile renders the SBPL profile enforcing the policy: allow
// everything by default, deny file writes except under the writable
// roots (plus the device sinks every process needs), and deny network
// when the policy does not permit it.
func SeatbeltProfile(policy Policy, cwd string) string {
	var b strings.Builder

	b.WriteString("(version 1)\n")
	b.WriteString("(allow default)\n")
	b.WriteString("(deny file-write*)\n")

	// Device sinks are always writable; denying them breaks near every
	// process.
	b.WriteString("(allow file-write-data\n")
	b.WriteString("  (literal \"/dev/null\")\n")
	b.WriteString("  (literal \"/dev/zero\")\n")
	b.WriteString("  (literal \"/dev/stdout\")\n")
	b.WriteString("  (literal \"/dev/stderr\")\n")
	b.WriteString("  (regex #\"^/dev/tty.*\"))\n")

	roots := policy.WritableRootsWithCwd(cwd)
	if len(roots) > 0 {
		b.WriteString("(allow file-write*\n")
		for _, root := range roots {
			b.WriteString(fmt.Sprintf("  (subpath %s)\n",
				seatbeltQuote(canonicalRoot(root))))
		}
		b.WriteString(")\n")
	}

	if !policy.AllowsNetwork() {
		b.WriteString("(deny network*)\n")
	}

	return b.String()
}

// canonicalRoot resolves symlinks so Seatbelt subpath rules match the
// real filesystem location (e.g. /tmp vs /private/tmp). Resolution is
// best effort; an unresolvable root is used as given.
func canonicalRoot(root string) string {
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		return resolved
	}
	return root
}

// seatbeltQuote renders a string literal for SBPL.
func seatbeltQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

// Package cmdline canonicalizes argv vectors for display and for
// approval-cache lookups. It is purely textual: nothing in this package
// ever alters the vector that is actually executed.
package cmdline

import (
	"strings"
)

// posixShells is the set of shell program names whose 3-token
// "-lc/-c" wrapper form we recognize and unwrap.
var posixShells = map[string]struct{}{
	"bash":    {},
	"sh":      {},
	"zsh":     {},
	"dash":    {},
	"ksh":     {},
	"busybox": {},
}

// UnwrapShellWrapper detects the exact 3-token form
// [shell, "-lc"|"-c", script] and returns the literal script. The shell
// token may be a full path, may carry a ".exe" suffix, may be wrapped
// in quotes, and is matched case-insensitively. Any other argv shape
// returns ok=false.
func UnwrapShellWrapper(argv []string) (script string, ok bool) {
	if len(argv) != 3 {
		return "", false
	}
	if !IsShellProgram(argv[0]) {
		return "", false
	}
	if argv[1] != "-lc" && argv[1] != "-c" {
		return "", false
	}
	return argv[2], true
}

// IsShellProgram reports whether tok names a known POSIX shell,
// tolerating full paths, a ".exe" suffix, surrounding quotes, and
// arbitrary casing.
func IsShellProgram(tok string) bool {
	name := strings.Trim(tok, `"'`)
	// Take the final path component; accept both separator styles since
	// the check is textual, not platform-specific.
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.ToLower(name)
	name = strings.TrimSuffix(name, ".exe")

	_, ok := posixShells[name]
	return ok
}

// FormatForDisplay renders argv the way it should be shown to a human:
// a recognized shell wrapper collapses to its literal script, anything
// else is shell-escaped and joined with single spaces.
func FormatForDisplay(argv []string) string {
	if script, ok := UnwrapShellWrapper(argv); ok {
		return script
	}
	return Join(argv)
}

// Join shell-escapes each word and joins them with single spaces.
func Join(argv []string) string {
	escaped := make([]string, len(argv))
	for i, word := range argv {
		escaped[i] = Escape(word)
	}
	return strings.Join(escaped, " ")
}

// Escape quotes a single word for POSIX shell display. Words composed
// entirely of safe characters pass through unchanged; everything else
// is single-quoted with embedded single quotes rewritten as '\''.
func Escape(word string) string {
	if word == "" {
		return "''"
	}
	if isSafeWord(word) {
		return word
	}
	return "'" + strings.ReplaceAll(word, "'", `'\''`) + "'"
}

func isSafeWord(word string) bool {
	for _, r := range word {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case strings.ContainsRune("_-./=:%+@,", r):
		default:
			return false
		}
	}
	return true
}

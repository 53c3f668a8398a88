/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package policy

import (
	"os"
	"path/filepath"
	"strings"
)

// wellKnownBinDirs are searched in addition to PATH so that a match for
// e.g. "cp" reports both /bin/cp and /usr/bin/cp when both exist.
var wellKnownBinDirs = []string{
	"/bin",
	"/usr/bin",
	"/usr/local/bin",
	"/sbin",
	"/usr/sbin",
}

// resolveBinaries returns every concrete path the program name resolves
// to across the well-known install directories and PATH. Resolution is
// advisory: an empty result does not invalidate a policy match.
func resolveBinaries(program string) []string {
	if strings.ContainsRune(program, os.PathSeparator) {
		if isExecutableFile(program) {
			return []string{filepath.Clean(program)}
		}
		return nil
	}

	dirs := append([]string{}, wellKnownBinDirs...)
	for _, d := range filepath.SplitList(os.Getenv("PATH")) {
		if d != "" {
			dirs = append(dirs, d)
		}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		candidate := filepath.Join(dir, program)
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		if isExecutableFile(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

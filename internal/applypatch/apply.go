/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package applypatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesNeeded returns the paths the patch reads before modifying:
// update and delete targets.
func FilesNeeded(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, sentinelUpdateFilePrefix) {
			out = append(out, line[len(sentinelUpdateFilePrefix):])
		}
		if strings.HasPrefix(line, sentinelDeleteFilePrefix) {
			out = append(out, line[len(sentinelDeleteFilePrefix):])
		}
	}
	return out
}

// FilesAdded returns the paths of files the patch creates.
func FilesAdded(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, sentinelAddFilePrefix) {
			out = append(out, line[len(sentinelAddFilePrefix):])
		}
	}
	return out
}

// moveTargets returns the destination paths of move operations.
func moveTargets(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, sentinelMoveToPrefix) {
			out = append(out, line[len(sentinelMoveToPrefix):])
		}
	}
	return out
}

// AffectedPaths gathers every unique file path the patch touches:
// updated, deleted, added, and move-target files.
func AffectedPaths(text string) []string {
	seen := make(map[string]struct{})
	add := func(paths []string) {
		for _, p := range paths {
			if p == "" {
				continue
			}
			seen[p] = struct{}{}
		}
	}

	add(FilesNeeded(text))
	add(FilesAdded(text))
	add(moveTargets(text))

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out
}

// absolutePaths resolves paths to cleaned absolute form against cwd.
func absolutePaths(paths []string, cwd string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(cwd, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

// CommonRoot computes the deepest directory containing all of the
// provided paths. Used to scope directory-level trust rules for patch
// approvals.
func CommonRoot(paths []string) string {
	if len(paths) == 0 {
		return "."
	}

	common := filepath.Dir(filepath.Clean(paths[0]))
	for _, p := range paths[1:] {
		d := filepath.Dir(filepath.Clean(p))
		for common != string(filepath.Separator) && common != "." &&
			common != "" && !pathWithin(d, common) {
			common = filepath.Dir(common)
		}
		if common == "" {
			break
		}
	}
	if common == "" {
		return "."
	}
	return common
}

// AffectedRoot resolves the patch's affected paths against cwd and
// returns their common root directory.
func AffectedRoot(text, cwd string) string {
	return CommonRoot(absolutePaths(AffectedPaths(text), cwd))
}

// ConstrainedToRoots reports whether every path the patch touches falls
// under one of the given roots once resolved against cwd. A patch with
// no detectable paths is not considered constrained.
func ConstrainedToRoots(text string, roots []string, cwd string) bool {
	paths := absolutePaths(AffectedPaths(text), cwd)
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		inside := false
		for _, root := range roots {
			if pathWithin(p, root) {
				inside = true
				break
			}
		}
		if !inside {
			return false
		}
	}
	return true
}

func pathWithin(path, root string) bool {
	if root == "" {
		return false
	}
	cleanPath := filepath.Clean(path)
	cleanRoot := filepath.Clean(root)
	if cleanPath == cleanRoot {
		return true
	}
	if !strings.HasSuffix(cleanRoot, string(filepath.Separator)) {
		cleanRoot += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, cleanRoot)
}

// trimBefore drops any prose preceding the Begin Patch sentinel.
func trimBefore(s string) string {
	if idx := strings.Index(s, SentinelBeginPatch); idx != -1 {
		return s[idx:]
	}
	return s
}

// trimAfter drops anything following the End Patch sentinel.
func trimAfter(s string) string {
	if idx := strings.Index(s, SentinelEndPatch); idx != -1 {
		return s[:idx+len(SentinelEndPatch)]
	}
	return s
}

func loadFiles(paths []string) (map[string]string, error) {
	m := make(map[string]string)
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		m[p] = string(b)
	}
	return m, nil
}

func writeFile(path, content string) error {
	target := filepath.Clean(path)
	dir := filepath.Dir(target)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(target, []byte(content), 0o644)
}

func applyCommit(commit Commit) error {
	for path, change := range commit.Changes {
		switch change.Type {
		case ActionDelete:
			if err := os.Remove(path); err != nil {
				return err
			}
		case ActionAdd:
			if change.NewContent == "" {
				return fmt.Errorf("add change for %s has no content", path)
			}
			if err := writeFile(path, change.NewContent); err != nil {
				return err
			}
		case ActionUpdate:
			if change.NewContent == "" {
				return fmt.Errorf("update change for %s has no new content", path)
			}
			target := path
			if change.MovePath != "" {
				target = change.MovePath
			}
			if err := writeFile(target, change.NewContent); err != nil {
				return err
			}
			if change.MovePath != "" {
				if err := os.Remove(path); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Apply parses patch text, resolves it against the current content of
// the files it touches, and writes the result to the filesystem.
// Surrounding prose outside the sentinels is tolerated and ignored.
func Apply(text string) error {
	text = trimBefore(text)
	text = trimAfter(text)

	if !strings.HasPrefix(text, SentinelBeginPatch) {
		return fmt.Errorf("patch text must start with %v", SentinelBeginPatch)
	}

	orig, err := loadFiles(FilesNeeded(text))
	if err != nil {
		return err
	}
	patch, _, err := ParseText(text, orig)
	if err != nil {
		return err
	}
	commit, err := patch.ToCommit(orig)
	if err != nil {
		return err
	}
	return applyCommit(commit)
}

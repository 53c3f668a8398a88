/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package applypatch

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAddFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sub", "new.txt")

	patch := "*** Begin Patch\n" +
		"*** Add File: " + target + "\n" +
		"+hello\n" +
		"+world\n" +
		"*** End Patch"

	require.NoError(t, Apply(patch))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", string(content))
}

func TestApplyUpdateFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "main.txt")
	require.NoError(t, os.WriteFile(target,
		[]byte("alpha\nbeta\ngamma\n"), 0o644))

	patch := "*** Begin Patch\n" +
		"*** Update File: " + target + "\n" +
		"@@ alpha\n" +
		" alpha\n" +
		"-beta\n" +
		"+BETA\n" +
		" gamma\n" +
		"*** End Patch"

	require.NoError(t, Apply(patch))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nBETA\ngamma\n", string(content))
}

func TestApplyDeleteFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doomed.txt")
	require.NoError(t, os.WriteFile(target, []byte("bye\n"), 0o644))

	patch := "*** Begin Patch\n" +
		"*** Delete File: " + target + "\n" +
		"*** End Patch"

	require.NoError(t, Apply(patch))

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestApplyUpdateWithMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "old.txt")
	dst := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(src, []byte("one\ntwo\n"), 0o644))

	patch := "*** Begin Patch\n" +
		"*** Update File: " + src + "\n" +
		"*** Move to: " + dst + "\n" +
		"@@ one\n" +
		" one\n" +
		"-two\n" +
		"+TWO\n" +
		"*** End Patch"

	require.NoError(t, Apply(patch))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\n", string(content))
}

func TestApplyToleratesSurroundingProse(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "x.txt")

	patch := "Here is the patch you asked for:\n" +
		"*** Begin Patch\n" +
		"*** Add File: " + target + "\n" +
		"+data\n" +
		"*** End Patch\n" +
		"Let me know if it worked."

	require.NoError(t, Apply(patch))
	_, err := os.Stat(target)
	assert.NoError(t, err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		patch string
		files map[string]string
	}{
		{
			name:  "missing sentinels",
			patch: "not a patch",
		},
		{
			name: "update missing file",
			patch: "*** Begin Patch\n" +
				"*** Update File: nope.txt\n" +
				"@@ x\n" +
				" x\n" +
				"*** End Patch",
		},
		{
			name: "add existing file",
			patch: "*** Begin Patch\n" +
				"*** Add File: exists.txt\n" +
				"+x\n" +
				"*** End Patch",
			files: map[string]string{"exists.txt": "x"},
		},
		{
			name: "unknown directive",
			patch: "*** Begin Patch\n" +
				"*** Rename File: a.txt\n" +
				"*** End Patch",
		},
		{
			name: "add line without plus",
			patch: "*** Begin Patch\n" +
				"*** Add File: a.txt\n" +
				"oops\n" +
				"*** End Patch",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files := tc.files
			if files == nil {
				files = map[string]string{}
			}
			_, _, err := ParseText(tc.patch, files)
			assert.Error(t, err)
		})
	}
}

func TestParseContextFuzz(t *testing.T) {
	// Context lines with trailing whitespace differences still match,
	// but the fuzz count reflects the loose match.
	files := map[string]string{
		"f.txt": "line1\nline2\nline3",
	}
	patch := "*** Begin Patch\n" +
		"*** Update File: f.txt\n" +
		"@@ line1\n" +
		" line1\n" +
		"-line2  \n" +
		"+LINE2\n" +
		"*** End Patch"

	parsed, fuzz, err := ParseText(patch, files)
	require.NoError(t, err)
	assert.Positive(t, fuzz)

	commit, err := parsed.ToCommit(files)
	require.NoError(t, err)
	assert.Equal(t, "line1\nLINE2\nline3",
		commit.Changes["f.txt"].NewContent)
}

func TestAffectedPaths(t *testing.T) {
	patch := "*** Begin Patch\n" +
		"*** Update File: a/one.txt\n" +
		"*** Move to: a/two.txt\n" +
		"@@ x\n" +
		" x\n" +
		"*** Delete File: a/three.txt\n" +
		"*** Add File: a/b/four.txt\n" +
		"+x\n" +
		"*** End Patch"

	paths := AffectedPaths(patch)
	sort.Strings(paths)
	assert.Equal(t, []string{
		"a/b/four.txt", "a/one.txt", "a/three.txt", "a/two.txt",
	}, paths)

	assert.Equal(t, "/work/a", AffectedRoot(patch, "/work"))
}

func TestConstrainedToRoots(t *testing.T) {
	patch := "*** Begin Patch\n" +
		"*** Add File: sub/file.txt\n" +
		"+x\n" +
		"*** End Patch"

	assert.True(t, ConstrainedToRoots(patch, []string{"/work"}, "/work"))
	assert.False(t, ConstrainedToRoots(patch, []string{"/other"}, "/work"))

	escape := "*** Begin Patch\n" +
		"*** Add File: ../outside.txt\n" +
		"+x\n" +
		"*** End Patch"
	assert.False(t, ConstrainedToRoots(escape, []string{"/work"}, "/work"))

	// No detectable paths is never constrained.
	empty := "*** Begin Patch\n*** End Patch"
	assert.False(t, ConstrainedToRoots(empty, []string{"/work"}, "/work"))
}

func TestCommonRoot(t *testing.T) {
	assert.Equal(t, ".", CommonRoot(nil))
	assert.Equal(t, "/a/b",
		CommonRoot([]string{"/a/b/x.txt", "/a/b/c/y.txt"}))
	assert.Equal(t, "/a",
		CommonRoot([]string{"/a/b/x.txt", "/a/z/y.txt"}))
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"none", "read-only", "workspace-write",
		"danger-full-access"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}

	_, err := ParseMode("yolo")
	assert.Error(t, err)
}

func TestWritableRootsWithCwd(t *testing.T) {
	p := Policy{
		Mode:          ModeWorkspaceWrite,
		WritableRoots: []string{"/data/scratch"},
	}

	roots := p.WritableRootsWithCwd("/home/me/project")
	assert.Contains(t, roots, "/data/scratch")
	assert.Contains(t, roots, "/home/me/project")
	assert.Contains(t, roots, filepath.Clean(os.TempDir()))

	// Duplicates collapse.
	p.WritableRoots = []string{"/home/me/project", "/home/me/project/"}
	roots = p.WritableRootsWithCwd("/home/me/project")
	count := 0
	for _, r := range roots {
		if r == "/home/me/project" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// Non-workspace modes have no writable roots.
	for _, mode := range []Mode{ModeNone, ModeReadOnly, ModeDangerFullAccess} {
		assert.Empty(t, Policy{Mode: mode}.WritableRootsWithCwd("/x"))
	}
}

func TestAllowsNetwork(t *testing.T) {
	assert.True(t, Policy{Mode: ModeNone}.AllowsNetwork())
	assert.True(t, Policy{Mode: ModeDangerFullAccess}.AllowsNetwork())
	assert.False(t, Policy{Mode: ModeReadOnly}.AllowsNetwork())
	assert.False(t, Policy{Mode: ModeWorkspaceWrite}.AllowsNetwork())
	assert.True(t, Policy{Mode: ModeWorkspaceWrite,
		NetworkAccess: true}.AllowsNetwork())
}

func TestTypeForPolicy(t *testing.T) {
	typ, err := TypeForPolicy(PolicyNone())
	require.NoError(t, err)
	assert.Equal(t, TypeNone, typ)

	typ, err = TypeForPolicy(Policy{Mode: ModeDangerFullAccess})
	require.NoError(t, err)
	assert.Equal(t, TypeNone, typ)

	platform, ok := PlatformType()
	typ, err = TypeForPolicy(Policy{Mode: ModeReadOnly})
	if ok {
		require.NoError(t, err)
		assert.Equal(t, platform, typ)
	} else {
		assert.Error(t, err)
	}
}

func TestNoopAdapterPassthrough(t *testing.T) {
	a, err := For(TypeNone)
	require.NoError(t, err)

	env, err := a.Transform([]string{"echo", "hi"}, PolicyNone(), "/tmp")
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "hi"}, env.Command)
	assert.Empty(t, env.ExtraEnv)
}

func TestSeatbeltTransform(t *testing.T) {
	a, err := For(TypeMacosSeatbelt)
	require.NoError(t, err)

	policy := Policy{Mode: ModeWorkspaceWrite}
	env, err := a.Transform([]string{"ls", "-la"}, policy, "/work")
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(env.Command), 6)
	assert.Equal(t, seatbeltExecutable, env.Command[0])
	assert.Equal(t, "-p", env.Command[1])
	assert.Equal(t, "--", env.Command[3])
	assert.Equal(t, []string{"ls", "-la"}, env.Command[4:])

	assert.Equal(t, string(TypeMacosSeatbelt),
		env.ExtraEnv[EnvSandboxMarker])
	assert.Equal(t, "1", env.ExtraEnv[EnvNetworkDisabled])

	_, err = a.Transform(nil, policy, "/work")
	assert.Error(t, err)
}

func TestSeatbeltProfileContents(t *testing.T) {
	policy := Policy{
		Mode:          ModeWorkspaceWrite,
		WritableRoots: []string{"/data/out"},
	}
	profile := SeatbeltProfile(policy, "/work")

	assert.Contains(t, profile, "(version 1)")
	assert.Contains(t, profile, "(allow default)")
	assert.Contains(t, profile, "(deny file-write*)")
	assert.Contains(t, profile, `(subpath "/data/out")`)
	assert.Contains(t, profile, `(subpath "/work")`)
	assert.Contains(t, profile, `(literal "/dev/null")`)
	assert.Contains(t, profile, "(deny network*)")

	// Network-allowed workspaces omit the network deny.
	policy.NetworkAccess = true
	profile = SeatbeltProfile(policy, "/work")
	assert.NotContains(t, profile, "(deny network*)")

	// Read-only profiles deny all writes and list no subpaths.
	profile = SeatbeltProfile(Policy{Mode: ModeReadOnly}, "/work")
	assert.Contains(t, profile, "(deny file-write*)")
	assert.NotContains(t, profile, "subpath")
}

func TestLandlockTransform(t *testing.T) {
	a, err := For(TypeLinuxLandlock)
	require.NoError(t, err)

	policy := Policy{Mode: ModeReadOnly}
	env, err := a.Transform([]string{"cat", "/etc/hostname"}, policy, "/work")
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(env.Command), 6)
	assert.Equal(t, HelperFlag, env.Command[1])
	assert.Contains(t, env.Command[2], `"mode":"read-only"`)
	assert.Equal(t, "--", env.Command[3])
	assert.Equal(t, []string{"cat", "/etc/hostname"}, env.Command[4:])
	assert.Equal(t, string(TypeLinuxLandlock),
		env.ExtraEnv[EnvSandboxMarker])

	_, err = a.Transform(nil, policy, "/work")
	assert.Error(t, err)
}

func TestRunHelperRejectsBadSpec(t *testing.T) {
	err := RunHelper("not json", []string{"true"})
	assert.Error(t, err)

	err = RunHelper(`{"policy":{"mode":"read-only"},"cwd":"/"}`, nil)
	assert.Error(t, err)
}

func TestIsLikelyDeniedBySandbox(t *testing.T) {
	tests := []struct {
		name     string
		typ      Type
		exitCode int
		stderr   string
		want     bool
	}{
		{"no sandbox", TypeNone, 126, "permission denied", false},
		{"success", TypeLinuxLandlock, 0, "", false},
		{"exit 126", TypeLinuxLandlock, 126, "", true},
		{"command not found", TypeLinuxLandlock, 127, "not found", false},
		{"generic failure", TypeMacosSeatbelt, 1, "assertion failed", false},
		{"eperm stderr", TypeLinuxLandlock, 1,
			"touch: cannot touch '/etc/x': Permission denied", true},
		{"read-only fs", TypeLinuxLandlock, 1,
			"mkdir: Read-only file system", true},
		{"seatbelt stderr", TypeMacosSeatbelt, 65,
			"sandbox-exec: profile error", true},
		{"odd exit clean stderr", TypeLinuxLandlock, 3, "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := IsLikelyDeniedBySandbox(tc.typ, tc.exitCode, tc.stderr)
			assert.Equal(t, tc.want, got)
		})
	}
}

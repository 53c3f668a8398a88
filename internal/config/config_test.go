/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeb26/execguard/internal/sandbox"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWithComments(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".execguard.jsonc", `{
    // keep builds contained but allow pulling modules
    "approval_policy": "on-failure",
    "sandbox_mode": "workspace-write",
    "writable_roots": ["/var/cache/build"],
    "network_access": true,
    "timeout_ms": 30000,
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "on-failure", cfg.ApprovalPolicy)
	assert.Equal(t, uint64(30000), cfg.TimeoutMS)

	pol := cfg.SandboxPolicy()
	assert.Equal(t, sandbox.ModeWorkspaceWrite, pol.Mode)
	assert.Equal(t, []string{"/var/cache/build"}, pol.WritableRoots)
	assert.True(t, pol.AllowsNetwork())
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".execguard.json",
		`{"approval_policy": "never", "sandbux_mode": "none"}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "on-request", cfg.ApprovalPolicy)
	assert.Equal(t, "workspace-write", cfg.SandboxMode)
	assert.Equal(t, DefaultTimeoutMS, cfg.TimeoutMS)
}

func TestValidateRejectsBadEnums(t *testing.T) {
	cfg := Config{ApprovalPolicy: "maybe"}
	assert.Error(t, cfg.Validate())

	cfg = Config{SandboxMode: "half-open"}
	assert.Error(t, cfg.Validate())
}

func TestDiscoverProjectFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".execguard.json",
		`{"approval_policy": "untrusted"}`)

	cfg, path, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".execguard.json"), path)
	assert.Equal(t, "untrusted", cfg.ApprovalPolicy)
}

func TestDiscoverAmbiguousProjectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".execguard.json", `{}`)
	writeFile(t, dir, ".execguard.jsonc", `{}`)

	_, _, err := Discover(dir)
	assert.Error(t, err)
}

func TestDiscoverDefaults(t *testing.T) {
	// Point the user config dir at an empty location so only defaults
	// remain.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("AppData", t.TempDir())

	cfg, path, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), cfg)
}

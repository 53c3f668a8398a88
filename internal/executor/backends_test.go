/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package executor

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellBackendIdentity(t *testing.T) {
	params := ExecParams{
		Command: []string{"ls", "-l"},
		Cwd:     "/tmp",
	}
	req := ExecutionRequest{Params: params, Mode: ModeShell}

	backend, err := backendFor(ModeShell)
	require.NoError(t, err)

	prepared, err := backend.Prepare(params, req)
	require.NoError(t, err)
	assert.Equal(t, params, prepared)
	assert.True(t, backend.StreamsStdout())
}

func TestShellBackendRejectsPatchMode(t *testing.T) {
	backend, err := backendFor(ModeShell)
	require.NoError(t, err)

	_, err = backend.Prepare(ExecParams{},
		ExecutionRequest{Mode: ModeApplyPatch})
	var modeErr *UnsupportedModeError
	require.ErrorAs(t, err, &modeErr)
	assert.Equal(t, ModeApplyPatch, modeErr.Mode)
}

func TestApplyPatchBackendPrepare(t *testing.T) {
	patchText := "*** Begin Patch\n*** Add File: a.txt\n+hi\n*** End Patch"
	cwd := t.TempDir()
	req := ExecutionRequest{
		Mode:  ModeApplyPatch,
		Patch: &ApplyPatchPayload{Patch: patchText, Cwd: cwd},
	}

	backend, err := backendFor(ModeApplyPatch)
	require.NoError(t, err)

	prepared, err := backend.Prepare(ExecParams{Command: []string{"x"}},
		req)
	require.NoError(t, err)

	self, err := os.Executable()
	require.NoError(t, err)

	require.Len(t, prepared.Command, 3)
	assert.Equal(t, self, prepared.Command[0])
	assert.Equal(t, InternalApplyPatchFlag, prepared.Command[1])
	assert.Equal(t, patchText, prepared.Command[2])
	assert.Equal(t, cwd, prepared.Cwd)

	// The patch subprocess sees no host environment at all.
	require.NotNil(t, prepared.Env)
	assert.Empty(t, prepared.Env)

	assert.False(t, backend.StreamsStdout())
}

func TestApplyPatchBackendRequiresPayload(t *testing.T) {
	backend, err := backendFor(ModeApplyPatch)
	require.NoError(t, err)

	_, err = backend.Prepare(ExecParams{},
		ExecutionRequest{Mode: ModeApplyPatch})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "patch"))

	_, err = backend.Prepare(ExecParams{},
		ExecutionRequest{Mode: ModeShell})
	var modeErr *UnsupportedModeError
	require.ErrorAs(t, err, &modeErr)
}

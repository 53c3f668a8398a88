/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeb26/execguard/internal/approval"
	"github.com/mikeb26/execguard/internal/policy"
	"github.com/mikeb26/execguard/internal/sandbox"
)

const safetyTestPolicy = `{
  "programs": {
    "ls": [{"vararg": {"readable_file": true}}]
  }
}`

func TestParseAskForApproval(t *testing.T) {
	for _, mode := range []string{"untrusted", "on-failure", "on-request",
		"never"} {
		parsed, err := ParseAskForApproval(mode)
		require.NoError(t, err)
		assert.Equal(t, AskForApproval(mode), parsed)
	}

	_, err := ParseAskForApproval("sometimes")
	assert.Error(t, err)
}

func TestSafetySessionApprovalWins(t *testing.T) {
	cache := approval.NewCache()
	cache.Insert([]string{"rm", "-rf", "scratch"})

	check := AssessCommandSafety([]string{"rm", "-rf", "scratch"},
		ApprovalUnlessTrusted,
		sandbox.Policy{Mode: sandbox.ModeDangerFullAccess}, nil, cache)

	assert.Equal(t, VerdictAutoApprove, check.Verdict)
	assert.Equal(t, sandbox.TypeNone, check.SandboxType)
	assert.True(t, check.UserExplicitlyApproved)
}

func TestSafetySessionApprovalKeepsSandbox(t *testing.T) {
	platformType, ok := sandbox.PlatformType()
	if !ok {
		t.Skip("no sandbox on this platform")
	}

	cache := approval.NewCache()
	cache.Insert([]string{"rm", "-rf", "scratch"})

	check := AssessCommandSafety([]string{"rm", "-rf", "scratch"},
		ApprovalUnlessTrusted,
		sandbox.Policy{Mode: sandbox.ModeWorkspaceWrite}, nil, cache)

	assert.Equal(t, VerdictAutoApprove, check.Verdict)
	assert.Equal(t, platformType, check.SandboxType)
	assert.True(t, check.UserExplicitlyApproved)
}

func TestSafetyPolicyTrusted(t *testing.T) {
	platformType, ok := sandbox.PlatformType()
	if !ok {
		t.Skip("no sandbox on this platform")
	}

	spec, err := policy.Parse("test", []byte(safetyTestPolicy))
	require.NoError(t, err)

	check := AssessCommandSafety([]string{"ls", "README.md"},
		ApprovalUnlessTrusted,
		sandbox.Policy{Mode: sandbox.ModeReadOnly}, spec,
		approval.NewCache())

	assert.Equal(t, VerdictAutoApprove, check.Verdict)
	assert.Equal(t, platformType, check.SandboxType)
	assert.False(t, check.UserExplicitlyApproved)
}

func TestSafetyUntrustedMatrix(t *testing.T) {
	platformType, platformOk := sandbox.PlatformType()

	restricted := sandbox.Policy{Mode: sandbox.ModeWorkspaceWrite}
	open := sandbox.Policy{Mode: sandbox.ModeDangerFullAccess}

	tests := []struct {
		name        string
		approval    AskForApproval
		sandbox     sandbox.Policy
		wantVerdict SafetyVerdict
		wantType    sandbox.Type
	}{
		{"untrusted mode always asks", ApprovalUnlessTrusted, restricted,
			VerdictAskUser, sandbox.TypeNone},
		{"full access runs directly", ApprovalOnFailure, open,
			VerdictAutoApprove, sandbox.TypeNone},
		{"never with full access runs directly", ApprovalNever, open,
			VerdictAutoApprove, sandbox.TypeNone},
		{"restricted runs sandboxed", ApprovalOnFailure, restricted,
			VerdictAutoApprove, platformType},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.wantType != sandbox.TypeNone && !platformOk {
				t.Skip("no sandbox on this platform")
			}
			check := AssessCommandSafety([]string{"touch", "x"},
				tc.approval, tc.sandbox, nil, approval.NewCache())
			assert.Equal(t, tc.wantVerdict, check.Verdict)
			if check.Verdict == VerdictAutoApprove {
				assert.Equal(t, tc.wantType, check.SandboxType)
			}
		})
	}
}

func TestSafetyUnsandboxablePlatform(t *testing.T) {
	if _, ok := sandbox.PlatformType(); ok {
		t.Skip("platform has a sandbox; unenforceable branch not reachable")
	}

	restricted := sandbox.Policy{Mode: sandbox.ModeReadOnly}

	check := AssessCommandSafety([]string{"touch", "x"}, ApprovalNever,
		restricted, nil, approval.NewCache())
	assert.Equal(t, VerdictReject, check.Verdict)

	check = AssessCommandSafety([]string{"touch", "x"}, ApprovalOnFailure,
		restricted, nil, approval.NewCache())
	assert.Equal(t, VerdictAskUser, check.Verdict)
}

func TestSafetyEscalatedRequest(t *testing.T) {
	assert.Equal(t, VerdictReject, assessEscalated(ApprovalNever).Verdict)
	assert.Equal(t, VerdictAskUser,
		assessEscalated(ApprovalOnRequest).Verdict)
}

const constrainedPatch = "*** Begin Patch\n" +
	"*** Add File: notes/today.md\n" +
	"+hello\n" +
	"*** End Patch"

// The escaping patch uses an absolute path: relative escapes from a
// test cwd under the system temp dir would still land inside the
// always-writable temp root.
const escapingPatch = "*** Begin Patch\n" +
	"*** Add File: /opt/outside.md\n" +
	"+hello\n" +
	"*** End Patch"

func TestPatchSafety(t *testing.T) {
	cwd := t.TempDir()

	preApproved := &ApplyPatchPayload{Patch: constrainedPatch, Cwd: cwd,
		UserExplicitlyApproved: true}
	check := AssessPatchSafety(preApproved, ApprovalNever,
		sandbox.Policy{Mode: sandbox.ModeReadOnly}, cwd)
	assert.Equal(t, VerdictAutoApprove, check.Verdict)
	assert.True(t, check.UserExplicitlyApproved)

	inWorkspace := &ApplyPatchPayload{Patch: constrainedPatch, Cwd: cwd}
	check = AssessPatchSafety(inWorkspace, ApprovalOnRequest,
		sandbox.Policy{Mode: sandbox.ModeWorkspaceWrite}, cwd)
	if _, ok := sandbox.PlatformType(); ok {
		assert.Equal(t, VerdictAutoApprove, check.Verdict)
		assert.False(t, check.UserExplicitlyApproved)
	} else {
		assert.Equal(t, VerdictAskUser, check.Verdict)
	}

	escaping := &ApplyPatchPayload{Patch: escapingPatch, Cwd: cwd}
	check = AssessPatchSafety(escaping, ApprovalOnRequest,
		sandbox.Policy{Mode: sandbox.ModeWorkspaceWrite}, cwd)
	assert.Equal(t, VerdictAskUser, check.Verdict)

	check = AssessPatchSafety(escaping, ApprovalNever,
		sandbox.Policy{Mode: sandbox.ModeWorkspaceWrite}, cwd)
	assert.Equal(t, VerdictReject, check.Verdict)
}

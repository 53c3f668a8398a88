/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package executor

import (
	"fmt"

	"github.com/mikeb26/execguard/internal/applypatch"
	"github.com/mikeb26/execguard/internal/approval"
	"github.com/mikeb26/execguard/internal/policy"
	"github.com/mikeb26/execguard/internal/sandbox"
)

// AskForApproval selects when the user is consulted before running a
// command.
type AskForApproval string

const (
	// ApprovalUnlessTrusted prompts for everything the policy matcher
	// does not classify as known safe.
	ApprovalUnlessTrusted AskForApproval = "untrusted"
	// ApprovalOnFailure runs everything sandboxed first and prompts
	// only when the sandbox denies the command.
	ApprovalOnFailure AskForApproval = "on-failure"
	// ApprovalOnRequest prompts when the command cannot run inside the
	// configured sandbox, or when escalation is requested.
	ApprovalOnRequest AskForApproval = "on-request"
	// ApprovalNever never prompts; commands that would need approval
	// are rejected.
	ApprovalNever AskForApproval = "never"
)

// ParseAskForApproval converts a configuration string into an
// AskForApproval mode.
func ParseAskForApproval(s string) (AskForApproval, error) {
	switch AskForApproval(s) {
	case ApprovalUnlessTrusted, ApprovalOnFailure, ApprovalOnRequest,
		ApprovalNever:
		return AskForApproval(s), nil
	}
	return "", fmt.Errorf("unknown approval mode %q", s)
}

// SafetyVerdict is the outcome of a pre-spawn safety assessment.
type SafetyVerdict int

const (
	// VerdictAutoApprove runs the command without prompting.
	VerdictAutoApprove SafetyVerdict = iota
	// VerdictAskUser raises an approval request and waits.
	VerdictAskUser
	// VerdictReject refuses the command outright.
	VerdictReject
)

// SafetyCheck carries the verdict plus how an auto-approved command
// must be contained.
type SafetyCheck struct {
	Verdict SafetyVerdict
	// SandboxType is the containment for VerdictAutoApprove.
	SandboxType sandbox.Type
	// UserExplicitlyApproved marks auto-approvals that trace back to
	// an explicit user decision (session approvals), as opposed to
	// policy trust.
	UserExplicitlyApproved bool
	// Reason explains VerdictReject.
	Reason string
}

// AssessCommandSafety decides how a shell command may run. Session
// approvals win first, then the policy matcher's known-safe verdict,
// then the approval/sandbox mode table for untrusted commands. Matcher
// errors are never fatal here: an unmatched command is simply
// untrusted.
func AssessCommandSafety(command []string, approvalPolicy AskForApproval,
	sandboxPolicy sandbox.Policy, spec *policy.Policy,
	cache *approval.Cache) SafetyCheck {

	if cache != nil && cache.Contains(command) {
		// A session approval skips the prompt, not the containment: the
		// rerun still honors the configured sandbox. Only the run
		// immediately following the prompt goes uncontained.
		if typ, err := sandbox.TypeForPolicy(sandboxPolicy); err == nil {
			return SafetyCheck{
				Verdict:                VerdictAutoApprove,
				SandboxType:            typ,
				UserExplicitlyApproved: true,
			}
		}
	}

	if spec != nil && len(command) > 0 {
		call := policy.NewExecCall(command[0], command[1:]...)
		if res, err := spec.Check(call); err == nil && res.Allowed() {
			typ, terr := sandbox.TypeForPolicy(sandboxPolicy)
			if terr == nil {
				return SafetyCheck{
					Verdict:     VerdictAutoApprove,
					SandboxType: typ,
				}
			}
		}
	}

	return assessUntrusted(approvalPolicy, sandboxPolicy)
}

// assessUntrusted is the approval-mode decision table for commands with
// no trust signal.
func assessUntrusted(approvalPolicy AskForApproval,
	sandboxPolicy sandbox.Policy) SafetyCheck {

	if approvalPolicy == ApprovalUnlessTrusted {
		return SafetyCheck{Verdict: VerdictAskUser}
	}

	if !sandboxPolicy.IsRestricted() {
		// No containment is configured; OnFailure, OnRequest, and
		// Never all run the command directly.
		return SafetyCheck{
			Verdict:     VerdictAutoApprove,
			SandboxType: sandbox.TypeNone,
		}
	}

	typ, err := sandbox.TypeForPolicy(sandboxPolicy)
	if err == nil {
		return SafetyCheck{
			Verdict:     VerdictAutoApprove,
			SandboxType: typ,
		}
	}

	// The platform cannot enforce the configured sandbox.
	if approvalPolicy == ApprovalNever {
		return SafetyCheck{
			Verdict: VerdictReject,
			Reason:  "cannot sandbox the command and approval policy is never",
		}
	}
	return SafetyCheck{Verdict: VerdictAskUser}
}

// AssessPatchSafety decides how a patch application may run. A patch
// the user already approved upstream never prompts again; a patch
// constrained to the writable roots is auto-approved under the
// configured containment.
func AssessPatchSafety(patch *ApplyPatchPayload,
	approvalPolicy AskForApproval,
	sandboxPolicy sandbox.Policy, cwd string) SafetyCheck {

	if patch.UserExplicitlyApproved {
		return SafetyCheck{
			Verdict:                VerdictAutoApprove,
			SandboxType:            sandbox.TypeNone,
			UserExplicitlyApproved: true,
		}
	}

	patchCwd := patch.Cwd
	if patchCwd == "" {
		patchCwd = cwd
	}

	switch sandboxPolicy.Mode {
	case sandbox.ModeDangerFullAccess, sandbox.ModeNone:
		return SafetyCheck{
			Verdict:     VerdictAutoApprove,
			SandboxType: sandbox.TypeNone,
		}
	case sandbox.ModeWorkspaceWrite:
		roots := sandboxPolicy.WritableRootsWithCwd(patchCwd)
		if applypatch.ConstrainedToRoots(patch.Patch, roots, patchCwd) &&
			approvalPolicy != ApprovalUnlessTrusted {
			typ, err := sandbox.TypeForPolicy(sandboxPolicy)
			if err == nil {
				return SafetyCheck{
					Verdict:     VerdictAutoApprove,
					SandboxType: typ,
				}
			}
		}
	}

	if approvalPolicy == ApprovalNever {
		return SafetyCheck{
			Verdict: VerdictReject,
			Reason:  "patch touches paths outside the writable roots and approval policy is never",
		}
	}
	return SafetyCheck{Verdict: VerdictAskUser}
}

// assessEscalated handles requests that explicitly ask to run without
// containment.
func assessEscalated(approvalPolicy AskForApproval) SafetyCheck {
	if approvalPolicy == ApprovalNever {
		return SafetyCheck{
			Verdict: VerdictReject,
			Reason:  "escalated permissions requested but approval policy is never",
		}
	}
	return SafetyCheck{Verdict: VerdictAskUser}
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

// Package executor orchestrates one command execution end to end:
// normalization, session cache lookup, safety assessment, approval
// prompting, sandbox selection, backend preparation, spawn with
// timeout, and the single escalated retry after a sandbox denial.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mikeb26/execguard/internal/applypatch"
	"github.com/mikeb26/execguard/internal/approval"
	"github.com/mikeb26/execguard/internal/cmdline"
	"github.com/mikeb26/execguard/internal/policy"
	"github.com/mikeb26/execguard/internal/sandbox"
)

// RunConfig is the per-turn configuration an execution runs under.
type RunConfig struct {
	ApprovalPolicy AskForApproval
	SandboxPolicy  sandbox.Policy
	// SandboxCwd anchors relative writable roots; defaults to the
	// request's Cwd.
	SandboxCwd string
}

// Executor coordinates policy, approvals, and sandboxing for a session.
// It is safe for concurrent use; each Run is independent apart from the
// shared session cache and broker.
type Executor struct {
	spec   *policy.Policy
	cache  *approval.Cache
	broker *approval.Broker
	store  approval.PolicyStore
	sink   EventSink
	logger *slog.Logger

	// adapterFor is overridden in tests to substitute sandbox
	// adapters.
	adapterFor func(sandbox.Type) (sandbox.Adapter, error)
}

func New(spec *policy.Policy, broker *approval.Broker) *Executor {
	return &Executor{
		spec:       spec,
		cache:      approval.NewCache(),
		broker:     broker,
		sink:       nopSink{},
		logger:     slog.Default(),
		adapterFor: sandbox.For,
	}
}

// SetEventSink replaces the lifecycle event sink. Must be called before
// the first Run.
func (e *Executor) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = nopSink{}
	}
	e.sink = sink
}

// SetLogger replaces the structured logger. Must be called before the
// first Run.
func (e *Executor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetTrustStore attaches durable user-granted trust rules. Commands
// and patches matching a stored rule run as if the user had just
// approved them. Must be called before the first Run.
func (e *Executor) SetTrustStore(store approval.PolicyStore) {
	e.store = store
}

// Cache exposes the session approval cache, e.g. for inspection in a
// status surface.
func (e *Executor) Cache() *approval.Cache {
	return e.cache
}

// Run executes one request under the given configuration. Timeouts and
// nonzero exits are outcomes, not errors; errors mean the pipeline
// itself failed or the command was rejected before spawning.
func (e *Executor) Run(ctx context.Context, req ExecutionRequest,
	cfg RunConfig) (*ExecOutcome, error) {

	if len(req.Params.Command) == 0 {
		return nil, execErr(ExecErrorFunction,
			fmt.Errorf("empty command"))
	}
	if req.CallID == "" {
		req.CallID = uuid.NewString()
	}
	if cfg.SandboxCwd == "" {
		cfg.SandboxCwd = req.Params.Cwd
	}

	check, err := e.assess(req, cfg)
	if err != nil {
		return nil, err
	}

	switch check.Verdict {
	case VerdictReject:
		return nil, &RejectionError{Reason: check.Reason}
	case VerdictAskUser:
		decision, derr := e.requestApproval(ctx, req,
			req.Params.Justification,
			req.Params.WithEscalatedPermissions)
		if derr != nil {
			return nil, derr
		}
		if decision == approval.DecisionApprovedForSession {
			e.cache.Insert(req.approvalArgv())
		}
		// A user approval always runs without containment; the user
		// has seen exactly what will execute.
		check = SafetyCheck{
			Verdict:                VerdictAutoApprove,
			SandboxType:            sandbox.TypeNone,
			UserExplicitlyApproved: true,
		}
	}

	outcome, err := e.runOnce(ctx, req, cfg, check.SandboxType, false)
	if err != nil {
		return nil, err
	}

	if !e.shouldEscalate(check, cfg, outcome) {
		return outcome, nil
	}

	e.logger.Info("sandbox denial detected; asking to retry unsandboxed",
		"call_id", req.CallID, "exit_code", outcome.ExitCode)

	justification := fmt.Sprintf("command failed inside the %v sandbox (exit %v)",
		check.SandboxType, outcome.ExitCode)
	decision, derr := e.requestApproval(ctx, req, justification, true)
	if derr != nil {
		var rej *RejectionError
		if errors.As(derr, &rej) && !rej.Aborted {
			// Escalation declined: the sandboxed result stands.
			return outcome, nil
		}
		return nil, derr
	}
	if decision == approval.DecisionApprovedForSession {
		e.cache.Insert(req.approvalArgv())
	}

	return e.runOnce(ctx, req, cfg, sandbox.TypeNone, true)
}

// assess maps the request onto a safety verdict.
func (e *Executor) assess(req ExecutionRequest,
	cfg RunConfig) (SafetyCheck, error) {

	userApproved := SafetyCheck{
		Verdict:                VerdictAutoApprove,
		SandboxType:            sandbox.TypeNone,
		UserExplicitlyApproved: true,
	}

	switch req.Mode {
	case ModeShell:
		if req.Params.WithEscalatedPermissions {
			return assessEscalated(cfg.ApprovalPolicy), nil
		}
		if e.commandTrustedByStore(req.approvalArgv()) {
			return userApproved, nil
		}
		return AssessCommandSafety(req.approvalArgv(), cfg.ApprovalPolicy,
			cfg.SandboxPolicy, e.spec, e.cache), nil
	case ModeApplyPatch:
		if req.Patch == nil {
			return SafetyCheck{}, execErr(ExecErrorFunction,
				fmt.Errorf("apply-patch request carries no patch"))
		}
		if e.patchTrustedByStore(req.Patch, cfg.SandboxCwd) {
			return userApproved, nil
		}
		return AssessPatchSafety(req.Patch, cfg.ApprovalPolicy,
			cfg.SandboxPolicy, cfg.SandboxCwd), nil
	}
	return SafetyCheck{}, execErr(ExecErrorFunction,
		fmt.Errorf("unknown execution mode %v", req.Mode))
}

// commandTrustedByStore consults durable trust rules for an exact
// invocation, an invocation prefix, or a blanket command grant.
func (e *Executor) commandTrustedByStore(argv []string) bool {
	if e.store == nil || len(argv) == 0 {
		return false
	}
	program := argv[0]
	args := argv[1:]

	ids := []string{
		approval.PolicyID(approval.TargetInvocation,
			approval.InvocationKey(program, args)),
		approval.PolicyID(approval.TargetCommand, program),
	}
	if prefixKey := approval.InvocationPrefixKey(program, args); prefixKey != "" {
		ids = append(ids,
			approval.PolicyID(approval.TargetInvocationPrefix, prefixKey))
	}

	need := []approval.Action{approval.ActionExecute}
	for _, id := range ids {
		if actions, found := e.store.Check(id); found &&
			approval.HasAllActions(actions, need) {
			return true
		}
	}
	return false
}

// patchTrustedByStore consults directory-targeted trust rules covering
// every path the patch touches.
func (e *Executor) patchTrustedByStore(patch *ApplyPatchPayload,
	cwd string) bool {

	if e.store == nil {
		return false
	}
	patchCwd := patch.Cwd
	if patchCwd == "" {
		patchCwd = cwd
	}
	root := applypatch.AffectedRoot(patch.Patch, patchCwd)
	if root == "" || root == "." {
		return false
	}

	id := approval.PolicyID(approval.TargetDir, root)
	actions, found := e.store.Check(id)
	return found && approval.HasAllActions(actions,
		[]approval.Action{approval.ActionWrite})
}

// runOnce prepares the backend, applies the sandbox transform, and
// spawns exactly once.
func (e *Executor) runOnce(ctx context.Context, req ExecutionRequest,
	cfg RunConfig, sandboxType sandbox.Type,
	escalated bool) (*ExecOutcome, error) {

	backend, err := backendFor(req.Mode)
	if err != nil {
		return nil, execErr(ExecErrorFunction, err)
	}
	params, err := backend.Prepare(req.Params, req)
	if err != nil {
		return nil, execErr(ExecErrorFunction, err)
	}

	sandboxPolicy := cfg.SandboxPolicy
	if sandboxType == sandbox.TypeNone {
		sandboxPolicy = sandbox.PolicyNone()
	}
	adapter, err := e.adapterFor(sandboxType)
	if err != nil {
		return nil, execErr(ExecErrorSandbox, err)
	}
	execEnv, err := adapter.Transform(params.Command, sandboxPolicy,
		cfg.SandboxCwd)
	if err != nil {
		return nil, execErr(ExecErrorSandbox, err)
	}

	e.sink.ExecBegin(ExecBeginEvent{
		CallID:         req.CallID,
		Command:        params.Command,
		DisplayCommand: cmdline.FormatForDisplay(req.approvalArgv()),
		Cwd:            params.Cwd,
		Escalated:      escalated,
	})

	var onOutput func([]byte)
	if backend.StreamsStdout() {
		callID := req.CallID
		onOutput = func(chunk []byte) {
			e.sink.ExecOutput(ExecOutputEvent{CallID: callID, Chunk: chunk})
		}
	}

	outcome, err := spawn(ctx, execEnv, params, onOutput)
	if err != nil {
		kind := ExecErrorIO
		var pipeErr *ExecError
		if errors.As(err, &pipeErr) {
			kind = pipeErr.Kind
		}
		e.sink.ExecEnd(ExecEndEvent{
			CallID:   req.CallID,
			ExitCode: -1,
			Error:    kind,
		})
		return nil, err
	}
	outcome.Escalated = escalated

	e.sink.ExecEnd(ExecEndEvent{
		CallID:   req.CallID,
		ExitCode: outcome.ExitCode,
		Output:   outcome.Aggregated,
		Duration: outcome.Duration,
		TimedOut: outcome.TimedOut,
	})

	return outcome, nil
}

// shouldEscalate reports whether a failed sandboxed run qualifies for
// the single retry-without-sandbox prompt.
func (e *Executor) shouldEscalate(check SafetyCheck, cfg RunConfig,
	outcome *ExecOutcome) bool {

	if cfg.ApprovalPolicy == ApprovalNever {
		return false
	}
	if check.SandboxType == sandbox.TypeNone {
		return false
	}
	if outcome.TimedOut {
		return false
	}
	return sandbox.IsLikelyDeniedBySandbox(check.SandboxType,
		outcome.ExitCode, outcome.Stderr)
}

// requestApproval routes one prompt through the broker and maps the
// decision onto the executor's error taxonomy. The returned error is a
// RejectionError for denials and aborts.
func (e *Executor) requestApproval(ctx context.Context,
	req ExecutionRequest, justification string,
	escalated bool) (approval.Decision, error) {

	argv := req.approvalArgv()
	_, replyCh, err := e.broker.Register(ctx, approval.Request{
		Command:        argv,
		DisplayCommand: cmdline.FormatForDisplay(argv),
		Cwd:            req.Params.Cwd,
		Justification:  justification,
		Escalated:      escalated,
	})
	if err != nil {
		return approval.DecisionAbort,
			&RejectionError{Reason: err.Error(), Aborted: true}
	}

	decision, err := approval.Await(ctx, replyCh)
	if err != nil {
		return approval.DecisionAbort,
			&RejectionError{Reason: "approval canceled", Aborted: true}
	}
	switch decision {
	case approval.DecisionDenied:
		return decision, &RejectionError{Reason: "user denied the command"}
	case approval.DecisionAbort:
		return decision,
			&RejectionError{Reason: "turn aborted", Aborted: true}
	}
	return decision, nil
}

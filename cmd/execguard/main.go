/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mikeb26/execguard/internal/applypatch"
	"github.com/mikeb26/execguard/internal/approval"
	"github.com/mikeb26/execguard/internal/config"
	"github.com/mikeb26/execguard/internal/executor"
	"github.com/mikeb26/execguard/internal/policy"
	"github.com/mikeb26/execguard/internal/sandbox"
)

const CommandName = "execguard"

const usageText = `usage: %v [flags] -- <command> [args...]

Runs a command through policy matching, approval, and platform
sandboxing.

flags:
`

type cliFlags struct {
	cwd        string
	sandboxStr string
	approval   string
	timeoutMS  uint64
	configPath string
	policyPath string
	escalate   bool
	justify    string
	jsonOut    bool
	verbose    bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// The internal re-invocation entry points dispatch before normal
	// flag parsing so their payloads are never mistaken for flags.
	if len(args) >= 1 {
		switch args[0] {
		case executor.InternalApplyPatchFlag:
			return applyPatchMain(args[1:])
		case sandbox.HelperFlag:
			return sandboxHelperMain(args[1:])
		}
	}

	flags, command, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "%v: %v\n", CommandName, err)
		return 2
	}

	logLevel := slog.LevelWarn
	if flags.verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: logLevel}))

	outcome, err := execute(flags, command, logger)
	if err != nil {
		var rej *executor.RejectionError
		if errors.As(err, &rej) {
			fmt.Fprintf(os.Stderr, "%v: rejected: %v\n", CommandName,
				rej.Reason)
			return 125
		}
		fmt.Fprintf(os.Stderr, "%v: %v\n", CommandName, err)
		return 1
	}

	emitOutcome(flags, outcome)
	return outcome.ExitCode
}

func parseFlags(args []string) (*cliFlags, []string, error) {
	flags := &cliFlags{}

	fs := pflag.NewFlagSet(CommandName, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, usageText, CommandName)
		fs.PrintDefaults()
	}

	fs.StringVar(&flags.cwd, "cwd", "", "working directory for the command")
	fs.StringVar(&flags.sandboxStr, "sandbox", "",
		"sandbox mode (none, read-only, workspace-write, danger-full-access)")
	fs.StringVar(&flags.approval, "ask-for-approval", "",
		"approval policy (untrusted, on-failure, on-request, never)")
	fs.Uint64Var(&flags.timeoutMS, "timeout", 0,
		"command timeout in milliseconds")
	fs.StringVar(&flags.configPath, "config", "",
		"configuration file (default: discovered)")
	fs.StringVar(&flags.policyPath, "policy", "",
		"trusted-command policy file")
	fs.BoolVar(&flags.escalate, "escalate", false,
		"request to run without sandboxing (prompts for approval)")
	fs.StringVar(&flags.justify, "justification", "",
		"free text shown alongside an approval prompt")
	fs.BoolVar(&flags.jsonOut, "json", false,
		"emit the outcome as JSON on stdout instead of streaming")
	fs.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	command := fs.Args()
	if len(command) == 0 {
		fs.Usage()
		return nil, nil, fmt.Errorf("no command given")
	}
	return flags, command, nil
}

func execute(flags *cliFlags, command []string,
	logger *slog.Logger) (*executor.ExecOutcome, error) {

	cwd := flags.cwd
	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	cfg, cfgPath, err := loadConfig(flags, cwd)
	if err != nil {
		return nil, err
	}
	if cfgPath != "" {
		logger.Debug("loaded configuration", "path", cfgPath)
	}
	if flags.sandboxStr != "" {
		cfg.SandboxMode = flags.sandboxStr
	}
	if flags.approval != "" {
		cfg.ApprovalPolicy = flags.approval
	}
	if flags.timeoutMS != 0 {
		cfg.TimeoutMS = flags.timeoutMS
	}
	if flags.policyPath != "" {
		cfg.PolicyFile = flags.policyPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	approvalPolicy, err := executor.ParseAskForApproval(cfg.ApprovalPolicy)
	if err != nil {
		return nil, err
	}

	var spec *policy.Policy
	if cfg.PolicyFile != "" {
		data, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("read policy: %w", err)
		}
		spec, err = policy.Parse(cfg.PolicyFile, data)
		if err != nil {
			return nil, err
		}
	}

	broker := approval.NewBroker()
	defer broker.Close()

	// Ctrl-C during a prompt aborts outstanding approvals rather than
	// killing the process mid-interaction.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		broker.ClearAll()
	}()

	store := openTrustStore(logger)
	go servePrompts(broker, store)

	exec := executor.New(spec, broker)
	exec.SetLogger(logger)
	if store != nil {
		exec.SetTrustStore(store)
	}
	if !flags.jsonOut {
		exec.SetEventSink(&streamSink{})
	}

	timeoutMS := cfg.TimeoutMS
	req := executor.ExecutionRequest{
		Params: executor.ExecParams{
			Command:                  command,
			Cwd:                      cwd,
			TimeoutMS:                &timeoutMS,
			WithEscalatedPermissions: flags.escalate,
			Justification:            flags.justify,
		},
		Mode: executor.ModeShell,
	}
	runCfg := executor.RunConfig{
		ApprovalPolicy: approvalPolicy,
		SandboxPolicy:  cfg.SandboxPolicy(),
		SandboxCwd:     cwd,
	}

	return exec.Run(ctx, req, runCfg)
}

// openTrustStore opens the durable per-user trust rules. Failure to
// open degrades to prompting; it never blocks execution.
func openTrustStore(logger *slog.Logger) *approval.JSONPolicyStore {
	base, err := os.UserConfigDir()
	if err != nil {
		logger.Debug("no user config dir; trust rules disabled",
			"error", err)
		return nil
	}
	path := filepath.Join(base, "execguard", "trust.json")
	store, err := approval.NewJSONPolicyStore(path)
	if err != nil {
		logger.Warn("could not open trust store; trust rules disabled",
			"path", path, "error", err)
		return nil
	}
	return store
}

func loadConfig(flags *cliFlags, cwd string) (config.Config, string, error) {
	if flags.configPath != "" {
		cfg, err := config.Load(flags.configPath)
		return cfg, flags.configPath, err
	}
	return config.Discover(cwd)
}

// streamSink mirrors child stdout to the terminal as it arrives and
// notes escalated reruns on stderr.
type streamSink struct{}

func (streamSink) ExecBegin(ev executor.ExecBeginEvent) {
	if ev.Escalated {
		fmt.Fprintf(os.Stderr, "%v: retrying without sandbox\n",
			CommandName)
	}
}

func (streamSink) ExecOutput(ev executor.ExecOutputEvent) {
	os.Stdout.Write(ev.Chunk)
}

func (streamSink) ExecEnd(ev executor.ExecEndEvent) {
	if ev.TimedOut {
		fmt.Fprintf(os.Stderr, "%v: command timed out after %v\n",
			CommandName, ev.Duration.Round(time.Millisecond))
	}
}

type jsonOutcome struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMS int64  `json:"duration_ms"`
	TimedOut   bool   `json:"timed_out"`
	Escalated  bool   `json:"escalated"`
}

func emitOutcome(flags *cliFlags, outcome *executor.ExecOutcome) {
	if !flags.jsonOut {
		// stdout already streamed; surface stderr for the caller.
		fmt.Fprint(os.Stderr, outcome.Stderr)
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jsonOutcome{
		ExitCode:   outcome.ExitCode,
		Stdout:     outcome.Stdout,
		Stderr:     outcome.Stderr,
		DurationMS: outcome.Duration.Milliseconds(),
		TimedOut:   outcome.TimedOut,
		Escalated:  outcome.Escalated,
	})
}

// applyPatchMain is the hidden re-invocation target the apply-patch
// backend spawns. It reads the patch from argv, applies it relative to
// the working directory the backend set, and reports affected files.
func applyPatchMain(args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "%v: apply-patch expects exactly one argument\n",
			CommandName)
		return 2
	}
	if err := applypatch.Apply(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "%v: apply-patch: %v\n", CommandName, err)
		return 1
	}
	fmt.Println("Done!")
	return 0
}

// sandboxHelperMain is the hidden re-invocation target of the Linux
// sandbox adapter: install the restrictions on this process, then exec
// the real command in place.
func sandboxHelperMain(args []string) int {
	sep := -1
	for i, a := range args {
		if a == "--" {
			sep = i
			break
		}
	}
	if sep != 1 || sep == len(args)-1 {
		fmt.Fprintf(os.Stderr,
			"%v: sandbox-helper expects <spec> -- <command>...\n",
			CommandName)
		return 2
	}

	err := sandbox.RunHelper(args[0], args[sep+1:])
	// RunHelper only returns on failure; on success the process image
	// was replaced.
	fmt.Fprintf(os.Stderr, "%v: sandbox-helper: %v\n", CommandName, err)
	return 1
}

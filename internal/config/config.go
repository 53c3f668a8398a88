/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

// Package config loads execguard settings from HuJSON files (JSON with
// comments and trailing commas). A project-local .execguard.jsonc wins
// over the per-user file under os.UserConfigDir.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/mikeb26/execguard/internal/executor"
	"github.com/mikeb26/execguard/internal/sandbox"
)

const (
	// ProjectFileBase is the project-local configuration file name,
	// tried with both supported extensions.
	ProjectFileBase = ".execguard"

	userConfigSubdir = "execguard"
	userConfigFile   = "config.jsonc"

	// DefaultTimeoutMS bounds commands that carry no explicit timeout.
	DefaultTimeoutMS = uint64(60_000)
)

var fileExtensions = []string{".json", ".jsonc"}

type Config struct {
	// ApprovalPolicy selects when the user is prompted; one of
	// "untrusted", "on-failure", "on-request", or "never".
	ApprovalPolicy string `json:"approval_policy,omitempty"`
	// SandboxMode is one of "none", "read-only", "workspace-write", or
	// "danger-full-access".
	SandboxMode string `json:"sandbox_mode,omitempty"`
	// WritableRoots extends the writable set beyond the working
	// directory in workspace-write mode.
	WritableRoots []string `json:"writable_roots,omitempty"`
	// NetworkAccess opts sandboxed commands into outbound network use.
	NetworkAccess bool `json:"network_access,omitempty"`
	// PolicyFile points at the trusted-command policy document.
	PolicyFile string `json:"policy_file,omitempty"`
	// TimeoutMS bounds each command; zero means DefaultTimeoutMS.
	TimeoutMS uint64 `json:"timeout_ms,omitempty"`
}

func Default() Config {
	return Config{
		ApprovalPolicy: string(executor.ApprovalOnRequest),
		SandboxMode:    string(sandbox.ModeWorkspaceWrite),
		TimeoutMS:      DefaultTimeoutMS,
	}
}

// Validate checks the enumerated fields and fills defaulted ones.
func (c *Config) Validate() error {
	if c.ApprovalPolicy == "" {
		c.ApprovalPolicy = string(executor.ApprovalOnRequest)
	}
	if _, err := executor.ParseAskForApproval(c.ApprovalPolicy); err != nil {
		return fmt.Errorf("approval_policy: %w", err)
	}
	if c.SandboxMode == "" {
		c.SandboxMode = string(sandbox.ModeWorkspaceWrite)
	}
	if _, err := sandbox.ParseMode(c.SandboxMode); err != nil {
		return fmt.Errorf("sandbox_mode: %w", err)
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = DefaultTimeoutMS
	}
	return nil
}

// SandboxPolicy converts the validated configuration into a sandbox
// policy.
func (c Config) SandboxPolicy() sandbox.Policy {
	mode, err := sandbox.ParseMode(c.SandboxMode)
	if err != nil {
		mode = sandbox.ModeWorkspaceWrite
	}
	return sandbox.Policy{
		Mode:          mode,
		WritableRoots: c.WritableRoots,
		NetworkAccess: c.NetworkAccess,
	}
}

// Load reads and validates a single configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%v: %w", path, err)
	}
	return cfg, nil
}

// Discover locates the effective configuration for cwd. The search
// order is project file, then the per-user file, then built-in
// defaults. It returns the path the configuration came from, or ""
// when defaults were used. A project directory containing both
// .execguard.json and .execguard.jsonc is ambiguous and rejected.
func Discover(cwd string) (Config, string, error) {
	path, err := projectFile(cwd)
	if err != nil {
		return Config{}, "", err
	}
	if path == "" {
		path = userFile()
	}
	if path == "" {
		cfg := Default()
		return cfg, "", nil
	}

	cfg, err := Load(path)
	if err != nil {
		return Config{}, "", err
	}
	return cfg, path, nil
}

func parse(data []byte) (Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func projectFile(cwd string) (string, error) {
	var found []string
	for _, ext := range fileExtensions {
		candidate := filepath.Join(cwd, ProjectFileBase+ext)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			found = append(found, candidate)
		}
	}
	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("both %v and %v exist; remove one", found[0],
		found[1])
}

func userFile() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(base, userConfigSubdir, userConfigFile)
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		return ""
	}
	return path
}

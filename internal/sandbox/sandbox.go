/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

// Package sandbox expresses OS-level containment for spawned commands.
// A Policy describes what the child may touch (writable roots, network);
// per-platform adapters translate the policy into the mechanism the host
// supports: Landlock+seccomp on Linux, Seatbelt on macOS, a restricted
// token on Windows, or nothing at all. Only the child is ever
// restricted; the parent process stays untouched.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
)

// Mode selects the containment level for a turn.
type Mode string

const (
	// ModeNone runs the command without containment. Used for
	// user-escalated retries and trusted sessions.
	ModeNone Mode = "none"
	// ModeReadOnly permits reads everywhere and writes nowhere.
	ModeReadOnly Mode = "read-only"
	// ModeWorkspaceWrite permits writes under the writable roots (which
	// always include the working directory) and reads everywhere.
	ModeWorkspaceWrite Mode = "workspace-write"
	// ModeDangerFullAccess disables containment entirely, including
	// network restrictions.
	ModeDangerFullAccess Mode = "danger-full-access"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNone, ModeReadOnly, ModeWorkspaceWrite, ModeDangerFullAccess:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown sandbox mode %q", s)
}

// Policy is the immutable per-turn containment description.
type Policy struct {
	Mode          Mode     `json:"mode"`
	WritableRoots []string `json:"writable_roots,omitempty"`
	NetworkAccess bool     `json:"network_access,omitempty"`
}

// PolicyNone is the no-containment policy used for escalated retries.
func PolicyNone() Policy {
	return Policy{Mode: ModeNone}
}

// WritableRootsWithCwd returns the effective writable roots for a
// command running in cwd. Under ModeWorkspaceWrite the working
// directory and the system temp directory are always writable in
// addition to any configured roots.
func (p Policy) WritableRootsWithCwd(cwd string) []string {
	if p.Mode != ModeWorkspaceWrite {
		return nil
	}

	roots := make([]string, 0, len(p.WritableRoots)+2)
	seen := make(map[string]struct{})
	add := func(root string) {
		if root == "" {
			return
		}
		clean := filepath.Clean(root)
		if _, dup := seen[clean]; dup {
			return
		}
		seen[clean] = struct{}{}
		roots = append(roots, clean)
	}

	for _, root := range p.WritableRoots {
		add(root)
	}
	add(cwd)
	add(os.TempDir())
	return roots
}

// AllowsNetwork reports whether the child may create sockets.
func (p Policy) AllowsNetwork() bool {
	switch p.Mode {
	case ModeNone, ModeDangerFullAccess:
		return true
	case ModeWorkspaceWrite:
		return p.NetworkAccess
	default:
		return false
	}
}

// IsRestricted reports whether the policy requires any containment.
func (p Policy) IsRestricted() bool {
	return p.Mode == ModeReadOnly || p.Mode == ModeWorkspaceWrite
}

// Type names the containment mechanism applied to one spawn.
type Type string

const (
	TypeNone              Type = "none"
	TypeMacosSeatbelt     Type = "seatbelt"
	TypeLinuxLandlock     Type = "landlock"
	TypeWindowsRestricted Type = "windows-restricted"
)

// Environment markers set on sandboxed children so scripts and child
// tooling can detect the containment they run under.
const (
	EnvSandboxMarker   = "EXECGUARD_SANDBOX"
	EnvNetworkDisabled = "EXECGUARD_NETWORK_DISABLED"
)

// PlatformType returns the containment mechanism available on the
// current platform, and false when the platform has none.
func PlatformType() (Type, bool) {
	switch runtime.GOOS {
	case "linux":
		return TypeLinuxLandlock, true
	case "darwin":
		return TypeMacosSeatbelt, true
	case "windows":
		return TypeWindowsRestricted, true
	default:
		return TypeNone, false
	}
}

// TypeForPolicy selects the mechanism for a policy: unrestricted
// policies need no adapter, restricted ones need the platform's.
func TypeForPolicy(p Policy) (Type, error) {
	if !p.IsRestricted() {
		return TypeNone, nil
	}
	t, ok := PlatformType()
	if !ok {
		return TypeNone, &UnsupportedPlatformError{OS: runtime.GOOS}
	}
	return t, nil
}

// ExecEnv is the concrete spawn recipe an adapter produces: the
// (possibly wrapped) argv, environment entries to add, and an optional
// platform-specific process attribute block.
type ExecEnv struct {
	Command     []string
	ExtraEnv    map[string]string
	SysProcAttr *syscall.SysProcAttr
}

// Adapter translates a Policy into an ExecEnv for one command. An
// adapter never restricts the calling process; containment is installed
// in (or around) the child only.
type Adapter interface {
	Type() Type
	Transform(command []string, policy Policy, cwd string) (ExecEnv, error)
}

// For returns the adapter implementing the given mechanism.
func For(t Type) (Adapter, error) {
	switch t {
	case TypeNone:
		return noopAdapter{}, nil
	case TypeMacosSeatbelt:
		return seatbeltAdapter{}, nil
	case TypeLinuxLandlock:
		return landlockAdapter{}, nil
	case TypeWindowsRestricted:
		return windowsAdapter{}, nil
	}
	return nil, fmt.Errorf("unknown sandbox type %q", t)
}

// markerEnv builds the common environment markers for a sandboxed
// child.
func markerEnv(t Type, p Policy) map[string]string {
	env := map[string]string{
		EnvSandboxMarker: string(t),
	}
	if !p.AllowsNetwork() {
		env[EnvNetworkDisabled] = "1"
	}
	return env
}

// noopAdapter spawns the command untouched.
type noopAdapter struct{}

func (noopAdapter) Type() Type {
	return TypeNone
}

func (noopAdapter) Transform(command []string, policy Policy,
	cwd string) (ExecEnv, error) {

	return ExecEnv{Command: command}, nil
}

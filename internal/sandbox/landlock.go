/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
)

// Linux containment re-executes the current binary as a single-purpose
// helper: the helper installs Landlock filesystem rules plus a seccomp
// network filter on itself and then execs the target command. Installing
// in the helper process rather than the parent keeps the restriction
// scoped to the child and its descendants only.

// HelperFlag is the hidden CLI flag that switches the binary into
// sandbox-helper mode. The flag is followed by the JSON helper spec,
// a "--" separator, and the target argv.
const HelperFlag = "--sandbox-helper"

// helperSpec is the contract between the parent and the helper
// sub-invocation.
type helperSpec struct {
	Policy Policy `json:"policy"`
	Cwd    string `json:"cwd"`
}

type landlockAdapter struct{}

func (landlockAdapter) Type() Type {
	return TypeLinuxLandlock
}

func (a landlockAdapter) Transform(command []string, policy Policy,
	cwd string) (ExecEnv, error) {

	if len(command) == 0 {
		return ExecEnv{}, &InstallFailedError{Op: "landlock",
			Err: fmt.Errorf("empty command")}
	}

	self, err := currentExecutable()
	if err != nil {
		return ExecEnv{}, &InstallFailedError{Op: "landlock", Err: err}
	}

	spec, err := json.Marshal(helperSpec{Policy: policy, Cwd: cwd})
	if err != nil {
		return ExecEnv{}, &InstallFailedError{Op: "landlock", Err: err}
	}

	wrapped := make([]string, 0, len(command)+4)
	wrapped = append(wrapped, self, HelperFlag, string(spec), "--")
	wrapped = append(wrapped, command...)

	return ExecEnv{
		Command:  wrapped,
		ExtraEnv: markerEnv(TypeLinuxLandlock, policy),
	}, nil
}

func currentExecutable() (string, error) {
	if exe, err := os.Executable(); err == nil {
		return exe, nil
	}
	if len(os.Args) > 0 && os.Args[0] != "" {
		return os.Args[0], nil
	}
	return "", fmt.Errorf("cannot determine current executable path")
}

// RunHelper is the sandbox-helper entry point invoked by the wrapped
// argv that Transform builds. It parses the spec, installs the
// restrictions on the current process, and execs the target command.
// It only returns on error.
func RunHelper(specJSON string, argv []string) error {
	var spec helperSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return &InstallFailedError{Op: "helper spec", Err: err}
	}
	if len(argv) == 0 {
		return &InstallFailedError{Op: "helper",
			Err: fmt.Errorf("no target command")}
	}
	return installAndExec(spec.Policy, spec.Cwd, argv)
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Landlock access masks. Reads (plus execute) can be granted broadly;
// the write-side masks are granted only beneath the writable roots.
const (
	landlockAccessRead = unix.LANDLOCK_ACCESS_FS_EXECUTE |
		unix.LANDLOCK_ACCESS_FS_READ_FILE |
		unix.LANDLOCK_ACCESS_FS_READ_DIR

	landlockAccessWrite = unix.LANDLOCK_ACCESS_FS_WRITE_FILE |
		unix.LANDLOCK_ACCESS_FS_REMOVE_DIR |
		unix.LANDLOCK_ACCESS_FS_REMOVE_FILE |
		unix.LANDLOCK_ACCESS_FS_MAKE_CHAR |
		unix.LANDLOCK_ACCESS_FS_MAKE_DIR |
		unix.LANDLOCK_ACCESS_FS_MAKE_REG |
		unix.LANDLOCK_ACCESS_FS_MAKE_SOCK |
		unix.LANDLOCK_ACCESS_FS_MAKE_FIFO |
		unix.LANDLOCK_ACCESS_FS_MAKE_BLOCK |
		unix.LANDLOCK_ACCESS_FS_MAKE_SYM

	// Only supported from Landlock ABI v2 / v3 onwards.
	landlockAccessRefer    = unix.LANDLOCK_ACCESS_FS_REFER
	landlockAccessTruncate = unix.LANDLOCK_ACCESS_FS_TRUNCATE
)

// x/sys/unix ships the landlock types and LANDLOCK_* constants but no
// call wrappers, so the three syscalls are invoked directly.

func landlockCreateRuleset(attr *unix.LandlockRulesetAttr,
	flags int) (int, error) {

	var ptr unsafe.Pointer
	var size uintptr
	if attr != nil {
		ptr = unsafe.Pointer(attr)
		size = unsafe.Sizeof(*attr)
	}
	fd, _, errno := unix.Syscall(unix.SYS_LANDLOCK_CREATE_RULESET,
		uintptr(ptr), size, uintptr(flags))
	if errno != 0 {
		return 0, errno
	}
	return int(fd), nil
}

func landlockAddPathBeneathRule(rulesetFd int,
	attr *unix.LandlockPathBeneathAttr) error {

	_, _, errno := unix.Syscall6(unix.SYS_LANDLOCK_ADD_RULE,
		uintptr(rulesetFd), unix.LANDLOCK_RULE_PATH_BENEATH,
		uintptr(unsafe.Pointer(attr)), 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func landlockRestrictSelf(rulesetFd int) error {
	_, _, errno := unix.Syscall(unix.SYS_LANDLOCK_RESTRICT_SELF,
		uintptr(rulesetFd), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// installAndExec applies the policy to the current process and execs
// the target command in place. The caller is the dedicated helper
// process, so nothing else in the engine is affected by the
// restrictions installed here.
func installAndExec(policy Policy, cwd string, argv []string) error {
	if policy.IsRestricted() {
		if err := installLandlock(policy, cwd); err != nil {
			return err
		}
	}
	if !policy.AllowsNetwork() {
		if err := installNetworkFilter(); err != nil {
			return err
		}
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return &InstallFailedError{Op: "resolve target", Err: err}
	}
	// Only returns on error.
	err = unix.Exec(path, argv, os.Environ())
	return &InstallFailedError{Op: "exec target", Err: err}
}

// installLandlock restricts the current process's filesystem access:
// reads everywhere, writes only beneath the policy's writable roots.
func installLandlock(policy Policy, cwd string) error {
	writeAccess, err := supportedWriteAccess()
	if err != nil {
		return err
	}

	rulesetAttr := unix.LandlockRulesetAttr{
		Access_fs: uint64(landlockAccessRead | writeAccess),
	}
	rulesetFd, err := landlockCreateRuleset(&rulesetAttr, 0)
	if err != nil {
		return &InstallFailedError{Op: "landlock create ruleset", Err: err}
	}
	defer unix.Close(rulesetFd)

	// Reads and execution stay permitted across the whole tree.
	if err := addPathRule(rulesetFd, "/", landlockAccessRead); err != nil {
		return err
	}

	if policy.Mode == ModeWorkspaceWrite {
		for _, root := range policy.WritableRootsWithCwd(cwd) {
			access := landlockAccessRead | writeAccess
			if err := addPathRule(rulesetFd, root, access); err != nil {
				return err
			}
		}
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return &InstallFailedError{Op: "prctl no_new_privs", Err: err}
	}
	if err := landlockRestrictSelf(rulesetFd); err != nil {
		return &InstallFailedError{Op: "landlock restrict self", Err: err}
	}
	return nil
}

// supportedWriteAccess queries the kernel's Landlock ABI and returns the
// write-side access mask it can enforce. Kernels without Landlock at
// all are an installation failure; the caller never silently degrades
// to no containment.
func supportedWriteAccess() (int, error) {
	abi, err := landlockCreateRuleset(nil,
		unix.LANDLOCK_CREATE_RULESET_VERSION)
	if err != nil {
		return 0, &InstallFailedError{Op: "landlock abi query",
			Err: fmt.Errorf("landlock unavailable: %w", err)}
	}

	access := landlockAccessWrite
	if abi >= 2 {
		access |= landlockAccessRefer
	}
	if abi >= 3 {
		access |= landlockAccessTruncate
	}
	return access, nil
}

func addPathRule(rulesetFd int, path string, access int) error {
	fd, err := unix.Open(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return &InstallFailedError{
			Op:  fmt.Sprintf("open %v", path),
			Err: err,
		}
	}
	defer unix.Close(fd)

	pathBeneath := unix.LandlockPathBeneathAttr{
		Allowed_access: uint64(access),
		Parent_fd:      int32(fd),
	}
	if err := landlockAddPathBeneathRule(rulesetFd, &pathBeneath); err != nil {
		return &InstallFailedError{
			Op:  fmt.Sprintf("landlock add rule for %v", path),
			Err: err,
		}
	}
	return nil
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

//go:build linux && (amd64 || arm64)

package sandbox

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Classic BPF opcodes for the seccomp filter program.
const (
	bpfLdAbsW = 0x20 // BPF_LD | BPF_W | BPF_ABS
	bpfJeqK   = 0x15 // BPF_JMP | BPF_JEQ | BPF_K
	bpfRetK   = 0x06 // BPF_RET | BPF_K
)

// seccomp_data field offsets.
const (
	seccompDataNr      = 0
	seccompDataArch    = 4
	seccompDataArg0Low = 16
)

func nativeAuditArch() (uint32, error) {
	switch runtime.GOARCH {
	case "amd64":
		return unix.AUDIT_ARCH_X86_64, nil
	case "arm64":
		return unix.AUDIT_ARCH_AARCH64, nil
	}
	return 0, fmt.Errorf("no audit arch mapping for %v", runtime.GOARCH)
}

// installNetworkFilter denies socket-creating and socket-addressing
// syscalls with EPERM for the current process and everything it execs.
// AF_UNIX sockets stay permitted: local IPC is not network access.
// Syscalls made under a foreign audit arch (e.g. a 32-bit binary) are
// denied wholesale rather than inspected.
func installNetworkFilter() error {
	arch, err := nativeAuditArch()
	if err != nil {
		return &InstallFailedError{Op: "seccomp", Err: err}
	}

	allow := uint32(unix.SECCOMP_RET_ALLOW)
	deny := uint32(unix.SECCOMP_RET_ERRNO) | uint32(unix.EPERM)

	// Indices 11 and 14 return allow, 15 returns EPERM; the jump
	// offsets below are relative to the following instruction.
	filter := []unix.SockFilter{
		/*  0 */ {Code: bpfLdAbsW, K: seccompDataArch},
		/*  1 */ {Code: bpfJeqK, K: arch, Jt: 0, Jf: 13},
		/*  2 */ {Code: bpfLdAbsW, K: seccompDataNr},
		/*  3 */ {Code: bpfJeqK, K: unix.SYS_SOCKET, Jt: 8},
		/*  4 */ {Code: bpfJeqK, K: unix.SYS_SOCKETPAIR, Jt: 7},
		/*  5 */ {Code: bpfJeqK, K: unix.SYS_CONNECT, Jt: 9},
		/*  6 */ {Code: bpfJeqK, K: unix.SYS_BIND, Jt: 8},
		/*  7 */ {Code: bpfJeqK, K: unix.SYS_LISTEN, Jt: 7},
		/*  8 */ {Code: bpfJeqK, K: unix.SYS_ACCEPT, Jt: 6},
		/*  9 */ {Code: bpfJeqK, K: unix.SYS_ACCEPT4, Jt: 5},
		/* 10 */ {Code: bpfJeqK, K: unix.SYS_SENDTO, Jt: 4},
		/* 11 */ {Code: bpfRetK, K: allow},
		/* 12 */ {Code: bpfLdAbsW, K: seccompDataArg0Low},
		/* 13 */ {Code: bpfJeqK, K: unix.AF_UNIX, Jt: 0, Jf: 1},
		/* 14 */ {Code: bpfRetK, K: allow},
		/* 15 */ {Code: bpfRetK, K: deny},
	}

	prog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return &InstallFailedError{Op: "prctl no_new_privs", Err: err}
	}
	err = unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER,
		uintptr(unsafe.Pointer(&prog)), 0, 0)
	if err != nil {
		return &InstallFailedError{Op: "prctl seccomp filter", Err: err}
	}
	return nil
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/mikeb26/execguard/internal/sandbox"
)

const (
	// timeoutExitCode mirrors the exit status the coreutils timeout
	// wrapper reports when it kills a command.
	timeoutExitCode = 124

	// maxOutputBytes caps each captured stream; anything past the cap
	// is discarded with a truncation note.
	maxOutputBytes = 128 * 1024

	// defaultTimeout bounds commands whose request carries none.
	defaultTimeout = 60 * time.Second

	truncationNote = "\n[output truncated]\n"
)

// limitedBuffer captures child output up to maxOutputBytes and
// optionally forwards raw chunks as they arrive. Writes never fail so
// the child is not back-pressured by the cap.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	truncated bool
	onChunk   func([]byte)
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.onChunk != nil && len(p) > 0 {
		chunk := make([]byte, len(p))
		copy(chunk, p)
		b.onChunk(chunk)
	}

	room := maxOutputBytes - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return b.buf.String() + truncationNote
	}
	return b.buf.String()
}

// buildEnv materializes the child environment. A nil base inherits the
// parent environment; a non-nil base replaces it entirely, so an empty
// map yields a child that sees only the sandbox markers.
func buildEnv(base map[string]string, extra map[string]string) []string {
	merged := make(map[string]string)
	if base == nil {
		for _, kv := range os.Environ() {
			for i := 0; i < len(kv); i++ {
				if kv[i] == '=' {
					merged[kv[:i]] = kv[i+1:]
					break
				}
			}
		}
	} else {
		for k, v := range base {
			merged[k] = v
		}
	}
	for k, v := range extra {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%v=%v", k, merged[k]))
	}
	return env
}

// spawn runs the fully transformed command and waits for it, enforcing
// the request timeout. A timeout is an outcome, not an error: the
// child's process group is killed and the result carries exit 124 with
// TimedOut set.
func spawn(ctx context.Context, execEnv sandbox.ExecEnv, params ExecParams,
	onOutput func([]byte)) (*ExecOutcome, error) {

	if len(execEnv.Command) == 0 {
		return nil, execErr(ExecErrorFunction, errors.New("empty command"))
	}

	agg := &limitedBuffer{}
	stdout := &limitedBuffer{onChunk: onOutput}
	stderr := &limitedBuffer{}

	cmd := exec.Command(execEnv.Command[0], execEnv.Command[1:]...)
	cmd.Dir = params.Cwd
	cmd.Env = buildEnv(params.Env, execEnv.ExtraEnv)
	cmd.Stdin = nil
	cmd.Stdout = io.MultiWriter(stdout, agg)
	cmd.Stderr = io.MultiWriter(stderr, agg)

	attr := execEnv.SysProcAttr
	if attr == nil {
		attr = &syscall.SysProcAttr{}
	}
	setProcessGroup(attr)
	cmd.SysProcAttr = attr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, execErr(ExecErrorIO, err)
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	timeout := params.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var timedOut bool
	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-timer.C:
		timedOut = true
		killProcessGroup(cmd)
		<-waitCh
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-waitCh
		return nil, execErr(ExecErrorFunction, ctx.Err())
	}

	if waitErr != nil && !timedOut {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, execErr(ExecErrorIO, waitErr)
		}
	}

	exitCode := cmd.ProcessState.ExitCode()
	if timedOut {
		exitCode = timeoutExitCode
	} else if exitCode < 0 {
		// Killed by a signal outside of our timeout path.
		exitCode = 128
	}

	return &ExecOutcome{
		ExitCode:   exitCode,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Aggregated: agg.String(),
		Duration:   time.Since(start),
		TimedOut:   timedOut,
	}, nil
}

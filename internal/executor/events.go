/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package executor

import "time"

// ExecBeginEvent is emitted immediately before a command is spawned.
type ExecBeginEvent struct {
	CallID         string
	Command        []string
	DisplayCommand string
	Cwd            string
	Escalated      bool
}

// ExecOutputEvent carries an incremental chunk of child stdout for
// backends that stream.
type ExecOutputEvent struct {
	CallID string
	Chunk  []byte
}

// ExecEndEvent is emitted after the command finishes, times out, or
// fails inside the pipeline.
type ExecEndEvent struct {
	CallID   string
	ExitCode int
	// Output is the aggregated stdout+stderr, truncated to the capture
	// cap.
	Output   string
	Duration time.Duration
	TimedOut bool
	// Error tags the pipeline failure; empty on a normal completion
	// (including nonzero exits and timeouts).
	Error ExecErrorKind
}

// EventSink receives execution lifecycle notifications. Implementations
// must not block; the executor calls them inline.
type EventSink interface {
	ExecBegin(ev ExecBeginEvent)
	ExecOutput(ev ExecOutputEvent)
	ExecEnd(ev ExecEndEvent)
}

type nopSink struct{}

func (nopSink) ExecBegin(ExecBeginEvent)   {}
func (nopSink) ExecOutput(ExecOutputEvent) {}
func (nopSink) ExecEnd(ExecEndEvent)       {}

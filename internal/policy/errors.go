/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package policy

import (
	"fmt"
	"strings"
)

// Matching and parse failures are typed, comparable values rather than
// opaque strings. The matcher sits on a security boundary: callers must
// be able to distinguish "did not match" shapes exactly, and must never
// conflate an unparseable policy with an approved command.

// ParseError reports a malformed policy document. Program and Pos
// identify the offending program definition and matcher position when
// known; Pos is -1 when the error is not positional.
type ParseError struct {
	PolicyID string
	Program  string
	Pos      int
	Msg      string
}

func (e *ParseError) Error() string {
	if e.Program == "" {
		return fmt.Sprintf("policy %v: %v", e.PolicyID, e.Msg)
	}
	if e.Pos < 0 {
		return fmt.Sprintf("policy %v: program %v: %v", e.PolicyID,
			e.Program, e.Msg)
	}
	return fmt.Sprintf("policy %v: program %v: matcher %v: %v", e.PolicyID,
		e.Program, e.Pos, e.Msg)
}

// NotEnoughArgsError indicates the argv ran out of tokens before the
// program's matcher list was exhausted.
type NotEnoughArgsError struct {
	Program  string
	Args     []string
	Patterns []string
}

func (e *NotEnoughArgsError) Error() string {
	return fmt.Sprintf("%v: not enough arguments: have %q, want %v",
		e.Program, e.Args, strings.Join(e.Patterns, " "))
}

// UnexpectedArgumentsError indicates tokens remained after every
// matcher was satisfied.
type UnexpectedArgumentsError struct {
	Program string
	Args    []string
}

func (e *UnexpectedArgumentsError) Error() string {
	return fmt.Sprintf("%v: unexpected extra arguments %q", e.Program,
		e.Args)
}

// LiteralValueDidNotMatchError indicates a literal (or subcommand name)
// matcher saw a different token than it requires.
type LiteralValueDidNotMatchError struct {
	Program  string
	Expected string
	Actual   string
}

func (e *LiteralValueDidNotMatchError) Error() string {
	return fmt.Sprintf("%v: expected %q, got %q", e.Program, e.Expected,
		e.Actual)
}

// VarargMatcherDidNotMatchAnythingError indicates a vararg matcher
// consumed zero tokens; varargs require at least one match.
type VarargMatcherDidNotMatchAnythingError struct {
	Program string
	Matcher string
}

func (e *VarargMatcherDidNotMatchAnythingError) Error() string {
	return fmt.Sprintf("%v: vararg matcher %v did not match anything",
		e.Program, e.Matcher)
}

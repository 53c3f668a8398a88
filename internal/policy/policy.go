/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

// Package policy implements the declarative allow-list used to classify
// commands as known safe. A Policy maps program names to ordered
// argument matcher lists; Check evaluates a concrete invocation against
// the list and produces either a structured match, a Forbidden verdict
// for unknown programs, or a typed mismatch error.
package policy

import (
	"fmt"
	"strings"
)

// ArgType classifies how a single argv token was (or must be) matched.
type ArgType string

const (
	ArgTypeLiteral      ArgType = "literal"
	ArgTypeSubcommand   ArgType = "subcommand"
	ArgTypeReadableFile ArgType = "readable_file"
	ArgTypeWritableFile ArgType = "writable_file"
	ArgTypeFlag         ArgType = "flag"
	ArgTypeVararg       ArgType = "vararg"
)

// Matcher is one element of a program's argument shape. Exactly one
// interpretation applies per Kind:
//
//   - Literal: the next token must equal Value.
//   - Subcommand: the next token must equal Value, then Nested is
//     matched against the following tokens.
//   - ReadableFile / WritableFile: the next token is accepted as a path
//     without existence checks; the sandbox enforces access later.
//   - Flag: the next token must equal Value, which begins with "-".
//   - Vararg: Inner greedily consumes one or more of the remaining
//     tokens, leaving enough behind for the matchers that follow.
type Matcher struct {
	Kind   ArgType
	Value  string
	Nested []Matcher
	Inner  *Matcher
}

// describe renders a matcher for error messages and NotEnoughArgs
// pattern listings.
func (m Matcher) describe() string {
	switch m.Kind {
	case ArgTypeLiteral:
		return fmt.Sprintf("literal(%v)", m.Value)
	case ArgTypeSubcommand:
		parts := make([]string, len(m.Nested))
		for i, n := range m.Nested {
			parts[i] = n.describe()
		}
		return fmt.Sprintf("subcommand(%v %v)", m.Value,
			strings.Join(parts, " "))
	case ArgTypeFlag:
		return fmt.Sprintf("flag(%v)", m.Value)
	case ArgTypeVararg:
		return fmt.Sprintf("vararg(%v)", m.Inner.describe())
	default:
		return string(m.Kind)
	}
}

// minTokens is the fewest argv tokens the matcher can consume.
func (m Matcher) minTokens() int {
	switch m.Kind {
	case ArgTypeSubcommand:
		return 1 + minTokens(m.Nested)
	default:
		// Vararg requires at least one match.
		return 1
	}
}

func minTokens(matchers []Matcher) int {
	total := 0
	for _, m := range matchers {
		total += m.minTokens()
	}
	return total
}

func describeAll(matchers []Matcher) []string {
	out := make([]string, len(matchers))
	for i, m := range matchers {
		out[i] = m.describe()
	}
	return out
}

// Policy is an immutable parsed policy document.
type Policy struct {
	id       string
	programs map[string][]Matcher
}

// ID returns the identifier the policy was parsed under (typically the
// source filename).
func (p *Policy) ID() string {
	return p.id
}

// Programs returns the sorted-free list of program names the policy
// defines. Intended for diagnostics.
func (p *Policy) Programs() []string {
	out := make([]string, 0, len(p.programs))
	for name := range p.programs {
		out = append(out, name)
	}
	return out
}

// ExecCall is one concrete invocation to be classified. It is never
// mutated after construction.
type ExecCall struct {
	Program string
	Args    []string
}

// NewExecCall constructs an ExecCall from a program and its arguments.
func NewExecCall(program string, args ...string) ExecCall {
	return ExecCall{Program: program, Args: args}
}

// MatchedArg records one argv token consumed during a successful match.
type MatchedArg struct {
	// Index is the token's position within ExecCall.Args.
	Index int
	// Type is the matcher kind that consumed the token.
	Type ArgType
	// Value is the raw token text.
	Value string
}

// ValidExec is the positive verdict: the program is known and its
// arguments fit the declared shape.
type ValidExec struct {
	Program     string
	MatchedArgs []MatchedArg
	// ResolvedBinaries lists the concrete on-disk paths the program
	// name resolves to across the usual install directories. It may be
	// empty when nothing resolves; resolution is advisory.
	ResolvedBinaries []string
}

// MatchedExec is the result of Check: either a match or a Forbidden
// verdict. Unknown programs are Forbidden, never an error; callers fall
// back to requiring user approval.
type MatchedExec struct {
	Exec            *ValidExec
	ForbiddenReason string
}

// Allowed reports whether the call matched the policy.
func (m MatchedExec) Allowed() bool {
	return m.Exec != nil
}

// Check evaluates call against the policy. A nil error with a
// Forbidden verdict means the program is not covered by the policy; a
// non-nil error is always one of the typed mismatch errors and means
// the program is covered but the arguments do not fit.
func (p *Policy) Check(call ExecCall) (MatchedExec, error) {
	matchers, ok := p.programs[call.Program]
	if !ok {
		return MatchedExec{
			ForbiddenReason: fmt.Sprintf("program %q is not in the policy",
				call.Program),
		}, nil
	}

	consumed, matched, err := matchSeq(call.Program, call.Args, matchers,
		call.Args, 0)
	if err != nil {
		return MatchedExec{}, err
	}
	if consumed < len(call.Args) {
		return MatchedExec{}, &UnexpectedArgumentsError{
			Program: call.Program,
			Args:    append([]string{}, call.Args[consumed:]...),
		}
	}

	return MatchedExec{
		Exec: &ValidExec{
			Program:          call.Program,
			MatchedArgs:      matched,
			ResolvedBinaries: resolveBinaries(call.Program),
		},
	}, nil
}

// matchSeq walks matchers left-to-right over args starting at pos,
// returning the next unconsumed position. fullArgs is the original
// argument vector, retained for error reporting.
func matchSeq(program string, fullArgs []string, matchers []Matcher,
	args []string, pos int) (int, []MatchedArg, error) {

	var matched []MatchedArg

	for i, m := range matchers {
		switch m.Kind {
		case ArgTypeVararg:
			if pos >= len(args) {
				return 0, nil, &NotEnoughArgsError{
					Program:  program,
					Args:     append([]string{}, fullArgs...),
					Patterns: describeAll(matchers),
				}
			}
			// Leave enough tokens behind for the matchers that follow.
			reserve := minTokens(matchers[i+1:])
			limit := len(args) - reserve
			n := 0
			for pos+n < limit && tokenFits(*m.Inner, args[pos+n]) {
				n++
			}
			if n == 0 {
				return 0, nil, &VarargMatcherDidNotMatchAnythingError{
					Program: program,
					Matcher: m.describe(),
				}
			}
			for j := 0; j < n; j++ {
				matched = append(matched, MatchedArg{
					Index: pos + j,
					Type:  m.Inner.Kind,
					Value: args[pos+j],
				})
			}
			pos += n

		case ArgTypeSubcommand:
			if pos >= len(args) {
				return 0, nil, &NotEnoughArgsError{
					Program:  program,
					Args:     append([]string{}, fullArgs...),
					Patterns: describeAll(matchers),
				}
			}
			if args[pos] != m.Value {
				return 0, nil, &LiteralValueDidNotMatchError{
					Program:  program,
					Expected: m.Value,
					Actual:   args[pos],
				}
			}
			matched = append(matched, MatchedArg{
				Index: pos,
				Type:  ArgTypeSubcommand,
				Value: args[pos],
			})
			pos++
			next, sub, err := matchSeq(program, fullArgs, m.Nested, args,
				pos)
			if err != nil {
				return 0, nil, err
			}
			matched = append(matched, sub...)
			pos = next

		default:
			if pos >= len(args) {
				return 0, nil, &NotEnoughArgsError{
					Program:  program,
					Args:     append([]string{}, fullArgs...),
					Patterns: describeAll(matchers),
				}
			}
			tok := args[pos]
			switch m.Kind {
			case ArgTypeLiteral, ArgTypeFlag:
				if tok != m.Value {
					return 0, nil, &LiteralValueDidNotMatchError{
						Program:  program,
						Expected: m.Value,
						Actual:   tok,
					}
				}
			case ArgTypeReadableFile, ArgTypeWritableFile:
				// Any token is accepted as a path here; existence and
				// access are the sandbox's concern, not the policy's.
			}
			matched = append(matched, MatchedArg{
				Index: pos,
				Type:  m.Kind,
				Value: tok,
			})
			pos++
		}
	}

	return pos, matched, nil
}

// tokenFits reports whether a single token satisfies a vararg's inner
// matcher. Subcommand and vararg inners are rejected at parse time, so
// only the single-token kinds appear here.
func tokenFits(m Matcher, tok string) bool {
	switch m.Kind {
	case ArgTypeLiteral, ArgTypeFlag:
		return tok == m.Value
	case ArgTypeReadableFile, ArgTypeWritableFile:
		return true
	default:
		return false
	}
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

// Package approval tracks what the user has authorized: an in-session
// cache of approved argv vectors, a broker that bridges synchronous
// human decisions back into waiting executions, and durable trust
// policies keyed by stable identifiers.
package approval

// Decision is the outcome of one approval interaction.
type Decision int

const (
	// DecisionApproved permits this invocation only.
	DecisionApproved Decision = iota
	// DecisionApprovedForSession permits this invocation and caches the
	// argv so identical commands skip the prompt for the rest of the
	// session.
	DecisionApprovedForSession
	// DecisionDenied refuses the invocation.
	DecisionDenied
	// DecisionAbort cancels the invocation without a user verdict,
	// typically because the turn was interrupted.
	DecisionAbort
)

func (d Decision) String() string {
	switch d {
	case DecisionApproved:
		return "approved"
	case DecisionApprovedForSession:
		return "approved_for_session"
	case DecisionDenied:
		return "denied"
	case DecisionAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Allows reports whether the decision permits the invocation to run.
func (d Decision) Allows() bool {
	return d == DecisionApproved || d == DecisionApprovedForSession
}

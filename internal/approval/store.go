/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package approval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Durable trust rules complement the in-session Cache: the cache holds
// exact argv vectors approved this run, while a PolicyStore holds
// user-configured rules that survive restarts (allow this command name,
// this exact invocation, this invocation prefix, or patches under this
// directory).

// Action represents a capability granted by a trust rule.
type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionExecute Action = "exec"
)

// Target classifies what a trust rule's domain component refers to.
type Target string

const (
	// TargetCommand covers any invocation of a command name.
	TargetCommand Target = "command"
	// TargetInvocation covers one exact command+argument combination,
	// keyed by a hash of the argument vector.
	TargetInvocation Target = "command_invocation"
	// TargetInvocationPrefix covers invocations that share all but the
	// final argument (e.g. "go test <anything>").
	TargetInvocationPrefix Target = "command_invocation_prefix"
	// TargetDir covers patch and file operations under a directory,
	// recursively.
	TargetDir Target = "directory"
)

const policySubsys = "engine"

// PolicyID constructs the stable identifier for a trust rule.
func PolicyID(target Target, domain string) string {
	return fmt.Sprintf("%v:command:%v:%v", policySubsys, target, domain)
}

// parsePolicyID extracts the components of a rule identifier. ok is
// false when the identifier does not have the expected shape.
func parsePolicyID(id string) (target Target, domain string, ok bool) {
	parts := strings.SplitN(id, ":", 4)
	if len(parts) != 4 || parts[0] != policySubsys || parts[1] != "command" {
		return "", "", false
	}
	return Target(parts[2]), parts[3], true
}

// InvocationKey produces a concise but stable key for one exact
// command invocation by hashing the argument vector. The hash keeps
// rule identifiers short without storing long or sensitive arguments
// verbatim.
func InvocationKey(program string, args []string) string {
	joined := strings.Join(args, "\x00")
	h := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%s:%s", program, hex.EncodeToString(h[:8]))
}

// InvocationPrefixKey produces a key covering invocations that agree on
// everything except the final argument, e.g. "go test <pkg>". It
// returns "" when there is no meaningful prefix (fewer than two args).
func InvocationPrefixKey(program string, args []string) string {
	if len(args) < 2 {
		return ""
	}
	return program + ":" + strings.Join(args[:len(args)-1], "\x00")
}

// PolicyStore tracks granted actions keyed by rule identifier.
type PolicyStore interface {
	// Check returns the actions granted for the given rule and whether
	// any rule matched. Directory-targeted rules match recursively: a
	// rule for a directory applies to everything beneath it, with the
	// most specific ancestor winning.
	Check(policyID string) (actions []Action, found bool)
	// Save persists the granted action set for the rule, with replace
	// semantics.
	Save(policyID string, actions []Action)
}

// HasAllActions reports whether "have" grants every action in "need".
// Both slices are treated as sets.
func HasAllActions(have, need []Action) bool {
	if len(need) == 0 {
		return true
	}
	set := make(map[Action]struct{}, len(have))
	for _, a := range have {
		set[a] = struct{}{}
	}
	for _, a := range need {
		if _, ok := set[a]; !ok {
			return false
		}
	}
	return true
}

// MemoryPolicyStore is the mutex-guarded in-memory PolicyStore.
type MemoryPolicyStore struct {
	mu   sync.RWMutex
	data map[string][]Action
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{
		data: make(map[string][]Action),
	}
}

func (s *MemoryPolicyStore) Check(policyID string) ([]Action, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return checkRules(s.data, policyID)
}

func (s *MemoryPolicyStore) Save(policyID string, actions []Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace semantics: callers should treat the slice as immutable
	// after passing it here.
	s.data[policyID] = actions
}

// checkRules implements the shared lookup: exact match first, then for
// directory-targeted rules the most specific stored ancestor.
func checkRules(data map[string][]Action,
	policyID string) ([]Action, bool) {

	if val, ok := data[policyID]; ok {
		return val, true
	}

	target, domain, ok := parsePolicyID(policyID)
	if !ok || target != TargetDir {
		return nil, false
	}

	var (
		bestMatchLen = -1
		bestActions  []Action
		found        bool
	)
	for storedID, actions := range data {
		st, sdomain, ok := parsePolicyID(storedID)
		if !ok || st != TargetDir {
			continue
		}
		if !isPathWithin(domain, sdomain) {
			continue
		}
		if l := len(sdomain); l > bestMatchLen {
			bestMatchLen = l
			bestActions = actions
			found = true
		}
	}
	if found {
		return bestActions, true
	}
	return nil, false
}

// isPathWithin reports whether "path" is within "root" when interpreted
// as filesystem paths.
func isPathWithin(path, root string) bool {
	if root == "" {
		return false
	}

	cleanPath := filepath.Clean(path)
	cleanRoot := filepath.Clean(root)

	if cleanPath == cleanRoot {
		return true
	}

	// Ensure root ends with a separator so "/foo/bar2" does not match
	// root "/foo/bar".
	if !strings.HasSuffix(cleanRoot, string(filepath.Separator)) {
		cleanRoot += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, cleanRoot)
}

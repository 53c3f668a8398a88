/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package approval

import (
	"strings"
	"sync"
)

// Cache is the session-scoped set of argv vectors the user has already
// approved. It is shared across concurrent turns, append-only for the
// lifetime of the session, and never persisted to disk.
type Cache struct {
	mu   sync.Mutex
	seen map[string][]string
}

// NewCache constructs an empty approval cache. One instance is created
// per session and passed by reference into every executor invocation.
func NewCache() *Cache {
	return &Cache{
		seen: make(map[string][]string),
	}
}

// argv tokens cannot contain NUL, so a NUL join is an unambiguous key.
func cacheKey(argv []string) string {
	return strings.Join(argv, "\x00")
}

// Insert records argv as approved. Inserting an empty vector is a no-op
// and re-insertion is idempotent.
func (c *Cache) Insert(argv []string) {
	if len(argv) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(argv)
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = append([]string{}, argv...)
}

// Contains reports whether argv was previously approved this session.
func (c *Cache) Contains(argv []string) bool {
	if len(argv) == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.seen[cacheKey(argv)]
	return ok
}

// Snapshot returns a copy of every approved argv vector. The result is
// independent of the cache and safe to retain.
func (c *Cache) Snapshot() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]string, 0, len(c.seen))
	for _, argv := range c.seen {
		out = append(out, append([]string{}, argv...))
	}
	return out
}

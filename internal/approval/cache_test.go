/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package approval

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheInsertIdempotent(t *testing.T) {
	c := NewCache()

	argv := []string{"git", "status"}
	c.Insert(argv)
	once := c.Snapshot()

	c.Insert(argv)
	twice := c.Snapshot()

	assert.Len(t, once, 1)
	assert.Equal(t, once, twice)
	assert.True(t, c.Contains(argv))
}

func TestCacheEmptyVectorNoOp(t *testing.T) {
	c := NewCache()

	c.Insert(nil)
	c.Insert([]string{})

	assert.Empty(t, c.Snapshot())
	assert.False(t, c.Contains(nil))
}

func TestCacheDistinguishesVectors(t *testing.T) {
	c := NewCache()

	c.Insert([]string{"echo", "a b"})

	// A NUL-joined key must not collapse distinct vectors that happen
	// to concatenate equally.
	assert.False(t, c.Contains([]string{"echo", "a", "b"}))
	assert.False(t, c.Contains([]string{"echo a b"}))
	assert.True(t, c.Contains([]string{"echo", "a b"}))
}

func TestCacheSnapshotIsCopy(t *testing.T) {
	c := NewCache()
	c.Insert([]string{"ls"})

	snap := c.Snapshot()
	snap[0][0] = "mutated"

	assert.True(t, c.Contains([]string{"ls"}))
	assert.False(t, c.Contains([]string{"mutated"}))
}

func TestCacheConcurrentInsert(t *testing.T) {
	c := NewCache()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Insert([]string{"cp", "src", "dst"})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, c.Snapshot(), 1)
}

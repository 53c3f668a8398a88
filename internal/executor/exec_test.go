/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package executor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildEnvInheritsWhenNil(t *testing.T) {
	t.Setenv("EXECGUARD_TEST_MARKER", "present")

	env := buildEnv(nil, nil)
	assert.Contains(t, env, "EXECGUARD_TEST_MARKER=present")
}

func TestBuildEnvEmptyMapClears(t *testing.T) {
	t.Setenv("EXECGUARD_TEST_MARKER", "present")

	env := buildEnv(map[string]string{},
		map[string]string{"SANDBOX": "landlock"})
	assert.Equal(t, []string{"SANDBOX=landlock"}, env)
}

func TestBuildEnvExtraOverridesBase(t *testing.T) {
	env := buildEnv(map[string]string{"A": "1", "B": "2"},
		map[string]string{"B": "3"})
	assert.Equal(t, []string{"A=1", "B=3"}, env)
}

func TestLimitedBufferTruncates(t *testing.T) {
	buf := &limitedBuffer{}
	chunk := strings.Repeat("x", maxOutputBytes/2+1)

	n, err := buf.Write([]byte(chunk))
	assert.NoError(t, err)
	assert.Equal(t, len(chunk), n)

	n, err = buf.Write([]byte(chunk))
	assert.NoError(t, err)
	assert.Equal(t, len(chunk), n)

	out := buf.String()
	assert.Len(t, out, maxOutputBytes+len(truncationNote))
	assert.True(t, strings.HasSuffix(out, truncationNote))
}

func TestLimitedBufferForwardsChunks(t *testing.T) {
	var got []byte
	buf := &limitedBuffer{onChunk: func(p []byte) {
		got = append(got, p...)
	}}

	buf.Write([]byte("hello "))
	buf.Write([]byte("world"))
	assert.Equal(t, "hello world", string(got))
	assert.Equal(t, "hello world", buf.String())
}

package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLongestPrefixWins(t *testing.T) {
	mappings := []PathMapping{
		{RemotePrefix: "/data", LocalPrefix: "/mnt/data"},
		{RemotePrefix: "/data/projects", LocalPrefix: "/mnt/projects"},
	}

	local, ok := Resolve(mappings, "/data/projects/foo/bar.txt")
	require.True(t, ok)
	assert.Equal(t, "/mnt/projects/foo/bar.txt", local)

	local, ok = Resolve(mappings, "/data/other/bar.txt")
	require.True(t, ok)
	assert.Equal(t, "/mnt/data/other/bar.txt", local)
}

func TestResolveComponentBoundary(t *testing.T) {
	mappings := []PathMapping{
		{RemotePrefix: "/data/a", LocalPrefix: "/mnt/a"},
	}

	// "/data/ab" must not match the "/data/a" prefix: "ab" is a different
	// path component, not a suffix extension of "a".
	_, ok := Resolve(mappings, "/data/ab/file.txt")
	assert.False(t, ok)
}

func TestResolveNoMatch(t *testing.T) {
	mappings := []PathMapping{
		{RemotePrefix: "/data", LocalPrefix: "/mnt/data"},
	}
	_, ok := Resolve(mappings, "/other/file.txt")
	assert.False(t, ok)
}

func TestResolveExactRoot(t *testing.T) {
	mappings := []PathMapping{
		{RemotePrefix: "/data", LocalPrefix: "/mnt/data"},
	}
	local, ok := Resolve(mappings, "/data")
	require.True(t, ok)
	assert.Equal(t, "/mnt/data", local)
}

func TestFlagListSet(t *testing.T) {
	var f FlagList
	require.NoError(t, f.Set("/remote:/local"))
	require.Len(t, f, 1)
	assert.Equal(t, PathMapping{RemotePrefix: "/remote", LocalPrefix: "/local"}, f[0])

	assert.Error(t, f.Set("noColon"))
	assert.Error(t, f.Set("relative:/local"))
	assert.Error(t, f.Set("/remote:relative"))
}

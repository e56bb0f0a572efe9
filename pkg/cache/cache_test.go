package cache

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/oasforge/templatecore/pkg/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionComputesOnce(t *testing.T) {
	s := NewSession()
	var calls int32
	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.ComputeIfAbsent("key", compute)
			assert.NoError(t, err)
			assert.Equal(t, "value", v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls)
}

func TestLocalCommitAndValidate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pojo.mustache"), []byte("HELLO"), 0o600))

	l := NewLocal(dir)
	contentHashes := map[string]string{"pojo.mustache": hashFileFor(t, filepath.Join(dir, "pojo.mustache"))}
	require.NoError(t, l.Commit(map[string]string{"pojo.mustache": "openapi-generator"}, contentHashes, "abc123"))

	valid, err := l.IsValid("abc123")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = l.IsValid("different-key")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestLocalIsValidFalseWhenFileChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pojo.mustache")
	require.NoError(t, os.WriteFile(path, []byte("HELLO"), 0o600))

	l := NewLocal(dir)
	contentHashes := map[string]string{"pojo.mustache": hashFileFor(t, path)}
	require.NoError(t, l.Commit(nil, contentHashes, "key1"))

	require.NoError(t, os.WriteFile(path, []byte("CHANGED"), 0o600))
	valid, err := l.IsValid("key1")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestGlobalPutAndGet(t *testing.T) {
	dir := t.TempDir()
	g := NewGlobal(dir)
	require.NoError(t, g.Put("key1", []string{"bbb", "aaa"}))

	hashes, ok, err := g.Get("key1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"aaa", "bbb"}, hashes)

	_, ok, err = g.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComputeKeyChangesWithInputs(t *testing.T) {
	base := KeyInputs{PluginVersion: "1.0.0", GeneratorName: "spring", GeneratorVersion: "4.3.0"}
	k1 := ComputeKey(base)
	base.GeneratorVersion = "4.4.0"
	k2 := ComputeKey(base)
	assert.NotEqual(t, k1, k2)
}

func TestHashTreeEmptyDirIsStable(t *testing.T) {
	h1, err := HashTree("")
	require.NoError(t, err)
	h2, err := HashTree(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func hashFileFor(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return hashutil.HashBytes(data)
}

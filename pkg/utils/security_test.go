package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathRejectsTraversal(t *testing.T) {
	err := ValidatePath("../etc/passwd")
	assert.Error(t, err)
}

func TestValidatePathRejectsNullByte(t *testing.T) {
	err := ValidatePath("foo\x00bar")
	assert.Error(t, err)
}

func TestValidatePathRejectsReservedDeviceName(t *testing.T) {
	err := ValidatePath("CON")
	assert.Error(t, err)
}

func TestValidatePathAcceptsOrdinaryPath(t *testing.T) {
	err := ValidatePath("pojo.mustache")
	assert.NoError(t, err)
}

func TestValidatePathWithBasePathsEscapes(t *testing.T) {
	dir := t.TempDir()
	err := ValidatePathWithBasePaths(filepath.Join(dir, "sub", "file.txt"), dir)
	assert.NoError(t, err)

	outside := filepath.Join(t.TempDir(), "file.txt")
	assert.Error(t, ValidatePathWithBasePaths(outside, dir))
}

func TestSafeWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "pojo.mustache")
	require.NoError(t, SafeWriteFile(path, []byte("HELLO")))
	data, err := SafeReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(data))
}

func TestWriteFileAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".cache-key")
	require.NoError(t, WriteFileAtomic(path, []byte("abc123\n")))
	data, err := SafeReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123\n", string(data))
}

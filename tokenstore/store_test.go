package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFile(t *testing.T) {
	_, err := NewFile("")
	assert.Equal(t, ErrEmptyPath, err)
}

func TestFileReadBeforeWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access_token.txt")
	f, err := NewFile(path)
	require.NoError(t, err)

	token, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "", token)

	// The file now exists.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "access_token.txt")
	f, err := NewFile(path)
	require.NoError(t, err)

	require.NoError(t, f.Write("abc123"))

	token, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	// Overwrites replace the whole contents.
	require.NoError(t, f.Write("xyz"))
	token, err = f.Read()
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileReadExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access_token.txt")
	require.NoError(t, os.WriteFile(path, []byte("cached"), 0600))

	f, err := NewFile(path)
	require.NoError(t, err)

	token, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "cached", token)
}

func TestMemory(t *testing.T) {
	m := NewMemory("")

	token, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, "", token)

	require.NoError(t, m.Write("abc123"))
	token, _ = m.Read()
	assert.Equal(t, "abc123", token)
	assert.Equal(t, 1, m.Writes())
}

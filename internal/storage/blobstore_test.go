package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGeneratesNameFromMimeType(t *testing.T) {
	s := NewBlobStore(memfs.New(), "http://localhost:8080")

	tests := []struct {
		mime string
		ext  string
	}{
		{"application/pdf", ".pdf"},
		{"image/png", ".png"},
		{"image/jpeg", ".jpg"},
		{"image/webp", ".jpg"},
		{"", ".jpg"},
	}
	for _, tt := range tests {
		stored, err := s.Store([]byte("payload"), tt.mime)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(stored.Name, tt.ext), "%s -> %s", tt.mime, stored.Name)
		assert.Equal(t, int64(7), stored.Size)
		assert.Equal(t, "http://localhost:8080/files/"+stored.Name, stored.URL)

		data, err := s.Read(stored.Name)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	}
}

func TestStoreNamesAreUnique(t *testing.T) {
	s := NewBlobStore(memfs.New(), "")
	a, err := s.Store([]byte("a"), "image/png")
	require.NoError(t, err)
	b, err := s.Store([]byte("b"), "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, a.Name, b.Name)
}

func TestStoreAsRejectsTraversal(t *testing.T) {
	s := NewBlobStore(memfs.New(), "")
	for _, name := range []string{
		"../escape.png",
		"../../etc/passwd",
		"nested/../../escape.png",
		"/etc/passwd",
		"..",
		"",
	} {
		_, err := s.StoreAs(name, []byte("x"))
		assert.ErrorIs(t, err, ErrPathTraversal, name)
	}

	stored, err := s.StoreAs("nested/../inside.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "inside.png", stored.Name)
}

func TestOSStoreNeverWritesOutsideRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "uploads")
	s, err := NewOSBlobStore(root, "http://files.example/")
	require.NoError(t, err)

	_, err = s.StoreAs("../escape.png", []byte("x"))
	require.ErrorIs(t, err, ErrPathTraversal)
	_, statErr := os.Stat(filepath.Join(base, "escape.png"))
	assert.True(t, os.IsNotExist(statErr))

	stored, err := s.Store([]byte("scan"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, stored.Name), stored.Path)
	onDisk, err := os.ReadFile(stored.Path)
	require.NoError(t, err)
	assert.Equal(t, "scan", string(onDisk))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestReadAndRemove(t *testing.T) {
	s := NewBlobStore(memfs.New(), "")
	stored, err := s.Store([]byte("x"), "application/pdf")
	require.NoError(t, err)

	require.NoError(t, s.Remove(stored.Name))
	_, err = s.Read(stored.Name)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, s.Remove(stored.Name), ErrFileNotFound)

	_, err = s.Read("../secret")
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestURLFor(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "http://localhost:8080/files/a.png"},
		{"http://localhost:8080/", "http://localhost:8080/files/a.png"},
		{"http://localhost:8080//", "http://localhost:8080/files/a.png"},
		{"https://cdn.example/api", "https://cdn.example/api/files/a.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewBlobStore(memfs.New(), tt.base).URLFor("a.png"))
	}
}

// Package storage keeps captured piece files under a single managed root.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
)

const filesRoute = "files/"

var (
	ErrPathTraversal = errors.New("path traversal attempt detected")
	ErrFileNotFound  = errors.New("file not found")
)

type StoredFile struct {
	Name string
	Path string
	URL  string
	Size int64
}

// BlobStore writes files into fs. Every name is resolved against the root of
// fs and rejected when the cleaned result would leave it.
type BlobStore struct {
	fs      billy.Filesystem
	baseURL string

	// billy's memfs is not safe for concurrent use.
	mu sync.RWMutex
}

func NewBlobStore(fs billy.Filesystem, baseURL string) *BlobStore {
	return &BlobStore{fs: fs, baseURL: baseURL}
}

func NewOSBlobStore(root, baseURL string) (*BlobStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root %q: %w", root, err)
	}
	return NewBlobStore(osfs.New(filepath.Clean(abs)), baseURL), nil
}

func (s *BlobStore) Root() string {
	return s.fs.Root()
}

// ExtensionFor maps a declared MIME type to the stored file extension.
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}

// Store writes data under a fresh random name.
func (s *BlobStore) Store(data []byte, mimeType string) (*StoredFile, error) {
	return s.StoreAs(uuid.New().String()+ExtensionFor(mimeType), data)
}

func (s *BlobStore) StoreAs(name string, data []byte) (*StoredFile, error) {
	target, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(".", 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	tmp, err := s.fs.TempFile(".", ".upload-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return nil, fmt.Errorf("failed to write %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return nil, fmt.Errorf("failed to write %q: %w", name, err)
	}
	if err := s.fs.Rename(tmpName, target); err != nil {
		_ = s.fs.Remove(tmpName)
		return nil, fmt.Errorf("failed to store %q: %w", name, err)
	}

	return &StoredFile{
		Name: target,
		Path: s.fs.Join(s.fs.Root(), target),
		URL:  s.URLFor(target),
		Size: int64(len(data)),
	}, nil
}

func (s *BlobStore) Read(name string) ([]byte, error) {
	target, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, err := util.ReadFile(s.fs, target)
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}
	return data, nil
}

func (s *BlobStore) Remove(name string) error {
	target, err := s.resolve(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return fmt.Errorf("failed to remove %q: %w", name, err)
	}
	return nil
}

// URLFor does no filesystem access.
func (s *BlobStore) URLFor(name string) string {
	return strings.TrimRight(s.baseURL, "/") + "/" + filesRoute + name
}

func (s *BlobStore) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	return cleaned, nil
}

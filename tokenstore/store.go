// Package tokenstore persists the bearer token used to submit metrics so it
// survives across runs.
package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrEmptyPath is returned when a File store is created without a path.
	ErrEmptyPath = errors.New("token path must be set")
)

// Store reads and writes a bearer token.
type Store interface {
	// Read returns the stored token, or an empty string if none was ever
	// written.
	Read() (string, error)
	// Write replaces the stored token.
	Write(string) error
}

// File is a Store backed by a plain-text file holding the token verbatim.
type File struct {
	path string
}

// NewFile returns a *File store at path.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	return &File{path: path}, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Read returns the file contents, creating an empty file (and any missing
// parent directories) if it doesn't exist.
func (f *File) Read() (string, error) {
	if err := f.ensureExists(); err != nil {
		return "", err
	}

	b, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("error reading token file: %w", err)
	}

	return string(b), nil
}

// Write overwrites the file contents with token. The token is written to a
// temp file and renamed into place so readers never see a partial token.
func (f *File) Write(token string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("error creating token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("error writing token file: %w", err)
	}

	// No-op once renamed.
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing token file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("error writing token file: %w", err)
	}

	return nil
}

func (f *File) ensureExists() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("error creating token directory: %w", err)
	}

	fh, err := os.OpenFile(f.path, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("error creating token file: %w", err)
	}

	return fh.Close()
}

// Memory is an in-memory Store.
type Memory struct {
	mu     sync.Mutex
	token  string
	writes int
}

// NewMemory returns a *Memory store seeded with token.
func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

// Read returns the stored token.
func (m *Memory) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

// Write replaces the stored token.
func (m *Memory) Write(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.writes++
	return nil
}

// Writes returns the number of Write calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

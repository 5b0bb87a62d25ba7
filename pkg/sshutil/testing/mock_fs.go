// Package testing provides SSH mock utilities for testing.
// This package simulates a remote machine with an in-memory filesystem,
// a tiny shell interpreter, and an SFTP-like transfer channel.
package testing

import (
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockFS simulates an in-memory remote filesystem with POSIX paths.
type MockFS struct {
	mu    sync.RWMutex
	files map[string][]byte   // path -> content
	dirs  map[string]struct{} // directories
}

// NewMockFS creates a mock filesystem containing only the root directory.
func NewMockFS() *MockFS {
	return &MockFS{
		files: make(map[string][]byte),
		dirs:  map[string]struct{}{"/": {}},
	}
}

func clean(p string) string {
	if p == "" {
		return "."
	}
	return path.Clean(p)
}

// Mkdir creates a directory. It fails when the path exists or its parent
// is not a directory, like mkdir without -p.
func (m *MockFS) Mkdir(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if _, exists := m.dirs[p]; exists {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
	}
	if _, exists := m.files[p]; exists {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
	}
	if _, ok := m.dirs[path.Dir(p)]; !ok {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrNotExist}
	}

	m.dirs[p] = struct{}{}
	return nil
}

// MkdirAll creates a directory and all parent directories, like mkdir -p.
func (m *MockFS) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(clean(p))
	return nil
}

func (m *MockFS) mkdirAllLocked(p string) {
	for cur := p; ; cur = path.Dir(cur) {
		m.dirs[cur] = struct{}{}
		if cur == "/" || cur == "." {
			return
		}
	}
}

// WriteFile writes content to a file, creating parent directories as needed.
func (m *MockFS) WriteFile(p string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if _, isDir := m.dirs[p]; isDir {
		return &fs.PathError{Op: "write", Path: p, Err: errors.New("is a directory")}
	}
	m.mkdirAllLocked(path.Dir(p))
	m.files[p] = append([]byte(nil), content...)
	return nil
}

// ReadFile reads the content of a file. Returns error if file doesn't exist.
func (m *MockFS) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	content, exists := m.files[clean(p)]
	if !exists {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), content...), nil
}

// Remove removes a file or directory and all its contents, like rm -rf.
func (m *MockFS) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	delete(m.files, p)
	delete(m.dirs, p)

	prefix := strings.TrimSuffix(p, "/") + "/"
	for f := range m.files {
		if strings.HasPrefix(f, prefix) {
			delete(m.files, f)
		}
	}
	for d := range m.dirs {
		if strings.HasPrefix(d, prefix) {
			delete(m.dirs, d)
		}
	}
	m.dirs["/"] = struct{}{}
	return nil
}

// Exists returns true if the path exists (file or directory).
func (m *MockFS) Exists(p string) bool {
	return m.IsDir(p) || m.IsFile(p)
}

// IsDir returns true if the path exists and is a directory.
func (m *MockFS) IsDir(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.dirs[clean(p)]
	return exists
}

// IsFile returns true if the path exists and is a file.
func (m *MockFS) IsFile(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[clean(p)]
	return exists
}

// List returns the sorted names of the direct children of a directory.
func (m *MockFS) List(p string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = clean(p)
	if _, ok := m.dirs[p]; !ok {
		if _, isFile := m.files[p]; isFile {
			return nil, &fs.PathError{Op: "readdir", Path: p, Err: errors.New("not a directory")}
		}
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: fs.ErrNotExist}
	}

	prefix := strings.TrimSuffix(p, "/") + "/"
	seen := make(map[string]bool)
	collect := func(entry string) {
		if entry == p || !strings.HasPrefix(entry, prefix) {
			return
		}
		name := strings.TrimPrefix(entry, prefix)
		if name != "" && !strings.Contains(name, "/") {
			seen[name] = true
		}
	}
	for f := range m.files {
		collect(f)
	}
	for d := range m.dirs {
		collect(d)
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Stat returns file information for a path.
func (m *MockFS) Stat(p string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = clean(p)
	if _, ok := m.dirs[p]; ok {
		return fileInfo{name: path.Base(p), mode: fs.ModeDir | 0o755}, nil
	}
	if content, ok := m.files[p]; ok {
		return fileInfo{name: path.Base(p), size: int64(len(content)), mode: 0o644}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

// fileInfo is the fs.FileInfo returned by MockFS.Stat.
type fileInfo struct {
	name string
	size int64
	mode fs.FileMode
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi fileInfo) Sys() any           { return nil }

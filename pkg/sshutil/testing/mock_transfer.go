package testing

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
)

// MockTransfer is an SFTP-like channel over a MockClient's filesystem.
// Relative remote paths resolve against the client's home directory, as
// they do with a real SFTP server.
type MockTransfer struct {
	mu       sync.Mutex
	client   *MockClient
	failures map[string]error // "op path" -> error
	calls    []string
	closed   bool
}

func newMockTransfer(c *MockClient) *MockTransfer {
	return &MockTransfer{client: c, failures: make(map[string]error)}
}

// FailOn makes op ("stat", "list", "get", "put", "mkdir") on the remote
// path fail with err.
func (t *MockTransfer) FailOn(op, remotePath string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[op+" "+clean(remotePath)] = err
}

// Calls returns the operations performed, e.g. "put /srv/a.txt".
func (t *MockTransfer) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// Closed reports whether Close was called.
func (t *MockTransfer) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *MockTransfer) begin(op, remotePath string) (string, error) {
	abs := remotePath
	if !strings.HasPrefix(abs, "/") {
		abs = path.Join(t.client.Home(), abs)
	}
	abs = clean(abs)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, op+" "+abs)
	if t.closed {
		return abs, errors.New("sftp channel is closed")
	}
	if err, ok := t.failures[op+" "+abs]; ok {
		return abs, err
	}
	return abs, nil
}

// Stat returns file information for the remote path.
func (t *MockTransfer) Stat(p string) (os.FileInfo, error) {
	abs, err := t.begin("stat", p)
	if err != nil {
		return nil, err
	}
	return t.client.fs.Stat(abs)
}

// List returns the sorted entry names of a remote directory.
func (t *MockTransfer) List(p string) ([]string, error) {
	abs, err := t.begin("list", p)
	if err != nil {
		return nil, err
	}
	return t.client.fs.List(abs)
}

// Mkdir creates a single remote directory.
func (t *MockTransfer) Mkdir(p string) error {
	abs, err := t.begin("mkdir", p)
	if err != nil {
		return err
	}
	return t.client.fs.Mkdir(abs)
}

// Get copies a remote file to the local filesystem.
func (t *MockTransfer) Get(remote, local string) (int64, error) {
	abs, err := t.begin("get", remote)
	if err != nil {
		return 0, err
	}
	if t.client.fs.IsDir(abs) {
		return 0, fmt.Errorf("get %s: is a directory", abs)
	}
	content, err := t.client.fs.ReadFile(abs)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(local, content, 0o644); err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

// Put copies a local file to the remote filesystem. The remote parent must exist.
func (t *MockTransfer) Put(local, remote string) (int64, error) {
	abs, err := t.begin("put", remote)
	if err != nil {
		return 0, err
	}
	content, err := os.ReadFile(local)
	if err != nil {
		return 0, err
	}
	if !t.client.fs.IsDir(path.Dir(abs)) {
		return 0, &fs.PathError{Op: "put", Path: abs, Err: fs.ErrNotExist}
	}
	if err := t.client.fs.WriteFile(abs, content); err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

// Close closes the channel.
func (t *MockTransfer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

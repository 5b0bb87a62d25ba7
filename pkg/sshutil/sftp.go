package sshutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTP is the FileTransfer implementation over the SFTP subsystem.
// The subsystem is started lazily on first use.
type SFTP struct {
	sshConn    *ssh.Client
	sftpClient *sftp.Client
	mu         sync.Mutex
	closed     bool
}

// NewSFTP creates an SFTP channel on an existing SSH connection.
func NewSFTP(sshConn *ssh.Client) *SFTP {
	return &SFTP{sshConn: sshConn}
}

// ensureConnected starts the SFTP subsystem if not already done.
func (s *SFTP) ensureConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sftp channel is closed")
	}
	if s.sftpClient != nil {
		return nil
	}
	if s.sshConn == nil {
		return fmt.Errorf("ssh connection is nil")
	}

	client, err := sftp.NewClient(s.sshConn)
	if err != nil {
		return fmt.Errorf("create sftp client: %w", err)
	}
	s.sftpClient = client
	return nil
}

// client returns the live sftp client, starting it if needed.
func (s *SFTP) client() (*sftp.Client, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sftpClient, nil
}

// Close closes the SFTP subsystem.
func (s *SFTP) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.sftpClient != nil {
		err := s.sftpClient.Close()
		s.sftpClient = nil
		return err
	}
	return nil
}

// Stat returns file information for the given path.
func (s *SFTP) Stat(path string) (os.FileInfo, error) {
	c, err := s.client()
	if err != nil {
		return nil, err
	}
	return c.Stat(path)
}

// List returns the names of the entries in a remote directory.
func (s *SFTP) List(path string) ([]string, error) {
	c, err := s.client()
	if err != nil {
		return nil, err
	}

	infos, err := c.ReadDir(path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		if n := fi.Name(); n != "." && n != ".." {
			names = append(names, n)
		}
	}
	return names, nil
}

// Mkdir creates a single remote directory.
func (s *SFTP) Mkdir(path string) error {
	c, err := s.client()
	if err != nil {
		return err
	}
	return c.Mkdir(path)
}

// Get copies a remote file to a local path, truncating the local file.
func (s *SFTP) Get(remote, local string) (int64, error) {
	c, err := s.client()
	if err != nil {
		return 0, err
	}

	src, err := c.Open(remote)
	if err != nil {
		return 0, fmt.Errorf("open remote file: %w", err)
	}
	defer src.Close()

	mode := os.FileMode(0o644)
	if fi, err := src.Stat(); err == nil {
		mode = fi.Mode().Perm()
	}

	dst, err := os.OpenFile(filepath.Clean(local), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, fmt.Errorf("create local file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", remote, err)
	}
	return n, nil
}

// Put copies a local file to a remote path, truncating the remote file.
// The permission bits of the local file are carried over.
func (s *SFTP) Put(local, remote string) (int64, error) {
	c, err := s.client()
	if err != nil {
		return 0, err
	}

	src, err := os.Open(local)
	if err != nil {
		return 0, fmt.Errorf("open local file: %w", err)
	}
	defer src.Close()

	dst, err := c.Create(remote)
	if err != nil {
		return 0, fmt.Errorf("create remote file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", local, err)
	}

	if fi, err := src.Stat(); err == nil {
		_ = c.Chmod(remote, fi.Mode().Perm())
	}
	return n, nil
}

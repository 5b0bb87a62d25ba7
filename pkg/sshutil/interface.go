package sshutil

import (
	"io"
	"os"
)

// Remote executes commands on the remote host.
// Both the real Client and mock implementations satisfy this interface.
//
// Every call starts a fresh shell on the remote side; no state such as the
// working directory survives from one call to the next.
type Remote interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	// A non-nil error is a transport fault.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecStream runs a command and streams output to the provided writers.
	ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error)
}

// FileTransfer is a file-transfer channel to the remote filesystem.
type FileTransfer interface {
	// Stat returns file information for the given path, following symlinks.
	Stat(path string) (os.FileInfo, error)

	// List returns the entry names of a directory, excluding "." and "..".
	List(path string) ([]string, error)

	// Get copies the remote file to the local path and returns the bytes copied.
	Get(remote, local string) (int64, error)

	// Put copies the local file to the remote path and returns the bytes copied.
	// The remote parent directory must exist.
	Put(local, remote string) (int64, error)

	// Mkdir creates a single remote directory.
	Mkdir(path string) error

	// Close releases the channel.
	Close() error
}

// Conn is an authenticated connection to a remote host.
type Conn interface {
	Remote

	// Transfer returns the file-transfer channel, opening it on first use.
	Transfer() (FileTransfer, error)

	// GetHost returns the original host/alias used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string

	// Close closes the transfer channel and the connection.
	Close() error
}

var (
	_ Conn         = (*Client)(nil)
	_ FileTransfer = (*SFTP)(nil)
)

package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"

	"github.com/sshscre/sshscre/internal/errors"
)

// Exec runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode, err = c.ExecStream(cmd, &stdoutBuf, &stderrBuf)
	if err != nil {
		return nil, nil, -1, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// ExecStream runs a command and streams output to the provided writers.
// Returns the exit code and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	if c.Client == nil {
		return -1, errors.New(errors.ErrExec,
			"Not connected",
			"Reconnect to the server.")
	}

	session, err := c.Client.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	return exitStatus(session.Run(cmd), cmd)
}

// exitStatus maps the result of session.Run to an exit code.
// A non-zero exit is not an error; only transport faults are.
func exitStatus(runErr error, cmd string) (int, error) {
	if runErr == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if stderrors.As(runErr, &exitErr) {
		return exitErr.ExitStatus(), nil
	}

	// The remote closed the channel without reporting a status, e.g. on a signal.
	var missing *ssh.ExitMissingError
	if stderrors.As(runErr, &missing) {
		return -1, nil
	}

	return -1, errors.WrapWithCode(runErr, errors.ErrExec,
		fmt.Sprintf("Failed to execute command: %s", cmd),
		"The connection may have dropped. Try reconnecting.")
}

package session

import (
	"fmt"
	"strings"

	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/logger"
	"github.com/sshscre/sshscre/internal/util"
	"github.com/sshscre/sshscre/pkg/sshutil"
)

// Tracker keeps the illusion of a persistent remote working directory over
// a transport where every exec starts a fresh shell. It re-enters the
// tracked directory on every command and only adopts a new directory when
// the remote confirms it.
type Tracker struct {
	remote sshutil.Remote
	state  *State
	log    logger.Logger
}

// NewTracker returns a tracker that reads and updates state.
func NewTracker(remote sshutil.Remote, state *State, log logger.Logger) *Tracker {
	if log == nil {
		log = logger.Noop()
	}
	return &Tracker{remote: remote, state: state, log: log}
}

// Output is the captured result of a pass-through command.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CdCommand builds the directory-change probe. The current directory is
// entered first so relative targets resolve against it; an empty target
// means the login home.
func CdCommand(current, target string) string {
	if target == "" {
		return "cd && pwd -P"
	}
	return fmt.Sprintf("cd %s 2>/dev/null; cd %s && pwd -P", util.QuoteIfNeeded(current), target)
}

// WrapCommand runs command inside dir.
func WrapCommand(dir, command string) string {
	return fmt.Sprintf("cd %s 2>/dev/null && %s", util.QuoteIfNeeded(dir), command)
}

// Resolve asks the remote to change into target and, when it succeeds,
// adopts the canonical path it prints. On rejection the working directory is
// unchanged and a PATH error carries the remote's stderr verbatim. A
// transport fault is an EXEC error.
func (t *Tracker) Resolve(target string) (string, error) {
	cmd := CdCommand(t.state.WorkingDirectory, strings.TrimSpace(target))
	t.log.Debug("cd: %s", cmd)

	stdout, stderr, _, err := t.remote.Exec(cmd)
	if err != nil {
		return t.state.WorkingDirectory, errors.WrapWithCode(err, errors.ErrExec,
			"Lost the connection while changing directory",
			"Reconnect to the server")
	}

	if msg := strings.TrimRight(string(stderr), "\r\n"); strings.TrimSpace(msg) != "" {
		return t.state.WorkingDirectory, errors.New(errors.ErrPath, msg, "")
	}

	dir := strings.TrimSpace(string(stdout))
	if dir == "" {
		return t.state.WorkingDirectory, errors.New(errors.ErrPath,
			fmt.Sprintf("cd %s: the server did not report a directory", target), "")
	}
	// Only the last line is pwd output.
	if i := strings.LastIndexByte(dir, '\n'); i >= 0 {
		dir = strings.TrimSpace(dir[i+1:])
	}

	t.state.WorkingDirectory = dir
	return dir, nil
}

// Run executes command inside the working directory. The exit status is
// reported but not interpreted; only a transport fault returns an error.
func (t *Tracker) Run(command string) (Output, error) {
	cmd := WrapCommand(t.state.WorkingDirectory, command)
	t.log.Debug("exec: %s", cmd)

	stdout, stderr, code, err := t.remote.Exec(cmd)
	if err != nil {
		return Output{ExitCode: code}, errors.WrapWithCode(err, errors.ErrExec,
			"Lost the connection while running the command",
			"Reconnect to the server")
	}
	return Output{Stdout: string(stdout), Stderr: string(stderr), ExitCode: code}, nil
}

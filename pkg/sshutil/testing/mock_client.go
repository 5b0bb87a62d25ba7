package testing

import (
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sshscre/sshscre/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates an SSH connection for testing.
// Every Exec starts in the home directory, like a fresh remote shell, and the
// command line is run by a tiny interpreter that understands &&, ;,
// 2>/dev/null and a handful of commands (cd, pwd, hostname, ls, mkdir, cat,
// rm, test, which, uname, echo). Unknown commands succeed silently.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	hostname string
	home     string
	fs       *MockFS
	closed   bool
	execErr  error
	commands map[string]CommandResponse // pattern -> response
	executed []string

	transfer    *MockTransfer
	transferErr error
	opens       int
}

// NewMockClient creates a mock SSH client whose filesystem holds /root as home.
func NewMockClient(host string) *MockClient {
	m := &MockClient{
		host:     host,
		address:  host + ":22",
		hostname: host,
		home:     "/root",
		fs:       NewMockFS(),
		commands: make(map[string]CommandResponse),
	}
	_ = m.fs.MkdirAll(m.home)
	m.transfer = newMockTransfer(m)
	return m
}

var _ sshutil.Conn = (*MockClient)(nil)

// SetHome sets (and creates) the directory each command starts in.
func (m *MockClient) SetHome(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.home = clean(dir)
	_ = m.fs.MkdirAll(m.home)
}

// Home returns the home directory.
func (m *MockClient) Home() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.home
}

// SetHostname sets what `hostname` prints.
func (m *MockClient) SetHostname(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostname = name
}

// SetExecError makes every following Exec fail with a transport error.
func (m *MockClient) SetExecError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execErr = err
}

// SetTransferError makes Transfer fail, as if the SFTP subsystem were disabled.
func (m *MockClient) SetTransferError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transferErr = err
}

// SetCommandResponse registers a canned response. A pattern starting with ^
// is a regular expression matched against the whole command line; any other
// pattern must equal the whole command line or one of its simple commands.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// Executed returns every command line passed to Exec, in order.
func (m *MockClient) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executed...)
}

// LastExecuted returns the most recent command line, or "".
func (m *MockClient) LastExecuted() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.executed) == 0 {
		return ""
	}
	return m.executed[len(m.executed)-1]
}

// GetFS returns the mock filesystem for direct manipulation in tests.
func (m *MockClient) GetFS() *MockFS {
	return m.fs
}

// Exec runs a command line against the virtual filesystem.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executed = append(m.executed, cmd)

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}
	if m.execErr != nil {
		return nil, nil, -1, m.execErr
	}

	if resp, ok := m.matchWhole(cmd); ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}

	return m.run(cmd)
}

func (m *MockClient) matchWhole(cmd string) (CommandResponse, bool) {
	if resp, ok := m.commands[cmd]; ok {
		return resp, true
	}
	patterns := make([]string, 0, len(m.commands))
	for p := range m.commands {
		if strings.HasPrefix(p, "^") {
			patterns = append(patterns, p)
		}
	}
	sort.Strings(patterns)
	for _, p := range patterns {
		if matched, _ := regexp.MatchString(p, cmd); matched {
			return m.commands[p], true
		}
	}
	return CommandResponse{}, false
}

// ExecStream runs a command and writes output to the provided writers.
func (m *MockClient) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	out, errOut, code, execErr := m.Exec(cmd)
	if execErr != nil {
		return -1, execErr
	}

	if stdout != nil && len(out) > 0 {
		_, _ = stdout.Write(out)
	}
	if stderr != nil && len(errOut) > 0 {
		_, _ = stderr.Write(errOut)
	}

	return code, nil
}

// Transfer returns the mock SFTP channel.
func (m *MockClient) Transfer() (sshutil.FileTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("connection closed")
	}
	if m.transferErr != nil {
		return nil, m.transferErr
	}
	m.opens++
	return m.transfer, nil
}

// MockTransfer returns the transfer channel for failure injection and inspection.
func (m *MockClient) MockTransfer() *MockTransfer {
	return m.transfer
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// shell holds the per-Exec interpreter state.
type shell struct {
	cwd    string
	stdout strings.Builder
	stderr strings.Builder
}

// run interprets a command line. The caller holds m.mu.
func (m *MockClient) run(line string) ([]byte, []byte, int, error) {
	sh := &shell{cwd: m.home}
	code := 0

	for i, seg := range splitCommandLine(line) {
		if i > 0 && seg.op == "&&" && code != 0 {
			continue
		}
		code = m.runSimple(sh, seg.text)
	}

	var stdout, stderr []byte
	if sh.stdout.Len() > 0 {
		stdout = []byte(sh.stdout.String())
	}
	if sh.stderr.Len() > 0 {
		stderr = []byte(sh.stderr.String())
	}
	return stdout, stderr, code, nil
}

func (m *MockClient) runSimple(sh *shell, text string) int {
	text = strings.TrimSpace(text)
	silent := false
	if strings.HasSuffix(text, "2>/dev/null") {
		silent = true
		text = strings.TrimSpace(strings.TrimSuffix(text, "2>/dev/null"))
	}

	var stdout, stderr string
	var code int
	if resp, ok := m.commands[text]; ok {
		stdout, stderr, code = string(resp.Stdout), string(resp.Stderr), resp.ExitCode
	} else {
		stdout, stderr, code = m.builtin(sh, text)
	}

	sh.stdout.WriteString(stdout)
	if !silent {
		sh.stderr.WriteString(stderr)
	}
	return code
}

func (m *MockClient) builtin(sh *shell, text string) (stdout, stderr string, code int) {
	args := splitArgs(text)
	if len(args) == 0 {
		return "", "", 0
	}
	name, rest := args[0], args[1:]

	switch name {
	case "cd":
		target := m.home
		if len(rest) > 0 {
			target = m.resolve(sh.cwd, rest[0])
		}
		if !m.fs.IsDir(target) {
			if m.fs.IsFile(target) {
				return "", fmt.Sprintf("bash: cd: %s: Not a directory\n", rest[0]), 1
			}
			return "", fmt.Sprintf("bash: cd: %s: No such file or directory\n", rest[0]), 1
		}
		sh.cwd = target
		return "", "", 0

	case "pwd":
		return sh.cwd + "\n", "", 0

	case "hostname":
		return m.hostname + "\n", "", 0

	case "echo":
		return strings.Join(rest, " ") + "\n", "", 0

	case "true":
		return "", "", 0

	case "false":
		return "", "", 1

	case "ls":
		dir := sh.cwd
		var operand string
		for _, a := range rest {
			if !strings.HasPrefix(a, "-") {
				operand = a
				dir = m.resolve(sh.cwd, a)
			}
		}
		if m.fs.IsFile(dir) {
			return operand + "\n", "", 0
		}
		names, err := m.fs.List(dir)
		if err != nil {
			return "", fmt.Sprintf("ls: cannot access '%s': No such file or directory\n", operand), 2
		}
		if len(names) == 0 {
			return "", "", 0
		}
		return strings.Join(names, "\n") + "\n", "", 0

	case "mkdir":
		parents := false
		var targets []string
		for _, a := range rest {
			if a == "-p" {
				parents = true
				continue
			}
			targets = append(targets, a)
		}
		if len(targets) == 0 {
			return "", "mkdir: missing operand\n", 1
		}
		for _, t := range targets {
			p := m.resolve(sh.cwd, t)
			if parents {
				_ = m.fs.MkdirAll(p)
				continue
			}
			if err := m.fs.Mkdir(p); err != nil {
				return "", fmt.Sprintf("mkdir: cannot create directory '%s': %s\n", t, describe(err)), 1
			}
		}
		return "", "", 0

	case "cat":
		if len(rest) == 0 {
			return "", "cat: missing file operand\n", 1
		}
		var out strings.Builder
		for _, a := range rest {
			content, err := m.fs.ReadFile(m.resolve(sh.cwd, a))
			if err != nil {
				return out.String(), fmt.Sprintf("cat: %s: No such file or directory\n", a), 1
			}
			out.Write(content)
		}
		return out.String(), "", 0

	case "rm":
		for _, a := range rest {
			if !strings.HasPrefix(a, "-") {
				_ = m.fs.Remove(m.resolve(sh.cwd, a))
			}
		}
		return "", "", 0

	case "test", "[":
		if len(rest) >= 2 {
			p := m.resolve(sh.cwd, rest[1])
			switch rest[0] {
			case "-d":
				return "", "", boolCode(m.fs.IsDir(p))
			case "-f":
				return "", "", boolCode(m.fs.IsFile(p))
			case "-e":
				return "", "", boolCode(m.fs.Exists(p))
			}
		}
		return "", "", 1

	case "which":
		known := map[string]string{
			"bash": "/bin/bash", "sh": "/bin/sh", "cat": "/bin/cat",
			"mkdir": "/bin/mkdir", "rm": "/bin/rm", "apt": "/usr/bin/apt",
		}
		if len(rest) > 0 {
			if p, ok := known[rest[0]]; ok {
				return p + "\n", "", 0
			}
		}
		return "", "", 1

	case "uname":
		if len(rest) > 0 && rest[0] == "-a" {
			return "Linux " + m.hostname + " 5.15.0-generic #1 SMP x86_64 GNU/Linux\n", "", 0
		}
		if len(rest) > 0 && rest[0] == "-r" {
			return "5.15.0-generic\n", "", 0
		}
		return "Linux\n", "", 0
	}

	return "", "", 0
}

// resolve turns a shell word into an absolute path relative to cwd.
func (m *MockClient) resolve(cwd, p string) string {
	switch {
	case p == "~":
		return m.home
	case strings.HasPrefix(p, "~/"):
		return path.Join(m.home, p[2:])
	case strings.HasPrefix(p, "/"):
		return path.Clean(p)
	default:
		return path.Join(cwd, p)
	}
}

func boolCode(ok bool) int {
	if ok {
		return 0
	}
	return 1
}

func describe(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "file already exists"):
		return "File exists"
	case strings.Contains(msg, "file does not exist"):
		return "No such file or directory"
	}
	return msg
}

// segment is one simple command and the operator that precedes it.
type segment struct {
	op   string
	text string
}

// splitCommandLine splits on && and ; outside of quotes.
func splitCommandLine(line string) []segment {
	var segs []segment
	var cur strings.Builder
	op := ""
	var quote byte

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			cur.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == '&' && i+1 < len(line) && line[i+1] == '&':
			segs = append(segs, segment{op: op, text: cur.String()})
			cur.Reset()
			op = "&&"
			i++
		case c == ';':
			segs = append(segs, segment{op: op, text: cur.String()})
			cur.Reset()
			op = ";"
		default:
			cur.WriteByte(c)
		}
	}
	return append(segs, segment{op: op, text: cur.String()})
}

// splitArgs splits a simple command into words, honoring single quotes,
// double quotes and the '\'' idiom.
func splitArgs(text string) []string {
	var args []string
	var cur strings.Builder
	inWord := false
	var quote byte

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inWord = true
		case c == '\\' && i+1 < len(text):
			i++
			cur.WriteByte(text[i])
			inWord = true
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteByte(c)
			inWord = true
		}
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args
}

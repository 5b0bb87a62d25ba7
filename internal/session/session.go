// Package session is the remote session engine: it keeps a persistent
// working directory over stateless remote execs, dispatches each input line
// to a built-in or the remote shell, and moves files through the sync engine.
package session

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sshscre/sshscre/internal/config"
	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/logger"
	"github.com/sshscre/sshscre/internal/registry"
	"github.com/sshscre/sshscre/internal/transfer"
	"github.com/sshscre/sshscre/internal/ui"
	"github.com/sshscre/sshscre/internal/util"
	"github.com/sshscre/sshscre/pkg/sshutil"
)

// SetupMarker persists that a server finished first-run provisioning.
type SetupMarker interface {
	MarkSetupDone(serverID string) error
}

// Dialer opens an authenticated connection to a server record.
type Dialer func(server registry.Server) (sshutil.Conn, error)

// Deps are the collaborators of one Connect call.
type Deps struct {
	Dial     Dialer
	Registry SetupMarker
	Console  *Console
	Config   *config.Config
	History  *HistoryLog
	Log      logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Console == nil {
		d.Console = NewConsole(NewLineReader(os.Stdin, os.Stdout), os.Stdout, nil)
	}
	if d.Config == nil {
		d.Config = config.DefaultConfig()
	}
	if d.Log == nil {
		d.Log = logger.Noop()
	}
	return d
}

// SnapshotRequest asks the caller to save the session that just ended.
type SnapshotRequest struct {
	Name   string
	Server registry.Server
	Dir    string
}

// Session is one live remote session.
type Session struct {
	server      registry.Server
	conn        sshutil.Conn
	console     *Console
	state       *State
	tracker     *Tracker
	history     *HistoryLog
	log         logger.Logger
	realHost    string
	setupMarked bool
}

func newSession(server registry.Server, conn sshutil.Conn, deps Deps, home, realHost string) *Session {
	state := NewState(home)
	return &Session{
		server:   server,
		conn:     conn,
		console:  deps.Console,
		state:    state,
		tracker:  NewTracker(conn, state, deps.Log),
		history:  deps.History,
		log:      deps.Log,
		realHost: realHost,
	}
}

// Connect dials the server, runs the interactive loop until exit, and
// returns a snapshot request when the user chose to save the session.
// startDir, when set, is entered through the tracker before the first prompt;
// if it is unreachable the session starts in the home directory.
func Connect(server registry.Server, startDir string, deps Deps) (*SnapshotRequest, error) {
	deps = deps.withDefaults()
	c := deps.Console

	conn, err := deps.Dial(server)
	if err != nil {
		if errors.CodeOf(err) == "" {
			err = errors.WrapWithCode(err, errors.ErrConnection,
				fmt.Sprintf("Couldn't connect to %s", server.Label()),
				"Check the host, port and credentials")
		}
		return nil, err
	}
	closed := false
	closeConn := func() {
		if !closed {
			closed = true
			_ = conn.Close()
		}
	}
	defer closeConn()

	realHost := execLine(conn, "hostname", server.Host)
	home := execLine(conn, "pwd", "/")
	deps.Log.Info("connected to %s (%s), home %s", server.Name, realHost, home)

	s := newSession(server, conn, deps, home, realHost)
	c.Print(ui.StyleSuccess, fmt.Sprintf("%s Connected to %s %s %s", ui.SymbolSuccess, server.Name, ui.SymbolArrow, realHost))

	if deps.Config.ShowInfoOnConnect {
		if err := s.printSummary(); err != nil {
			s.showError(err)
			return nil, err
		}
	}

	if !server.SetupDone {
		if err := s.provision(deps.Config.ProvisionFor(server.OS), deps.Registry); err != nil {
			s.showError(err)
			return nil, err
		}
	}

	if startDir != "" {
		if _, err := s.tracker.Resolve(util.ShellQuotePreserveTilde(startDir)); err != nil {
			if errors.IsCode(err, errors.ErrExec) {
				s.showError(err)
				return nil, err
			}
			c.Print(ui.StyleWarning, fmt.Sprintf("%s Couldn't enter %s, starting in %s", ui.SymbolWarning, startDir, home))
			s.showError(err)
		}
	}

	c.Blank()
	c.Print(ui.StyleInfo, "Commands: exit, infovds, file, cd, local ls, local history, clear, dash, help")

	loopErr := s.Loop()
	closeConn()
	c.Print(ui.StyleError, "Disconnected")
	if loopErr != nil {
		return nil, loopErr
	}

	return s.offerSnapshot()
}

// execLine runs a probe and returns its first output line, or def.
func execLine(remote sshutil.Remote, cmd, def string) string {
	stdout, _, code, err := remote.Exec(cmd)
	if err != nil || code != 0 {
		return def
	}
	return util.OrDefault(util.FirstLine(string(stdout)), def)
}

// State exposes the session state.
func (s *Session) State() *State { return s.state }

func (s *Session) login() string {
	if s.server.User == "" {
		return s.realHost
	}
	return s.server.User + "@" + s.realHost
}

func (s *Session) prompt() string {
	text := s.state.Prompt(s.server.User, s.realHost)
	return ui.StylePrompt.Render(strings.TrimSuffix(text, " ")) + " "
}

// Loop reads and executes lines until exit, closed input, or a transport
// fault. Only the transport fault is returned.
func (s *Session) Loop() error {
	for {
		line, err := s.console.ReadLine(s.prompt())
		if err != nil {
			if !stderrors.Is(err, io.EOF) {
				s.log.Warn("input closed: %v", err)
			}
			return nil
		}

		done, err := s.Execute(line)
		if err != nil {
			s.showError(err)
			return err
		}
		if done {
			return nil
		}
	}
}

// Execute runs one input line. done is true when the session should end.
// Recoverable failures are shown and swallowed; the returned error is an
// EXEC transport fault that ends the session.
func (s *Session) Execute(line string) (done bool, err error) {
	cmd, usageErr := Classify(line)
	if cmd.Recorded() {
		s.state.Remember(cmd.Line)
		if err := s.history.Append(s.login(), cmd.Line); err != nil {
			s.log.Warn("couldn't write history to %s: %v", s.history.Path(), err)
		}
	}
	if usageErr != nil {
		s.showError(usageErr)
		return false, nil
	}

	switch cmd.Kind {
	case KindEmpty:
		return false, nil

	case KindExit:
		return true, nil

	case KindInfo:
		info, err := CollectInfo(s.conn)
		if err != nil {
			return s.recover(err)
		}
		s.console.Println(info.Render())

	case KindPromptStyle:
		if cmd.Dash {
			s.state.PromptStyle = PromptDash
		} else {
			s.state.PromptStyle = PromptStandard
		}
		s.console.Print(ui.StyleMuted, fmt.Sprintf("%s Prompt style: %s", ui.SymbolArrow, s.state.PromptStyle.Symbol()))

	case KindClear:
		s.console.Clear()

	case KindHelp:
		s.console.Println(HelpText)

	case KindCd:
		if _, err := s.tracker.Resolve(cmd.Args[0]); err != nil {
			return s.recover(err)
		}

	case KindFile:
		if err := s.transfer(cmd.Args[0], cmd.Args[1]); err != nil {
			return s.recover(err)
		}

	case KindLocalLs:
		s.localList(cmd.Args[0])

	case KindLocalHistory:
		s.showHistory()

	default:
		out, err := s.tracker.Run(cmd.Line)
		if err != nil {
			return true, err
		}
		if out.Stdout != "" {
			s.console.Println(strings.TrimRight(out.Stdout, "\n"))
		}
		if out.Stderr != "" {
			s.console.Print(ui.StyleError, strings.TrimRight(out.Stderr, "\n"))
		}
	}

	return false, nil
}

// recover shows a recoverable error, or ends the session on a transport fault.
func (s *Session) recover(err error) (bool, error) {
	if errors.IsCode(err, errors.ErrExec) {
		return true, err
	}
	s.showError(err)
	return false, nil
}

func (s *Session) showError(err error) {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		s.console.Print(ui.StyleError, err.Error())
		return
	}
	msg := e.Message
	if e.Code == errors.ErrExec && e.Cause != nil {
		msg = e.Short()
	}
	s.console.Print(ui.StyleError, msg)
	if e.Suggestion != "" {
		s.console.Print(ui.StyleMuted, e.Suggestion)
	}
}

func (s *Session) printSummary() error {
	info, err := CollectInfo(s.conn)
	if err != nil {
		return err
	}
	for _, f := range info.Summary() {
		s.console.Print(ui.StyleMuted, fmt.Sprintf("  %-7s %s", f.Label+":", f.Value))
	}
	return nil
}

// remotePath resolves a user-typed remote path against the working directory.
func (s *Session) remotePath(p string) string {
	return transfer.ResolveRemote(s.state.WorkingDirectory, s.state.Home, p)
}

// transfer implements "file <src> <dst>": src is uploaded to dst when it
// exists locally, else src is read as a remote path and downloaded to dst.
func (s *Session) transfer(src, dst string) error {
	ft, err := s.conn.Transfer()
	if err != nil {
		return err
	}
	var r *transfer.Report
	if transfer.ExistsLocal(src) {
		eng := transfer.New(ft, transfer.WithLogger(s.log), transfer.WithObserver(s.showEvent))
		r, err = eng.Upload(src, s.remotePath(dst))
		if err != nil {
			return err
		}
	} else {
		remote := s.remotePath(src)
		note := fmt.Sprintf("%s %s is not a local path, downloading %s from the server", ui.SymbolArrow, src, remote)
		eng := transfer.New(ft, transfer.WithLogger(s.log), transfer.WithObserver(func(ev transfer.Event) {
			if ev.Kind == transfer.EventStart {
				s.console.Print(ui.StyleMuted, note)
				return
			}
			s.showEvent(ev)
		}))
		r, err = eng.Download(remote, dst)
		if err != nil {
			// Nothing exists on either side: one line, nothing written.
			var e *errors.Error
			if stderrors.As(err, &e) && e.Code == errors.ErrTransfer {
				s.console.Print(ui.StyleError, e.Message)
				return nil
			}
			return err
		}
	}

	if aggErr := r.Err(); aggErr != nil {
		var e *errors.Error
		stderrors.As(aggErr, &e)
		s.console.Print(ui.StyleError, fmt.Sprintf("%s %s (%s)", ui.SymbolFail, e.Message, r.Summary()))
		return nil
	}
	s.console.Print(ui.StyleSuccess, fmt.Sprintf("%s %s complete: %s", ui.SymbolSuccess, r.Direction.Label(), r.Summary()))
	return nil
}

func (s *Session) showEvent(ev transfer.Event) {
	switch ev.Kind {
	case transfer.EventFile:
		s.console.Println("  " + ev.String())
	case transfer.EventDir:
		s.console.Print(ui.StyleMuted, "  "+ev.String())
	case transfer.EventSkip:
		s.console.Print(ui.StyleWarning, fmt.Sprintf("  %s %s", ui.SymbolWarning, ev.String()))
	case transfer.EventFail:
		s.console.Print(ui.StyleError, fmt.Sprintf("  %s %s", ui.SymbolFail, ev.String()))
	}
}

func (s *Session) localList(dir string) {
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.console.Print(ui.StyleError, "local ls: "+err.Error())
		return
	}
	if len(entries) == 0 {
		s.console.Print(ui.StyleMuted, "  (empty)")
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			s.console.Print(ui.StyleInfo, "  "+e.Name()+"/")
			continue
		}
		s.console.Println("  " + e.Name())
	}
}

func (s *Session) showHistory() {
	if len(s.state.History) == 0 {
		s.console.Print(ui.StyleMuted, "History is empty")
		return
	}
	for i, line := range s.state.History {
		s.console.Printf("%4d  %s", i+1, line)
	}
}

// provision runs the first-run command list after the user confirms, then
// records setup_done once. A failing command is reported and the rest still
// run; a transport fault aborts without recording.
func (s *Session) provision(commands []string, marker SetupMarker) error {
	c := s.console
	if len(commands) == 0 {
		c.Print(ui.StyleMuted, fmt.Sprintf("%s No setup commands for OS '%s', skipping first-run setup", ui.SymbolArrow, s.server.OS))
		return nil
	}

	ok, err := c.Confirm(fmt.Sprintf("First connection to %s. Run the %s setup (%d commands)?",
		s.server.Name, s.server.OS, len(commands)), false)
	if err != nil || !ok {
		return nil
	}

	failed := 0
	for i, cmd := range commands {
		c.Print(ui.StyleInfo, fmt.Sprintf("[%d/%d] %s", i+1, len(commands), cmd))
		stdout, stderr := c.Writer(ui.StyleMuted), c.Writer(ui.StyleError)
		code, err := s.conn.ExecStream(cmd, stdout, stderr)
		stdout.Flush()
		stderr.Flush()
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrExec,
				"Lost the connection during setup",
				"Reconnect; setup runs again because it was not recorded")
		}
		if code != 0 {
			failed++
			c.Print(ui.StyleWarning, fmt.Sprintf("%s exited with status %d", ui.SymbolWarning, code))
		}
	}

	if marker != nil && !s.setupMarked {
		if err := marker.MarkSetupDone(s.server.ID); err != nil {
			c.Print(ui.StyleWarning, fmt.Sprintf("%s Couldn't record setup for %s: %v", ui.SymbolWarning, s.server.Name, err))
		} else {
			s.setupMarked = true
			s.server.SetupDone = true
		}
	}

	if failed > 0 {
		c.Print(ui.StyleWarning, fmt.Sprintf("%s Setup finished with %d failed %s", ui.SymbolWarning, failed, util.Pluralize(failed, "command", "commands")))
		return nil
	}
	c.Print(ui.StyleSuccess, ui.SymbolSuccess+" Setup finished")
	return nil
}

// offerSnapshot asks whether to save the session and under what name.
func (s *Session) offerSnapshot() (*SnapshotRequest, error) {
	ok, err := s.console.Confirm("Save this session?", false)
	if err != nil || !ok {
		return nil, nil
	}
	name, err := s.console.ReadLine("Session name: ")
	if err != nil {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		s.console.Print(ui.StyleMuted, ui.SymbolArrow+" No name given, session not saved")
		return nil, nil
	}
	return &SnapshotRequest{Name: name, Server: s.server, Dir: s.state.WorkingDirectory}, nil
}

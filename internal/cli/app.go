package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/sshscre/sshscre/internal/config"
	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/logger"
	"github.com/sshscre/sshscre/internal/registry"
	"github.com/sshscre/sshscre/internal/session"
	"github.com/sshscre/sshscre/internal/ui"
	"github.com/sshscre/sshscre/pkg/sshutil"
)

// app carries what every command needs: config, registry, output and the
// optional debug sink.
type app struct {
	cfg   *config.Config
	store *registry.Store
	log   logger.Logger
	sink  logger.Sink
	debug *logger.FileLogger

	in  *os.File
	out io.Writer

	// console and dial are replaced in tests.
	console *session.Console
	dial    session.Dialer
}

// newApp loads the config named by the global flags and opens the registry.
func newApp() (*app, error) {
	if flags.noColor || os.Getenv("NO_COLOR") != "" {
		ui.DisableColors()
	}

	cfg, err := config.LoadOrDefault(flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	a := &app{
		cfg:  cfg,
		log:  logger.NewEnvLogger("[sshscre]"),
		sink: logger.Noop(),
		in:   os.Stdin,
		out:  os.Stdout,
	}

	if flags.debug || os.Getenv(logger.DebugEnv) != "" {
		fl, err := logger.NewFileLogger(cfg.DebugLog)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't open the debug log",
				"Check that debug_log points to a writable file")
		}
		fl.Record(logger.TagBoot, fmt.Sprintf("sshscre %s started %s", formatVersion(version), time.Now().Format(time.RFC3339)))
		a.debug, a.log, a.sink = fl, fl, fl
	}

	sshutil.WarningHandler = func(message string) {
		fmt.Fprintln(a.out, ui.Warn(message))
	}

	store, err := registry.Open(cfg.DataDir, registry.NewCredentials(cfg.Keyring, a.log), a.log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	return a, nil
}

// withApp builds an app, runs fn and closes the app.
func withApp(fn func(a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.recordPanic()
	return fn(a)
}

// recordPanic writes a panic and its stack to the debug sink, then lets it
// continue unwinding.
func (a *app) recordPanic() {
	if r := recover(); r != nil {
		a.sink.Record(logger.TagCrash, fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
		panic(r)
	}
}

// Close flushes the debug log.
func (a *app) Close() {
	if a.debug != nil {
		a.debug.Record(logger.TagExit, "sshscre exiting")
		_ = a.debug.Close()
		a.debug = nil
	}
}

// println writes a line and records it to the debug sink.
func (a *app) println(line string) {
	a.sink.Record(logger.TagPrint, line)
	fmt.Fprintln(a.out, line)
}

// sessionDeps wires the session engine to the terminal, registry and config.
func (a *app) sessionDeps() session.Deps {
	console := a.console
	if console == nil {
		console = session.NewConsole(session.NewLineReader(a.in, a.out), a.out, a.sink)
	}
	dial := a.dial
	if dial == nil {
		dial = a.dialServer
	}
	return session.Deps{
		Dial:     dial,
		Registry: a.store,
		Console:  console,
		Config:   a.cfg,
		History:  session.NewHistoryLog(a.cfg.HistoryFile),
		Log:      a.log,
	}
}

// dialer returns the dial function used outside the session engine.
func (a *app) dialer() session.Dialer {
	if a.dial != nil {
		return a.dial
	}
	return a.dialServer
}

// dialServer opens a real SSH connection behind a spinner. A password
// server without a stored password is prompted for one.
func (a *app) dialServer(srv registry.Server) (sshutil.Conn, error) {
	target, err := a.target(srv)
	if err != nil {
		return nil, err
	}

	spinner := ui.NewSpinner("Connecting to "+srv.Label(), a.out)
	spinner.Start()
	client, err := sshutil.Dial(target, a.sshOptions())
	if err != nil {
		spinner.Fail()
		return nil, err
	}
	spinner.Success()
	a.log.Info("dialed %s at %s", srv.Name, client.GetAddress())
	return client, nil
}

func (a *app) target(srv registry.Server) (sshutil.Target, error) {
	t := targetFor(srv)
	if srv.Auth != registry.AuthPassword {
		return t, nil
	}

	pw, err := a.store.Password(srv)
	if err != nil {
		return t, err
	}
	if pw == "" {
		pw, err = session.ReadPassword(a.in, a.out, fmt.Sprintf("Password for %s: ", srv.Login()))
		if err != nil {
			return t, errors.WrapWithCode(err, errors.ErrConnection,
				"Couldn't read the password",
				"Run sshscre from an interactive terminal, or store the password with 'sshscre server add'")
		}
	}
	t.Password = pw
	return t, nil
}

// targetFor maps a server record onto a dial target.
func targetFor(srv registry.Server) sshutil.Target {
	t := sshutil.Target{
		Host: srv.Host,
		Port: srv.Port,
		User: srv.User,
	}
	if srv.Auth == registry.AuthKey && srv.KeyPath != "" {
		t.KeyPath = config.ExpandLocal(srv.KeyPath)
	}
	return t
}

func (a *app) sshOptions() sshutil.Options {
	return sshutil.Options{
		Timeout:               a.cfg.ConnectTimeout,
		KnownHosts:            a.cfg.KnownHosts,
		StrictHostKeyChecking: a.cfg.StrictHostKeyChecking,
		OnNewHost: func(hostname, fingerprint string) {
			a.println(ui.Note(fmt.Sprintf("Trusted new host key for %s (%s)", hostname, fingerprint)))
		},
	}
}

// showError prints err the way the CLI reports failures.
func (a *app) showError(err error) {
	var e *errors.Error
	if stderrors.As(err, &e) {
		a.println(ui.StyleError.Render(e.Error()))
		return
	}
	a.println(ui.Fail(err.Error()))
}

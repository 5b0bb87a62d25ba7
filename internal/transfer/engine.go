// Package transfer mirrors a file or directory tree between the local
// machine and a remote host over a FileTransfer channel.
//
// Walks use an explicit LIFO work queue, so deep trees never grow the call
// stack. Per-item failures never stop a walk; they are collected in the
// returned Report.
package transfer

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/logger"
	"github.com/sshscre/sshscre/pkg/sshutil"
)

// EventKind tells an observer what happened to one item.
type EventKind int

const (
	EventStart EventKind = iota // the top-level source exists and the walk begins
	EventFile                   // a file was copied
	EventDir                   // a directory was created or reused
	EventSkip                  // an item was skipped
	EventFail                  // an item failed
)

// Event describes one processed item.
type Event struct {
	Kind   EventKind
	Source string
	Dest   string
	Bytes  int64
	Err    error
	Reason string // why an item was skipped
}

// Engine runs uploads and downloads over one FileTransfer channel.
type Engine struct {
	ft       sshutil.FileTransfer
	log      logger.Logger
	observer func(Event)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for per-item debug output and warnings.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver is called synchronously for every processed item.
func WithObserver(fn func(Event)) Option {
	return func(e *Engine) { e.observer = fn }
}

// New creates an Engine.
func New(ft sshutil.FileTransfer, opts ...Option) *Engine {
	e := &Engine{ft: ft, log: logger.Noop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pair is one queued unit of work.
type pair struct {
	src, dst string
}

// queue is a LIFO work list.
type queue []pair

func (q *queue) push(p pair) { *q = append(*q, p) }

func (q *queue) pop() pair {
	old := *q
	p := old[len(old)-1]
	*q = old[:len(old)-1]
	return p
}

func (q queue) empty() bool { return len(q) == 0 }

// Transfer infers the direction: when src exists locally it is uploaded to
// the remote path dst; otherwise src is taken as a remote path and
// downloaded to the local path dst.
func (e *Engine) Transfer(src, dst string) (*Report, error) {
	if ExistsLocal(src) {
		return e.Upload(src, dst)
	}
	return e.Download(src, dst)
}

// Upload mirrors the local path onto the remote path. The returned error is
// set only when the walk could not start; item failures are in the Report.
func (e *Engine) Upload(local, remote string) (*Report, error) {
	r := &Report{Direction: Upload, Source: local, Dest: remote}

	if !ExistsLocal(local) {
		return r, errors.New(errors.ErrTransfer,
			"Local path not found: "+local,
			"Check the path relative to "+cwdOrDot())
	}

	e.emit(Event{Kind: EventStart, Source: local, Dest: remote})

	var q queue
	q.push(pair{src: local, dst: remote})

	for !q.empty() {
		p := q.pop()

		kind, _, err := ClassifyLocal(p.src)
		if err != nil {
			e.skip(r, p, "vanished before it could be read")
			continue
		}

		switch kind {
		case File:
			n, err := e.ft.Put(p.src, p.dst)
			if err != nil {
				e.fail(r, p, "put", err)
				continue
			}
			e.file(r, p, n)

		case Dir:
			if err := e.ft.Mkdir(p.dst); err != nil {
				if k, _, serr := ClassifyRemote(e.ft, p.dst); serr != nil || k != Dir {
					e.fail(r, p, "mkdir", err)
					continue
				}
			}
			e.dir(r, p)

			entries, err := os.ReadDir(p.src)
			if err != nil {
				e.fail(r, p, "read", err)
				continue
			}
			for i := len(entries) - 1; i >= 0; i-- {
				name := entries[i].Name()
				q.push(pair{src: filepath.Join(p.src, name), dst: joinRemote(p.dst, name)})
			}

		default:
			e.skip(r, p, "not a regular file or directory")
		}
	}

	return r, nil
}

// Download mirrors the remote path onto the local path. When the top-level
// remote path cannot be stat'ed, nothing is touched locally and a TRANSFER
// error is returned. Item failures are in the Report.
func (e *Engine) Download(remote, local string) (*Report, error) {
	r := &Report{Direction: Download, Source: remote, Dest: local}

	fi, err := e.ft.Stat(remote)
	if err != nil {
		return r, errors.WrapWithCode(err, errors.ErrTransfer,
			"Remote path not found: "+remote,
			"Nothing exists at that path locally or on the server")
	}

	e.emit(Event{Kind: EventStart, Source: remote, Dest: local})

	var q queue
	q.push(pair{src: remote, dst: local})
	top := true

	for !q.empty() {
		p := q.pop()

		if !top {
			fi, err = e.ft.Stat(p.src)
			if err != nil {
				e.fail(r, p, "stat", err)
				continue
			}
		}
		top = false

		if KindOf(fi) != Dir {
			if err := os.MkdirAll(filepath.Dir(p.dst), 0o755); err != nil {
				e.fail(r, p, "mkdir", err)
				continue
			}
			n, err := e.ft.Get(p.src, p.dst)
			if err != nil {
				e.fail(r, p, "get", err)
				continue
			}
			e.file(r, p, n)
			continue
		}

		if err := os.MkdirAll(p.dst, 0o755); err != nil {
			e.fail(r, p, "mkdir", err)
			continue
		}
		e.dir(r, p)

		names, err := e.ft.List(p.src)
		if err != nil {
			e.fail(r, p, "list", err)
			continue
		}
		for i := len(names) - 1; i >= 0; i-- {
			q.push(pair{src: joinRemote(p.src, names[i]), dst: filepath.Join(p.dst, names[i])})
		}
	}

	return r, nil
}

func (e *Engine) file(r *Report, p pair, n int64) {
	r.Files++
	r.Bytes += n
	e.log.Debug("%s %s -> %s (%d bytes)", r.Direction, p.src, p.dst, n)
	e.emit(Event{Kind: EventFile, Source: p.src, Dest: p.dst, Bytes: n})
}

func (e *Engine) dir(r *Report, p pair) {
	r.Dirs++
	e.log.Debug("%s dir %s -> %s", r.Direction, p.src, p.dst)
	e.emit(Event{Kind: EventDir, Source: p.src, Dest: p.dst})
}

func (e *Engine) skip(r *Report, p pair, reason string) {
	r.Skipped = append(r.Skipped, p.src)
	e.log.Warn("skipping %s: %s", p.src, reason)
	e.emit(Event{Kind: EventSkip, Source: p.src, Dest: p.dst, Reason: reason})
}

func (e *Engine) fail(r *Report, p pair, op string, err error) {
	r.Failures = append(r.Failures, Failure{Path: p.src, Op: op, Err: err})
	e.log.Debug("%s %s failed: %v", op, p.src, err)
	e.emit(Event{Kind: EventFail, Source: p.src, Dest: p.dst, Err: err})
}

func (e *Engine) emit(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

// joinRemote appends a child name to a remote directory path.
func joinRemote(dir, name string) string {
	if dir == "" {
		return name
	}
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

// ResolveRemote makes a remote path absolute: ~ and ~/ expand to home,
// relative paths join the working directory, absolute paths are cleaned.
func ResolveRemote(cwd, home, p string) string {
	switch {
	case p == "":
		return cwd
	case p == "~":
		return home
	case strings.HasPrefix(p, "~/") && home != "":
		return path.Join(home, p[2:])
	case strings.HasPrefix(p, "/"):
		return path.Clean(p)
	case cwd == "":
		return p
	default:
		return path.Join(cwd, p)
	}
}

func cwdOrDot() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// String renders an event as a short progress line.
func (ev Event) String() string {
	switch ev.Kind {
	case EventStart, EventFile:
		return fmt.Sprintf("%s -> %s", ev.Source, ev.Dest)
	case EventDir:
		return fmt.Sprintf("%s/ -> %s/", strings.TrimSuffix(ev.Source, "/"), strings.TrimSuffix(ev.Dest, "/"))
	case EventSkip:
		return fmt.Sprintf("skipped %s (%s)", ev.Source, ev.Reason)
	default:
		return fmt.Sprintf("%s: %v", ev.Source, ev.Err)
	}
}

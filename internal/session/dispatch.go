package session

import (
	"strings"

	"github.com/sshscre/sshscre/internal/errors"
)

// Kind classifies one input line.
type Kind int

const (
	KindEmpty Kind = iota
	KindExit
	KindInfo
	KindPromptStyle
	KindClear
	KindHelp
	KindCd
	KindFile
	KindLocalLs
	KindLocalHistory
	KindPassThrough
)

var kindNames = map[Kind]string{
	KindEmpty:        "empty",
	KindExit:         "exit",
	KindInfo:         "infovds",
	KindPromptStyle:  "prompt-style",
	KindClear:        "clear",
	KindHelp:         "help",
	KindCd:           "cd",
	KindFile:         "file",
	KindLocalLs:      "local-ls",
	KindLocalHistory: "local-history",
	KindPassThrough:  "pass-through",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Command is a classified input line.
type Command struct {
	Kind Kind
	Line string   // trimmed input
	Args []string // cd: [target]; file: [src, dst]; local ls: [path]
	Dash bool     // KindPromptStyle: dash or undash
}

// FileUsage is the usage line for the file built-in.
const FileUsage = "file <src> <dst>"

// Classify maps a line to a command. Rules are tried in order and the first
// match wins; anything unmatched is passed through to the remote shell.
// The only error is a USAGE error for a malformed file invocation.
func Classify(line string) (Command, error) {
	line = strings.TrimSpace(line)
	cmd := Command{Line: line}
	fields := strings.Fields(line)

	switch {
	case line == "":
		cmd.Kind = KindEmpty

	case line == "exit" || line == "quit":
		cmd.Kind = KindExit

	case line == "infovds":
		cmd.Kind = KindInfo

	case line == "dash" || line == "undash":
		cmd.Kind = KindPromptStyle
		cmd.Dash = line == "dash"

	case line == "clear" || line == "cls":
		cmd.Kind = KindClear

	case line == "help":
		cmd.Kind = KindHelp

	case fields[0] == "cd":
		cmd.Kind = KindCd
		cmd.Args = []string{strings.TrimSpace(strings.TrimPrefix(line, "cd"))}

	case strings.HasPrefix(line, "file "):
		if len(fields) != 3 {
			return cmd, errors.NewUsage(FileUsage)
		}
		cmd.Kind = KindFile
		cmd.Args = fields[1:]

	case line == "local ls" || strings.HasPrefix(line, "local ls "):
		cmd.Kind = KindLocalLs
		cmd.Args = []string{strings.TrimSpace(strings.TrimPrefix(line, "local ls"))}

	case line == "local history":
		cmd.Kind = KindLocalHistory

	default:
		cmd.Kind = KindPassThrough
	}

	return cmd, nil
}

// Recorded reports whether the line goes into history. Every non-empty
// line does except "local history" itself.
func (c Command) Recorded() bool {
	return c.Line != "" && c.Kind != KindLocalHistory
}

// HelpText lists the built-in commands.
const HelpText = `Built-in commands:
  cd [path]            change the remote directory (no path: home)
  file <src> <dst>     upload src if it exists locally, else download src from the server
  local ls [path]      list a local directory
  local history        show the commands typed in this session
  infovds              show a system information panel
  dash | undash        switch the prompt between # and $
  clear | cls          clear the screen
  help                 show this list
  exit | quit          disconnect
Anything else runs on the server in the current directory.`

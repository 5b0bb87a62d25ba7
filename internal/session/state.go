package session

import (
	"path"
	"strings"
)

// PromptStyle is the cosmetic prompt terminator.
type PromptStyle int

const (
	PromptStandard PromptStyle = iota // $
	PromptDash                        // #
)

// Symbol returns the character that ends the prompt.
func (p PromptStyle) Symbol() string {
	if p == PromptDash {
		return "#"
	}
	return "$"
}

// State is the engine-owned state of one remote session. WorkingDirectory is
// always the last directory the remote confirmed; a failed cd never touches it.
type State struct {
	WorkingDirectory string
	Home             string
	PromptStyle      PromptStyle
	History          []string
}

// NewState starts a session in the remote home directory.
func NewState(home string) *State {
	return &State{WorkingDirectory: home, Home: home}
}

// Remember appends a line to the in-memory history.
func (s *State) Remember(line string) {
	s.History = append(s.History, line)
}

// DirLabel is the short directory name shown in the prompt: ~ for home,
// / for the root, else the last path element.
func (s *State) DirLabel() string {
	switch cwd := s.WorkingDirectory; {
	case cwd == s.Home && cwd != "":
		return "~"
	case cwd == "/" || cwd == "":
		return "/"
	default:
		return path.Base(strings.TrimSuffix(cwd, "/"))
	}
}

// Prompt renders the plain prompt text, e.g. "bob@web-1/tmp $ ".
func (s *State) Prompt(user, host string) string {
	login := host
	if user != "" {
		login = user + "@" + host
	}
	return login + "/" + s.DirLabel() + " " + s.PromptStyle.Symbol() + " "
}

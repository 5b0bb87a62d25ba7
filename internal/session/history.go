package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HistoryLog appends accepted session commands to a local file, one
// timestamped line each. It assumes a single writer.
type HistoryLog struct {
	path string
	now  func() time.Time
}

// NewHistoryLog returns a log at path. An empty path disables it.
func NewHistoryLog(path string) *HistoryLog {
	return &HistoryLog{path: path, now: time.Now}
}

// Path returns the file the log appends to.
func (h *HistoryLog) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// Append writes "<RFC3339 time>\t<login>\t<line>".
func (h *HistoryLog) Append(login, line string) error {
	if h == nil || h.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	line = strings.ReplaceAll(line, "\n", " ")
	_, err = fmt.Fprintf(f, "%s\t%s\t%s\n", h.now().Format(time.RFC3339), login, line)
	return err
}

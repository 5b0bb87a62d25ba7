package transfer

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/util"
)

// Direction of a transfer.
type Direction int

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	if d == Download {
		return "download"
	}
	return "upload"
}

// Label is the capitalized direction name.
func (d Direction) Label() string {
	if d == Download {
		return "Download"
	}
	return "Upload"
}

// Failure is one item that could not be transferred.
type Failure struct {
	Path string // source path of the item
	Op   string // put, get, mkdir, stat, list, read
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Op, f.Path, f.Err)
}

// Report is the outcome of one Upload or Download walk.
type Report struct {
	Direction Direction
	Source    string
	Dest      string

	Files    int
	Dirs     int
	Bytes    int64
	Skipped  []string
	Failures []Failure
}

// Failed reports whether any item failed.
func (r *Report) Failed() bool {
	return r != nil && len(r.Failures) > 0
}

// Err returns an aggregate TRANSFER error when any item failed, else nil.
// The cause joins every individual failure.
func (r *Report) Err() error {
	if !r.Failed() {
		return nil
	}

	causes := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		causes[i] = f
	}

	total := r.Files + r.Dirs + len(r.Failures)
	return errors.WrapWithCode(stderrors.Join(causes...), errors.ErrTransfer,
		fmt.Sprintf("%s of %s finished with %d failed %s out of %d",
			r.Direction.Label(), r.Source,
			len(r.Failures), util.Pluralize(len(r.Failures), "item", "items"), total),
		"Check permissions and free space on the destination, then run the transfer again")
}

// Summary is a one-line description of what was moved.
func (r *Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s, %d %s, %s",
		r.Files, util.Pluralize(r.Files, "file", "files"),
		r.Dirs, util.Pluralize(r.Dirs, "directory", "directories"),
		util.HumanBytes(r.Bytes))
	if n := len(r.Skipped); n > 0 {
		fmt.Fprintf(&sb, ", %d skipped", n)
	}
	if n := len(r.Failures); n > 0 {
		fmt.Fprintf(&sb, ", %d failed", n)
	}
	return sb.String()
}

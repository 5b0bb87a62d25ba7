package transfer

import (
	"io/fs"
	"os"

	"github.com/sshscre/sshscre/pkg/sshutil"
)

// Kind is what a path turned out to be.
type Kind int

const (
	Missing Kind = iota
	File
	Dir
	Other // symlink, device, socket, pipe
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Dir:
		return "directory"
	case Other:
		return "special file"
	default:
		return "missing"
	}
}

// KindOf classifies file information. A nil info is Missing.
func KindOf(fi fs.FileInfo) Kind {
	if fi == nil {
		return Missing
	}
	switch m := fi.Mode(); {
	case m.IsDir():
		return Dir
	case m.IsRegular():
		return File
	default:
		return Other
	}
}

// ClassifyLocal lstats a local path, so symlinks are reported as Other.
func ClassifyLocal(path string) (Kind, fs.FileInfo, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Missing, nil, err
	}
	return KindOf(fi), fi, nil
}

// ClassifyRemote stats a remote path. Remote symlinks are followed.
func ClassifyRemote(ft sshutil.FileTransfer, path string) (Kind, fs.FileInfo, error) {
	fi, err := ft.Stat(path)
	if err != nil {
		return Missing, nil, err
	}
	return KindOf(fi), fi, nil
}

// ExistsLocal reports whether anything is present at the local path.
func ExistsLocal(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

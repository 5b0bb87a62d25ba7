package session

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/sshscre/sshscre/internal/logger"
)

// LineReader reads one line of input after showing a prompt.
// io.EOF means the input is closed.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// NewLineReader returns a line editor with in-session history when in is a
// terminal, else a plain buffered reader.
func NewLineReader(in *os.File, out io.Writer) LineReader {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		return &termReader{
			fd: fd,
			t:  term.NewTerminal(struct {
				io.Reader
				io.Writer
			}{in, out}, ""),
		}
	}
	return NewScanReader(in, out)
}

// termReader edits lines in raw mode. Raw mode is held only while a line
// is being read, so command output prints normally in between.
type termReader struct {
	fd int
	t  *term.Terminal
}

func (r *termReader) ReadLine(prompt string) (string, error) {
	old, err := term.MakeRaw(r.fd)
	if err != nil {
		return "", err
	}
	defer term.Restore(r.fd, old)

	if w, h, err := term.GetSize(r.fd); err == nil {
		_ = r.t.SetSize(w, h)
	}
	r.t.SetPrompt(prompt)
	return r.t.ReadLine()
}

// ScanReader reads newline-terminated lines from any reader.
type ScanReader struct {
	r   *bufio.Reader
	out io.Writer
}

// NewScanReader wraps in; prompts go to out.
func NewScanReader(in io.Reader, out io.Writer) *ScanReader {
	return &ScanReader{r: bufio.NewReader(in), out: out}
}

// ReadLine implements LineReader.
func (s *ScanReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	line, err := s.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadPassword prompts on out and reads a password from the terminal
// without echo.
func ReadPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	pw, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// Console is the session's only path to the screen and keyboard. Every
// rendered line is recorded to the sink as PRINT and every line read as
// INPUT, so a debug log replays the whole session.
type Console struct {
	in   LineReader
	out  io.Writer
	sink logger.Sink
}

// NewConsole wires a console. A nil sink records nothing.
func NewConsole(in LineReader, out io.Writer, sink logger.Sink) *Console {
	if sink == nil {
		sink = logger.Noop()
	}
	return &Console{in: in, out: out, sink: sink}
}

// Out returns the underlying writer.
func (c *Console) Out() io.Writer { return c.out }

// Println writes plain text followed by a newline.
func (c *Console) Println(text string) {
	c.record(text)
	fmt.Fprintln(c.out, text)
}

// Printf formats and writes a line.
func (c *Console) Printf(format string, args ...interface{}) {
	c.Println(fmt.Sprintf(format, args...))
}

// Print writes text rendered with style followed by a newline, styling each
// line on its own. The sink receives the unstyled text.
func (c *Console) Print(style lipgloss.Style, text string) {
	c.record(text)
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintln(c.out, style.Render(line))
	}
}

// Blank writes an empty line.
func (c *Console) Blank() {
	fmt.Fprintln(c.out)
}

// Clear clears the local display.
func (c *Console) Clear() {
	fmt.Fprint(c.out, "\x1b[H\x1b[2J")
}

// ReadLine shows prompt and returns the line typed.
func (c *Console) ReadLine(prompt string) (string, error) {
	line, err := c.in.ReadLine(prompt)
	if err != nil {
		return "", err
	}
	c.sink.Record(logger.TagInput, line)
	return line, nil
}

// Confirm asks a yes/no question. Empty input picks def.
func (c *Console) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	answer, err := c.ReadLine(question + " " + hint + " ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Writer returns a writer that renders each complete line with style and
// records it. Flush writes any trailing partial line.
func (c *Console) Writer(style lipgloss.Style) *LineWriter {
	return &LineWriter{c: c, style: style}
}

func (c *Console) record(text string) {
	for _, line := range strings.Split(text, "\n") {
		c.sink.Record(logger.TagPrint, line)
	}
}

// LineWriter adapts streamed output to console lines.
type LineWriter struct {
	c     *Console
	style lipgloss.Style
	buf   []byte
}

// Write implements io.Writer.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.c.Print(w.style, strings.TrimRight(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush writes a trailing line that had no newline.
func (w *LineWriter) Flush() {
	if len(w.buf) > 0 {
		w.c.Print(w.style, string(w.buf))
		w.buf = nil
	}
}

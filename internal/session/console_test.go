package session

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshscre/sshscre/internal/logger"
	"github.com/sshscre/sshscre/internal/ui"
)

func TestScanReader(t *testing.T) {
	var out bytes.Buffer
	r := NewScanReader(strings.NewReader("first\r\nsecond\nlast"), &out)

	for _, want := range []string{"first", "second", "last"} {
		line, err := r.ReadLine("> ")
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
	_, err := r.ReadLine("> ")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > > > ", out.String())
}

func TestConsole_Confirm(t *testing.T) {
	tests := []struct {
		input string
		def   bool
		want  bool
	}{
		{"", false, false},
		{"", true, true},
		{"y", false, true},
		{"YES", false, true},
		{" n ", true, false},
		{"maybe", true, false},
	}

	for _, tt := range tests {
		reader := &scriptReader{lines: []string{tt.input}}
		c := NewConsole(reader, io.Discard, nil)
		got, err := c.Confirm("Continue?", tt.def)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q def %v", tt.input, tt.def)
	}

	reader := &scriptReader{lines: []string{"", ""}}
	c := NewConsole(reader, io.Discard, nil)
	_, _ = c.Confirm("Q?", false)
	_, _ = c.Confirm("Q?", true)
	assert.Equal(t, []string{"Q? [y/N] ", "Q? [Y/n] "}, reader.prompts)
}

func TestConsole_ConfirmEOF(t *testing.T) {
	c := NewConsole(&scriptReader{}, io.Discard, nil)
	ok, err := c.Confirm("Continue?", true)
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, ok)
}

func TestConsole_RecordsEverything(t *testing.T) {
	var out bytes.Buffer
	sink := logger.NewBufferLogger()
	c := NewConsole(&scriptReader{lines: []string{"ls -la"}}, &out, sink)

	c.Println("plain")
	c.Print(ui.StyleError, "one\ntwo")
	c.Printf("%d items", 3)
	line, err := c.ReadLine("$ ")
	require.NoError(t, err)
	assert.Equal(t, "ls -la", line)

	assert.Equal(t, "plain\none\ntwo\n3 items\n", out.String())
	assert.Equal(t, []string{"plain", "one", "two", "3 items"}, sink.ByLevel(logger.TagPrint))
	assert.Equal(t, []string{"ls -la"}, sink.ByLevel(logger.TagInput))
}

func TestLineWriter(t *testing.T) {
	var out bytes.Buffer
	sink := logger.NewBufferLogger()
	c := NewConsole(&scriptReader{}, &out, sink)

	w := c.Writer(ui.StyleMuted)
	_, _ = w.Write([]byte("one\ntw"))
	_, _ = w.Write([]byte("o\r\n"))
	_, _ = w.Write([]byte("three"))
	assert.Equal(t, "one\ntwo\n", out.String())

	w.Flush()
	w.Flush()
	assert.Equal(t, "one\ntwo\nthree\n", out.String())
	assert.Equal(t, []string{"one", "two", "three"}, sink.ByLevel(logger.TagPrint))
}

func TestHistoryLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.log")
	h := NewHistoryLog(path)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, h.Append("bob@web-1", "ls -la"))
	require.NoError(t, h.Append("bob@web-1", "echo a\nb"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"2026-03-01T12:00:00Z\tbob@web-1\tls -la\n"+
			"2026-03-01T12:00:00Z\tbob@web-1\techo a b\n",
		string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestHistoryLog_Disabled(t *testing.T) {
	var nilLog *HistoryLog
	assert.NoError(t, nilLog.Append("x", "y"))
	assert.Empty(t, nilLog.Path())
	assert.NoError(t, NewHistoryLog("").Append("x", "y"))
}

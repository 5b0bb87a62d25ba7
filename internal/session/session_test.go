package session

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshscre/sshscre/internal/config"
	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/registry"
	"github.com/sshscre/sshscre/pkg/sshutil"
	sshtest "github.com/sshscre/sshscre/pkg/sshutil/testing"
)

type fakeMarker struct {
	ids []string
	err error
}

func (m *fakeMarker) MarkSetupDone(id string) error {
	m.ids = append(m.ids, id)
	return m.err
}

func TestExecute_History(t *testing.T) {
	f := newFixture(t)
	s := f.session()

	f.run(t, s, "cd /tmp", "  ls  ", "file a", "", "local history")

	assert.Equal(t, []string{"cd /tmp", "ls", "file a"}, s.State().History)
	out := f.out.String()
	assert.Contains(t, out, "Usage: file <src> <dst>")
	assert.Contains(t, out, "   1  cd /tmp")
	assert.Contains(t, out, "   2  ls")
	assert.Contains(t, out, "   3  file a")
	assert.NotContains(t, out, "local history\n")

	data, err := os.ReadFile(f.history)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	for i, want := range []string{"cd /tmp", "ls", "file a"} {
		parts := strings.Split(lines[i], "\t")
		require.Len(t, parts, 3)
		assert.Equal(t, "bob@web-1", parts[1])
		assert.Equal(t, want, parts[2])
	}
}

func TestExecute_EmptyHistory(t *testing.T) {
	f := newFixture(t)
	s := f.session()
	f.run(t, s, "local history")
	assert.Contains(t, f.out.String(), "History is empty")
	assert.Empty(t, s.State().History)
}

func TestExecute_ExitEndsSession(t *testing.T) {
	for _, line := range []string{"exit", "quit", " exit "} {
		f := newFixture(t)
		done, err := f.session().Execute(line)
		require.NoError(t, err)
		assert.True(t, done, line)
	}
}

func TestExecute_CdScenario(t *testing.T) {
	f := newFixture(t)
	s := f.session()

	f.run(t, s, "cd /tmp", "cd /does/not/exist", "ls")

	assert.Equal(t, "/tmp", s.State().WorkingDirectory)
	assert.Contains(t, f.out.String(), "bash: cd: /does/not/exist: No such file or directory")
	assert.Equal(t, "cd /tmp 2>/dev/null && ls", f.client.LastExecuted())
}

func TestExecute_PassThroughOutput(t *testing.T) {
	f := newFixture(t)
	sshtest.WithFiles(f.client, map[string]string{"/var/www/index.html": "<h1>hi</h1>\n"})
	s := f.session()

	f.run(t, s, "cd /var/www", "cat index.html", "cat nope.txt")

	out := f.out.String()
	assert.Contains(t, out, "<h1>hi</h1>\n")
	assert.Contains(t, out, "cat: nope.txt: No such file or directory")
}

func TestExecute_TransportFault(t *testing.T) {
	f := newFixture(t)
	s := f.session()
	f.client.SetExecError(stderrors.New("connection reset by peer"))

	done, err := s.Execute("ls")
	require.Error(t, err)
	assert.True(t, done)
	assert.True(t, errors.IsCode(err, errors.ErrExec))

	done, err = s.Execute("cd /tmp")
	require.Error(t, err)
	assert.True(t, done)
	assert.Equal(t, "/home/bob", s.State().WorkingDirectory)
}

func TestExecute_PromptStyle(t *testing.T) {
	f := newFixture(t)
	s := f.session()

	f.run(t, s, "dash")
	assert.Equal(t, PromptDash, s.State().PromptStyle)
	assert.Contains(t, f.out.String(), "Prompt style: #")
	assert.Contains(t, s.prompt(), "bob@web-1/~ #")

	f.run(t, s, "undash")
	assert.Equal(t, PromptStandard, s.State().PromptStyle)
	assert.Contains(t, s.prompt(), "bob@web-1/~ $")
}

func TestExecute_HelpAndClear(t *testing.T) {
	f := newFixture(t)
	s := f.session()

	f.run(t, s, "help")
	assert.Contains(t, f.out.String(), "local history")

	f.out.Reset()
	f.run(t, s, "cls")
	assert.Equal(t, "\x1b[H\x1b[2J", f.out.String())
}

func TestExecute_FileUpload(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join("localdir", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("localdir", "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join("localdir", "sub", "b.txt"), []byte("beta"), 0o644))

	f := newFixture(t)
	s := f.session()
	f.run(t, s, "cd /tmp", "file ./localdir remotedir")

	fs := f.client.GetFS()
	assert.True(t, fs.IsDir("/tmp/remotedir/sub"))
	a, err := fs.ReadFile("/tmp/remotedir/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(a))
	b, err := fs.ReadFile("/tmp/remotedir/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "beta", string(b))

	assert.Contains(t, f.out.String(), "Upload complete: 2 files, 2 directories")
}

func TestExecute_FileDownload(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	f := newFixture(t)
	sshtest.WithFiles(f.client, map[string]string{"/tmp/notes.txt": "remember"})
	s := f.session()
	f.run(t, s, "cd /tmp", "file notes.txt got.txt")

	data, err := os.ReadFile(filepath.Join(dir, "got.txt"))
	require.NoError(t, err)
	assert.Equal(t, "remember", string(data))

	out := f.out.String()
	assert.Contains(t, out, "downloading /tmp/notes.txt from the server")
	assert.Contains(t, out, "Download complete: 1 file")
}

func TestExecute_FileMissingEverywhere(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	f := newFixture(t)
	s := f.session()
	done, err := s.Execute("file ./nope remotedir")
	require.NoError(t, err)
	assert.False(t, done)

	assert.Equal(t, "Remote path not found: /home/bob/nope\n", f.out.String())
	assert.Equal(t, []string{"stat /home/bob/nope"}, f.client.MockTransfer().Calls())
	_, statErr := os.Stat(filepath.Join(dir, "remotedir"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_FilePartialFailure(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll("up", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("up", "ok.txt"), []byte("ok"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join("up", "bad.txt"), []byte("bad"), 0o644))

	f := newFixture(t)
	f.client.MockTransfer().FailOn("put", "/tmp/up/bad.txt", stderrors.New("permission denied"))
	s := f.session()
	f.run(t, s, "cd /tmp", "file up up")

	out := f.out.String()
	assert.Contains(t, out, "permission denied")
	assert.Contains(t, out, "Upload of up finished with 1 failed item")
	assert.NotContains(t, out, "Upload complete")
	assert.True(t, f.client.GetFS().IsFile("/tmp/up/ok.txt"))
}

func TestExecute_LocalLs(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.Mkdir("d", 0o755))
	require.NoError(t, os.Mkdir("empty", 0o755))
	require.NoError(t, os.WriteFile("f.txt", nil, 0o644))

	f := newFixture(t)
	s := f.session()

	f.run(t, s, "local ls")
	out := f.out.String()
	assert.Contains(t, out, "  d/\n")
	assert.Contains(t, out, "  f.txt\n")

	f.out.Reset()
	f.run(t, s, "local ls empty")
	assert.Contains(t, f.out.String(), "(empty)")

	f.out.Reset()
	f.run(t, s, "local ls missing")
	assert.Contains(t, f.out.String(), "local ls: ")
	assert.Empty(t, f.client.Executed(), "local commands never reach the server")
}

func TestExecute_Infovds(t *testing.T) {
	f := newFixture(t)
	f.client.SetCommandResponse(probeIP, sshtest.CommandResponse{Stdout: []byte("10.0.0.5\n")})
	f.client.SetCommandResponse(probeOS, sshtest.CommandResponse{Stdout: []byte("Ubuntu 22.04.4 LTS\n")})
	f.client.SetCommandResponse(probeCPUModel, sshtest.CommandResponse{Stdout: []byte("Intel Xeon\n")})
	f.client.SetCommandResponse(probeCPUCores, sshtest.CommandResponse{Stdout: []byte("4\n")})

	s := f.session()
	f.run(t, s, "infovds")

	out := f.out.String()
	assert.Contains(t, out, "web-1")
	assert.Contains(t, out, "10.0.0.5")
	assert.Contains(t, out, "Ubuntu 22.04.4 LTS")
	assert.Contains(t, out, "Intel Xeon (4 cores)")
	assert.Contains(t, out, NotAvailable)
}

func TestCollectInfo(t *testing.T) {
	client := sshtest.NewMockClient("db")
	client.SetCommandResponse(probeCPUModel, sshtest.CommandResponse{Stdout: []byte("AMD EPYC\n")})
	client.SetCommandResponse(probeMemUsed, sshtest.CommandResponse{Stdout: []byte("1.2G\n")})
	client.SetCommandResponse(probeUptime, sshtest.CommandResponse{Stdout: []byte("up 3 days\n"), ExitCode: 1})
	client.SetCommandResponse(probeDisk, sshtest.CommandResponse{ExitCode: 2})

	info, err := CollectInfo(client)
	require.NoError(t, err)
	assert.Equal(t, "db", info.Hostname)
	assert.Equal(t, "AMD EPYC", info.CPU)
	assert.Equal(t, "1.2G / N/A", info.Memory)
	assert.Equal(t, NotAvailable, info.Uptime, "non-zero exit reads as N/A")
	assert.Equal(t, NotAvailable, info.Disk)
	assert.Equal(t, NotAvailable, info.OS)

	assert.Len(t, info.Fields(), 8)
	require.Len(t, info.Summary(), 4)
	assert.Equal(t, "OS", info.Summary()[0].Label)
}

func TestCollectInfo_TransportFault(t *testing.T) {
	client := sshtest.NewMockClient("db")
	client.SetExecError(stderrors.New("closed"))

	info, err := CollectInfo(client)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	for _, f := range info.Fields() {
		assert.Equal(t, NotAvailable, f.Value, f.Label)
	}
	assert.Len(t, client.Executed(), 1, "the battery stops at the first fault")
}

func TestExecute_InfovdsTransportFault(t *testing.T) {
	f := newFixture(t)
	s := f.session()
	f.client.SetExecError(stderrors.New("connection reset by peer"))

	done, err := s.Execute("infovds")
	require.Error(t, err)
	assert.True(t, done)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	assert.NotContains(t, f.out.String(), "Hostname")
}

func connectDeps(f *fixture, marker SetupMarker, provision map[string][]string) Deps {
	cfg := config.DefaultConfig()
	cfg.ShowInfoOnConnect = false
	cfg.Provision = provision

	deps := f.deps
	deps.Config = cfg
	deps.Registry = marker
	deps.Dial = func(registry.Server) (sshutil.Conn, error) { return f.client, nil }
	return deps
}

func TestConnect_FullSession(t *testing.T) {
	f := newFixture(t, "y", "cd /tmp", "ls", "exit", "y", "work")
	marker := &fakeMarker{}
	deps := connectDeps(f, marker, map[string][]string{"ubuntu": {"sudo apt update -y", "false"}})

	snap, err := Connect(testServer(), "", deps)
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, "work", snap.Name)
	assert.Equal(t, "/tmp", snap.Dir)
	assert.Equal(t, "srv-1", snap.Server.ID)
	assert.True(t, snap.Server.SetupDone)
	assert.Equal(t, []string{"srv-1"}, marker.ids)
	assert.True(t, f.client.Closed())

	out := f.out.String()
	assert.Contains(t, out, "Connected to web → web-1")
	assert.Contains(t, out, "[1/2] sudo apt update -y")
	assert.Contains(t, out, "exited with status 1")
	assert.Contains(t, out, "Setup finished with 1 failed command")
	assert.Contains(t, out, "Disconnected")

	assert.Contains(t, f.reader.prompts, "bob@web-1/~ $ ")
	assert.Contains(t, f.reader.prompts, "bob@web-1/tmp $ ")
	assert.Equal(t, []string{"y", "cd /tmp", "ls", "exit", "y", "work"}, f.sink.ByLevel("INPUT"))
	assert.Contains(t, f.sink.ByLevel("PRINT"), "Disconnected")
}

func TestConnect_DeclinedSetupAndSnapshot(t *testing.T) {
	f := newFixture(t, "n", "exit", "")
	marker := &fakeMarker{}
	deps := connectDeps(f, marker, map[string][]string{"ubuntu": {"sudo apt update -y"}})

	snap, err := Connect(testServer(), "", deps)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Empty(t, marker.ids)
	assert.NotContains(t, f.client.Executed(), "sudo apt update -y")
}

func TestConnect_EmptySnapshotName(t *testing.T) {
	f := newFixture(t, "exit", "y", "   ")
	srv := testServer()
	srv.SetupDone = true

	snap, err := Connect(srv, "", connectDeps(f, nil, nil))
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Contains(t, f.out.String(), "session not saved")
}

func TestConnect_NoSetupCommands(t *testing.T) {
	f := newFixture(t, "exit")
	marker := &fakeMarker{}
	srv := testServer()
	srv.OS = "alpine"

	_, err := Connect(srv, "", connectDeps(f, marker, map[string][]string{"ubuntu": {"x"}}))
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "No setup commands for OS 'alpine'")
	assert.Empty(t, marker.ids)
}

func TestConnect_RestoresStartDir(t *testing.T) {
	f := newFixture(t, "pwd", "exit")
	srv := testServer()
	srv.SetupDone = true

	_, err := Connect(srv, "/var/www", connectDeps(f, nil, nil))
	require.NoError(t, err)
	assert.Contains(t, f.reader.prompts, "bob@web-1/www $ ")
	assert.Contains(t, f.out.String(), "/var/www\n")
}

func TestConnect_RestoresStartDirWithSpaces(t *testing.T) {
	f := newFixture(t, "pwd", "exit")
	sshtest.WithDirs(f.client, []string{"/srv/my app"})
	srv := testServer()
	srv.SetupDone = true

	_, err := Connect(srv, "/srv/my app", connectDeps(f, nil, nil))
	require.NoError(t, err)
	assert.Contains(t, f.reader.prompts, "bob@web-1/my app $ ")
	assert.Contains(t, f.out.String(), "/srv/my app\n")
	assert.NotContains(t, f.out.String(), "Couldn't enter")
}

func TestConnect_MissingStartDir(t *testing.T) {
	f := newFixture(t, "exit")
	srv := testServer()
	srv.SetupDone = true

	_, err := Connect(srv, "/gone", connectDeps(f, nil, nil))
	require.NoError(t, err)

	out := f.out.String()
	assert.Contains(t, out, "Couldn't enter /gone, starting in /home/bob")
	assert.Contains(t, out, "No such file or directory")
	assert.Contains(t, f.reader.prompts, "bob@web-1/~ $ ")
}

func TestConnect_DialError(t *testing.T) {
	f := newFixture(t)
	deps := connectDeps(f, nil, nil)
	deps.Dial = func(registry.Server) (sshutil.Conn, error) {
		return nil, stderrors.New("connection refused")
	}

	snap, err := Connect(testServer(), "", deps)
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, errors.IsCode(err, errors.ErrConnection))
	assert.Contains(t, err.Error(), "Couldn't connect to web (bob@10.0.0.5)")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConnect_ImmediateEOF(t *testing.T) {
	f := newFixture(t)
	srv := testServer()
	srv.SetupDone = true

	snap, err := Connect(srv, "", connectDeps(f, nil, nil))
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.True(t, f.client.Closed())
}

func TestConnect_TransportFaultEndsSession(t *testing.T) {
	f := newFixture(t, "ls", "never read")
	srv := testServer()
	srv.SetupDone = true
	deps := connectDeps(f, nil, nil)
	deps.Dial = func(registry.Server) (sshutil.Conn, error) {
		return &failAfter{MockClient: f.client, ok: 2}, nil
	}

	snap, err := Connect(srv, "", deps)
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	assert.Equal(t, []string{"never read"}, f.reader.lines)
}

// failAfter lets the first ok execs through and then fails every exec.
type failAfter struct {
	*sshtest.MockClient
	ok int
}

func (c *failAfter) Exec(cmd string) ([]byte, []byte, int, error) {
	if c.ok == 0 {
		return nil, nil, -1, stderrors.New("connection reset")
	}
	c.ok--
	return c.MockClient.Exec(cmd)
}

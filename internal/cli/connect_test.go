package cli

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/registry"
	"github.com/sshscre/sshscre/internal/session"
	"github.com/sshscre/sshscre/pkg/sshutil"
	sshtest "github.com/sshscre/sshscre/pkg/sshutil/testing"
)

func TestConnect_SavesSnapshot(t *testing.T) {
	a, out := newTestApp(t, "cd /srv/app\nexit\ny\napp-logs\n")
	srv := addServer(t, a, "web")
	client := newRemote()
	a.dial = dialTo(client)

	require.NoError(t, a.connect(*srv, ""))

	snap, err := a.store.Snapshot("app-logs")
	require.NoError(t, err)
	assert.Equal(t, "/srv/app", snap.Cwd)
	assert.Equal(t, srv.ID, snap.ServerID)
	assert.Equal(t, "10.0.0.5", snap.Host)
	assert.Equal(t, "deploy", snap.User)
	assert.False(t, snap.SavedAt.IsZero())

	assert.Contains(t, out.String(), "Saved session 'app-logs' (web:/srv/app)")
	assert.True(t, client.Closed())
}

func TestConnect_NoSnapshotWhenDeclined(t *testing.T) {
	a, _ := newTestApp(t, "exit\nn\n")
	srv := addServer(t, a, "web")
	a.dial = dialTo(newRemote())

	require.NoError(t, a.connect(*srv, ""))

	snaps, err := a.store.Snapshots()
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestConnect_DialError(t *testing.T) {
	a, _ := newTestApp(t, "")
	srv := addServer(t, a, "web")
	a.dial = func(registry.Server) (sshutil.Conn, error) {
		return nil, stderrors.New("no route to host")
	}

	err := a.connect(*srv, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnection))
}

func TestConnect_LostConnectionIsReported(t *testing.T) {
	a, out := newTestApp(t, "ls\n")
	srv := addServer(t, a, "web")
	client := newRemote()
	a.dial = func(registry.Server) (sshutil.Conn, error) {
		return &dropAfter{MockClient: client, ok: 2}, nil
	}

	require.NoError(t, a.connect(*srv, ""))
	assert.Contains(t, out.String(), "Disconnected")
}

func TestRestore(t *testing.T) {
	a, out := newTestApp(t, "cd /srv/app/releases\nexit\ny\nreleases\n")
	srv := addServer(t, a, "web")
	a.dial = dialTo(newRemote())
	require.NoError(t, a.connect(*srv, ""))

	out.Reset()
	setInput(a, out, "pwd\nexit\nn\n")
	client := newRemote()
	a.dial = dialTo(client)

	require.NoError(t, a.restore("releases"))

	assert.Contains(t, out.String(), "Restoring 'releases' on web in /srv/app/releases")
	assert.Contains(t, out.String(), "/srv/app/releases\n")
	assert.Contains(t, client.Executed(), "cd /srv/app/releases 2>/dev/null && pwd")
}

func TestRestore_ServerGone(t *testing.T) {
	a, _ := newTestApp(t, "")
	require.NoError(t, a.store.SaveSnapshot(registry.Snapshot{
		Name: "orphan", ServerID: "nope", Host: "10.9.9.9", User: "x", Cwd: "/tmp",
	}))

	err := a.restore("orphan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No server matches session 'orphan'")
}

func TestRestore_NothingSaved(t *testing.T) {
	a, _ := newTestApp(t, "")
	err := a.restore("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No sessions saved")
}

func TestSnapshotFor(t *testing.T) {
	req := &session.SnapshotRequest{
		Name:   "deploy",
		Server: registry.Server{ID: "id-1", Host: "h", User: "u"},
		Dir:    "/var/www",
	}
	assert.Equal(t, registry.Snapshot{Name: "deploy", ServerID: "id-1", Host: "h", User: "u", Cwd: "/var/www"}, snapshotFor(req))
}

func TestServerItems(t *testing.T) {
	items := serverItems([]registry.Server{
		{ID: "a", Name: "web", Host: "10.0.0.5", Port: 2222, User: "deploy", OS: "ubuntu"},
		{ID: "b", Name: "db", Host: "db.internal", Port: 22, User: "root", SetupDone: true},
	})

	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Key)
	assert.Equal(t, "web", items[0].Name)
	assert.Equal(t, "deploy@10.0.0.5:2222 · ubuntu · not set up", items[0].Detail)
	assert.Equal(t, "root@db.internal", items[1].Detail)
}

func TestSnapshotItems(t *testing.T) {
	items := snapshotItems([]registry.Snapshot{{
		Name: "logs", Host: "h", User: "u", Cwd: "/var/log",
		SavedAt: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}})
	require.Len(t, items, 1)
	assert.Equal(t, "logs", items[0].Key)
	assert.Equal(t, "u@h:/var/log · 2026-05-04 09:30", items[0].Detail)
}

func TestFirstArg(t *testing.T) {
	assert.Equal(t, "", firstArg(nil))
	assert.Equal(t, "web", firstArg([]string{"web"}))
}

// dropAfter lets the first ok execs through, then reports a transport fault.
type dropAfter struct {
	*sshtest.MockClient
	ok int
}

func (c *dropAfter) Exec(cmd string) ([]byte, []byte, int, error) {
	if c.ok == 0 {
		return nil, nil, -1, stderrors.New("connection reset")
	}
	c.ok--
	return c.MockClient.Exec(cmd)
}

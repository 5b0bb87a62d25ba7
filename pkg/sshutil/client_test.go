package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	stderrors "errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/sshscre/sshscre/internal/errors"
)

func TestResolveSSHSettings(t *testing.T) {
	t.Setenv("USER", "local")
	noConfig := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name     string
		host     string
		wantHost string
		wantUser string
		wantPort string
	}{
		{name: "plain host", host: "203.0.113.5", wantHost: "203.0.113.5", wantUser: "local", wantPort: "22"},
		{name: "user at host", host: "bob@example.com", wantHost: "example.com", wantUser: "bob", wantPort: "22"},
		{name: "host with port", host: "example.com:2222", wantHost: "example.com", wantUser: "local", wantPort: "2222"},
		{name: "full form", host: "bob@example.com:2200", wantHost: "example.com", wantUser: "bob", wantPort: "2200"},
		{name: "ipv6 literal is not split", host: "::1", wantHost: "::1", wantUser: "local", wantPort: "22"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := resolveSSHSettings(tt.host, noConfig)
			assert.Equal(t, tt.wantHost, s.hostname)
			assert.Equal(t, tt.wantUser, s.user)
			assert.Equal(t, tt.wantPort, s.port)
		})
	}
}

func TestResolveSSHSettings_FromConfig(t *testing.T) {
	path := writeSSHConfig(t, `
Host web
    HostName 203.0.113.10
    User deploy
    Port 2222
`)

	s := resolveSSHSettings("web", path)
	assert.Equal(t, "203.0.113.10", s.hostname)
	assert.Equal(t, "deploy", s.user)
	assert.Equal(t, "2222", s.port)
	assert.Equal(t, "203.0.113.10:2222", s.address())
}

func TestDial_EmptyHost(t *testing.T) {
	_, err := Dial(Target{Host: "  "}, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnection))
}

func TestDial_Unreachable(t *testing.T) {
	// Grab a free port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	dir := t.TempDir()
	_, err = Dial(Target{Host: "127.0.0.1", Port: port, User: "bob", Password: "secret"}, Options{
		Timeout:       time.Second,
		KnownHosts:    filepath.Join(dir, "known_hosts"),
		SSHConfigPath: filepath.Join(dir, "config"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnection))
	assert.Contains(t, err.Error(), "Can't reach")
}

func TestBuildSSHConfig_BadExplicitKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "id_bad")
	require.NoError(t, os.WriteFile(keyPath, []byte("not a key"), 0600))

	_, err := buildSSHConfig(&sshSettings{user: "bob"}, Target{KeyPath: keyPath}, Options{KnownHosts: filepath.Join(dir, "kh")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnection))
	assert.Contains(t, err.Error(), "Couldn't load the private key")
}

func TestBuildSSHConfig_Password(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SSH_AUTH_SOCK", "")

	cfg, err := buildSSHConfig(&sshSettings{user: "bob"}, Target{Password: "pw"}, Options{KnownHosts: filepath.Join(dir, "kh")})
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.User)
	assert.Len(t, cfg.Auth, 2, "password and keyboard-interactive")
	assert.NotNil(t, cfg.HostKeyCallback)
}

func newHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

func TestHostKeyCallback_TrustOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssh", "known_hosts")
	key := newHostKey(t)
	addr := &net.TCPAddr{IP: net.ParseIP("203.0.113.7"), Port: 22}

	var recorded []string
	cb, err := createHostKeyCallback(path, false, func(hostname, fp string) {
		recorded = append(recorded, hostname+" "+fp)
	})
	require.NoError(t, err)

	require.NoError(t, cb("203.0.113.7:22", addr, key))
	require.Len(t, recorded, 1)
	assert.Contains(t, recorded[0], "SHA256:")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "203.0.113.7 "), string(data))

	// A fresh callback now knows the host.
	cb, err = createHostKeyCallback(path, true, nil)
	require.NoError(t, err)
	assert.NoError(t, cb("203.0.113.7:22", addr, key))
}

func TestHostKeyCallback_Mismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	addr := &net.TCPAddr{IP: net.ParseIP("203.0.113.8"), Port: 22}

	cb, err := createHostKeyCallback(path, false, nil)
	require.NoError(t, err)
	require.NoError(t, cb("203.0.113.8:22", addr, newHostKey(t)))

	cb, err = createHostKeyCallback(path, false, nil)
	require.NoError(t, err)
	err = cb("203.0.113.8:22", addr, newHostKey(t))

	var mismatch *HostKeyMismatchError
	require.True(t, stderrors.As(err, &mismatch))
	assert.Equal(t, "ssh-ed25519", mismatch.ReceivedType)
	assert.Contains(t, mismatch.Suggestion(), "ssh-keygen -R 203.0.113.8")
}

func TestHostKeyCallback_StrictRejectsUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	addr := &net.TCPAddr{IP: net.ParseIP("203.0.113.9"), Port: 22}

	cb, err := createHostKeyCallback(path, true, nil)
	require.NoError(t, err)

	err = cb("203.0.113.9:22", addr, newHostKey(t))
	var unknown *UnknownHostError
	require.True(t, stderrors.As(err, &unknown))
	assert.Contains(t, unknown.Suggestion(), "ssh-keyscan 203.0.113.9")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data, "strict mode never writes known_hosts")
}

func TestExitStatus(t *testing.T) {
	code, err := exitStatus(nil, "true")
	assert.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = exitStatus(stderrors.New("broken pipe"), "ls")
	assert.Equal(t, -1, code)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
}

func TestExpandPath(t *testing.T) {
	home := homeDir()
	assert.Equal(t, filepath.Join(home, ".ssh", "id_rsa"), expandPath("~/.ssh/id_rsa"))
	assert.Equal(t, "/etc/ssh/key", expandPath("/etc/ssh/key"))
	assert.Equal(t, "~other/key", expandPath("~other/key"))
}

func TestSuggestionForDialError(t *testing.T) {
	tests := []struct {
		err  string
		want string
	}{
		{"dial tcp: connection refused", "Is SSH running"},
		{"dial tcp: lookup nope: no such host", "doesn't resolve"},
		{"dial tcp: no route to host", "Can't route"},
		{"dial tcp: i/o timeout", "timed out"},
		{"something else", "ping"},
	}

	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Contains(t, suggestionForDialError(stderrors.New(tt.err)), tt.want)
		})
	}
}

func TestSuggestionForHandshakeError(t *testing.T) {
	authErr := stderrors.New("ssh: unable to authenticate, attempted methods [none password]")

	assert.Contains(t, suggestionForHandshakeError(authErr, nil, true), "password stored")
	assert.Contains(t, suggestionForHandshakeError(authErr, nil, false), "ssh-add -l")
	assert.Contains(t, suggestionForHandshakeError(authErr, []string{"/k/id"}, false), "ssh-add")
	assert.Contains(t, suggestionForHandshakeError(stderrors.New("ssh: host key mismatch"), nil, false), "Host key")
}

package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestParseSSHConfigFile(t *testing.T) {
	path := writeSSHConfig(t, `
Host web
    HostName 203.0.113.10
    User deploy
    Port 2222
    IdentityFile ~/.ssh/id_web

Host db
    HostName db.example.com
    User postgres

Host *
    ServerAliveInterval 60

Host stage-*
    User stage
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)

	require.Len(t, hosts, 2, "wildcard patterns are skipped")
	assert.Equal(t, "db", hosts[0].Alias)
	assert.Equal(t, "web", hosts[1].Alias)

	web := hosts[1]
	assert.Equal(t, "203.0.113.10", web.Hostname)
	assert.Equal(t, "deploy", web.User)
	assert.Equal(t, "2222", web.Port)
	assert.Equal(t, 2222, web.PortNumber())
	assert.Equal(t, filepath.Join(homeDir(), ".ssh", "id_web"), web.IdentityFile)

	db := hosts[0]
	assert.Equal(t, "db.example.com", db.Address())
	assert.Equal(t, "", db.Port)
	assert.Equal(t, 22, db.PortNumber())
}

func TestParseSSHConfigFile_NotExists(t *testing.T) {
	hosts, err := ParseSSHConfigFile("/nonexistent/config")
	assert.NoError(t, err)
	assert.Nil(t, hosts)
}

func TestParseSSHConfigFile_StopsAtMatch(t *testing.T) {
	path := writeSSHConfig(t, `
Host before-match
    HostName before.example.com

Match host *.example.com
    User matchuser

Host after-match
    HostName after.example.com
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "before-match", hosts[0].Alias)
}

func TestParseSSHConfigFile_MultiplePatternsAndDuplicates(t *testing.T) {
	path := writeSSHConfig(t, `
Host alpha beta
    User shared

Host alpha
    User ignored
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, "alpha", hosts[0].Alias)
	assert.Equal(t, "shared", hosts[0].User, "first match wins")
	assert.Equal(t, "beta", hosts[1].Alias)
	assert.Equal(t, "beta", hosts[1].Address(), "alias is used when HostName is missing")
}

func TestSSHHostEntry_Description(t *testing.T) {
	tests := []struct {
		name  string
		entry SSHHostEntry
		want  string
	}{
		{name: "alias only", entry: SSHHostEntry{Alias: "box"}, want: "box"},
		{name: "hostname same as alias", entry: SSHHostEntry{Alias: "box", Hostname: "box"}, want: "box"},
		{
			name:  "everything",
			entry: SSHHostEntry{Alias: "box", Hostname: "10.0.0.2", User: "root", Port: "2200"},
			want:  "10.0.0.2, user: root, port: 2200",
		},
		{name: "default port hidden", entry: SSHHostEntry{Alias: "box", User: "root", Port: "22"}, want: "user: root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Description())
		})
	}
}

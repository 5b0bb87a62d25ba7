package registry

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sshscre/sshscre/internal/errors"
)

// AuthMethod selects how a server authenticates.
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthKey      AuthMethod = "key"
)

// DefaultPort is used when a server record has no port.
const DefaultPort = 22

// Server is one stored host record.
type Server struct {
	ID        string     `yaml:"id"`
	Name      string     `yaml:"name"`
	Host      string     `yaml:"host"`
	Port      int        `yaml:"port"`
	User      string     `yaml:"user"`
	Auth      AuthMethod `yaml:"auth"`
	KeyPath   string     `yaml:"key_path,omitempty"`
	OS        string     `yaml:"os,omitempty"`
	SetupDone bool       `yaml:"setup_done"`

	// Password is only written here when the OS keyring is unavailable.
	Password string `yaml:"password,omitempty"`
}

// Address returns host:port.
func (s Server) Address() string {
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(port))
}

// Login returns user@host.
func (s Server) Login() string {
	if s.User == "" {
		return s.Host
	}
	return s.User + "@" + s.Host
}

// Label is the human-facing name used in pickers and messages.
func (s Server) Label() string {
	if s.Name == "" || s.Name == s.Host {
		return s.Login()
	}
	return fmt.Sprintf("%s (%s)", s.Name, s.Login())
}

// Validate checks the fields a connection needs.
func (s Server) Validate() error {
	if s.Name == "" {
		return errors.New(errors.ErrConfig,
			"Server name is required",
			"Give the server a short name, like 'web' or 'db-1'")
	}
	if s.Host == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server '%s' has no host", s.Name),
			"Set the host to an IP address, hostname, or ~/.ssh/config alias")
	}
	if s.Port < 0 || s.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server '%s' has an invalid port: %d", s.Name, s.Port),
			"Ports go from 1 to 65535, SSH usually listens on 22")
	}
	switch s.Auth {
	case AuthPassword, AuthKey:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server '%s' has an unknown auth method: '%s'", s.Name, s.Auth),
			"Use 'password' or 'key'")
	}
	return nil
}

// Snapshot is a saved session: a server reference plus the directory the
// user was in when they disconnected.
type Snapshot struct {
	Name     string    `yaml:"name"`
	ServerID string    `yaml:"server_id,omitempty"`
	Host     string    `yaml:"host"`
	User     string    `yaml:"user"`
	Cwd      string    `yaml:"cwd"`
	SavedAt  time.Time `yaml:"saved_at"`
}

type serversFile struct {
	Servers []Server `yaml:"servers"`
}

type sessionsFile struct {
	Sessions []Snapshot `yaml:"sessions"`
}

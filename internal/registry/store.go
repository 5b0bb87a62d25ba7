package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/logger"
)

const (
	ServersFile  = "servers.yaml"
	SessionsFile = "sessions.yaml"
)

// Store reads and writes server records and session snapshots under one
// data directory. Every call re-reads the files, so a Store never caches
// stale records.
type Store struct {
	dir   string
	creds *Credentials
	log   logger.Logger
	now   func() time.Time
}

// Open prepares the data directory and returns a Store over it.
// A nil creds disables keyring storage.
func Open(dir string, creds *Credentials, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Noop()
	}
	if creds == nil {
		creds = NewCredentials(false, log)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't create the data directory %s", dir),
			"Check permissions, or point data_dir somewhere writable")
	}
	return &Store{dir: dir, creds: creds, log: log, now: time.Now}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Servers returns all records in file order.
func (s *Store) Servers() ([]Server, error) {
	var f serversFile
	if err := s.read(ServersFile, &f); err != nil {
		return nil, err
	}
	for i := range f.Servers {
		if f.Servers[i].Port == 0 {
			f.Servers[i].Port = DefaultPort
		}
		if f.Servers[i].Auth == "" {
			f.Servers[i].Auth = AuthPassword
		}
	}
	return f.Servers, nil
}

// Server looks a record up by id, name, user@host, or 1-based list position.
func (s *Store) Server(ref string) (*Server, error) {
	servers, err := s.Servers()
	if err != nil {
		return nil, err
	}
	if i := findServer(servers, ref); i >= 0 {
		return &servers[i], nil
	}
	return nil, notFound("Server", ref, serverNames(servers))
}

// AddServer assigns an id, fills defaults, stores the password and appends
// the record. Names are unique.
func (s *Store) AddServer(srv Server, password string) (*Server, error) {
	if srv.Port == 0 {
		srv.Port = DefaultPort
	}
	if srv.Auth == "" {
		srv.Auth = AuthPassword
	}
	if err := srv.Validate(); err != nil {
		return nil, err
	}

	servers, err := s.Servers()
	if err != nil {
		return nil, err
	}
	for _, existing := range servers {
		if existing.Name == srv.Name {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Server '%s' already exists", srv.Name),
				"Choose a different name, or use 'sshscre server remove' first")
		}
	}

	srv.ID = uuid.NewString()
	srv.Password = ""
	if password != "" {
		if err := s.creds.Set(srv.ID, password); err != nil {
			s.log.Debug("storing password for %s in %s: %v", srv.Name, ServersFile, err)
			srv.Password = password
		}
	}

	servers = append(servers, srv)
	if err := s.write(ServersFile, serversFile{Servers: servers}); err != nil {
		return nil, err
	}
	s.log.Info("added server %s (%s)", srv.Name, srv.ID)
	return &srv, nil
}

// RemoveServer deletes a record and its stored password.
func (s *Store) RemoveServer(ref string) (*Server, error) {
	servers, err := s.Servers()
	if err != nil {
		return nil, err
	}
	i := findServer(servers, ref)
	if i < 0 {
		return nil, notFound("Server", ref, serverNames(servers))
	}

	removed := servers[i]
	servers = append(servers[:i], servers[i+1:]...)
	if err := s.write(ServersFile, serversFile{Servers: servers}); err != nil {
		return nil, err
	}
	if s.creds.Enabled() {
		if err := s.creds.Delete(removed.ID); err != nil {
			s.log.Warn("couldn't remove keyring entry for %s: %v", removed.Name, err)
		}
	}
	return &removed, nil
}

// MarkSetupDone persists setup_done = true for the server id.
func (s *Store) MarkSetupDone(serverID string) error {
	servers, err := s.Servers()
	if err != nil {
		return err
	}
	for i := range servers {
		if servers[i].ID == serverID {
			if servers[i].SetupDone {
				return nil
			}
			servers[i].SetupDone = true
			return s.write(ServersFile, serversFile{Servers: servers})
		}
	}
	return notFound("Server", serverID, serverNames(servers))
}

// Password returns the stored password for a record: the keyring entry
// when present, else the file fallback. "" means none is stored.
func (s *Store) Password(srv Server) (string, error) {
	if s.creds.Enabled() {
		pw, err := s.creds.Get(srv.ID)
		if err != nil {
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Couldn't read the password for '%s' from the keyring", srv.Name),
				"Unlock the keyring, or set keyring: false in the config")
		}
		if pw != "" {
			return pw, nil
		}
	}
	return srv.Password, nil
}

// Snapshots returns saved sessions, newest first.
func (s *Store) Snapshots() ([]Snapshot, error) {
	var f sessionsFile
	if err := s.read(SessionsFile, &f); err != nil {
		return nil, err
	}
	sort.SliceStable(f.Sessions, func(i, j int) bool {
		return f.Sessions[i].SavedAt.After(f.Sessions[j].SavedAt)
	})
	return f.Sessions, nil
}

// Snapshot looks a saved session up by name or 1-based list position.
func (s *Store) Snapshot(ref string) (*Snapshot, error) {
	snaps, err := s.Snapshots()
	if err != nil {
		return nil, err
	}
	if i := findSnapshot(snaps, ref); i >= 0 {
		return &snaps[i], nil
	}
	return nil, notFound("Session", ref, snapshotNames(snaps))
}

// SaveSnapshot stores a session, replacing any with the same name.
func (s *Store) SaveSnapshot(snap Snapshot) error {
	if strings.TrimSpace(snap.Name) == "" {
		return errors.New(errors.ErrConfig,
			"Session name is required",
			"Pick a name you'll recognize in 'sshscre session list'")
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = s.now()
	}

	snaps, err := s.Snapshots()
	if err != nil {
		return err
	}
	replaced := false
	for i := range snaps {
		if snaps[i].Name == snap.Name {
			snaps[i] = snap
			replaced = true
		}
	}
	if !replaced {
		snaps = append(snaps, snap)
	}
	return s.write(SessionsFile, sessionsFile{Sessions: snaps})
}

// RemoveSnapshot deletes a saved session.
func (s *Store) RemoveSnapshot(ref string) (*Snapshot, error) {
	snaps, err := s.Snapshots()
	if err != nil {
		return nil, err
	}
	i := findSnapshot(snaps, ref)
	if i < 0 {
		return nil, notFound("Session", ref, snapshotNames(snaps))
	}
	removed := snaps[i]
	snaps = append(snaps[:i], snaps[i+1:]...)
	return &removed, s.write(SessionsFile, sessionsFile{Sessions: snaps})
}

// ServerForSnapshot finds the record a snapshot was taken on: by server id
// first, then by host and user.
func (s *Store) ServerForSnapshot(snap Snapshot) (*Server, error) {
	servers, err := s.Servers()
	if err != nil {
		return nil, err
	}
	if snap.ServerID != "" {
		for i := range servers {
			if servers[i].ID == snap.ServerID {
				return &servers[i], nil
			}
		}
	}
	for i := range servers {
		if servers[i].Host == snap.Host && servers[i].User == snap.User {
			return &servers[i], nil
		}
	}
	return nil, errors.New(errors.ErrConfig,
		fmt.Sprintf("No server matches session '%s' (%s@%s)", snap.Name, snap.User, snap.Host),
		"The server was removed. Add it again with 'sshscre server add'")
}

func findServer(servers []Server, ref string) int {
	for i, srv := range servers {
		if srv.ID == ref {
			return i
		}
	}
	for i, srv := range servers {
		if srv.Name == ref {
			return i
		}
	}
	for i, srv := range servers {
		if srv.Login() == ref {
			return i
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(servers) {
		return n - 1
	}
	return -1
}

func findSnapshot(snaps []Snapshot, ref string) int {
	for i, snap := range snaps {
		if snap.Name == ref {
			return i
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(snaps) {
		return n - 1
	}
	return -1
}

func serverNames(servers []Server) []string {
	names := make([]string, len(servers))
	for i, srv := range servers {
		names[i] = srv.Name
	}
	return names
}

func snapshotNames(snaps []Snapshot) []string {
	names := make([]string, len(snaps))
	for i, snap := range snaps {
		names[i] = snap.Name
	}
	return names
}

func notFound(kind, ref string, available []string) error {
	suggestion := fmt.Sprintf("No %ss saved yet", strings.ToLower(kind))
	if len(available) > 0 {
		suggestion = "Available: " + strings.Join(available, ", ")
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("%s '%s' not found", kind, ref),
		suggestion)
}

func (s *Store) read(name string, out interface{}) error {
	p := filepath.Join(s.dir, name)
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't read %s", p),
			"Check the file permissions")
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("%s is not valid YAML", p),
			"Fix the file by hand, or move it aside to start fresh")
	}
	return nil
}

// write replaces the file atomically through a temp file and rename.
func (s *Store) write(name string, in interface{}) error {
	p := filepath.Join(s.dir, name)
	data, err := yaml.Marshal(in)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't encode %s", name),
			"This is unexpected - please report this bug!")
	}

	content := "# Managed by sshscre. Edit with care.\n\n" + string(data)

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't write %s", p),
			"Check that you have write permissions")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't write %s", p),
			"Check free disk space")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't write %s", p),
			"Check that you have write permissions")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't write %s", p),
			"Check free disk space")
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't write %s", p),
			"Check that you have write permissions")
	}
	return nil
}

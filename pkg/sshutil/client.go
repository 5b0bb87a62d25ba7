package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/sshscre/sshscre/internal/errors"
)

// DefaultTimeout bounds the dial and handshake when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Target identifies the remote host and the credentials to present.
type Target struct {
	// Host is a hostname, an IP address, or an ~/.ssh/config alias.
	// user@host and host:port forms are accepted as well.
	Host string
	// Port overrides the port from ssh_config. Zero keeps it (or 22).
	Port int
	// User overrides the user from ssh_config. Empty keeps it (or $USER).
	User string
	// Password enables password and keyboard-interactive auth.
	Password string
	// KeyPath is a private key tried before the agent and default keys.
	KeyPath string
	// Passphrase decrypts KeyPath when it is encrypted.
	Passphrase string
}

// Options controls host key verification and timeouts.
type Options struct {
	Timeout time.Duration

	// KnownHosts is the known_hosts file. Empty means ~/.ssh/known_hosts.
	KnownHosts string

	// StrictHostKeyChecking rejects hosts missing from KnownHosts.
	// When false, unknown hosts are appended to KnownHosts on first use.
	// A changed key is rejected either way.
	StrictHostKeyChecking bool

	// OnNewHost is called after an unknown host key has been recorded.
	OnNewHost func(hostname, fingerprint string)

	// SSHConfigPath overrides ~/.ssh/config, mostly for tests.
	SSHConfigPath string
}

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)

	sftpOnce sync.Once
	sftp     *SFTP
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// WarningHandler is a function that handles warning messages.
// If nil, warnings are printed to stderr via log.Printf.
var WarningHandler func(message string)

// emitWarning sends a warning through the configured handler or falls back to log.Printf.
func emitWarning(message string) {
	if WarningHandler != nil {
		WarningHandler(message)
	} else {
		log.Printf("Warning: %s", message)
	}
}

// Dial establishes an authenticated SSH connection to the target.
// Connection settings are resolved from ~/.ssh/config when available and then
// overridden by the explicit fields of the target. Every failure, whether
// network, authentication or host key, is returned as a CONNECTION error.
func Dial(target Target, opts Options) (*Client, error) {
	if strings.TrimSpace(target.Host) == "" {
		return nil, errors.New(errors.ErrConnection,
			"No host to connect to",
			"Give the server a host name or IP address")
	}

	settings := resolveSSHSettings(target.Host, sshConfigPath(opts))
	if target.Port > 0 {
		settings.port = strconv.Itoa(target.Port)
	}
	if target.User != "" {
		settings.user = target.User
	}

	config, err := buildSSHConfig(settings, target, opts)
	if err != nil {
		var scErr *errors.Error
		if stderrors.As(err, &scErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Couldn't set up SSH for '%s'", target.Host),
			"Check your keys are loaded: ssh-add -l")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	config.Timeout = timeout

	address := settings.address()
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Can't reach '%s' at %s", target.Host, address),
			suggestionForDialError(err))
	}

	// The handshake has no timeout of its own.
	_ = conn.SetDeadline(time.Now().Add(timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrConnection,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		var unknownErr *UnknownHostError
		if stderrors.As(err, &unknownErr) {
			return nil, errors.New(errors.ErrConnection,
				unknownErr.Error(),
				unknownErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", target.Host),
			suggestionForHandshakeError(err, settings.encryptedKeys, target.Password != ""))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    target.Host,
		Address: address,
	}, nil
}

// Transfer returns the SFTP channel, opening the subsystem on first use.
func (c *Client) Transfer() (FileTransfer, error) {
	c.sftpOnce.Do(func() {
		c.sftp = NewSFTP(c.Client)
	})
	if err := c.sftp.ensureConnected(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			"Couldn't start the SFTP subsystem",
			"Check that sftp-server is enabled in the remote sshd_config")
	}
	return c.sftp, nil
}

// Close closes the SFTP channel, if open, and the SSH connection.
func (c *Client) Close() error {
	if c.sftp != nil {
		_ = c.sftp.Close()
	}
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original host/alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname      string
	port          string
	user          string
	identityFile  string
	encryptedKeys []string // Keys that exist but are encrypted
}

// address returns the host:port string for dialing.
func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

func sshConfigPath(opts Options) string {
	if opts.SSHConfigPath != "" {
		return opts.SSHConfigPath
	}
	return filepath.Join(homeDir(), ".ssh", "config")
}

// resolveSSHSettings parses the host string and resolves settings from the ssh config file.
func resolveSSHSettings(host, configPath string) *sshSettings {
	settings := &sshSettings{
		port: "22",
		user: currentUser(),
	}

	if atIdx := strings.Index(host, "@"); atIdx != -1 {
		settings.user = host[:atIdx]
		host = host[atIdx+1:]
	}

	if colonIdx := strings.LastIndex(host, ":"); colonIdx != -1 {
		potentialPort := host[colonIdx+1:]
		if _, err := strconv.Atoi(potentialPort); err == nil && !strings.Contains(host[:colonIdx], ":") {
			settings.port = potentialPort
			host = host[:colonIdx]
		}
	}

	settings.hostname = host

	// kevinburke/ssh_config doesn't support Match, so only the content before
	// the first Match block is parsed.
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return settings
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return settings
	}

	hostFound := false

	if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
		settings.hostname = hostname
		hostFound = true
	}

	if port, _ := cfg.Get(host, "Port"); port != "" {
		settings.port = port
		hostFound = true
	}

	if user, _ := cfg.Get(host, "User"); user != "" {
		settings.user = user
		hostFound = true
	}

	if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" {
		settings.identityFile = expandPath(identity)
		hostFound = true
	}

	// Only warn about Match block if host wasn't found - it might be defined after the Match
	if matchLine > 0 && !hostFound && looksLikeAlias(host) {
		matchWarningOnce.Do(func() {
			emitWarning(fmt.Sprintf(
				"Host '%s' not found in SSH config (config has a Match block at line %d that may hide later entries). "+
					"If this host is defined after line %d, move it earlier in ~/.ssh/config.",
				host, matchLine, matchLine))
		})
	}

	return settings
}

// looksLikeAlias reports whether host is neither an IP nor a dotted name.
func looksLikeAlias(host string) bool {
	return net.ParseIP(host) == nil && !strings.Contains(host, ".")
}

// buildSSHConfig creates an SSH client config with authentication methods.
// It also populates settings.encryptedKeys with any keys that exist but are encrypted.
func buildSSHConfig(settings *sshSettings, target Target, opts Options) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	tryKeyFile := func(keyPath, passphrase string) {
		keyAuth, err := keyFileAuth(keyPath, passphrase)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				settings.encryptedKeys = append(settings.encryptedKeys, keyPath)
			}
			return
		}
		authMethods = append(authMethods, keyAuth)
	}

	// An explicitly configured key must load.
	if target.KeyPath != "" {
		keyPath := expandPath(target.KeyPath)
		keyAuth, err := keyFileAuth(keyPath, target.Passphrase)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				return nil, errors.New(errors.ErrConnection,
					encErr.Error(),
					"Store the key passphrase with the server, or add the key to the agent: ssh-add "+keyPath)
			}
			return nil, errors.WrapWithCode(err, errors.ErrConnection,
				fmt.Sprintf("Couldn't load the private key %s", keyPath),
				"Check the key_path of this server")
		}
		authMethods = append(authMethods, keyAuth)
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	if settings.identityFile != "" && settings.identityFile != expandPath(target.KeyPath) {
		tryKeyFile(settings.identityFile, "")
	}

	// Default keys only when no password was given, like plain ssh with
	// PasswordAuthentication as the fallback.
	if target.Password == "" {
		for _, keyPath := range defaultKeyFiles() {
			if keyPath == settings.identityFile || keyPath == expandPath(target.KeyPath) {
				continue
			}
			tryKeyFile(keyPath, "")
		}
	}

	if target.Password != "" {
		authMethods = append(authMethods, PasswordAuth(target.Password), KeyboardInteractiveAuth(target.Password))
	}

	if len(authMethods) == 0 {
		msg := "No SSH auth methods available"
		suggestion := "Store a password for this server, or check your keys are loaded: ssh-add -l"

		if len(settings.encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(settings.encryptedKeys, ", "))
			suggestion = addKeysSuggestion("Add your key(s) to the agent:\n", settings.encryptedKeys)
		}

		return nil, errors.New(errors.ErrConnection, msg, suggestion)
	}

	knownHostsPath := opts.KnownHosts
	if knownHostsPath == "" {
		knownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
	}
	hostKeyCallback, err := createHostKeyCallback(expandPath(knownHostsPath), opts.StrictHostKeyChecking, opts.OnNewHost)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			"Failed to load known_hosts",
			"Check that "+knownHostsPath+" is readable")
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         DefaultTimeout,
	}, nil
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// The agent connection is reused across multiple SSH connections.
// Returns nil if the agent has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent causes auth failures when placed before other methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
// This should be called when the application is shutting down.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase that wasn't given.
func keyFileAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// PasswordAuth returns a password auth method.
func PasswordAuth(password string) ssh.AuthMethod {
	return ssh.Password(password)
}

// KeyboardInteractiveAuth answers every keyboard-interactive question with the password.
func KeyboardInteractiveAuth(password string) ssh.AuthMethod {
	return ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	})
}

// Helper functions

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func defaultKeyFiles() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func addKeysSuggestion(header string, keys []string) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, key := range keys {
		if runtime.GOOS == "darwin" {
			sb.WriteString(fmt.Sprintf("  ssh-add --apple-use-keychain %s\n", key))
		} else {
			sb.WriteString(fmt.Sprintf("  ssh-add %s\n", key))
		}
	}
	sb.WriteString("\nNot sure which key? Check with: ssh -v <host>")
	return sb.String()
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no such host") {
		return "The host name doesn't resolve. Check the spelling or use the IP address."
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string, triedPassword bool) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		if len(encryptedKeys) > 0 {
			return addKeysSuggestion("Your key(s) are encrypted. Add them to the agent:\n", encryptedKeys)
		}
		if triedPassword {
			return "Auth failed. Check the user name and password stored for this server."
		}
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := stripPort(e.Hostname)

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the server was reinstalled, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		wantStr, e.ReceivedType, host, e.KnownHosts)
}

// UnknownHostError is returned under strict checking for a host missing from known_hosts.
type UnknownHostError struct {
	Hostname    string
	Fingerprint string
	KnownHosts  string
}

func (e *UnknownHostError) Error() string {
	return fmt.Sprintf("host %s is not in known_hosts (key %s)", e.Hostname, e.Fingerprint)
}

// Suggestion returns how to trust the host.
func (e *UnknownHostError) Suggestion() string {
	return fmt.Sprintf(
		"Verify the fingerprint, then add the host:\n"+
			"    ssh-keyscan %s >> %s\n"+
			"  or set strict_host_key_checking: false to trust new hosts on first use.",
		stripPort(e.Hostname), e.KnownHosts)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Returns the original content if no Match directive is found.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// createHostKeyCallback verifies host keys against known_hosts. Unknown hosts
// are recorded (trust on first use) unless strict is set. A mismatching key
// always fails.
func createHostKeyCallback(knownHostsPath string, strict bool, onNew func(hostname, fingerprint string)) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !stderrors.As(err, &keyErr) {
			return err
		}
		if len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
				Want:         keyErr.Want,
			}
		}

		fingerprint := ssh.FingerprintSHA256(key)
		if strict {
			return &UnknownHostError{Hostname: hostname, Fingerprint: fingerprint, KnownHosts: knownHostsPath}
		}
		if err := appendKnownHost(knownHostsPath, hostname, key); err != nil {
			return err
		}
		if onNew != nil {
			onNew(hostname, fingerprint)
		}
		return nil
	}, nil
}

// appendKnownHost records a host key in known_hosts format.
func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(knownhosts.Line([]string{hostname}, key) + "\n"); err != nil {
		return fmt.Errorf("failed to write known_hosts: %w", err)
	}
	return nil
}

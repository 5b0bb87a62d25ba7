package registry

import (
	stderrors "errors"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/sshscre/sshscre/internal/logger"
)

// KeyringService is the service name used for keyring entries.
const KeyringService = "sshscre"

const probeKey = "__sshscre_probe__"

// Credentials keeps server passwords in the OS keyring (macOS Keychain,
// Linux Secret Service, Windows Credential Manager), keyed by server id.
// A disabled store refuses every operation and callers fall back to the
// password field of the server record.
type Credentials struct {
	mu      sync.RWMutex
	enabled bool
	log     logger.Logger
}

// NewCredentials probes the keyring and returns a store. When useKeyring is
// false or the probe fails the store is disabled.
func NewCredentials(useKeyring bool, log logger.Logger) *Credentials {
	if log == nil {
		log = logger.Noop()
	}
	c := &Credentials{log: log}
	if !useKeyring {
		return c
	}

	if err := keyring.Set(KeyringService, probeKey, "probe"); err != nil {
		log.Debug("keyring not available, passwords go to servers.yaml: %v", err)
		return c
	}
	_ = keyring.Delete(KeyringService, probeKey)

	c.enabled = true
	log.Debug("keyring storage enabled")
	return c
}

// Enabled reports whether the keyring is in use.
func (c *Credentials) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// ErrKeyringDisabled is returned by every operation on a disabled store.
var ErrKeyringDisabled = stderrors.New("keyring not available")

// Set stores the password for a server id.
func (c *Credentials) Set(serverID, password string) error {
	if !c.Enabled() {
		return ErrKeyringDisabled
	}
	return keyring.Set(KeyringService, serverID, password)
}

// Get returns the password for a server id, or "" when none is stored.
func (c *Credentials) Get(serverID string) (string, error) {
	if !c.Enabled() {
		return "", ErrKeyringDisabled
	}
	pw, err := keyring.Get(KeyringService, serverID)
	if stderrors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return pw, err
}

// Delete removes the password for a server id. Missing entries are not an error.
func (c *Credentials) Delete(serverID string) error {
	if !c.Enabled() {
		return ErrKeyringDisabled
	}
	err := keyring.Delete(KeyringService, serverID)
	if stderrors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

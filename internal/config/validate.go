package config

import (
	"fmt"
	"strings"

	"github.com/sshscre/sshscre/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but sshscre only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade sshscre to a newer release.")
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New(errors.ErrConfig,
			"data_dir can't be empty",
			"Set data_dir to a writable directory, e.g. ~/.config/sshscre")
	}

	if cfg.ConnectTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("connect_timeout must be positive, got %s", cfg.ConnectTimeout),
			"Use a duration like '10s' or '1m'.")
	}

	if cfg.StrictHostKeyChecking && strings.TrimSpace(cfg.KnownHosts) == "" {
		return errors.New(errors.ErrConfig,
			"strict_host_key_checking needs a known_hosts file",
			"Set known_hosts, e.g. ~/.ssh/known_hosts")
	}

	for name, cmds := range cfg.Provision {
		for i, c := range cmds {
			if strings.TrimSpace(c) == "" {
				return errors.New(errors.ErrConfig,
					fmt.Sprintf("provision.%s[%d] is empty", name, i),
					"Remove the empty entry or give it a command.")
			}
		}
	}

	return nil
}

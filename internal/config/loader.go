package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sshscre/sshscre/internal/errors"
)

const (
	// GlobalConfigDir is the directory for the config file, relative to home.
	GlobalConfigDir = ".config/sshscre"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g. SSHSCRE_DATA_DIR.
	EnvPrefix = "SSHSCRE"
	// DotEnvFile is loaded from the working directory before the config is read.
	DotEnvFile = ".env"
)

// Load reads config from the specified path. An empty path yields the
// defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found",
					"Create "+filepath.Join("~", GlobalConfigDir, GlobalConfigFile)+" or specify one with --config")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. ~/.config/sshscre/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
	if _, err := os.Stat(global); err == nil {
		return global, nil
	}
	return "", nil
}

// LoadOrDefault loads .env from the working directory, then the config
// found by Find, falling back to defaults when no file exists.
func LoadOrDefault(explicit string) (*Config, error) {
	if err := LoadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read "+f,
				"Check the file uses KEY=VALUE lines")
		}
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv applies to Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("connect_timeout", d.ConnectTimeout.String())
	v.SetDefault("strict_host_key_checking", d.StrictHostKeyChecking)
	v.SetDefault("known_hosts", d.KnownHosts)
	v.SetDefault("history_file", "")
	v.SetDefault("debug_log", "")
	v.SetDefault("keyring", d.Keyring)
	v.SetDefault("show_info_on_connect", d.ShowInfoOnConnect)
	for name, cmds := range d.Provision {
		v.SetDefault("provision."+name, cmds)
	}
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Provision = nil

	if err := v.Unmarshal(cfg); err != nil {
		where := "your environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+where)
	}

	resolvePaths(cfg)
	return cfg, nil
}

// resolvePaths expands variables in every local path and fills the log
// paths that default to files inside DataDir.
func resolvePaths(cfg *Config) {
	cfg.DataDir = ExpandLocal(cfg.DataDir)
	cfg.KnownHosts = ExpandLocal(cfg.KnownHosts)
	cfg.HistoryFile = ExpandLocal(cfg.HistoryFile)
	cfg.DebugLog = ExpandLocal(cfg.DebugLog)

	if cfg.HistoryFile == "" {
		cfg.HistoryFile = filepath.Join(cfg.DataDir, "history.log")
	}
	if cfg.DebugLog == "" {
		cfg.DebugLog = filepath.Join(cfg.DataDir, "debug.log")
	}
}

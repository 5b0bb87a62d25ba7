package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete ~/.config/sshscre/config.yaml file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// DataDir holds servers.yaml, sessions.yaml and the default logs.
	// Supports ${HOME} and ${USER} expansion and a leading ~.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConnectTimeout bounds the TCP dial and SSH handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// StrictHostKeyChecking rejects hosts missing from known_hosts when true.
	// When false, unknown hosts are trusted on first use and recorded.
	// A changed host key is always rejected.
	StrictHostKeyChecking bool `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`

	// KnownHosts is the known_hosts file used for host key verification.
	KnownHosts string `yaml:"known_hosts" mapstructure:"known_hosts"`

	// HistoryFile receives one timestamped line per accepted session command.
	// Empty means <data_dir>/history.log.
	HistoryFile string `yaml:"history_file" mapstructure:"history_file"`

	// DebugLog is where --debug records every printed and typed line.
	// Empty means <data_dir>/debug.log.
	DebugLog string `yaml:"debug_log" mapstructure:"debug_log"`

	// Keyring stores passwords in the OS keyring instead of servers.yaml.
	Keyring bool `yaml:"keyring" mapstructure:"keyring"`

	// ShowInfoOnConnect prints a short system summary after connecting.
	ShowInfoOnConnect bool `yaml:"show_info_on_connect" mapstructure:"show_info_on_connect"`

	// Provision maps an OS hint to the commands run on a server's first connection.
	Provision map[string][]string `yaml:"provision" mapstructure:"provision"`
}

// DefaultProvision returns the first-run command lists for the supported OS hints.
func DefaultProvision() map[string][]string {
	apt := []string{
		"sudo apt update -y",
		"sudo apt install -y ufw nginx software-properties-common",
		"sudo ufw allow 22 && sudo ufw allow 9339 && sudo ufw --force enable",
		"sudo systemctl enable nginx && sudo systemctl start nginx",
	}
	return map[string][]string{
		"ubuntu": append(append([]string{}, apt...),
			"sudo add-apt-repository ppa:catrobat/ppa -y 2>/dev/null || true",
			"sudo apt update && sudo apt install -y catrobat || true",
		),
		"debian": append([]string{}, apt...),
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:               CurrentConfigVersion,
		DataDir:               "~/" + GlobalConfigDir,
		ConnectTimeout:        10 * time.Second,
		StrictHostKeyChecking: false,
		KnownHosts:            "~/.ssh/known_hosts",
		Keyring:               true,
		ShowInfoOnConnect:     true,
		Provision:             DefaultProvision(),
	}
}

// ProvisionFor returns the provisioning commands for an OS hint, or nil.
func (c *Config) ProvisionFor(os string) []string {
	if c == nil || c.Provision == nil {
		return nil
	}
	return c.Provision[os]
}

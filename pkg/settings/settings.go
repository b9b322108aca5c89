// Package settings manages persistent user settings for the unet CLI.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DefaultConfigDir is the default directory holding node inventory and
// topology files when no override is configured.
const DefaultConfigDir = "/etc/unet"

// DefaultPolicyDir is the default directory policy rules are synced into.
const DefaultPolicyDir = "/etc/unet/policies"

// Settings holds persistent user preferences
type Settings struct {
	// DefaultNetwork names a logical network/environment. It is stored and
	// shown by `unet settings`; no command reads it.
	DefaultNetwork string `json:"default_network,omitempty"`

	// DefaultNode is the node to target when -n is not specified.
	DefaultNode string `json:"default_node,omitempty"`

	// LastNode records the most recently targeted node, for shell history.
	LastNode string `json:"last_node,omitempty"`

	// ConfigDir overrides the default node inventory/topology directory.
	ConfigDir string `json:"config_dir,omitempty"`

	// PolicyDir overrides the default policy rule source directory.
	PolicyDir string `json:"policy_dir,omitempty"`

	// ExecuteByDefault makes config-apply commands execute without -x.
	// Dangerous: only meant for scripted/CI invocations.
	ExecuteByDefault bool `json:"execute_by_default,omitempty"`

	// AuditLogPath overrides the default audit log path
	AuditLogPath string `json:"audit_log_path,omitempty"`

	// AuditMaxSizeMB is the max audit log size in MB before rotation (default: 10)
	AuditMaxSizeMB int `json:"audit_max_size_mb,omitempty"`

	// AuditMaxBackups is the max number of rotated audit log files (default: 10)
	AuditMaxBackups int `json:"audit_max_backups,omitempty"`
}

const (
	// DefaultAuditMaxSizeMB is the default maximum audit log size in megabytes.
	DefaultAuditMaxSizeMB = 10

	// DefaultAuditMaxBackups is the default maximum number of rotated audit log files.
	DefaultAuditMaxBackups = 10
)

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "unet_settings.json"
	}
	return filepath.Join(home, ".unet", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SetNetwork sets the default network/environment name.
func (s *Settings) SetNetwork(network string) {
	s.DefaultNetwork = network
}

// SetNode sets the default node name.
func (s *Settings) SetNode(node string) {
	s.DefaultNode = node
}

// SetConfigDir sets the config directory override.
func (s *Settings) SetConfigDir(dir string) {
	s.ConfigDir = dir
}

// GetConfigDir returns the config directory (with fallback)
func (s *Settings) GetConfigDir() string {
	if s.ConfigDir != "" {
		return s.ConfigDir
	}
	return DefaultConfigDir
}

// GetPolicyDir returns the policy source directory (with fallback)
func (s *Settings) GetPolicyDir() string {
	if s.PolicyDir != "" {
		return s.PolicyDir
	}
	return DefaultPolicyDir
}

// GetAuditLogPath returns the audit log path with a fallback default.
// The default depends on configDir: if non-empty, uses configDir/audit.log;
// otherwise uses /var/log/unet/audit.log.
func (s *Settings) GetAuditLogPath(configDir string) string {
	if s.AuditLogPath != "" {
		return s.AuditLogPath
	}
	if configDir != "" {
		return configDir + "/audit.log"
	}
	return "/var/log/unet/audit.log"
}

// GetAuditMaxSizeMB returns the audit max size in MB with a default of 10.
func (s *Settings) GetAuditMaxSizeMB() int {
	if s.AuditMaxSizeMB > 0 {
		return s.AuditMaxSizeMB
	}
	return DefaultAuditMaxSizeMB
}

// GetAuditMaxBackups returns the audit max backups with a default of 10.
func (s *Settings) GetAuditMaxBackups() int {
	if s.AuditMaxBackups > 0 {
		return s.AuditMaxBackups
	}
	return DefaultAuditMaxBackups
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}

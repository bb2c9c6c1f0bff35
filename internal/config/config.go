// Package config holds the operator's fleet settings and the declarative
// fleet policy.
//
// Settings live in config.json under os.UserConfigDir()/fleet, or under
// $FLEET_CONFIG when set. The policy is a YAML file in the same directory;
// see policy.go.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EnvDir names the environment variable that relocates the config directory.
const EnvDir = "FLEET_CONFIG"

const settingsFile = "config.json"

var pathOverride string

// SetPath pins the settings file to p. Tests use it.
func SetPath(p string) { pathOverride = p }

// ResetPath undoes SetPath.
func ResetPath() { pathOverride = "" }

// Config holds the operator's settings. Empty fields mean "use the default";
// see Keys for each default.
type Config struct {
	DefaultProvider string `json:"default_provider,omitempty"`
	SSHUser         string `json:"ssh_user,omitempty"`
	SSHKey          string `json:"ssh_key,omitempty"`
	PolicyFile      string `json:"policy_file,omitempty"`
	MetricsFile     string `json:"metrics_file,omitempty"`
}

// Path returns the settings file location.
func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	if dir := os.Getenv(EnvDir); dir != "" {
		return filepath.Join(dir, settingsFile), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: no config directory: %w", err)
	}
	return filepath.Join(base, "fleet", settingsFile), nil
}

// Dir returns the directory holding the settings and, by default, the policy.
func Dir() (string, error) {
	p, err := Path()
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}

// Load reads the settings. A missing file is an empty Config; unknown
// fields are an error so a typo in a hand-edited file is not ignored.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the settings atomically with owner-only permissions.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SSHKeyPath resolves the private key used for fleet hosts, expanding a
// leading "~/".
func (c *Config) SSHKeyPath() (string, error) {
	key := c.SSHKey
	if key == "" {
		key = defaultSSHKey
	}
	if rest, ok := strings.CutPrefix(key, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("ssh key: %w", err)
		}
		return filepath.Join(home, rest), nil
	}
	return key, nil
}

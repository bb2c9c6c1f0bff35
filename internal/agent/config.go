// Package agent installs the fleet agent on new hosts and implements the
// bootstrap the agent runs locally to join its environment.
package agent

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is pushed to every host and read back by `fleet agent bootstrap`.
type Config struct {
	ServerID      int64  `json:"server_id"`
	ServerName    string `json:"server_name"`
	Environment   string `json:"environment"`
	PrivateDomain string `json:"private_domain"`
	Authority     string `json:"authority"`

	ResolvConf   string `json:"resolv_conf"`
	PuppetConf   string `json:"puppet_conf"`
	ServerIDPath string `json:"server_id_path"`
}

// Marshal encodes the config as indented JSON.
func (c Config) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// LoadConfig reads an agent config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to read config: %w", err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("agent: failed to parse config: %w", err)
	}
	if c.ServerID == 0 || c.Environment == "" {
		return nil, fmt.Errorf("agent: config %s is missing server_id or environment", path)
	}
	return &c, nil
}

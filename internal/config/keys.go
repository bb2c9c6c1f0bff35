package config

import (
	"fmt"
	"strings"
)

const defaultSSHKey = "~/.ssh/id_rsa"

// KeySpec describes one settings key exposed through `fleet config`.
type KeySpec struct {
	Name        string
	Description string

	// Default is shown when the key is unset. It is informational; the
	// code consuming the field applies the real default.
	Default string

	// CaseSensitive keys hold paths or user names and are stored verbatim.
	CaseSensitive bool

	field func(*Config) *string
}

// Get returns the key's value in cfg.
func (k KeySpec) Get(cfg *Config) string { return *k.field(cfg) }

// Set stores value in cfg. The caller saves.
func (k KeySpec) Set(cfg *Config, value string) { *k.field(cfg) = value }

// Normalize trims value and, unless the key is case sensitive, lowercases it.
func (k KeySpec) Normalize(value string) string {
	value = strings.TrimSpace(value)
	if !k.CaseSensitive {
		value = strings.ToLower(value)
	}
	return value
}

// Keys lists every settings key in display order.
var Keys = []KeySpec{
	{
		Name:        "default-provider",
		Description: "Provider used when --provider is omitted",
		field:       func(c *Config) *string { return &c.DefaultProvider },
	},
	{
		Name:          "ssh-user",
		Description:   "Remote user on fleet hosts",
		Default:       "root",
		CaseSensitive: true,
		field:         func(c *Config) *string { return &c.SSHUser },
	},
	{
		Name:          "ssh-key",
		Description:   "Private key for fleet hosts",
		Default:       defaultSSHKey,
		CaseSensitive: true,
		field:         func(c *Config) *string { return &c.SSHKey },
	},
	{
		Name:          "policy-file",
		Description:   "Fleet policy YAML",
		Default:       policyFile + " next to " + settingsFile,
		CaseSensitive: true,
		field:         func(c *Config) *string { return &c.PolicyFile },
	},
	{
		Name:          "metrics-file",
		Description:   "Prometheus textfile written after each run",
		Default:       "disabled",
		CaseSensitive: true,
		field:         func(c *Config) *string { return &c.MetricsFile },
	},
}

// Lookup finds a key by name, ignoring case and surrounding space.
func Lookup(name string) *KeySpec {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == name {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns every key name in display order.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp renders the key table for command help text.
func KeysHelp() string {
	width := 0
	for _, k := range Keys {
		width = max(width, len(k.Name))
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s", width, k.Name, k.Description)
		if k.Default != "" {
			fmt.Fprintf(&b, " (default: %s)", k.Default)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

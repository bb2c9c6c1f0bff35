package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"nathanbeddoewebdev/fleet/internal/firewall"
)

const policyFile = "policy.yaml"

// Policy is the declarative fleet policy: firewall rules, deployment
// roles, the maintenance toggle and the bootstrap settings pushed to new
// hosts.
type Policy struct {
	Firewall   firewall.Policy  `yaml:"firewall"`
	Deploy     DeployPolicy     `yaml:"deploy"`
	Site       SitePolicy       `yaml:"site"`
	ConfigMgmt ConfigMgmtPolicy `yaml:"configMgmt"`
	Agent      AgentPolicy      `yaml:"agent"`
	Compute    ComputePolicy    `yaml:"compute"`
}

// DeployPolicy drives the deployment pipeline.
type DeployPolicy struct {
	// Source is the local git checkout that gets synced to hosts.
	Source     string   `yaml:"source"`
	Remote     string   `yaml:"remote"`
	RemotePath string   `yaml:"remotePath"`
	Excludes   []string `yaml:"excludes,omitempty"`

	AppServices    []string `yaml:"appServices"`
	WorkerServices []string `yaml:"workerServices"`
	// OtherServices are restarted on other-role hosts. Empty means every
	// service attached to the host.
	OtherServices []string `yaml:"otherServices,omitempty"`

	Concurrency int           `yaml:"concurrency"`
	StopWait    time.Duration `yaml:"stopWait"`
}

// SitePolicy describes the proxy virtual hosts swapped by site up/down.
type SitePolicy struct {
	ProxyService string   `yaml:"proxyService"`
	AvailableDir string   `yaml:"availableDir"`
	EnabledDir   string   `yaml:"enabledDir"`
	Live         []string `yaml:"live"`
	Maintenance  string   `yaml:"maintenance"`
}

// ConfigMgmtPolicy locates the configuration-management authority.
type ConfigMgmtPolicy struct {
	// Authority is the authority's host name as written into puppet.conf.
	Authority string `yaml:"authority"`
	// AuthorityAddress is where fleet connects to run sign and clean
	// commands. Defaults to Authority.
	AuthorityAddress string `yaml:"authorityAddress,omitempty"`
}

// AgentPolicy controls how the management agent is installed and where
// the bootstrap step rewrites files.
type AgentPolicy struct {
	Install      string `yaml:"install"`
	ConfigPath   string `yaml:"configPath"`
	ResolvConf   string `yaml:"resolvConf"`
	PuppetConf   string `yaml:"puppetConf"`
	ServerIDPath string `yaml:"serverIdPath"`
}

// ComputePolicy holds defaults for new instances.
type ComputePolicy struct {
	SSHKeys  []string      `yaml:"sshKeys,omitempty"`
	Networks []string      `yaml:"networks,omitempty"`
	BootWait time.Duration `yaml:"bootWait"`
	DataDir  string        `yaml:"dataDir"`
}

// Default policy values.
const (
	DefaultDeployConcurrency = 5
	DefaultStopWait          = 60 * time.Second
	DefaultBootWait          = 5 * time.Minute
	DefaultAgentInstall      = "curl -fsSL https://get.fleet.sh/agent | sh"
	DefaultAgentConfigPath   = "/etc/fleet/agent.json"
)

// WithDefaults returns a copy of p with unset values filled in.
func (p Policy) WithDefaults() Policy {
	p.Firewall = p.Firewall.WithDefaults()

	if p.Deploy.Remote == "" {
		p.Deploy.Remote = "origin"
	}
	if p.Deploy.RemotePath == "" {
		p.Deploy.RemotePath = "/srv/app"
	}
	if p.Deploy.Concurrency <= 0 {
		p.Deploy.Concurrency = DefaultDeployConcurrency
	}
	if p.Deploy.StopWait <= 0 {
		p.Deploy.StopWait = DefaultStopWait
	}

	if p.Site.ProxyService == "" {
		p.Site.ProxyService = "nginx"
	}
	if p.Site.AvailableDir == "" {
		p.Site.AvailableDir = "/etc/nginx/sites-available"
	}
	if p.Site.EnabledDir == "" {
		p.Site.EnabledDir = "/etc/nginx/sites-enabled"
	}
	if len(p.Site.Live) == 0 {
		p.Site.Live = []string{"site-http", "site-https"}
	}
	if p.Site.Maintenance == "" {
		p.Site.Maintenance = "site-down"
	}

	if p.ConfigMgmt.AuthorityAddress == "" {
		p.ConfigMgmt.AuthorityAddress = p.ConfigMgmt.Authority
	}

	if p.Agent.Install == "" {
		p.Agent.Install = DefaultAgentInstall
	}
	if p.Agent.ConfigPath == "" {
		p.Agent.ConfigPath = DefaultAgentConfigPath
	}
	if p.Agent.ResolvConf == "" {
		p.Agent.ResolvConf = "/etc/resolv.conf"
	}
	if p.Agent.PuppetConf == "" {
		p.Agent.PuppetConf = "/etc/puppet/puppet.conf"
	}
	if p.Agent.ServerIDPath == "" {
		p.Agent.ServerIDPath = "/etc/fleet/server.id"
	}

	if p.Compute.BootWait <= 0 {
		p.Compute.BootWait = DefaultBootWait
	}
	if p.Compute.DataDir == "" {
		p.Compute.DataDir = "/usr/local/data"
	}
	return p
}

// Validate reports policy errors that would only surface mid-run.
func (p Policy) Validate() error {
	if err := p.Firewall.Validate(); err != nil {
		return err
	}
	if len(p.Site.Live) != 2 {
		return fmt.Errorf("policy: site.live must name exactly two virtual hosts, got %d", len(p.Site.Live))
	}
	return nil
}

// PolicyPath returns the policy file location: the policy-file key when
// set, else policy.yaml next to config.json.
func PolicyPath(cfg *Config) (string, error) {
	if cfg != nil && cfg.PolicyFile != "" {
		return cfg.PolicyFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, policyFile), nil
}

// LoadPolicy reads the YAML policy at path and applies defaults. A missing
// file yields the default policy.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		p := Policy{}.WithDefaults()
		return &p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes a YAML policy document. Unknown fields are rejected
// so typos in rule definitions do not silently drop rules.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Package firewall compiles the fleet policy into per-host iptables
// rulesets and applies them atomically with iptables-restore.
package firewall

import (
	"fmt"
	"net/netip"
	"strings"
)

// RuleKind selects how a declarative rule decides which hosts it covers.
type RuleKind string

const (
	// KindMulti allows each listed source to the rule destination.
	KindMulti RuleKind = "multi"
	// KindServiceBased opens ports on hosts running any listed service.
	KindServiceBased RuleKind = "service-based"
	// KindServerBased opens ports on one named server in one environment.
	KindServerBased RuleKind = "server-based"
)

const (
	DefaultPublicInterface = "eth0"
	DefaultFleetInterface  = "eth1"
	DefaultSnapshotPath    = "/etc/firewall.conf"
	DefaultRulesPath       = "/etc/fleet/firewall.rules"
	DefaultProtocol        = "tcp"
)

// Rule is one declarative allow rule.
type Rule struct {
	Kind        RuleKind `yaml:"kind"`
	Sources     []string `yaml:"sources,omitempty"`
	Destination string   `yaml:"destination,omitempty"`
	Interface   string   `yaml:"interface,omitempty"`
	Protocol    string   `yaml:"protocol,omitempty"`
	Ports       []int    `yaml:"ports,omitempty"`
	Services    []string `yaml:"services,omitempty"`
	Server      string   `yaml:"server,omitempty"`
	Environment string   `yaml:"environment,omitempty"`
}

// Policy is the firewall section of the fleet policy file.
type Policy struct {
	PublicInterface string `yaml:"publicInterface,omitempty"`
	FleetInterface  string `yaml:"fleetInterface,omitempty"`

	// PrivateOnly limits the inter-host pass to private addresses. Nil
	// means true.
	PrivateOnly *bool `yaml:"privateOnly,omitempty"`

	SnapshotPath string `yaml:"snapshotPath,omitempty"`
	RulesPath    string `yaml:"rulesPath,omitempty"`
	Rules        []Rule `yaml:"rules,omitempty"`
}

// WithDefaults returns a copy of p with empty fields filled in.
func (p Policy) WithDefaults() Policy {
	if p.PublicInterface == "" {
		p.PublicInterface = DefaultPublicInterface
	}
	if p.FleetInterface == "" {
		p.FleetInterface = DefaultFleetInterface
	}
	if p.PrivateOnly == nil {
		t := true
		p.PrivateOnly = &t
	}
	if p.SnapshotPath == "" {
		p.SnapshotPath = DefaultSnapshotPath
	}
	if p.RulesPath == "" {
		p.RulesPath = DefaultRulesPath
	}
	rules := make([]Rule, len(p.Rules))
	for i, r := range p.Rules {
		if r.Protocol == "" {
			r.Protocol = DefaultProtocol
		}
		rules[i] = r
	}
	p.Rules = rules
	return p
}

// IsPrivateOnly reports whether the inter-host pass skips public addresses.
func (p Policy) IsPrivateOnly() bool {
	return p.PrivateOnly == nil || *p.PrivateOnly
}

// Validate checks every rule for the fields its kind requires.
func (p Policy) Validate() error {
	for i, r := range p.Rules {
		if err := r.validate(); err != nil {
			return fmt.Errorf("firewall: rule %d (%s): %w", i+1, r.Kind, err)
		}
	}
	return nil
}

func (r Rule) validate() error {
	for _, src := range r.Sources {
		if !isAddress(src) {
			return fmt.Errorf("invalid source %q", src)
		}
	}
	if r.Destination != "" && !isAddress(r.Destination) {
		return fmt.Errorf("invalid destination %q", r.Destination)
	}
	for _, port := range r.Ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port %d out of range", port)
		}
	}
	switch r.Protocol {
	case "", "tcp", "udp":
	default:
		return fmt.Errorf("unsupported protocol %q", r.Protocol)
	}

	switch r.Kind {
	case KindMulti:
		if len(r.Sources) == 0 {
			return fmt.Errorf("multi rule needs at least one source")
		}
	case KindServiceBased:
		if len(r.Services) == 0 || len(r.Ports) == 0 {
			return fmt.Errorf("service-based rule needs services and ports")
		}
	case KindServerBased:
		if r.Server == "" || r.Environment == "" || len(r.Ports) == 0 {
			return fmt.Errorf("server-based rule needs server, environment and ports")
		}
	default:
		return fmt.Errorf("unknown rule kind %q", r.Kind)
	}
	return nil
}

func isAddress(s string) bool {
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// isIPv6 reports whether s is an IPv6 address or prefix.
func isIPv6(s string) bool {
	if pfx, err := netip.ParsePrefix(s); err == nil {
		return pfx.Addr().Is6() && !pfx.Addr().Is4In6()
	}
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is6() && !addr.Is4In6()
}

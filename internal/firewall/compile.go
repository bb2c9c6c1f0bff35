package firewall

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"nathanbeddoewebdev/fleet/internal/domain"
)

// Stage labels where a directive came from.
type Stage string

const (
	StagePolicy      Stage = "policy"
	StageFlush       Stage = "flush"
	StageBaseline    Stage = "baseline"
	StageEstablished Stage = "established"
	StageStealth     Stage = "stealth"
	StageRule        Stage = "rule"
	StageFleet       Stage = "fleet"
)

// Directive is one line of an iptables-restore document.
type Directive struct {
	Stage Stage
	// Rule is the 1-based index of the declarative rule, for StageRule.
	Rule int
	Line string
}

func (d Directive) String() string {
	if d.Stage == StageRule {
		return fmt.Sprintf("%s (rule %d)", d.Line, d.Rule)
	}
	return fmt.Sprintf("%s (%s)", d.Line, d.Stage)
}

// Batch is the ordered ruleset compiled for one host.
type Batch struct {
	Host       string
	ServerID   int64
	Directives []Directive
}

// headerLines is the number of document lines before the first directive.
const headerLines = 1

// Render produces the iptables-restore document for the batch.
func (b *Batch) Render() []byte {
	var buf bytes.Buffer
	buf.WriteString("*filter\n")
	for _, d := range b.Directives {
		buf.WriteString(d.Line)
		buf.WriteByte('\n')
	}
	buf.WriteString("COMMIT\n")
	return buf.Bytes()
}

// DirectiveAt maps a 1-based line number of the rendered document back to
// the directive on that line.
func (b *Batch) DirectiveAt(line int) (Directive, bool) {
	i := line - headerLines - 1
	if i < 0 || i >= len(b.Directives) {
		return Directive{}, false
	}
	return b.Directives[i], true
}

// Lines returns just the directive text, in order.
func (b *Batch) Lines() []string {
	out := make([]string, len(b.Directives))
	for i, d := range b.Directives {
		out[i] = d.Line
	}
	return out
}

// CompileFunc is the signature of Compile, so callers can substitute it.
type CompileFunc func(policy Policy, fleet []domain.Host, serverID int64) (*Batch, error)

// stealthFlags are the --tcp-flags mask/comp pairs dropped on the public
// interface.
var stealthFlags = [][2]string{
	{"FIN,SYN,RST,PSH,ACK,URG", "NONE"},
	{"SYN,FIN", "SYN,FIN"},
	{"SYN,RST", "SYN,RST"},
	{"FIN,RST", "FIN,RST"},
	{"ACK,FIN", "FIN"},
	{"ACK,URG", "URG"},
}

// Compile builds the ruleset for the server with serverID. It depends only
// on its arguments, so identical inputs always give identical batches.
func Compile(policy Policy, fleet []domain.Host, serverID int64) (*Batch, error) {
	policy = policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	var host *domain.Host
	for i := range fleet {
		if fleet[i].Server.ID == serverID {
			host = &fleet[i]
			break
		}
	}
	if host == nil {
		return nil, fmt.Errorf("firewall: server %d is not part of the fleet: %w", serverID, domain.ErrNotFound)
	}

	b := &Batch{Host: host.Server.Name, ServerID: serverID}
	add := func(stage Stage, rule int, parts ...string) {
		b.Directives = append(b.Directives, Directive{Stage: stage, Rule: rule, Line: strings.Join(parts, " ")})
	}

	add(StagePolicy, 0, ":INPUT", "DROP", "[0:0]")
	add(StagePolicy, 0, ":FORWARD", "DROP", "[0:0]")
	add(StagePolicy, 0, ":OUTPUT", "ACCEPT", "[0:0]")
	for _, chain := range []string{"INPUT", "OUTPUT", "FORWARD"} {
		add(StageFlush, 0, "-F", chain)
	}

	add(StageBaseline, 0, "-A INPUT -i lo -s 127.0.0.1 -d 127.0.0.1 -j ACCEPT")
	if ip := host.PrivateIPv4(); ip != "" {
		add(StageBaseline, 0, "-A INPUT -s", ip, "-d", ip, "-j ACCEPT")
	}

	add(StageEstablished, 0, "-A OUTPUT -m state --state NEW,ESTABLISHED,RELATED -j ACCEPT")
	add(StageEstablished, 0, "-A INPUT -m state --state ESTABLISHED,RELATED -j ACCEPT")

	for _, f := range stealthFlags {
		add(StageStealth, 0, "-A INPUT -i", policy.PublicInterface, "-p tcp --tcp-flags", f[0], f[1], "-j DROP")
	}

	installed := make(map[string]bool, len(host.Services))
	for _, name := range host.ServiceNames() {
		installed[name] = true
	}

	for i, r := range policy.Rules {
		n := i + 1
		switch r.Kind {
		case KindMulti:
			// The ruleset is IPv4 only; dropping -d would widen the rule.
			if isIPv6(r.Destination) {
				continue
			}
			for _, src := range ipv4Only(r.Sources) {
				parts := []string{"-A INPUT"}
				if r.Interface != "" {
					parts = append(parts, "-i", r.Interface)
				}
				parts = append(parts, "-s", src)
				if r.Destination != "" {
					parts = append(parts, "-d", r.Destination)
				}
				add(StageRule, n, append(parts, "-j ACCEPT")...)
			}
		case KindServiceBased:
			if intersects(r.Services, installed) {
				for _, line := range portRules(r) {
					add(StageRule, n, line)
				}
			}
		case KindServerBased:
			if host.Server.Name == r.Server && host.Environment.Name == r.Environment {
				for _, line := range portRules(r) {
					add(StageRule, n, line)
				}
			}
		}
	}

	for _, ip := range peerAddresses(fleet, serverID, policy.IsPrivateOnly()) {
		add(StageFleet, 0, "-A INPUT -i", policy.FleetInterface, "-s", ip, "-d 0.0.0.0/0 -j ACCEPT")
	}
	return b, nil
}

func intersects(want []string, installed map[string]bool) bool {
	for _, name := range want {
		if installed[name] {
			return true
		}
	}
	return false
}

// portRules expands a port-based rule into one directive per port and
// source, or per port when the rule has no sources.
func portRules(r Rule) []string {
	sources := ipv4Only(r.Sources)
	if len(r.Sources) > 0 && len(sources) == 0 {
		return nil
	}

	var out []string
	for _, port := range r.Ports {
		base := []string{"-A INPUT"}
		if r.Interface != "" {
			base = append(base, "-i", r.Interface)
		}
		tail := []string{"-p", r.Protocol, "--dport", strconv.Itoa(port), "-j ACCEPT"}
		if len(sources) == 0 {
			out = append(out, strings.Join(append(base, tail...), " "))
			continue
		}
		for _, src := range sources {
			parts := append(append(append([]string{}, base...), "-s", src), tail...)
			out = append(out, strings.Join(parts, " "))
		}
	}
	return out
}

func ipv4Only(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if !isIPv6(a) {
			out = append(out, a)
		}
	}
	return out
}

// peerAddresses lists the addresses of every other server, ordered by
// environment name, server name and ID.
func peerAddresses(fleet []domain.Host, self int64, privateOnly bool) []string {
	peers := make([]domain.Host, 0, len(fleet))
	for _, h := range fleet {
		if h.Server.ID != self {
			peers = append(peers, h)
		}
	}
	sort.SliceStable(peers, func(i, j int) bool {
		a, b := peers[i], peers[j]
		if a.Environment.Name != b.Environment.Name {
			return a.Environment.Name < b.Environment.Name
		}
		if a.Server.Name != b.Server.Name {
			return a.Server.Name < b.Server.Name
		}
		return a.Server.ID < b.Server.ID
	})

	var out []string
	for _, h := range peers {
		addrs := append([]domain.Address(nil), h.Addresses...)
		sort.SliceStable(addrs, func(i, j int) bool { return addrs[i].ID < addrs[j].ID })
		for _, a := range addrs {
			if a.Family != domain.IPv4 || isIPv6(a.IP) {
				continue
			}
			if privateOnly && a.Visibility != domain.Private {
				continue
			}
			out = append(out, a.IP)
		}
	}
	return out
}

package firewall

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/fleet/internal/domain"
)

func host(id int64, env, name string, services []string, addrs ...domain.Address) domain.Host {
	h := domain.Host{
		Server:      domain.Server{ID: id, Name: name},
		Environment: domain.Environment{Name: env},
		Addresses:   addrs,
	}
	for _, s := range services {
		h.Services = append(h.Services, domain.Service{Name: s, ServiceName: s})
	}
	return h
}

func addr(id int64, ip string, v domain.Visibility) domain.Address {
	fam := domain.IPv4
	if strings.Contains(ip, ":") {
		fam = domain.IPv6
	}
	return domain.Address{ID: id, IP: ip, Family: fam, Visibility: v}
}

func testFleet() []domain.Host {
	return []domain.Host{
		host(1, "prod", "web-01", []string{"nginx"},
			addr(1, "1.2.3.4", domain.Public), addr(2, "10.0.0.2", domain.Private), addr(3, "2001:db8::1", domain.Public)),
		host(2, "prod", "cache-01", []string{"redis"},
			addr(4, "5.6.7.8", domain.Public), addr(5, "10.0.0.3", domain.Private)),
		host(3, "dev", "web-01", []string{"nginx"},
			addr(6, "10.0.1.2", domain.Private)),
	}
}

func webPolicy() Policy {
	return Policy{Rules: []Rule{
		{Kind: KindMulti, Sources: []string{"203.0.113.10", "2001:db8::5"}, Destination: "0.0.0.0/0", Interface: "eth0"},
		{Kind: KindServiceBased, Services: []string{"nginx", "blog", "admin"}, Ports: []int{80, 443}},
		{Kind: KindServerBased, Server: "cache-01", Environment: "prod", Ports: []int{6379}, Sources: []string{"198.51.100.1"}},
	}}
}

func TestCompile_Idempotent(t *testing.T) {
	fleet := testFleet()
	for _, h := range fleet {
		a, err := Compile(webPolicy(), fleet, h.Server.ID)
		if err != nil {
			t.Fatalf("Compile(%d): %v", h.Server.ID, err)
		}
		b, err := Compile(webPolicy(), fleet, h.Server.ID)
		if err != nil {
			t.Fatalf("Compile(%d): %v", h.Server.ID, err)
		}
		if !bytes.Equal(a.Render(), b.Render()) {
			t.Errorf("host %d: renders differ between runs", h.Server.ID)
		}
	}
}

func TestCompile_FleetOrderDoesNotMatter(t *testing.T) {
	fleet := testFleet()
	reversed := []domain.Host{fleet[2], fleet[1], fleet[0]}

	a, _ := Compile(webPolicy(), fleet, 1)
	b, _ := Compile(webPolicy(), reversed, 1)
	if diff := cmp.Diff(a.Lines(), b.Lines()); diff != "" {
		t.Errorf("fleet order changed the ruleset (-a +b):\n%s", diff)
	}
}

func TestCompile_WebHost(t *testing.T) {
	b, err := Compile(webPolicy(), testFleet(), 1)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	want := []string{
		":INPUT DROP [0:0]",
		":FORWARD DROP [0:0]",
		":OUTPUT ACCEPT [0:0]",
		"-F INPUT",
		"-F OUTPUT",
		"-F FORWARD",
		"-A INPUT -i lo -s 127.0.0.1 -d 127.0.0.1 -j ACCEPT",
		"-A INPUT -s 10.0.0.2 -d 10.0.0.2 -j ACCEPT",
		"-A OUTPUT -m state --state NEW,ESTABLISHED,RELATED -j ACCEPT",
		"-A INPUT -m state --state ESTABLISHED,RELATED -j ACCEPT",
		"-A INPUT -i eth0 -p tcp --tcp-flags FIN,SYN,RST,PSH,ACK,URG NONE -j DROP",
		"-A INPUT -i eth0 -p tcp --tcp-flags SYN,FIN SYN,FIN -j DROP",
		"-A INPUT -i eth0 -p tcp --tcp-flags SYN,RST SYN,RST -j DROP",
		"-A INPUT -i eth0 -p tcp --tcp-flags FIN,RST FIN,RST -j DROP",
		"-A INPUT -i eth0 -p tcp --tcp-flags ACK,FIN FIN -j DROP",
		"-A INPUT -i eth0 -p tcp --tcp-flags ACK,URG URG -j DROP",
		"-A INPUT -i eth0 -s 203.0.113.10 -d 0.0.0.0/0 -j ACCEPT",
		"-A INPUT -p tcp --dport 80 -j ACCEPT",
		"-A INPUT -p tcp --dport 443 -j ACCEPT",
		"-A INPUT -i eth1 -s 10.0.1.2 -d 0.0.0.0/0 -j ACCEPT",
		"-A INPUT -i eth1 -s 10.0.0.3 -d 0.0.0.0/0 -j ACCEPT",
	}
	if diff := cmp.Diff(want, b.Lines()); diff != "" {
		t.Errorf("ruleset mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_StealthFollowsEstablished(t *testing.T) {
	policies := []Policy{
		{},
		webPolicy(),
		{Rules: []Rule{{Kind: KindMulti, Sources: []string{"192.0.2.1"}}}},
	}
	for _, p := range policies {
		b, err := Compile(p, testFleet(), 2)
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}

		lastEstablished, firstStealth, lastStealth, firstRule := -1, -1, -1, -1
		for i, d := range b.Directives {
			switch d.Stage {
			case StageEstablished:
				lastEstablished = i
			case StageStealth:
				if firstStealth < 0 {
					firstStealth = i
				}
				lastStealth = i
			case StageRule:
				if firstRule < 0 {
					firstRule = i
				}
			}
		}
		if firstStealth != lastEstablished+1 {
			t.Errorf("stealth drops start at %d, want %d", firstStealth, lastEstablished+1)
		}
		if lastStealth-firstStealth != 5 {
			t.Errorf("expected six contiguous stealth drops, got span %d", lastStealth-firstStealth+1)
		}
		if firstRule >= 0 && firstRule < lastStealth {
			t.Errorf("declarative rule at %d precedes stealth drop at %d", firstRule, lastStealth)
		}
	}
}

func TestCompile_ServiceIntersection(t *testing.T) {
	rule := Rule{Kind: KindServiceBased, Services: []string{"nginx", "blog", "admin"}, Ports: []int{80, 443}}
	tests := []struct {
		name     string
		services []string
		want     bool
	}{
		{"nginx installed", []string{"nginx"}, true},
		{"redis only", []string{"redis"}, false},
		{"nothing installed", nil, false},
		{"several with overlap", []string{"redis", "admin"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fleet := []domain.Host{host(1, "prod", "web-01", tt.services, addr(1, "10.0.0.2", domain.Private))}
			b, err := Compile(Policy{Rules: []Rule{rule}}, fleet, 1)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			text := string(b.Render())
			got := strings.Contains(text, "--dport 80 ") && strings.Contains(text, "--dport 443 ")
			if got != tt.want {
				t.Errorf("ports applied = %v, want %v\n%s", got, tt.want, text)
			}
		})
	}
}

func TestCompile_ServerBasedMatchesNameAndEnvironment(t *testing.T) {
	p := Policy{Rules: []Rule{{Kind: KindServerBased, Server: "web-01", Environment: "dev", Ports: []int{8080}}}}
	fleet := testFleet()

	prod, _ := Compile(p, fleet, 1)
	dev, _ := Compile(p, fleet, 3)
	if strings.Contains(string(prod.Render()), "--dport 8080") {
		t.Error("server-based rule leaked onto prod/web-01")
	}
	if !strings.Contains(string(dev.Render()), "-A INPUT -p tcp --dport 8080 -j ACCEPT") {
		t.Error("server-based rule missing on dev/web-01")
	}
}

func TestCompile_PortRulesPerSource(t *testing.T) {
	b, err := Compile(webPolicy(), testFleet(), 2)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var rules []string
	for _, d := range b.Directives {
		if d.Stage == StageRule && d.Rule == 3 {
			rules = append(rules, d.Line)
		}
	}
	want := []string{"-A INPUT -s 198.51.100.1 -p tcp --dport 6379 -j ACCEPT"}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Errorf("rule 3 mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_MultiRuleDestination(t *testing.T) {
	p := Policy{Rules: []Rule{
		{Kind: KindMulti, Sources: []string{"203.0.113.5"}, Destination: "2001:db8::1"},
		{Kind: KindMulti, Sources: []string{"203.0.113.6"}, Destination: "1.2.3.4"},
	}}
	b, err := Compile(p, testFleet(), 1)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var rules []string
	for _, d := range b.Directives {
		if d.Stage == StageRule {
			rules = append(rules, d.Line)
		}
	}
	want := []string{"-A INPUT -s 203.0.113.6 -d 1.2.3.4 -j ACCEPT"}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_PublicPeersWhenNotPrivateOnly(t *testing.T) {
	f := false
	b, err := Compile(Policy{PrivateOnly: &f}, testFleet(), 3)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var peers []string
	for _, d := range b.Directives {
		if d.Stage == StageFleet {
			peers = append(peers, d.Line)
		}
	}
	want := []string{
		"-A INPUT -i eth1 -s 5.6.7.8 -d 0.0.0.0/0 -j ACCEPT",
		"-A INPUT -i eth1 -s 10.0.0.3 -d 0.0.0.0/0 -j ACCEPT",
		"-A INPUT -i eth1 -s 1.2.3.4 -d 0.0.0.0/0 -j ACCEPT",
		"-A INPUT -i eth1 -s 10.0.0.2 -d 0.0.0.0/0 -j ACCEPT",
	}
	if diff := cmp.Diff(want, peers); diff != "" {
		t.Errorf("peer rules mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_UnknownServer(t *testing.T) {
	_, err := Compile(Policy{}, testFleet(), 99)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompile_InvalidRule(t *testing.T) {
	p := Policy{Rules: []Rule{{Kind: KindServiceBased, Services: []string{"nginx"}}}}
	if _, err := Compile(p, testFleet(), 1); err == nil {
		t.Fatal("expected validation error for rule without ports")
	}
}

func TestBatch_RenderAndDirectiveAt(t *testing.T) {
	b := &Batch{Host: "web-01", Directives: []Directive{
		{Stage: StagePolicy, Line: ":INPUT DROP [0:0]"},
		{Stage: StageRule, Rule: 2, Line: "-A INPUT -p tcp --dport 80 -j ACCEPT"},
	}}
	want := "*filter\n:INPUT DROP [0:0]\n-A INPUT -p tcp --dport 80 -j ACCEPT\nCOMMIT\n"
	if got := string(b.Render()); got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}

	d, ok := b.DirectiveAt(3)
	if !ok || d.Rule != 2 {
		t.Errorf("DirectiveAt(3) = %+v, %v", d, ok)
	}
	for _, line := range []int{1, 4, 0} {
		if _, ok := b.DirectiveAt(line); ok {
			t.Errorf("DirectiveAt(%d) should not resolve", line)
		}
	}
}

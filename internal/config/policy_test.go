package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/fleet/internal/firewall"
)

const samplePolicy = `
firewall:
  privateOnly: false
  rules:
    - kind: service-based
      services: [nginx, blog, admin]
      ports: [80, 443]
    - kind: multi
      sources: [203.0.113.10]
      destination: 0.0.0.0/0
      interface: eth0
deploy:
  source: /home/ops/app
  appServices: [nginx]
  workerServices: [queue-worker]
  stopWait: 30s
configMgmt:
  authority: puppet.example.internal
`

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]byte(samplePolicy))
	if err != nil {
		t.Fatalf("ParsePolicy failed: %v", err)
	}

	if p.Firewall.IsPrivateOnly() {
		t.Error("expected privateOnly false to be honoured")
	}
	wantRules := []firewall.Rule{
		{Kind: firewall.KindServiceBased, Services: []string{"nginx", "blog", "admin"}, Ports: []int{80, 443}, Protocol: "tcp"},
		{Kind: firewall.KindMulti, Sources: []string{"203.0.113.10"}, Destination: "0.0.0.0/0", Interface: "eth0", Protocol: "tcp"},
	}
	if diff := cmp.Diff(wantRules, p.Firewall.Rules); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
	if p.Deploy.StopWait != 30*time.Second {
		t.Errorf("StopWait = %s, want 30s", p.Deploy.StopWait)
	}
	if p.Deploy.Concurrency != DefaultDeployConcurrency {
		t.Errorf("Concurrency = %d, want default %d", p.Deploy.Concurrency, DefaultDeployConcurrency)
	}
	if p.ConfigMgmt.AuthorityAddress != "puppet.example.internal" {
		t.Errorf("AuthorityAddress = %q, want it to default to the authority", p.ConfigMgmt.AuthorityAddress)
	}
}

func TestParsePolicy_UnknownFieldRejected(t *testing.T) {
	_, err := ParsePolicy([]byte("firewall:\n  rulez: []\n"))
	if err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestParsePolicy_InvalidRule(t *testing.T) {
	_, err := ParsePolicy([]byte("firewall:\n  rules:\n    - kind: multi\n"))
	if err == nil {
		t.Fatal("expected multi rule without sources to be rejected")
	}
}

func TestLoadPolicy_MissingFileUsesDefaults(t *testing.T) {
	p, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if p.Firewall.FleetInterface != firewall.DefaultFleetInterface {
		t.Errorf("FleetInterface = %q", p.Firewall.FleetInterface)
	}
	if p.Agent.ConfigPath != DefaultAgentConfigPath {
		t.Errorf("Agent.ConfigPath = %q", p.Agent.ConfigPath)
	}
	if diff := cmp.Diff([]string{"site-http", "site-https"}, p.Site.Live); diff != "" {
		t.Errorf("Site.Live mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPolicy_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(samplePolicy), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if p.Deploy.Source != "/home/ops/app" {
		t.Errorf("Deploy.Source = %q", p.Deploy.Source)
	}
}

func TestPolicyPath(t *testing.T) {
	got, err := PolicyPath(&Config{PolicyFile: "/srv/policy.yaml"})
	if err != nil || got != "/srv/policy.yaml" {
		t.Errorf("PolicyPath = %q, %v", got, err)
	}

	SetPath(filepath.Join(t.TempDir(), "fleet", "config.json"))
	t.Cleanup(ResetPath)
	got, err = PolicyPath(&Config{})
	if err != nil {
		t.Fatalf("PolicyPath failed: %v", err)
	}
	if filepath.Base(got) != "policy.yaml" {
		t.Errorf("PolicyPath = %q, want policy.yaml next to config.json", got)
	}
}

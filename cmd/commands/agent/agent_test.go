package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdtest"
	"nathanbeddoewebdev/fleet/internal/agent"
	"nathanbeddoewebdev/fleet/internal/config"
)

func TestBootstrap_RewritesLocalFiles(t *testing.T) {
	dir := t.TempDir()
	resolv := filepath.Join(dir, "resolv.conf")
	puppet := filepath.Join(dir, "puppet.conf")
	idPath := filepath.Join(dir, "fleet", "server-id")
	if err := os.WriteFile(resolv, []byte("domain old.internal\nnameserver 10.0.0.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(puppet, []byte("[main]\nlogdir=/var/log/puppet\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := agent.Config{
		ServerID:      7,
		ServerName:    "web-01",
		Environment:   "prod",
		PrivateDomain: "example.internal",
		Authority:     "puppet.example.internal",
		ResolvConf:    resolv,
		PuppetConf:    puppet,
		ServerIDPath:  idPath,
	}.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	cfgPath := filepath.Join(dir, "agent.json")
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		t.Fatal(err)
	}

	out, _, err := cmdtest.Run(t, NewCommand(), "bootstrap", "--config", cfgPath)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !strings.Contains(out, "Bootstrapped web-01") {
		t.Errorf("unexpected output: %s", out)
	}

	got, _ := os.ReadFile(resolv)
	if !strings.Contains(string(got), "domain example.internal") {
		t.Errorf("resolv.conf = %q", got)
	}
	got, _ = os.ReadFile(puppet)
	if !strings.Contains(string(got), "server=puppet.example.internal") || !strings.Contains(string(got), "environment=prod") {
		t.Errorf("puppet.conf = %q", got)
	}
	got, _ = os.ReadFile(idPath)
	if strings.TrimSpace(string(got)) != "7" {
		t.Errorf("server id = %q", got)
	}
}

func TestBootstrap_MissingConfig(t *testing.T) {
	_, _, err := cmdtest.Run(t, NewCommand(), "bootstrap", "--config", filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected an error for a missing config")
	}
}

func TestUpdate_PushesConfigEverywhere(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	web := cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2")
	cmdtest.AddServer(t, "web-02", prod, p, "1.2.3.5", "10.0.0.3")

	if _, _, err := cmdtest.Run(t, NewCommand(), "update", "--limit", "1"); err != nil {
		t.Fatalf("update: %v", err)
	}

	for _, host := range []string{"1.2.3.4", "1.2.3.5"} {
		if _, ok := env.Exec.File(host, config.DefaultAgentConfigPath); !ok {
			t.Errorf("no agent config uploaded to %s", host)
		}
	}
	data, _ := env.Exec.File("1.2.3.4", config.DefaultAgentConfigPath)
	var cfg agent.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("decode agent config: %v", err)
	}
	if cfg.ServerID != web.ID || cfg.PrivateDomain != "example.internal" || cfg.Authority != "puppet.example.internal" {
		t.Errorf("agent config = %+v", cfg)
	}
}

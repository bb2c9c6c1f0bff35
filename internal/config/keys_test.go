package config

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"default-provider", " DEFAULT-PROVIDER "} {
		spec := Lookup(name)
		if spec == nil || spec.Name != "default-provider" {
			t.Errorf("Lookup(%q) = %+v", name, spec)
		}
	}
	if spec := Lookup("nonexistent-key"); spec != nil {
		t.Errorf("expected nil for unknown key, got %+v", spec)
	}
}

func TestKeys_GetSetRoundtrip(t *testing.T) {
	for _, k := range Keys {
		if k.Description == "" {
			t.Errorf("key %q has no description", k.Name)
		}
		cfg := &Config{}
		k.Set(cfg, "value")
		if got := k.Get(cfg); got != "value" {
			t.Errorf("key %q: Set then Get = %q", k.Name, got)
		}
	}
}

func TestKeys_WriteDistinctFields(t *testing.T) {
	cfg := &Config{}
	for _, k := range Keys {
		k.Set(cfg, k.Name)
	}
	for _, k := range Keys {
		if got := k.Get(cfg); got != k.Name {
			t.Errorf("key %q reads %q, another key shares its field", k.Name, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Lookup("default-provider").Normalize("  Main "); got != "main" {
		t.Errorf("default-provider = %q", got)
	}
	if got := Lookup("ssh-key").Normalize(" /home/Ops/.ssh/Fleet "); got != "/home/Ops/.ssh/Fleet" {
		t.Errorf("ssh-key = %q", got)
	}
}

func TestKeyNames(t *testing.T) {
	want := []string{"default-provider", "ssh-user", "ssh-key", "policy-file", "metrics-file"}
	if diff := cmp.Diff(want, KeyNames()); diff != "" {
		t.Errorf("KeyNames mismatch (-want +got):\n%s", diff)
	}
}

func TestKeysHelp(t *testing.T) {
	help := KeysHelp()
	for _, k := range Keys {
		if !strings.Contains(help, k.Name) {
			t.Errorf("help is missing %q", k.Name)
		}
	}
	if !strings.Contains(help, "(default: root)") {
		t.Errorf("help does not show defaults:\n%s", help)
	}
}

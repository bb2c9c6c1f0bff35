package environment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdtest"
	"nathanbeddoewebdev/fleet/internal/domain"
)

func TestCreate_DefaultsBranch(t *testing.T) {
	cmdtest.Setup(t)
	cmdtest.Seed(t)

	out, _, err := cmdtest.Run(t, NewCommand(), "create", "staging",
		"--public-domain", "example.com", "--private-domain", "example.internal")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "branch: staging") {
		t.Errorf("unexpected output: %s", out)
	}

	env, err := cmdtest.Inventory(t).GetEnvironmentByName(context.Background(), "staging")
	if err != nil {
		t.Fatalf("GetEnvironmentByName: %v", err)
	}
	if env.Branch != "staging" {
		t.Errorf("Branch = %q, want staging", env.Branch)
	}
}

func TestCreate_ExplicitBranch(t *testing.T) {
	cmdtest.Setup(t)
	cmdtest.Seed(t)

	_, _, err := cmdtest.Run(t, NewCommand(), "create", "qa",
		"--public-domain", "example.com", "--private-domain", "example.internal", "--branch", "develop")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	env, _ := cmdtest.Inventory(t).GetEnvironmentByName(context.Background(), "qa")
	if env == nil || env.Branch != "develop" {
		t.Errorf("env = %+v, want branch develop", env)
	}
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"duplicate", []string{"prod", "--public-domain", "example.com", "--private-domain", "example.internal"}, domain.ErrConflict},
		{"unknown domain", []string{"dev", "--public-domain", "nope.com", "--private-domain", "example.internal"}, domain.ErrNotFound},
		{"same domain twice", []string{"dev", "--public-domain", "example.com", "--private-domain", "example.com"}, domain.ErrConstraint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdtest.Setup(t)
			cmdtest.Seed(t)

			_, _, err := cmdtest.Run(t, NewCommand(), append([]string{"create"}, tt.args...)...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreate_InvalidName(t *testing.T) {
	cmdtest.Setup(t)
	cmdtest.Seed(t)

	_, _, err := cmdtest.Run(t, NewCommand(), "create", "Bad Name",
		"--public-domain", "example.com", "--private-domain", "example.internal")
	if err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestList_CountsServers(t *testing.T) {
	cmdtest.Setup(t)
	p, env := cmdtest.Seed(t)
	cmdtest.AddServer(t, "web-01", env, p, "1.2.3.4", "10.0.0.2")

	out, _, err := cmdtest.Run(t, NewCommand(), "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "prod") || !strings.Contains(out, "example.internal") {
		t.Errorf("unexpected listing:\n%s", out)
	}
}

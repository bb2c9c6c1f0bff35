package journal

import (
	"errors"
	"strings"
	"testing"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdtest"
	"nathanbeddoewebdev/fleet/internal/journal"
)

func seedRun(t *testing.T) string {
	t.Helper()
	repo, err := journal.Open()
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer repo.Close()

	run := journal.NewRun(repo, "provision", "web-01")
	run.Start("requested")(nil)
	run.Start("cloud_created")(errors.New("quota exceeded"))
	other := journal.NewRun(repo, "deploy", "prod")
	other.Start("preflight")(nil)
	return run.ID
}

func TestList_Recent(t *testing.T) {
	cmdtest.Setup(t)
	seedRun(t)

	out, _, err := cmdtest.Run(t, NewCommand(), "list", "--limit", "2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "preflight") || !strings.Contains(out, "quota exceeded") {
		t.Errorf("unexpected listing:\n%s", out)
	}
	if strings.Contains(out, "requested") {
		t.Errorf("limit not applied:\n%s", out)
	}
}

func TestList_OneRun(t *testing.T) {
	cmdtest.Setup(t)
	runID := seedRun(t)

	out, _, err := cmdtest.Run(t, NewCommand(), "list", "--run", runID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "requested") || !strings.Contains(out, "cloud_created") || strings.Contains(out, "preflight") {
		t.Errorf("unexpected listing:\n%s", out)
	}
}

func TestList_Empty(t *testing.T) {
	cmdtest.Setup(t)

	out, _, err := cmdtest.Run(t, NewCommand(), "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No journal entries found.") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestPrune_RequiresAge(t *testing.T) {
	cmdtest.Setup(t)
	if _, _, err := cmdtest.Run(t, NewCommand(), "prune"); err == nil {
		t.Fatal("expected an error without --older-than")
	}
}

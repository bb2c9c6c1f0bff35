package auditlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func tempRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	r, err := OpenAt(filepath.Join(t.TempDir(), "fleet.db"))
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func save(t *testing.T, r *SQLiteRepository, entries ...Entry) {
	t.Helper()
	for i := range entries {
		if err := r.Save(&entries[i]); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
}

func TestSave_AssignsIDAndTimestamp(t *testing.T) {
	r := tempRepo(t)

	e := &Entry{Command: "fleet server list", Outcome: OutcomeSuccess}
	if err := r.Save(e); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if e.ID == 0 || e.Timestamp.IsZero() {
		t.Errorf("expected ID and Timestamp to be set, got %+v", e)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	r := tempRepo(t)
	want := Entry{
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Command:      "fleet deploy",
		Args:         "prod --yes",
		Environment:  "prod",
		RunID:        "run-7",
		ResourceType: "environment",
		ResourceName: "prod",
		Outcome:      OutcomeError,
		ExitCode:     1,
		Detail:       "phase restart_app failed",
		DurationMs:   1500,
	}
	save(t, r, want)

	got, err := r.List(Filter{Limit: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if diff := cmp.Diff(want, got[0], cmpopts.IgnoreFields(Entry{}, "ID")); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestList_Filters(t *testing.T) {
	r := tempRepo(t)
	base := time.Now().UTC().Add(-time.Hour)
	save(t, r,
		Entry{Timestamp: base, Command: "fleet deploy", Environment: "prod", RunID: "a", Outcome: OutcomeSuccess},
		Entry{Timestamp: base.Add(time.Second), Command: "fleet deploy", Environment: "staging", RunID: "b", Outcome: OutcomeSuccess},
		Entry{Timestamp: base.Add(2 * time.Second), Command: "fleet whitelist", Outcome: OutcomeSuccess},
		Entry{Timestamp: base.Add(3 * time.Second), Command: "fleet deploy", Environment: "prod", RunID: "c", Outcome: OutcomeAborted},
	)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"newest first", Filter{Limit: 10}, []string{"c", "", "b", "a"}},
		{"limit", Filter{Limit: 2}, []string{"c", ""}},
		{"command", Filter{Command: "fleet deploy", Limit: 10}, []string{"c", "b", "a"}},
		{"environment", Filter{Environment: "prod", Limit: 10}, []string{"c", "a"}},
		{"run", Filter{RunID: "b", Limit: 10}, []string{"b"}},
		{"no match", Filter{Environment: "qa", Limit: 10}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := r.List(tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var got []string
			for _, e := range entries {
				got = append(got, e.RunID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("run IDs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList_RequiresLimit(t *testing.T) {
	r := tempRepo(t)
	if _, err := r.List(Filter{}); err == nil {
		t.Fatal("expected an error for a zero limit")
	}
}

func TestDeleteOlderThan(t *testing.T) {
	r := tempRepo(t)
	save(t, r,
		Entry{Command: "fleet server list", Outcome: OutcomeSuccess, Timestamp: time.Now().UTC().Add(-48 * time.Hour)},
		Entry{Command: "fleet server list", Outcome: OutcomeSuccess, Timestamp: time.Now().UTC().Add(-time.Hour)},
	)

	removed, err := r.DeleteOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	remaining, err := r.List(Filter{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", len(remaining))
	}
}

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	r := New("")

	r.Observe("deploy", time.Now(), nil)
	r.Observe("deploy", time.Now(), errors.New("boom"))
	r.Observe("deploy", time.Now(), nil)

	if got := testutil.ToFloat64(r.operations.WithLabelValues("deploy", ResultSuccess)); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.operations.WithLabelValues("deploy", ResultError)); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.lastSuccess.WithLabelValues("deploy")); got == 0 {
		t.Error("expected last success timestamp to be set")
	}
}

func TestObserve_FailureLeavesLastSuccessUnset(t *testing.T) {
	r := New("")
	r.Observe("server create", time.Now(), errors.New("boom"))

	if n := testutil.CollectAndCount(r.lastSuccess); n != 0 {
		t.Errorf("expected no last-success series, got %d", n)
	}
}

func TestFlush_WritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "fleet.prom")
	r := New(path)
	r.Observe("whitelist", time.Now(), nil)
	r.SetHosts("prod", "active", 4)
	r.SetPhaseHosts("prod", "sync-app", 2)

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	for _, want := range []string{
		`fleet_operations_total{operation="whitelist",result="success"} 1`,
		`fleet_hosts{environment="prod",status="active"} 4`,
		`fleet_deploy_phase_hosts{environment="prod",phase="sync-app"} 2`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q:\n%s", want, data)
		}
	}
}

func TestFlush_NoPath(t *testing.T) {
	if err := New("").Flush(); err != nil {
		t.Fatalf("Flush without path: %v", err)
	}
	var r *Recorder
	if err := r.Flush(); err != nil {
		t.Fatalf("Flush on nil recorder: %v", err)
	}
}

package firewall

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/remote"
)

// ApplyError reports a rejected commit. The host keeps its previous
// ruleset because iptables-restore never committed.
type ApplyError struct {
	Host      string
	Directive *Directive
	Err       error
}

func (e *ApplyError) Error() string {
	if e.Directive != nil {
		return fmt.Sprintf("firewall: %s rejected %s: %v", e.Host, e.Directive, e.Err)
	}
	return fmt.Sprintf("firewall: apply on %s failed: %v", e.Host, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

var failedLine = regexp.MustCompile(`line (\d+) failed`)

// Applier commits compiled batches on hosts.
type Applier struct {
	Exec         remote.Executor
	RulesPath    string
	SnapshotPath string
}

// NewApplier returns an Applier using the policy's file locations.
func NewApplier(exec remote.Executor, policy Policy) *Applier {
	policy = policy.WithDefaults()
	return &Applier{Exec: exec, RulesPath: policy.RulesPath, SnapshotPath: policy.SnapshotPath}
}

// Apply uploads the rendered batch to addr, commits it with
// iptables-restore and saves the live ruleset to the snapshot path, which
// it returns.
func (a *Applier) Apply(ctx context.Context, addr string, b *Batch) (string, error) {
	if err := a.Exec.Upload(ctx, addr, a.RulesPath, b.Render(), 0o600); err != nil {
		return "", &ApplyError{Host: b.Host, Err: err}
	}

	_, err := remote.Check(ctx, a.Exec, addr, "iptables-restore < "+remote.Quote(a.RulesPath))
	if err != nil {
		applyErr := &ApplyError{Host: b.Host, Err: err}
		var execErr *domain.ExecError
		if errors.As(err, &execErr) {
			if m := failedLine.FindStringSubmatch(execErr.Stderr); m != nil {
				n, _ := strconv.Atoi(m[1])
				if d, ok := b.DirectiveAt(n); ok {
					applyErr.Directive = &d
				}
			}
		}
		return "", applyErr
	}

	if _, err := remote.Check(ctx, a.Exec, addr, "iptables-save > "+remote.Quote(a.SnapshotPath)); err != nil {
		return "", &ApplyError{Host: b.Host, Err: err}
	}
	log.Debug().Str("server", b.Host).Int("directives", len(b.Directives)).Msg("firewall applied")
	return a.SnapshotPath, nil
}

// Package auditlog records one entry per fleet command: what ran, against
// which environment and resource, how it ended and how long it took.
package auditlog

import (
	"context"
	"strings"
	"time"
)

// Outcome is how a command ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	// OutcomeAborted is a command the operator declined at a confirmation.
	OutcomeAborted Outcome = "aborted"
)

// Entry is one recorded command.
type Entry struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Command      string    `json:"command"`
	Args         string    `json:"args,omitempty"`
	Environment  string    `json:"environment,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	ResourceName string    `json:"resource_name,omitempty"`
	Outcome      Outcome   `json:"outcome"`
	ExitCode     int       `json:"exit_code"`
	Detail       string    `json:"detail,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
}

// Invocation is what the root command knows once a command has returned.
type Invocation struct {
	Command  string
	Args     []string
	Started  time.Time
	Err      error
	ExitCode int
	Aborted  bool
}

// Capture builds the entry for inv, folding in the metadata the command
// attached to ctx. Secret flag values never reach the entry.
func Capture(ctx context.Context, inv Invocation) *Entry {
	meta := MetadataFromContext(ctx)
	e := &Entry{
		Timestamp:    inv.Started.UTC(),
		Command:      inv.Command,
		Args:         strings.Join(Redact(inv.Args), " "),
		Environment:  meta.Environment,
		RunID:        meta.RunID,
		ResourceType: meta.ResourceType,
		ResourceID:   meta.ResourceID,
		ResourceName: meta.ResourceName,
		Outcome:      OutcomeSuccess,
		ExitCode:     inv.ExitCode,
		DurationMs:   time.Since(inv.Started).Milliseconds(),
	}
	switch {
	case inv.Aborted:
		e.Outcome = OutcomeAborted
	case inv.Err != nil || inv.ExitCode != 0:
		e.Outcome = OutcomeError
	}
	if inv.Err != nil {
		e.Detail = inv.Err.Error()
	}
	return e
}

const redacted = "<redacted>"

// secretFlags take a credential as their value.
var secretFlags = map[string]bool{
	"--token":       true,
	"--password":    true,
	"--private-key": true,
}

// Redact replaces the values of secret flags, in both "--flag value" and
// "--flag=value" form.
func Redact(args []string) []string {
	out := make([]string, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if name, _, ok := strings.Cut(arg, "="); ok && secretFlags[name] {
			out[i] = name + "=" + redacted
			continue
		}
		out[i] = arg
		if secretFlags[arg] && i+1 < len(args) {
			i++
			out[i] = redacted
		}
	}
	return out
}

// Package cmdutil holds helpers shared by the fleet commands.
package cmdutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
)

// ExitError carries a specific process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Annotate records what the command acts on for the audit log.
func Annotate(cmd *cobra.Command, meta auditlog.Metadata) {
	cmd.SetContext(auditlog.WithMetadata(cmd.Context(), meta))
}

// Observe feeds an operation outcome to the metrics recorder.
func Observe(a *app.App, operation string, start time.Time, err error) {
	a.Metrics.Observe(operation, start, err)
}

// AddOutputFlag registers the -o/--output flag.
func AddOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")
}

// Output returns the validated output format.
func Output(cmd *cobra.Command) (string, error) {
	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "", "table":
		return "table", nil
	case "json":
		return "json", nil
	}
	return "", fmt.Errorf("unsupported output format %q", output)
}

// PrintJSON encodes v as indented JSON to the command's stdout.
func PrintJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// AddOlderThanFlag registers the required --older-than flag of prune commands.
func AddOlderThanFlag(cmd *cobra.Command) {
	cmd.Flags().String("older-than", "", "Remove entries older than this age (e.g. 30d, 72h)")
	_ = cmd.MarkFlagRequired("older-than")
}

// OlderThan returns the parsed --older-than flag.
func OlderThan(cmd *cobra.Command) (time.Duration, error) {
	raw, _ := cmd.Flags().GetString("older-than")
	return ParseAge(strings.TrimSpace(raw))
}

// ParseAge parses a Go duration or a whole number of days ("30d").
func ParseAge(input string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(input, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", input)
		}
		if n < 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}

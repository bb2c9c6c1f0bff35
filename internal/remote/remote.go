// Package remote runs commands on fleet hosts and mirrors files to them.
//
// Executors report a non-zero exit status through Result rather than as an
// error, since callers such as the status probes give meaning to specific
// exit codes. A *domain.ConnectError is returned when the host could not be
// reached at all. Use Check to turn a non-zero exit into a *domain.ExecError.
package remote

import (
	"context"
	"io/fs"
	"strings"

	"nathanbeddoewebdev/fleet/internal/domain"
)

// Result is the outcome of one remote command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs commands on a host addressed by IP or hostname.
type Executor interface {
	Run(ctx context.Context, host, command string) (*Result, error)
	Upload(ctx context.Context, host, path string, data []byte, mode fs.FileMode) error
}

// SyncOptions control a file sync.
type SyncOptions struct {
	// Mirror deletes destination files that are missing from the source.
	Mirror   bool
	Excludes []string
}

// Syncer reconciles a directory on a host with a local source tree.
type Syncer interface {
	Sync(ctx context.Context, src, host, dest string, opts SyncOptions) error
}

// Check runs command and converts a non-zero exit status into a
// *domain.ExecError.
func Check(ctx context.Context, exec Executor, host, command string) (*Result, error) {
	res, err := exec.Run(ctx, host, command)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return res, &domain.ExecError{Host: host, Command: command, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

// Quote single-quotes s for a POSIX shell.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./=:@,+%", r)
}

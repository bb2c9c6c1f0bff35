package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/domain"
)

// RsyncSyncer mirrors local trees to hosts with the rsync binary over ssh.
type RsyncSyncer struct {
	User    string
	Port    int
	KeyPath string

	// Binary defaults to "rsync" on PATH.
	Binary string
}

// Args builds the rsync argument list for one sync.
func (s *RsyncSyncer) Args(src, host, dest string, opts SyncOptions) []string {
	args := []string{"-az"}
	if opts.Mirror {
		args = append(args, "--delete")
	}
	for _, ex := range opts.Excludes {
		args = append(args, "--exclude", ex)
	}

	shell := []string{"ssh", "-o", "StrictHostKeyChecking=no", "-o", "BatchMode=yes"}
	if s.Port != 0 && s.Port != defaultPort {
		shell = append(shell, "-p", strconv.Itoa(s.Port))
	}
	if s.KeyPath != "" {
		shell = append(shell, "-i", s.KeyPath)
	}
	args = append(args, "-e", strings.Join(shell, " "))

	user := s.User
	if user == "" {
		user = defaultUser
	}
	// A trailing slash syncs the contents of src rather than src itself.
	if !strings.HasSuffix(src, "/") {
		src += "/"
	}
	return append(args, src, fmt.Sprintf("%s@%s:%s", user, host, dest))
}

// Sync runs rsync and waits for it to finish.
func (s *RsyncSyncer) Sync(ctx context.Context, src, host, dest string, opts SyncOptions) error {
	bin := s.Binary
	if bin == "" {
		bin = "rsync"
	}
	args := s.Args(src, host, dest, opts)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = newLineLogger(host, "rsync")
	cmd.Stderr = &stderr

	log.Debug().Str("host", host).Str("src", src).Str("dest", dest).Msg("syncing")
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &domain.ExecError{
			Host:     host,
			Command:  bin + " " + strings.Join(args, " "),
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
		}
	}
	return fmt.Errorf("rsync to %s: %w", host, err)
}

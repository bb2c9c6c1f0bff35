package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// SourceTree is the local checkout that gets synced to hosts.
type SourceTree interface {
	// Prepare checks the tree is clean and on branch, and fast-forwards it
	// to the remote branch.
	Prepare(ctx context.Context, branch string) error
	Path() string
}

// ErrSourceNotReady reports a checkout that cannot be deployed as is.
var ErrSourceNotReady = errors.New("deploy source not ready")

// GitSource is a SourceTree backed by the git binary.
type GitSource struct {
	Dir    string
	Remote string
	// Binary defaults to "git".
	Binary string
}

// NewGitSource returns a GitSource for dir tracking remote.
func NewGitSource(dir, remote string) *GitSource {
	return &GitSource{Dir: dir, Remote: remote}
}

func (g *GitSource) Path() string { return g.Dir }

func (g *GitSource) git(ctx context.Context, args ...string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = g.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (g *GitSource) Prepare(ctx context.Context, branch string) error {
	status, err := g.git(ctx, "status", "--porcelain")
	if err != nil {
		return err
	}
	if status != "" {
		return fmt.Errorf("%w: working tree at %s has uncommitted changes", ErrSourceNotReady, g.Dir)
	}

	current, err := g.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return err
	}
	if current != branch {
		return fmt.Errorf("%w: checked out branch is %q, environment deploys %q", ErrSourceNotReady, current, branch)
	}

	remote := g.Remote
	if remote == "" {
		remote = "origin"
	}
	if _, err := g.git(ctx, "fetch", remote, branch); err != nil {
		return err
	}
	if _, err := g.git(ctx, "merge", "--ff-only", remote+"/"+branch); err != nil {
		return fmt.Errorf("%w: %s cannot fast-forward to %s/%s: %v", ErrSourceNotReady, branch, remote, branch, err)
	}
	log.Info().Str("branch", branch).Str("dir", g.Dir).Msg("deploy source up to date")
	return nil
}

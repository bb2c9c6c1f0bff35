package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Outcome says how SetLine changed a file.
type Outcome int

const (
	Replaced Outcome = iota
	Inserted
	Appended
)

func (o Outcome) String() string {
	switch o {
	case Replaced:
		return "replaced"
	case Inserted:
		return "inserted"
	default:
		return "appended"
	}
}

// SetLine makes content carry prefix+value. Every line starting with
// prefix is replaced. Without a match the line goes right after the first
// line equal to anchor, or at the end when there is no anchor line.
func SetLine(content, prefix, value, anchor string) (string, Outcome) {
	want := prefix + value
	lines := strings.Split(content, "\n")

	found := false
	for i, line := range lines {
		if strings.HasPrefix(line, prefix) {
			lines[i] = want
			found = true
		}
	}
	if found {
		return strings.Join(lines, "\n"), Replaced
	}

	if anchor != "" {
		for i, line := range lines {
			if line == anchor {
				lines = append(lines[:i+1], append([]string{want}, lines[i+1:]...)...)
				return strings.Join(lines, "\n"), Inserted
			}
		}
	}

	// Keep a trailing newline trailing.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = append(lines[:n-1], want, "")
	} else {
		lines = append(lines, want)
	}
	return strings.Join(lines, "\n"), Appended
}

// rewriteFile applies SetLine to the file at path. A missing file is
// treated as empty.
func rewriteFile(path, prefix, value, anchor string) error {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	out, outcome := SetLine(string(data), prefix, value, anchor)
	log.Debug().Str("file", path).Str("line", prefix+value).Stringer("outcome", outcome).Msg("rewrote line")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), mode)
}

// Bootstrap rewrites the resolver search domain and the config-management
// identity of the local host, then records its server ID.
func Bootstrap(cfg Config) error {
	steps := []struct {
		path, prefix, value, anchor string
	}{
		{cfg.ResolvConf, "domain ", cfg.PrivateDomain, ""},
		{cfg.PuppetConf, "server=", cfg.Authority, "[main]"},
		{cfg.PuppetConf, "environment=", cfg.Environment, "[main]"},
	}
	for _, s := range steps {
		if s.path == "" || s.value == "" {
			continue
		}
		if err := rewriteFile(s.path, s.prefix, s.value, s.anchor); err != nil {
			return fmt.Errorf("agent: bootstrap %s: %w", s.path, err)
		}
	}

	if cfg.ServerIDPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.ServerIDPath), 0o755); err != nil {
			return fmt.Errorf("agent: bootstrap: %w", err)
		}
		id := strconv.FormatInt(cfg.ServerID, 10) + "\n"
		if err := os.WriteFile(cfg.ServerIDPath, []byte(id), 0o644); err != nil {
			return fmt.Errorf("agent: bootstrap: %w", err)
		}
	}
	return nil
}

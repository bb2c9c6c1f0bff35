// Package remotetest provides an in-memory remote.Executor and
// remote.Syncer for tests.
package remotetest

import (
	"context"
	"io/fs"
	"strings"
	"sync"
	"time"

	"nathanbeddoewebdev/fleet/internal/remote"
)

// Call records one interaction with the fake.
type Call struct {
	Kind    string // "run", "upload" or "sync"
	Host    string
	Command string
	Path    string
	Data    []byte
	At      time.Time // start
	Done    time.Time
}

type rule struct {
	host   string
	match  string
	result remote.Result
	err    error
}

// Executor is a scripted remote.Executor. Commands match rules by host (an
// empty host matches every host) and substring, first registered rule
// first. Unmatched commands succeed with empty output.
type Executor struct {
	mu    sync.Mutex
	rules []rule
	calls []Call
	files map[string]map[string][]byte

	// Delay is slept before every Run, to make overlap observable.
	Delay time.Duration
}

// NewExecutor returns an empty fake.
func NewExecutor() *Executor {
	return &Executor{files: make(map[string]map[string][]byte)}
}

// On scripts the result of commands containing match on any host.
func (e *Executor) On(match string, res remote.Result) *Executor {
	return e.OnHost("", match, res)
}

// OnHost scripts the result of commands containing match on host.
func (e *Executor) OnHost(host, match string, res remote.Result) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule{host: host, match: match, result: res})
	return e
}

// FailHost makes every call to host return err.
func (e *Executor) FailHost(host string, err error) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append([]rule{{host: host, err: err}}, e.rules...)
	return e
}

func (e *Executor) Run(ctx context.Context, host, command string) (*remote.Result, error) {
	start := time.Now()
	if e.Delay > 0 {
		time.Sleep(e.Delay)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Kind: "run", Host: host, Command: command, At: start, Done: time.Now()})
	for _, r := range e.rules {
		if r.host != "" && r.host != host {
			continue
		}
		if r.err != nil {
			return nil, r.err
		}
		if strings.Contains(command, r.match) {
			res := r.result
			return &res, nil
		}
	}
	return &remote.Result{}, nil
}

func (e *Executor) Upload(ctx context.Context, host, path string, data []byte, mode fs.FileMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	e.calls = append(e.calls, Call{Kind: "upload", Host: host, Path: path, Data: data, At: now, Done: now})
	for _, r := range e.rules {
		if r.host == host && r.err != nil {
			return r.err
		}
	}
	if e.files[host] == nil {
		e.files[host] = make(map[string][]byte)
	}
	e.files[host][path] = append([]byte(nil), data...)
	return nil
}

// File returns what was uploaded to path on host.
func (e *Executor) File(host, path string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.files[host][path]
	return b, ok
}

// Calls returns a copy of the recorded calls in order.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Commands returns the commands run on host, in order.
func (e *Executor) Commands(host string) []string {
	var out []string
	for _, c := range e.Calls() {
		if c.Kind == "run" && c.Host == host {
			out = append(out, c.Command)
		}
	}
	return out
}

// Syncer records syncs and always succeeds unless Err is set for the host.
type Syncer struct {
	mu    sync.Mutex
	calls []Call
	Err   map[string]error
}

func (s *Syncer) Sync(ctx context.Context, src, host, dest string, opts remote.SyncOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.calls = append(s.calls, Call{Kind: "sync", Host: host, Path: dest, Command: src, At: now, Done: now})
	return s.Err[host]
}

// Calls returns a copy of the recorded syncs.
func (s *Syncer) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Package fanout runs independent per-host tasks with bounded concurrency.
//
// Every task is allowed to finish even when a sibling fails. Failures are
// collected and returned together as an *Error once the whole batch is done,
// so callers can stop at the batch boundary without leaving hosts
// half-mutated.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work in a batch, usually scoped to a single host.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Failure pairs a task name with its error.
type Failure struct {
	Name string
	Err  error
}

// Error aggregates the failures of one batch.
type Error struct {
	Op       string
	Failures []Failure
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of the tasks failed", e.Op, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.Name, f.Err)
	}
	return b.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Run executes tasks with at most limit running at once. A limit of zero
// or less means unbounded. It returns nil when every task succeeded and an
// *Error otherwise. Failures are ordered by task name.
func Run(ctx context.Context, op string, limit int, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		failures []Failure
	)

	// Plain group: a failing task leaves its siblings running.
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, task := range tasks {
		g.Go(func() error {
			if err := task.Func(ctx); err != nil {
				mu.Lock()
				failures = append(failures, Failure{Name: task.Name, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == 0 {
		return nil
	}
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].Name < failures[j].Name })
	return &Error{Op: op, Failures: failures}
}

// All runs every task concurrently and joins their errors. It is meant for
// small fixed sets of heterogeneous steps, such as the parts of a teardown.
func All(ctx context.Context, tasks ...Task) error {
	err := Run(ctx, "parallel", 0, tasks)
	var fe *Error
	if !errors.As(err, &fe) {
		return err
	}
	errs := make([]error, 0, len(fe.Failures))
	for _, f := range fe.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Name, f.Err))
	}
	return errors.Join(errs...)
}

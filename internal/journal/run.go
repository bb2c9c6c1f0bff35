package journal

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Run records the steps of one workflow invocation. It is safe for
// concurrent use; fan-out steps may be started from many goroutines.
type Run struct {
	ID        string
	operation string
	target    string
	repo      Repository
	mu        sync.Mutex
}

// NewRun starts a run with a fresh ID. A nil repo yields a Run that only
// assigns IDs, which keeps callers free of nil checks.
func NewRun(repo Repository, operation, target string) *Run {
	return &Run{ID: uuid.NewString(), operation: operation, target: target, repo: repo}
}

// Start records step as running and returns the function that closes it.
// Journal write failures are logged, never returned: the journal must not
// change the outcome of the workflow it observes.
func (r *Run) Start(step string) func(error) {
	if r == nil || r.repo == nil {
		return func(error) {}
	}

	entry := &Entry{RunID: r.ID, Operation: r.operation, Target: r.target, Step: step, Status: StatusRunning}
	r.save(entry)

	return func(err error) {
		entry.Status = StatusSuccess
		if err != nil {
			entry.Status = StatusError
			entry.ErrorMessage = err.Error()
		}
		r.save(entry)
	}
}

func (r *Run) save(entry *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.repo.Save(entry); err != nil {
		log.Warn().Err(err).Str("run", r.ID).Str("step", entry.Step).Msg("journal write failed")
	}
}

package journal

import "time"

const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Entry is one step of one orchestration run. A run that stops part way
// leaves its last entry in "error" (or "running" if the process died), which
// is what an operator reads to decide on manual remediation.
type Entry struct {
	// ID is the auto-increment primary key (assigned on insert).
	ID int64 `json:"id"`

	// RunID groups the entries of one invocation.
	RunID string `json:"run_id"`

	// Operation is the workflow, e.g. "provision", "destroy", "deploy".
	Operation string `json:"operation"`

	// Target names what the workflow acts on: a server or an environment.
	Target string `json:"target"`

	// Step is the workflow step or deploy phase.
	Step string `json:"step"`

	Status       string    `json:"status"`
	ErrorMessage string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

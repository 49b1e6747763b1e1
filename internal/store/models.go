package store

import "time"

// RunStatus is how a plan run ended.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunFailed    RunStatus = "failed"
)

// Run is an archived plan run. Plan holds the full plan JSON including metadata.
type Run struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chat_id"`
	Goal        string    `json:"goal"`
	Status      RunStatus `json:"status"`
	Deliverable string    `json:"deliverable"`
	Plan        string    `json:"plan"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

package step

import "time"

// Status is the terminal disposition of one step within a run.
type Status string

const (
	// StatusSkipped means the step was already recorded as completed.
	StatusSkipped Status = "skipped"
	// StatusCompleted means Execute succeeded and the step was marked done.
	StatusCompleted Status = "completed"
	// StatusFailed means the step failed and did not support cleanup.
	StatusFailed Status = "failed"
	// StatusCleanedUp means the step failed and its cleanup ran.
	StatusCleanedUp Status = "cleaned-up"
)

// Outcome records how one step ended.
type Outcome struct {
	Step     string
	Status   Status
	Err      error
	Duration time.Duration
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed || o.Status == StatusCleanedUp
}

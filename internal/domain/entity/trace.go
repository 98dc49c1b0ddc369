package entity

import (
	"fmt"
	"time"
)

type RunStatus string

const (
	StatusCompleted        RunStatus = "completed"
	StatusMaxStepsExceeded RunStatus = "max_steps_exceeded"
	StatusStuckAborted     RunStatus = "stuck_aborted"
)

// Trace is the run's sole persisted artifact: ordered steps plus run
// metadata, sealed exactly once at termination.
type Trace struct {
	RunID             string       `json:"run_id"`
	TaskDescription   string       `json:"task_description"`
	StartURL          string       `json:"start_url"`
	AppName           string       `json:"app_name,omitempty"`
	TaskName          string       `json:"task_name,omitempty"`
	StartedAt         time.Time    `json:"started_at"`
	FinishedAt        time.Time    `json:"finished_at,omitzero"`
	Status            RunStatus    `json:"status"`
	Summary           string       `json:"summary,omitempty"`
	TotalSteps        int          `json:"total_steps"`
	InitialScreenshot string       `json:"initial_screenshot,omitempty"`
	Steps             []StepRecord `json:"steps"`

	// TracePath is where the store sealed this trace. Process-local
	// bookkeeping, not part of the persisted artifact.
	TracePath string `json:"-"`
}

func NewTrace(runID, task, startURL, appName, taskName string) *Trace {
	return &Trace{
		RunID:           runID,
		TaskDescription: task,
		StartURL:        startURL,
		AppName:         appName,
		TaskName:        taskName,
		StartedAt:       time.Now().UTC(),
		Steps:           []StepRecord{},
	}
}

// Append adds a step record, enforcing the continuity invariant: indices
// are contiguous from 0 and each record's StateBefore is the previous
// record's StateAfter.
func (t *Trace) Append(rec StepRecord) error {
	if rec.Index != len(t.Steps) {
		return fmt.Errorf("step index %d out of order, want %d", rec.Index, len(t.Steps))
	}
	if n := len(t.Steps); n > 0 {
		if prev := t.Steps[n-1]; prev.StateAfter.Key() != rec.StateBefore.Key() {
			return fmt.Errorf("step %d breaks state continuity", rec.Index)
		}
	}
	t.Steps = append(t.Steps, rec)
	t.TotalSteps = len(t.Steps)
	return nil
}

// Seal stamps the terminal status. It is idempotent on the first call
// only; the trace store refuses to persist twice.
func (t *Trace) Seal(status RunStatus, summary string) {
	t.Status = status
	t.Summary = summary
	t.FinishedAt = time.Now().UTC()
	t.TotalSteps = len(t.Steps)
}

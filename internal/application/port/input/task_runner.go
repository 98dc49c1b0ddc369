package input

import (
	"context"

	"github.com/softlight/wayfinder/internal/domain/entity"
)

// RunRequest describes one task run. AppName/TaskName organize the output
// directory only; no component branches on them.
type RunRequest struct {
	Task     string
	StartURL string
	AppName  string
	TaskName string
	MaxSteps int
}

// TaskRunner drives one task to a terminal status. The trace is non-nil
// whenever it was seeded, even alongside an error; terminal statuses
// (completed, max_steps_exceeded, stuck_aborted) are carried by the trace
// and are not Go errors.
type TaskRunner interface {
	Run(ctx context.Context, req RunRequest) (*entity.Trace, error)
}

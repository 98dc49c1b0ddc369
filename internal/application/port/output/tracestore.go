package output

import "github.com/softlight/wayfinder/internal/domain/entity"

// TraceStorePort persists one run's artifacts: step screenshots as they
// are taken and the sealed trace exactly once at termination.
type TraceStorePort interface {
	SaveScreenshot(step int, stage string, img []byte) (handle string, err error)
	Seal(trace *entity.Trace) (path string, err error)
}

// TraceStoreFactory opens the per-run dataset directory.
type TraceStoreFactory interface {
	NewRun(appName, taskName string) (TraceStorePort, error)
}

// Package tracestore persists run artifacts to the local filesystem:
// one directory per run holding step screenshots and the sealed trace.
package tracestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/application/port/output"
	"github.com/softlight/wayfinder/internal/domain/entity"
)

var _ output.TraceStoreFactory = (*Factory)(nil)

type Factory struct {
	outputDir string
	log       *zap.Logger
	now       func() time.Time
}

func NewFactory(outputDir string, log *zap.Logger) *Factory {
	return &Factory{outputDir: outputDir, log: log.Named("tracestore"), now: time.Now}
}

// NewRun creates <outputDir>/<app>/<task>_<timestamp>/ and returns a
// store scoped to it. Runs without a task-book entry land under "adhoc".
func (f *Factory) NewRun(appName, taskName string) (output.TraceStorePort, error) {
	if appName == "" {
		appName = "adhoc"
	}
	if taskName == "" {
		taskName = "task"
	}
	dir := filepath.Join(
		f.outputDir,
		slug(appName),
		fmt.Sprintf("%s_%s", slug(taskName), f.now().Format("20060102_150405")),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	f.log.Info("run directory created", zap.String("dir", dir))
	return &Store{dir: dir, log: f.log}, nil
}

type Store struct {
	dir    string
	log    *zap.Logger
	mu     sync.Mutex
	sealed bool
}

var _ output.TraceStorePort = (*Store)(nil)

// SaveScreenshot writes a step screenshot and returns its name relative
// to the run directory, which is what the trace records.
func (s *Store) SaveScreenshot(step int, stage string, img []byte) (string, error) {
	if len(img) == 0 {
		return "", fmt.Errorf("empty screenshot")
	}
	var name string
	if stage == "initial" {
		name = "initial.jpg"
	} else {
		name = fmt.Sprintf("step_%02d_%s.jpg", step, stage)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), img, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return name, nil
}

// Seal writes trace.json atomically (temp file + rename). A second call
// is a programming error and is rejected rather than overwriting the
// first result.
func (s *Store) Seal(trace *entity.Trace) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return "", fmt.Errorf("trace already sealed")
	}

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal trace: %w", err)
	}

	final := filepath.Join(s.dir, "trace.json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write trace: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize trace: %w", err)
	}

	s.sealed = true
	s.log.Info("trace sealed",
		zap.String("path", final),
		zap.String("status", string(trace.Status)),
		zap.Int("steps", trace.TotalSteps))
	return final, nil
}

// slug lowercases a name and squeezes anything non-alphanumeric into
// single underscores so it is safe as a directory component.
func slug(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "task"
	}
	return out
}

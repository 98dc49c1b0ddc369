package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/softlight/wayfinder/internal/application/port/output"
	"github.com/softlight/wayfinder/internal/domain/entity"
)

type clickCall struct {
	target string
	tier   entity.MatchTier
}

type typeCall struct {
	target string
	value  string
}

type scriptedBrowser struct {
	navigated []string
	navErr    error
	clicks    []clickCall
	typed     []typeCall
	pressed   []string
	waits     []time.Duration
	url       string
}

func (b *scriptedBrowser) Navigate(ctx context.Context, url string) error {
	b.navigated = append(b.navigated, url)
	b.url = url
	return b.navErr
}

func (b *scriptedBrowser) ClickText(ctx context.Context, target string, tier entity.MatchTier) error {
	b.clicks = append(b.clicks, clickCall{target, tier})
	return nil
}

func (b *scriptedBrowser) TypeText(ctx context.Context, target, value string, tier entity.MatchTier) error {
	b.typed = append(b.typed, typeCall{target, value})
	return nil
}

func (b *scriptedBrowser) PressKey(ctx context.Context, key string) error {
	b.pressed = append(b.pressed, key)
	return nil
}

func (b *scriptedBrowser) Wait(ctx context.Context, d time.Duration) error {
	b.waits = append(b.waits, d)
	return nil
}

func (b *scriptedBrowser) WaitSettle(ctx context.Context, ceiling time.Duration) {}

func (b *scriptedBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte{0xff, 0xd8}, nil
}

func (b *scriptedBrowser) CurrentURL() string { return b.url }
func (b *scriptedBrowser) Close()             {}

// scriptedSerializer returns its snapshots in order and repeats the last
// one forever. The first call serves the initial snapshot.
type scriptedSerializer struct {
	snaps []entity.PageSnapshot
	calls int
}

func (s *scriptedSerializer) Snapshot(ctx context.Context) (entity.PageSnapshot, error) {
	if len(s.snaps) == 0 {
		return entity.PageSnapshot{}, fmt.Errorf("no snapshots scripted")
	}
	i := s.calls
	if i >= len(s.snaps) {
		i = len(s.snaps) - 1
	}
	s.calls++
	return s.snaps[i], nil
}

// scriptedOracle returns its decisions in order and repeats the last one.
// It also records every request so tests can assert on prompt contents.
type scriptedOracle struct {
	decisions []output.Decision
	requests  []output.DecisionRequest
}

func (o *scriptedOracle) Decide(ctx context.Context, req output.DecisionRequest) (output.Decision, error) {
	o.requests = append(o.requests, req)
	if len(o.decisions) == 0 {
		return output.Decision{Action: entity.SafeDefault(), Fallback: true}, nil
	}
	i := len(o.requests) - 1
	if i >= len(o.decisions) {
		i = len(o.decisions) - 1
	}
	return o.decisions[i], nil
}

type mapCredentials map[string]string

func (m mapCredentials) Credential(kind string) (string, bool) {
	v, ok := m[kind]
	return v, ok
}

type memoryStore struct {
	shots     []string
	sealCount int
	sealed    *entity.Trace
}

func (s *memoryStore) SaveScreenshot(step int, stage string, img []byte) (string, error) {
	handle := fmt.Sprintf("step_%02d_%s.jpg", step, stage)
	s.shots = append(s.shots, handle)
	return handle, nil
}

func (s *memoryStore) Seal(trace *entity.Trace) (string, error) {
	s.sealCount++
	if s.sealCount > 1 {
		return "", fmt.Errorf("trace already sealed")
	}
	s.sealed = trace
	return "trace.json", nil
}

type memoryStoreFactory struct {
	store *memoryStore
}

func (f *memoryStoreFactory) NewRun(appName, taskName string) (output.TraceStorePort, error) {
	if f.store == nil {
		f.store = &memoryStore{}
	}
	return f.store, nil
}

func click(target string) output.Decision {
	return output.Decision{Action: entity.Action{Kind: entity.ActionClick, Target: target}}
}

func typeInto(target, value string) output.Decision {
	return output.Decision{Action: entity.Action{Kind: entity.ActionType, Target: target, Value: value}}
}

func finish(reason string) output.Decision {
	return output.Decision{Action: entity.Action{Kind: entity.ActionFinish, Reason: reason}}
}

func snap(url string, elements ...entity.PageElement) entity.PageSnapshot {
	return entity.PageSnapshot{URL: url, Elements: elements}
}

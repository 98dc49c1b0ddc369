// Package loopwatch classifies the run's recent behavior from a bounded
// rolling window of step signatures: progressing, stalled (the page stops
// changing) or looping (the same action on the same page keeps recurring).
package loopwatch

import "github.com/softlight/wayfinder/internal/domain/entity"

type Verdict int

const (
	Progressing Verdict = iota
	Stalled
	Looping
)

func (v Verdict) String() string {
	switch v {
	case Stalled:
		return "stalled"
	case Looping:
		return "looping"
	default:
		return "progressing"
	}
}

const (
	// loopRepeats is how many times the same (url, action) signature must
	// recur inside the window before the run counts as looping.
	loopRepeats = 3
	// stallSteps is how many consecutive no-change steps count as stalled.
	stallSteps = 2
)

type sample struct {
	url       string
	signature string
	changed   bool
	success   bool
}

// Watcher holds the fixed-capacity ring of recent steps plus the run-wide
// failure count. Owned by the orchestrator; not safe for concurrent use
// and never needs to be.
type Watcher struct {
	ring     []sample
	next     int
	filled   int
	failures int
}

func New(capacity int) *Watcher {
	if capacity <= 0 {
		capacity = 5
	}
	return &Watcher{ring: make([]sample, capacity)}
}

func (w *Watcher) Observe(rec entity.StepRecord) {
	w.ring[w.next] = sample{
		url:       rec.StateBefore.URL,
		signature: rec.Action.Signature(),
		changed:   rec.Changed(),
		success:   rec.Success,
	}
	w.next = (w.next + 1) % len(w.ring)
	if w.filled < len(w.ring) {
		w.filled++
	}
	if !rec.Success {
		w.failures++
	}
}

// Failures is the cumulative count of failed steps across the whole run,
// independent of the window.
func (w *Watcher) Failures() int {
	return w.failures
}

// Classify inspects the window. When both conditions hold, Looping wins:
// it carries the stronger corrective action.
func (w *Watcher) Classify() Verdict {
	if w.looping() {
		return Looping
	}
	if w.stalled() {
		return Stalled
	}
	return Progressing
}

func (w *Watcher) looping() bool {
	counts := make(map[string]int, w.filled)
	for i := 0; i < w.filled; i++ {
		s := w.ring[i]
		key := s.url + "\x00" + s.signature
		counts[key]++
		if counts[key] >= loopRepeats {
			return true
		}
	}
	return false
}

func (w *Watcher) stalled() bool {
	if w.filled < stallSteps {
		return false
	}
	for i := 1; i <= stallSteps; i++ {
		s := w.ring[(w.next-i+len(w.ring))%len(w.ring)]
		if s.changed {
			return false
		}
	}
	return true
}

// Package resolver validates oracle-proposed actions against the fixed
// vocabulary and runs the soft plausibility check against the current
// snapshot. Pure functions only; no I/O, no logging.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/softlight/wayfinder/internal/domain/entity"
)

var (
	ErrUnknownAction = errors.New("unknown action kind")
	ErrEmptyTarget   = errors.New("empty target text")
	ErrUnknownKey    = errors.New("unknown key")
)

const (
	minWaitSeconds = 1
	maxWaitSeconds = 30
)

// supportedKeys is the press vocabulary. The browser adapter owns the
// mapping to device key codes.
var supportedKeys = map[string]string{
	"enter":      "Enter",
	"tab":        "Tab",
	"escape":     "Escape",
	"esc":        "Escape",
	"backspace":  "Backspace",
	"delete":     "Delete",
	"space":      "Space",
	"arrowup":    "ArrowUp",
	"arrowdown":  "ArrowDown",
	"arrowleft":  "ArrowLeft",
	"arrowright": "ArrowRight",
	"pageup":     "PageUp",
	"pagedown":   "PageDown",
	"home":       "Home",
	"end":        "End",
}

// Resolved is a validated action plus the plausibility verdict. A
// LowConfidence action still executes; the executor just uses the short
// settle and logs the mismatch, since the serializer's element list may
// be incomplete.
type Resolved struct {
	Action        entity.Action
	Tier          entity.MatchTier
	LowConfidence bool
}

func Resolve(action entity.Action, snap entity.PageSnapshot) (Resolved, error) {
	switch action.Kind {
	case entity.ActionClick, entity.ActionType:
		if strings.TrimSpace(action.Target) == "" {
			return Resolved{}, fmt.Errorf("%s: %w", action.Kind, ErrEmptyTarget)
		}
		tier := matchTier(action.Target, snap)
		return Resolved{
			Action:        action,
			Tier:          tier,
			LowConfidence: tier == entity.TierNone,
		}, nil

	case entity.ActionPress:
		canonical, ok := supportedKeys[strings.ToLower(strings.TrimSpace(action.Key))]
		if !ok {
			return Resolved{}, fmt.Errorf("%q: %w", action.Key, ErrUnknownKey)
		}
		action.Key = canonical
		return Resolved{Action: action}, nil

	case entity.ActionWait:
		if action.Seconds < minWaitSeconds {
			action.Seconds = minWaitSeconds
		}
		if action.Seconds > maxWaitSeconds {
			action.Seconds = maxWaitSeconds
		}
		return Resolved{Action: action}, nil

	case entity.ActionFinish:
		return Resolved{Action: action}, nil

	default:
		return Resolved{}, fmt.Errorf("%q: %w", action.Kind, ErrUnknownAction)
	}
}

// matchTier runs the three-tier fallback comparison of the target against
// the snapshot's elements: exact, case-insensitive, then substring in
// either direction.
func matchTier(target string, snap entity.PageSnapshot) entity.MatchTier {
	for _, e := range snap.Elements {
		if e.Text == target {
			return entity.TierExact
		}
	}
	for _, e := range snap.Elements {
		if strings.EqualFold(e.Text, target) {
			return entity.TierFold
		}
	}
	lower := strings.ToLower(target)
	for _, e := range snap.Elements {
		text := strings.ToLower(e.Text)
		if text == "" {
			continue
		}
		if strings.Contains(text, lower) || strings.Contains(lower, text) {
			return entity.TierSubstring
		}
	}
	return entity.TierNone
}

// FieldMatches reports whether a type-action target plausibly names one
// of the given field semantics (fold or substring, both directions). The
// orchestrator uses it to recognize username/password fields during the
// login sub-protocol.
func FieldMatches(target string, candidates ...string) bool {
	lower := strings.ToLower(strings.TrimSpace(target))
	if lower == "" {
		return false
	}
	for _, c := range candidates {
		c = strings.ToLower(c)
		if lower == c || strings.Contains(lower, c) || strings.Contains(c, lower) {
			return true
		}
	}
	return false
}

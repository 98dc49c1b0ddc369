package openaiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/softlight/wayfinder/internal/domain/entity"
)

var errNoAction = errors.New("no action object in reply")

// fenceRe strips markdown code fences some models wrap their JSON in.
var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// wireAction is the oracle's reply schema. Extra fields are ignored;
// seconds tolerates both numbers and numeric strings by way of float64.
type wireAction struct {
	Action      string  `json:"action"`
	TargetText  string  `json:"target_text"`
	TargetField string  `json:"target_field"`
	Text        string  `json:"text"`
	Key         string  `json:"key"`
	Seconds     float64 `json:"seconds"`
	Summary     string  `json:"summary"`
}

// parseAction turns the oracle's free-form reply into an Action. Policy,
// in order: strict parse of the whole reply, fenced-block extraction,
// first balanced JSON object substring. The caller substitutes the safe
// default on error.
func parseAction(raw string) (entity.Action, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return entity.Action{}, fmt.Errorf("empty reply: %w", errNoAction)
	}

	if a, err := decodeAction(raw); err == nil {
		return a, nil
	}

	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		if a, err := decodeAction(m[1]); err == nil {
			return a, nil
		}
	}

	if obj, ok := balancedObject(raw); ok {
		if a, err := decodeAction(obj); err == nil {
			return a, nil
		}
	}

	return entity.Action{}, fmt.Errorf("reply %.80q: %w", raw, errNoAction)
}

func decodeAction(s string) (entity.Action, error) {
	var w wireAction
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return entity.Action{}, err
	}
	kind := entity.ActionKind(strings.ToLower(strings.TrimSpace(w.Action)))
	if kind == "" {
		return entity.Action{}, errNoAction
	}

	a := entity.Action{Kind: kind}
	switch kind {
	case entity.ActionClick:
		a.Target = w.TargetText
	case entity.ActionType:
		a.Target = w.TargetField
		a.Value = w.Text
	case entity.ActionPress:
		a.Key = w.Key
	case entity.ActionWait:
		a.Seconds = int(w.Seconds)
	case entity.ActionFinish:
		a.Reason = w.Summary
	default:
		// Unknown kinds pass through; the resolver rejects them and the
		// step is recorded as unresolvable rather than hiding the reply.
	}
	return a, nil
}

// balancedObject scans for the first balanced, string-aware JSON object
// substring.
func balancedObject(s string) (string, bool) {
	depth := 0
	start := -1
	inStr := false
	esc := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if esc {
			esc = false
			continue
		}
		switch ch {
		case '\\':
			if inStr {
				esc = true
			}
		case '"':
			inStr = !inStr
		case '{':
			if !inStr {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inStr && depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

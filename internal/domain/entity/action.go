package entity

import "fmt"

type ActionKind string

const (
	ActionClick  ActionKind = "click"
	ActionType   ActionKind = "type"
	ActionPress  ActionKind = "press"
	ActionWait   ActionKind = "wait"
	ActionFinish ActionKind = "finish"
)

// Credential placeholders. These are the only value forms that may appear
// in prompts, history summaries and the trace; the literal credential goes
// to the browser call alone.
const (
	PlaceholderUsername = "{{username}}"
	PlaceholderPassword = "{{password}}"
)

// Action is the discriminated value the decision oracle proposes. Exactly
// one variant's payload is meaningful for a given Kind.
type Action struct {
	Kind    ActionKind `json:"action"`
	Target  string     `json:"target,omitempty"`  // click, type
	Value   string     `json:"value,omitempty"`   // type
	Key     string     `json:"key,omitempty"`     // press
	Seconds int        `json:"seconds,omitempty"` // wait
	Reason  string     `json:"reason,omitempty"`  // finish
}

// SafeDefault is the fallback substituted when the oracle's reply is
// unusable: a short wait that lets asynchronous UI settle.
func SafeDefault() Action {
	return Action{Kind: ActionWait, Seconds: 1}
}

// Signature identifies the action for loop detection: kind plus the
// target or key it operates on. Values are excluded so retyping different
// text into the same field still counts as a repeat.
func (a Action) Signature() string {
	switch a.Kind {
	case ActionClick, ActionType:
		return string(a.Kind) + ":" + a.Target
	case ActionPress:
		return string(a.Kind) + ":" + a.Key
	default:
		return string(a.Kind)
	}
}

func (a Action) String() string {
	switch a.Kind {
	case ActionClick:
		return fmt.Sprintf("click %q", a.Target)
	case ActionType:
		return fmt.Sprintf("type %q into %q", a.Value, a.Target)
	case ActionPress:
		return fmt.Sprintf("press %s", a.Key)
	case ActionWait:
		return fmt.Sprintf("wait %ds", a.Seconds)
	case ActionFinish:
		return fmt.Sprintf("finish: %s", a.Reason)
	default:
		return string(a.Kind)
	}
}

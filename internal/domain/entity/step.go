package entity

// FailureKind values recorded on failed steps.
const (
	FailureDecisionParse   = "decision_parse_failure"
	FailureUnresolvable    = "unresolvable_action"
	FailureElementNotFound = "element_not_found"
	FailureActionTimeout   = "action_timeout"
	FailureSnapshot        = "snapshot_failure"
)

// StepRecord is one completed step of the run. It is immutable once
// appended to the trace.
type StepRecord struct {
	Index               int          `json:"step"`
	StateBefore         PageSnapshot `json:"state_before"`
	Action              Action       `json:"action"`
	StateAfter          PageSnapshot `json:"state_after"`
	Success             bool         `json:"success"`
	FailureKind         string       `json:"failure_kind,omitempty"`
	Error               string       `json:"error,omitempty"`
	ElementsAppeared    []string     `json:"elements_appeared,omitempty"`
	ElementsDisappeared []string     `json:"elements_disappeared,omitempty"`
	ScreenshotBefore    string       `json:"screenshot_before,omitempty"`
	ScreenshotAfter     string       `json:"screenshot_after,omitempty"`
	Note                string       `json:"note,omitempty"`
}

// Changed reports whether the step observably changed the page: element
// churn or a URL move. Used by the stall classifier.
func (r StepRecord) Changed() bool {
	return len(r.ElementsAppeared) > 0 ||
		len(r.ElementsDisappeared) > 0 ||
		r.StateBefore.URL != r.StateAfter.URL
}

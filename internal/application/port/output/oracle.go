package output

import (
	"context"

	"github.com/softlight/wayfinder/internal/domain/entity"
)

// DecisionRequest is everything the oracle sees: task text, the rendered
// page summary and a compact history of recent actions. Nothing else —
// no app names, no URLs keyed to per-site behavior, no credentials.
type DecisionRequest struct {
	Task    string
	Page    string
	History string
}

// Decision is the oracle's reply after parsing. Fallback is true when the
// reply was unusable and the safe default was substituted; Raw keeps the
// unparsed reply for the log.
type Decision struct {
	Action   entity.Action
	Fallback bool
	Raw      string
}

// OraclePort asks the reasoning model for the next action. The returned
// error is non-nil only when the context is dead; a malformed or
// unreachable oracle yields a Fallback decision instead.
type OraclePort interface {
	Decide(ctx context.Context, req DecisionRequest) (Decision, error)
}

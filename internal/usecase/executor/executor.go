// Package executor runs one step of the decision loop end to end:
// decide, resolve, execute, settle, re-snapshot, diff, record. All
// per-step failures are absorbed into the record; the only error this
// package returns is a dead context.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/application/port/output"
	"github.com/softlight/wayfinder/internal/domain/entity"
	"github.com/softlight/wayfinder/internal/usecase/resolver"
)

const (
	defaultSettleTimeout = 3 * time.Second
	shortSettleTimeout   = 500 * time.Millisecond
)

// RewriteFunc lets the orchestrator rework the decided action after the
// oracle returns and before the browser sees it (credential injection).
// It returns the action to record — placeholders only — and the literal
// value for the browser call.
type RewriteFunc func(entity.Action) (record entity.Action, literal string)

// StepInput is everything the orchestrator hands the executor for one
// step. StateBefore comes from the previous step's StateAfter so the
// continuity invariant holds by construction.
type StepInput struct {
	Index       int
	Task        string
	StateBefore entity.PageSnapshot
	History     string
	// StartTier escalates the browser's element matching after a detected
	// loop; TierExact otherwise.
	StartTier entity.MatchTier
	// Forced replaces the oracle's decision with a synthetic action
	// (forced variation). The oracle is not consulted.
	Forced *entity.Action
	Note   string
	// Rewrite is applied to the decided action; nil means identity.
	Rewrite RewriteFunc
}

type StepOutcome struct {
	Record   entity.StepRecord
	Finished bool
	Summary  string
}

type UseCase struct {
	browser    output.BrowserPort
	serializer output.SerializerPort
	oracle     output.OraclePort
	store      output.TraceStorePort
	settle     time.Duration
	log        *zap.Logger
}

func New(
	browser output.BrowserPort,
	serializer output.SerializerPort,
	oracle output.OraclePort,
	store output.TraceStorePort,
	settle time.Duration,
	log *zap.Logger,
) *UseCase {
	if settle <= 0 {
		settle = defaultSettleTimeout
	}
	return &UseCase{
		browser:    browser,
		serializer: serializer,
		oracle:     oracle,
		store:      store,
		settle:     settle,
		log:        log.Named("executor"),
	}
}

func (uc *UseCase) ExecuteStep(ctx context.Context, in StepInput) (StepOutcome, error) {
	rec := entity.StepRecord{
		Index:       in.Index,
		StateBefore: in.StateBefore,
		Success:     true,
		Note:        in.Note,
	}

	rec.ScreenshotBefore = uc.screenshot(ctx, in.Index, "before")

	// Deciding.
	var decided entity.Action
	switch {
	case in.Forced != nil:
		decided = *in.Forced
	default:
		decision, err := uc.oracle.Decide(ctx, output.DecisionRequest{
			Task:    in.Task,
			Page:    in.StateBefore.Summary(20, 4000),
			History: in.History,
		})
		if err != nil {
			return StepOutcome{}, err
		}
		decided = decision.Action
		if decision.Fallback {
			rec.Success = false
			rec.FailureKind = entity.FailureDecisionParse
			uc.log.Warn("oracle reply unusable, safe default substituted",
				zap.Int("step", in.Index),
				zap.String("raw", decision.Raw))
		}
	}

	if in.Rewrite != nil {
		record, literal := in.Rewrite(decided)
		rec.Action = record
		decided = record
		decided.Value = literal
	} else {
		rec.Action = decided
	}

	// Finish short-circuits: no browser call, state unchanged.
	if decided.Kind == entity.ActionFinish {
		rec.StateAfter = in.StateBefore
		rec.ScreenshotAfter = rec.ScreenshotBefore
		uc.log.Info("finish decided", zap.Int("step", in.Index), zap.String("summary", decided.Reason))
		return StepOutcome{Record: rec, Finished: true, Summary: decided.Reason}, nil
	}

	// Resolving.
	resolved, rerr := resolver.Resolve(decided, in.StateBefore)
	if rerr != nil {
		rec.Success = false
		rec.FailureKind = entity.FailureUnresolvable
		rec.Error = rerr.Error()
		uc.log.Warn("action did not resolve", zap.Int("step", in.Index), zap.Error(rerr))
	}

	// Executing. An unresolvable action skips the browser call but still
	// re-snapshots so the record stays truthful. The fallback wait of a
	// parse failure does execute; its whole point is letting the UI settle.
	executed := false
	if rerr == nil {
		if err := uc.execute(ctx, resolved, in.StartTier); err != nil {
			if ctx.Err() != nil {
				return StepOutcome{}, ctx.Err()
			}
			rec.Success = false
			if rec.FailureKind == "" {
				rec.FailureKind = entity.FailureKindFor(err)
			}
			rec.Error = err.Error()
			uc.log.Warn("action failed",
				zap.Int("step", in.Index),
				zap.String("action", decided.String()),
				zap.Error(err))
			uc.screenshot(ctx, in.Index, "error")
		} else {
			executed = true
			uc.log.Info("action executed",
				zap.Int("step", in.Index),
				zap.String("action", rec.Action.String()),
				zap.String("tier", in.StartTier.String()))
		}
	}

	// Settle. Wait actions sleep their own duration during execution;
	// everything else waits for DOM quiescence, with the short ceiling
	// when the resolver had no plausible element for the target.
	if executed && resolved.Action.Kind != entity.ActionWait {
		ceiling := uc.settle
		if resolved.LowConfidence {
			ceiling = shortSettleTimeout
			uc.log.Debug("target not in element list, short settle",
				zap.Int("step", in.Index),
				zap.String("target", resolved.Action.Target))
		}
		uc.browser.WaitSettle(ctx, ceiling)
	}

	// Diffing.
	after, err := uc.serializer.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return StepOutcome{}, ctx.Err()
		}
		uc.log.Warn("re-snapshot failed", zap.Int("step", in.Index), zap.Error(err))
		rec.Success = false
		rec.FailureKind = entity.FailureSnapshot
		rec.Error = err.Error()
		after = in.StateBefore
	}
	rec.StateAfter = after
	rec.ElementsAppeared, rec.ElementsDisappeared = entity.DiffElements(in.StateBefore, after)
	rec.ScreenshotAfter = uc.screenshot(ctx, in.Index, "after")

	return StepOutcome{Record: rec}, nil
}

func (uc *UseCase) execute(ctx context.Context, r resolver.Resolved, tier entity.MatchTier) error {
	a := r.Action
	switch a.Kind {
	case entity.ActionClick:
		return uc.browser.ClickText(ctx, a.Target, tier)
	case entity.ActionType:
		return uc.browser.TypeText(ctx, a.Target, a.Value, tier)
	case entity.ActionPress:
		return uc.browser.PressKey(ctx, a.Key)
	case entity.ActionWait:
		return uc.browser.Wait(ctx, time.Duration(a.Seconds)*time.Second)
	default:
		return nil
	}
}

// screenshot is best-effort; a browser or store failure leaves the handle
// empty and never fails the step.
func (uc *UseCase) screenshot(ctx context.Context, step int, stage string) string {
	img, err := uc.browser.Screenshot(ctx)
	if err != nil {
		uc.log.Debug("screenshot failed", zap.Int("step", step), zap.String("stage", stage), zap.Error(err))
		return ""
	}
	handle, err := uc.store.SaveScreenshot(step, stage, img)
	if err != nil {
		uc.log.Debug("screenshot save failed", zap.Int("step", step), zap.String("stage", stage), zap.Error(err))
		return ""
	}
	return handle
}

// Package orchestrator drives the step executor across a task's lifetime.
// It owns termination policy, loop recovery and the login sub-protocol,
// and it is the only writer of the trace.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/application/port/input"
	"github.com/softlight/wayfinder/internal/application/port/output"
	"github.com/softlight/wayfinder/internal/domain/entity"
	"github.com/softlight/wayfinder/internal/usecase/executor"
	"github.com/softlight/wayfinder/internal/usecase/loopwatch"
	"github.com/softlight/wayfinder/internal/usecase/resolver"
)

var _ input.TaskRunner = (*UseCase)(nil)

// Config carries the run-level knobs. Zero values fall back to the
// defaults below, except MaxSteps in the request, which is honored
// literally (a zero-step budget is a legal, immediately-exhausted run).
type Config struct {
	FailureLimit  int
	LoopWindow    int
	HistoryDepth  int
	SettleTimeout time.Duration
}

const (
	defaultFailureLimit = 5
	defaultLoopWindow   = 5
	defaultHistoryDepth = 5
	forcedWaitSeconds   = 2
	forcedVariationNote = "forced variation after loop detection"
)

type UseCase struct {
	browser    output.BrowserPort
	serializer output.SerializerPort
	oracle     output.OraclePort
	creds      output.CredentialsPort
	stores     output.TraceStoreFactory
	cfg        Config
	log        *zap.Logger
}

func New(
	browser output.BrowserPort,
	serializer output.SerializerPort,
	oracle output.OraclePort,
	creds output.CredentialsPort,
	stores output.TraceStoreFactory,
	cfg Config,
	log *zap.Logger,
) *UseCase {
	if cfg.FailureLimit <= 0 {
		cfg.FailureLimit = defaultFailureLimit
	}
	if cfg.LoopWindow <= 0 {
		cfg.LoopWindow = defaultLoopWindow
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = defaultHistoryDepth
	}
	return &UseCase{
		browser:    browser,
		serializer: serializer,
		oracle:     oracle,
		creds:      creds,
		stores:     stores,
		cfg:        cfg,
		log:        log.Named("orchestrator"),
	}
}

// Run executes one task to a terminal status. The returned error is
// non-nil only for infrastructure failure before the first step or a dead
// context; every exit path seals the trace first.
func (uc *UseCase) Run(ctx context.Context, req input.RunRequest) (*entity.Trace, error) {
	trace := entity.NewTrace(uuid.NewString(), req.Task, req.StartURL, req.AppName, req.TaskName)

	store, err := uc.stores.NewRun(req.AppName, req.TaskName)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	sealed := false
	seal := func(status entity.RunStatus, summary string) {
		if sealed {
			return
		}
		sealed = true
		trace.Seal(status, summary)
		path, serr := store.Seal(trace)
		if serr != nil {
			uc.log.Error("trace seal failed", zap.Error(serr))
			return
		}
		trace.TracePath = path
		uc.log.Info("trace sealed",
			zap.String("status", string(status)),
			zap.Int("steps", trace.TotalSteps),
			zap.String("path", path))
	}

	uc.log.Info("starting task",
		zap.String("run_id", trace.RunID),
		zap.String("task", req.Task),
		zap.String("url", req.StartURL),
		zap.Int("max_steps", req.MaxSteps))

	// Starting: navigate, settle, take the initial snapshot. This is run
	// metadata, not a step record.
	if err := uc.browser.Navigate(ctx, req.StartURL); err != nil {
		seal(entity.StatusStuckAborted, "navigation to start URL failed")
		return trace, fmt.Errorf("navigate %s: %w", req.StartURL, err)
	}
	uc.browser.WaitSettle(ctx, uc.cfg.SettleTimeout)

	before, err := uc.serializer.Snapshot(ctx)
	if err != nil {
		seal(entity.StatusStuckAborted, "initial snapshot failed")
		return trace, fmt.Errorf("initial snapshot: %w", err)
	}
	if img, serr := uc.browser.Screenshot(ctx); serr == nil {
		if handle, herr := store.SaveScreenshot(0, "initial", img); herr == nil {
			trace.InitialScreenshot = handle
		}
	}

	exec := executor.New(uc.browser, uc.serializer, uc.oracle, store, uc.cfg.SettleTimeout, uc.log)
	detector := loopwatch.New(uc.cfg.LoopWindow)

	var history []string
	loginMode := false
	escalate := false
	justForced := false
	var forced *entity.Action
	note := ""

	maxSteps := req.MaxSteps
	if maxSteps < 0 {
		maxSteps = 0
	}

	for index := 0; ; index++ {
		// Cancellation is honored here only; an in-flight step always
		// runs to completion so no action is left half-executed.
		if ctx.Err() != nil {
			seal(entity.StatusStuckAborted, "run canceled")
			return trace, ctx.Err()
		}
		if index >= maxSteps {
			uc.log.Info("step budget exhausted", zap.Int("max_steps", maxSteps))
			seal(entity.StatusMaxStepsExceeded, "")
			return trace, nil
		}

		tier := entity.TierExact
		if escalate && forced == nil {
			tier = entity.TierSubstring
			escalate = false
		}

		out, err := exec.ExecuteStep(ctx, executor.StepInput{
			Index:       index,
			Task:        req.Task,
			StateBefore: before,
			History:     strings.Join(history, "\n"),
			StartTier:   tier,
			Forced:      forced,
			Note:        note,
			Rewrite:     uc.rewrite(&loginMode),
		})
		forced, note = nil, ""
		if err != nil {
			seal(entity.StatusStuckAborted, "run canceled mid-step")
			return trace, err
		}

		rec := out.Record
		if err := trace.Append(rec); err != nil {
			// Continuity is guaranteed by construction; a violation here
			// is a programming error worth failing loudly on.
			seal(entity.StatusStuckAborted, err.Error())
			return trace, err
		}
		detector.Observe(rec)
		history = uc.appendHistory(history, rec)
		before = rec.StateAfter

		if out.Finished {
			seal(entity.StatusCompleted, out.Summary)
			return trace, nil
		}
		if detector.Failures() >= uc.cfg.FailureLimit {
			uc.log.Warn("cumulative failure limit reached", zap.Int("failures", detector.Failures()))
			seal(entity.StatusStuckAborted, fmt.Sprintf("%d failed steps", detector.Failures()))
			return trace, nil
		}

		// Multi-step login: a password field appearing where none existed
		// means the page is asking for credentials now. A successful
		// password fill ends login handling.
		if !loginMode && !rec.StateBefore.HasPasswordInput() && rec.StateAfter.HasPasswordInput() {
			loginMode = true
			uc.log.Info("password input appeared, entering login handling", zap.Int("step", index))
		} else if loginMode && rec.Success &&
			rec.Action.Kind == entity.ActionType && rec.Action.Value == entity.PlaceholderPassword {
			loginMode = false
			uc.log.Info("password submitted, returning to normal running", zap.Int("step", index))
		}

		// A forced wait is not repeated back to back: the repeats that
		// tripped the detector stay in the window for a while, and the
		// escalated retry needs its chance first.
		wasForced := justForced
		justForced = false
		switch detector.Classify() {
		case loopwatch.Looping:
			// Forcing a wait to vary a loop of waits adds nothing; only
			// targeted actions get the variation treatment.
			if !wasForced && rec.Action.Kind != entity.ActionWait {
				uc.log.Warn("loop detected, forcing variation", zap.Int("step", index))
				forced = &entity.Action{Kind: entity.ActionWait, Seconds: forcedWaitSeconds}
				note = forcedVariationNote
				escalate = true
				justForced = true
			}
		case loopwatch.Stalled:
			uc.log.Debug("page did not observably change", zap.Int("step", index))
		}
	}
}

// rewrite builds the credential seam applied after each oracle decision.
// Placeholders in the decided value always resolve to the stored literal;
// during login handling, type actions targeting username/password fields
// are rewritten so the trace and prompts carry the placeholder while the
// literal goes to the browser call alone. A successful password fill ends
// login handling.
func (uc *UseCase) rewrite(loginMode *bool) executor.RewriteFunc {
	return func(a entity.Action) (entity.Action, string) {
		if a.Kind != entity.ActionType {
			return a, a.Value
		}

		switch a.Value {
		case entity.PlaceholderUsername:
			return a, uc.credential(output.CredentialUsername, a.Value)
		case entity.PlaceholderPassword:
			return a, uc.credential(output.CredentialPassword, a.Value)
		}

		if *loginMode {
			if resolver.FieldMatches(a.Target, "password") {
				if v, ok := uc.creds.Credential(output.CredentialPassword); ok {
					a.Value = entity.PlaceholderPassword
					return a, v
				}
			} else if resolver.FieldMatches(a.Target, "username", "email", "login") {
				if v, ok := uc.creds.Credential(output.CredentialUsername); ok {
					a.Value = entity.PlaceholderUsername
					return a, v
				}
			}
		}
		return a, a.Value
	}
}

func (uc *UseCase) credential(kind, fallback string) string {
	if v, ok := uc.creds.Credential(kind); ok {
		return v
	}
	uc.log.Warn("credential requested but not configured", zap.String("kind", kind))
	return fallback
}

// appendHistory keeps the compact last-N summary the oracle sees. The
// recorded action already carries placeholders, so credentials never
// reach the prompt.
func (uc *UseCase) appendHistory(history []string, rec entity.StepRecord) []string {
	outcome := "ok"
	if !rec.Success {
		outcome = "FAILED"
		if rec.FailureKind != "" {
			outcome = "FAILED (" + rec.FailureKind + ")"
		}
	}
	history = append(history, fmt.Sprintf("%d. %s -> %s", rec.Index+1, rec.Action.String(), outcome))
	if len(history) > uc.cfg.HistoryDepth {
		history = history[len(history)-uc.cfg.HistoryDepth:]
	}
	return history
}

package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/softlight/wayfinder/internal/application/port/input"
	"github.com/softlight/wayfinder/internal/application/port/output"
	"github.com/softlight/wayfinder/internal/domain/entity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRunner(t *testing.T, b *scriptedBrowser, s *scriptedSerializer, o *scriptedOracle, creds mapCredentials) (*UseCase, *memoryStoreFactory) {
	t.Helper()
	stores := &memoryStoreFactory{}
	uc := New(b, s, o, creds, stores, Config{}, zaptest.NewLogger(t))
	return uc, stores
}

func run(t *testing.T, uc *UseCase, maxSteps int) *entity.Trace {
	t.Helper()
	trace, err := uc.Run(context.Background(), input.RunRequest{
		Task:     "create a project",
		StartURL: "https://app.test/",
		MaxSteps: maxSteps,
	})
	require.NoError(t, err)
	require.NotNil(t, trace)
	return trace
}

func TestRun_FinishCompletesTheRun(t *testing.T) {
	home := snap("https://app.test/", entity.PageElement{Role: entity.RoleButton, Text: "New Project"})
	form := snap("https://app.test/new", entity.PageElement{Role: entity.RoleInput, Text: "Project name", Hint: "text"})

	oracle := &scriptedOracle{decisions: []output.Decision{
		click("New Project"),
		finish("project created"),
	}}
	uc, stores := newRunner(t, &scriptedBrowser{}, &scriptedSerializer{snaps: []entity.PageSnapshot{home, form}}, oracle, nil)

	trace := run(t, uc, 15)

	assert.Equal(t, entity.StatusCompleted, trace.Status)
	assert.Equal(t, "project created", trace.Summary)
	assert.Len(t, trace.Steps, 2)
	assert.Equal(t, 1, stores.store.sealCount)
	assert.False(t, trace.FinishedAt.IsZero())
}

func TestRun_ZeroStepBudget(t *testing.T) {
	home := snap("https://app.test/")
	oracle := &scriptedOracle{decisions: []output.Decision{finish("should never be asked")}}
	uc, stores := newRunner(t, &scriptedBrowser{}, &scriptedSerializer{snaps: []entity.PageSnapshot{home}}, oracle, nil)

	trace := run(t, uc, 0)

	assert.Equal(t, entity.StatusMaxStepsExceeded, trace.Status)
	assert.Empty(t, trace.Steps)
	assert.Empty(t, oracle.requests, "the oracle is never consulted")
	assert.Equal(t, 1, stores.store.sealCount, "the trace is still sealed")
}

func TestRun_MaxStepsExceeded(t *testing.T) {
	home := snap("https://app.test/", entity.PageElement{Role: entity.RoleButton, Text: "Next"})
	uc, _ := newRunner(t, &scriptedBrowser{},
		&scriptedSerializer{snaps: []entity.PageSnapshot{home}},
		&scriptedOracle{decisions: []output.Decision{
			click("Next"),
			{Action: entity.Action{Kind: entity.ActionPress, Key: "Tab"}},
			{Action: entity.Action{Kind: entity.ActionWait, Seconds: 1}},
		}}, nil)

	trace := run(t, uc, 3)

	assert.Equal(t, entity.StatusMaxStepsExceeded, trace.Status)
	assert.Len(t, trace.Steps, 3)
}

func TestRun_MalformedOracleAbortsAfterExactlyFiveFailures(t *testing.T) {
	home := snap("https://app.test/")
	oracle := &scriptedOracle{decisions: []output.Decision{
		{Action: entity.SafeDefault(), Fallback: true, Raw: "no json here"},
	}}
	uc, _ := newRunner(t, &scriptedBrowser{}, &scriptedSerializer{snaps: []entity.PageSnapshot{home}}, oracle, nil)

	trace := run(t, uc, 50)

	assert.Equal(t, entity.StatusStuckAborted, trace.Status)
	require.Len(t, trace.Steps, 5, "exactly five failed steps, never fewer, never more")
	for _, rec := range trace.Steps {
		assert.False(t, rec.Success)
		assert.Equal(t, entity.FailureDecisionParse, rec.FailureKind)
	}
}

func TestRun_ContinuityInvariant(t *testing.T) {
	snaps := []entity.PageSnapshot{
		snap("https://app.test/", entity.PageElement{Role: entity.RoleButton, Text: "A"}),
		snap("https://app.test/a", entity.PageElement{Role: entity.RoleButton, Text: "B"}),
		snap("https://app.test/b", entity.PageElement{Role: entity.RoleButton, Text: "C"}),
		snap("https://app.test/c", entity.PageElement{Role: entity.RoleButton, Text: "D"}),
	}
	uc, _ := newRunner(t, &scriptedBrowser{}, &scriptedSerializer{snaps: snaps},
		&scriptedOracle{decisions: []output.Decision{click("A"), click("B"), click("C")}}, nil)

	trace := run(t, uc, 3)

	require.Len(t, trace.Steps, 3)
	for i := 0; i+1 < len(trace.Steps); i++ {
		assert.Equal(t, trace.Steps[i].StateAfter.Key(), trace.Steps[i+1].StateBefore.Key(),
			"step %d -> %d continuity", i, i+1)
	}
	assert.Equal(t, snaps[0].Key(), trace.Steps[0].StateBefore.Key(),
		"step 0 starts from the initial snapshot")
}

func TestRun_LoopInjectsForcedVariation(t *testing.T) {
	home := snap("https://app.test/", entity.PageElement{Role: entity.RoleButton, Text: "New"})
	browser := &scriptedBrowser{}
	// The oracle stubbornly repeats the same click on a page that never
	// changes.
	uc, _ := newRunner(t, browser, &scriptedSerializer{snaps: []entity.PageSnapshot{home}},
		&scriptedOracle{decisions: []output.Decision{click("New")}}, nil)

	trace := run(t, uc, 6)

	require.GreaterOrEqual(t, len(trace.Steps), 4)
	// Steps 0-2 are the oracle's clicks; the third repeat trips the
	// detector and step 3 is the synthetic wait.
	forcedStep := trace.Steps[3]
	assert.Equal(t, entity.ActionWait, forcedStep.Action.Kind)
	assert.Equal(t, forcedVariationNote, forcedStep.Note)

	// The click after the forced wait starts at the escalated tier.
	var tiers []entity.MatchTier
	for _, c := range browser.clicks {
		tiers = append(tiers, c.tier)
	}
	require.GreaterOrEqual(t, len(tiers), 4)
	assert.Equal(t, entity.TierExact, tiers[2])
	assert.Equal(t, entity.TierSubstring, tiers[3], "match tier escalates after the forced wait")
}

func TestRun_LoginHandlingInjectsCredentials(t *testing.T) {
	login := snap("https://app.test/login",
		entity.PageElement{Role: entity.RoleInput, Text: "Email or username", Hint: "text"},
		entity.PageElement{Role: entity.RoleButton, Text: "Continue"})
	passwordStage := snap("https://app.test/login",
		entity.PageElement{Role: entity.RoleInput, Text: "Password", Hint: "password"},
		entity.PageElement{Role: entity.RoleButton, Text: "Sign in"})
	loggedIn := snap("https://app.test/home",
		entity.PageElement{Role: entity.RoleButton, Text: "New Project"})

	browser := &scriptedBrowser{}
	oracle := &scriptedOracle{decisions: []output.Decision{
		typeInto("Email or username", "user@example.com"),
		typeInto("Password", "password"),
		finish("logged in"),
	}}
	serializer := &scriptedSerializer{snaps: []entity.PageSnapshot{
		login,         // initial
		passwordStage, // after the username step: password field appears
		loggedIn,      // after the password step
	}}
	creds := mapCredentials{
		output.CredentialUsername: "real-user@corp.example",
		output.CredentialPassword: "real-s3cr3t",
	}
	uc, _ := newRunner(t, browser, serializer, oracle, creds)

	trace := run(t, uc, 10)

	require.Equal(t, entity.StatusCompleted, trace.Status)
	require.Len(t, trace.Steps, 3)

	passwordStep := trace.Steps[1]
	assert.Equal(t, entity.PlaceholderPassword, passwordStep.Action.Value,
		"the trace carries the placeholder")

	require.Len(t, browser.typed, 2)
	assert.Equal(t, "real-s3cr3t", browser.typed[1].value,
		"the literal credential goes to the browser only")

	for _, req := range oracle.requests {
		assert.NotContains(t, req.History, "real-s3cr3t", "credentials never reach the prompt")
		assert.NotContains(t, req.Page, "real-s3cr3t")
	}
}

func TestRun_ExplicitPlaceholderResolves(t *testing.T) {
	form := snap("https://app.test/login",
		entity.PageElement{Role: entity.RoleInput, Text: "Username", Hint: "text"})
	browser := &scriptedBrowser{}
	oracle := &scriptedOracle{decisions: []output.Decision{
		typeInto("Username", entity.PlaceholderUsername),
		finish("done"),
	}}
	uc, _ := newRunner(t, browser, &scriptedSerializer{snaps: []entity.PageSnapshot{form}}, oracle,
		mapCredentials{output.CredentialUsername: "alice"})

	trace := run(t, uc, 5)

	require.Len(t, browser.typed, 1)
	assert.Equal(t, "alice", browser.typed[0].value)
	assert.Equal(t, entity.PlaceholderUsername, trace.Steps[0].Action.Value)
}

func TestRun_HistorySummaryReachesOracle(t *testing.T) {
	home := snap("https://app.test/", entity.PageElement{Role: entity.RoleButton, Text: "New"})
	oracle := &scriptedOracle{decisions: []output.Decision{
		click("New"),
		finish("done"),
	}}
	uc, _ := newRunner(t, &scriptedBrowser{}, &scriptedSerializer{snaps: []entity.PageSnapshot{home}}, oracle, nil)

	run(t, uc, 5)

	require.Len(t, oracle.requests, 2)
	assert.Empty(t, oracle.requests[0].History)
	assert.True(t, strings.Contains(oracle.requests[1].History, `click "New"`),
		"history %q mentions the previous action", oracle.requests[1].History)
	assert.Contains(t, oracle.requests[1].History, "ok")
}

func TestRun_CancellationSealsTrace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	home := snap("https://app.test/")
	uc, stores := newRunner(t, &scriptedBrowser{}, &scriptedSerializer{snaps: []entity.PageSnapshot{home}},
		&scriptedOracle{}, nil)

	trace, err := uc.Run(ctx, input.RunRequest{Task: "t", StartURL: "https://app.test/", MaxSteps: 10})

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, trace)
	assert.Equal(t, entity.StatusStuckAborted, trace.Status)
	assert.Equal(t, 1, stores.store.sealCount)
}

func TestRun_NavigationFailureReturnsErrorWithSealedTrace(t *testing.T) {
	browser := &scriptedBrowser{navErr: assert.AnError}
	uc, stores := newRunner(t, browser, &scriptedSerializer{}, &scriptedOracle{}, nil)

	trace, err := uc.Run(context.Background(), input.RunRequest{Task: "t", StartURL: "https://app.test/", MaxSteps: 10})

	assert.Error(t, err)
	require.NotNil(t, trace)
	assert.Equal(t, entity.StatusStuckAborted, trace.Status)
	assert.Empty(t, trace.Steps)
	assert.Equal(t, 1, stores.store.sealCount)
}

func TestRun_ReplayIsDeterministic(t *testing.T) {
	makeDeps := func() (*scriptedBrowser, *scriptedSerializer, *scriptedOracle) {
		return &scriptedBrowser{},
			&scriptedSerializer{snaps: []entity.PageSnapshot{
				snap("https://app.test/", entity.PageElement{Role: entity.RoleButton, Text: "A"}),
				snap("https://app.test/a", entity.PageElement{Role: entity.RoleButton, Text: "B"}),
				snap("https://app.test/b"),
			}},
			&scriptedOracle{decisions: []output.Decision{click("A"), click("B"), finish("done")}}
	}

	diffs := func(trace *entity.Trace) [][]string {
		var out [][]string
		for _, rec := range trace.Steps {
			out = append(out, append(rec.ElementsAppeared, rec.ElementsDisappeared...))
		}
		return out
	}

	b1, s1, o1 := makeDeps()
	uc1, _ := newRunner(t, b1, s1, o1, nil)
	first := run(t, uc1, 10)

	b2, s2, o2 := makeDeps()
	uc2, _ := newRunner(t, b2, s2, o2, nil)
	second := run(t, uc2, 10)

	assert.Equal(t, diffs(first), diffs(second),
		"the same scripted collaborators reproduce identical diff sequences")
	assert.Equal(t, first.Status, second.Status)
}

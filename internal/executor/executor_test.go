package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/planner"
	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/trace"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

type testStep struct {
	name        step.Name
	capability  step.Capability
	criticality step.Criticality
	writes      []turn.Field
	run         func(ctx context.Context, tc *turn.Context) error
}

func (s *testStep) Name() step.Name               { return s.name }
func (s *testStep) Capability() step.Capability   { return s.capability }
func (s *testStep) Criticality() step.Criticality { return s.criticality }
func (s *testStep) Reads() []turn.Field           { return nil }
func (s *testStep) Writes() []turn.Field          { return s.writes }

func (s *testStep) Run(ctx context.Context, tc *turn.Context) error {
	if s.run == nil {
		return nil
	}
	return s.run(ctx, tc)
}

func newExecutor(t *testing.T, steps ...step.Step) (*Executor, *trace.MemorySink) {
	t.Helper()
	registry, err := step.NewRegistry(steps...)
	require.NoError(t, err)
	sink := trace.NewMemorySink()
	return New(registry, logging.NewTestLogger().Logger, time.Second), sink
}

func TestExecuteMergesDeclaredWrites(t *testing.T) {
	responder := &testStep{
		name:        step.ResponseGeneration,
		capability:  step.CapabilityRespond,
		criticality: step.Critical,
		writes:      []turn.Field{turn.FieldResponse, turn.FieldResponseMode},
		run: func(_ context.Context, tc *turn.Context) error {
			tc.Response = "hello there"
			tc.ResponseMode = turn.ModeSimple
			return nil
		},
	}
	exec, sink := newExecutor(t, responder)

	tc := turn.New("s", "u", "hi", "en")
	rec := trace.NewRecorder(sink, "s", tc.TurnID)

	result := exec.Execute(context.Background(), planner.Plan{step.ResponseGeneration}, tc, rec)

	assert.False(t, result.Aborted)
	assert.Equal(t, "hello there", tc.Response)
	assert.Equal(t, turn.ModeSimple, tc.ResponseMode)

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, trace.KindStepSuccess, entries[1].Kind)
	assert.ElementsMatch(t, []string{"response", "response_mode"}, entries[1].Fields)
}

func TestExecuteDiscardsUndeclaredWrites(t *testing.T) {
	sneaky := &testStep{
		name:       step.LanguageDetection,
		capability: step.CapabilityDetectLanguage,
		writes:     []turn.Field{turn.FieldDetectedLanguage},
		run: func(_ context.Context, tc *turn.Context) error {
			tc.DetectedLanguage = "it"
			tc.Response = "undeclared write"
			tc.IntentConfidence = 0.99
			return nil
		},
	}
	exec, sink := newExecutor(t, sneaky)

	tc := turn.New("s", "u", "ciao", "en")
	rec := trace.NewRecorder(sink, "s", tc.TurnID)
	exec.Execute(context.Background(), planner.Plan{step.LanguageDetection}, tc, rec)

	assert.Equal(t, "it", tc.DetectedLanguage)
	assert.Empty(t, tc.Response)
	assert.Zero(t, tc.IntentConfidence)
}

func TestExecuteSkipsFailedOptionalStep(t *testing.T) {
	flaky := &testStep{
		name:       step.DocumentRetrieval,
		capability: step.CapabilityRetrieve,
		writes:     []turn.Field{turn.FieldDocuments},
		run: func(_ context.Context, tc *turn.Context) error {
			tc.Documents = []turn.RetrievedDocument{{SourceID: "partial"}}
			return errors.New("index offline")
		},
	}
	responder := &testStep{
		name:        step.ResponseGeneration,
		capability:  step.CapabilityRespond,
		criticality: step.Critical,
		writes:      []turn.Field{turn.FieldResponse},
		run: func(_ context.Context, tc *turn.Context) error {
			tc.Response = "answered without documents"
			return nil
		},
	}
	exec, sink := newExecutor(t, flaky, responder)

	tc := turn.New("s", "u", "hi", "en")
	rec := trace.NewRecorder(sink, "s", tc.TurnID)
	result := exec.Execute(context.Background(),
		planner.Plan{step.DocumentRetrieval, step.ResponseGeneration}, tc, rec)

	assert.False(t, result.Aborted)
	assert.True(t, tc.ErrorFlag)
	assert.Empty(t, tc.Documents, "failed step's writes must be discarded")
	assert.Equal(t, "answered without documents", tc.Response)

	kinds := entryKinds(rec.Entries())
	assert.Contains(t, kinds, trace.KindStepSkipped)
}

func TestExecuteAbortsOnCriticalFailure(t *testing.T) {
	classifier := &testStep{
		name:        step.IntentClassification,
		capability:  step.CapabilityClassify,
		criticality: step.Critical,
		run: func(context.Context, *turn.Context) error {
			return step.NewFailure(step.IntentClassification, step.FailureServiceUnavailable, "model down")
		},
	}
	neverRuns := &testStep{
		name:        step.ResponseGeneration,
		capability:  step.CapabilityRespond,
		criticality: step.Critical,
		writes:      []turn.Field{turn.FieldResponse},
		run: func(_ context.Context, tc *turn.Context) error {
			t.Fatal("step after a critical failure must not run")
			return nil
		},
	}
	exec, sink := newExecutor(t, classifier, neverRuns)

	tc := turn.New("s", "u", "hi", "en")
	rec := trace.NewRecorder(sink, "s", tc.TurnID)
	result := exec.Execute(context.Background(),
		planner.Plan{step.IntentClassification, step.ResponseGeneration}, tc, rec)

	assert.True(t, result.Aborted)
	assert.Equal(t, step.IntentClassification, result.FailedStep)
	assert.True(t, tc.ErrorFlag)
	assert.NotEmpty(t, tc.Response, "safe completion must always set a response")
	assert.Equal(t, turn.ModeSimple, tc.ResponseMode)
	assert.Equal(t, turn.VerificationUncertain, tc.VerificationStatus,
		"a shipped response must never stay unverified")

	kinds := entryKinds(rec.Entries())
	assert.Contains(t, kinds, trace.KindStepFailed)
}

func TestExecuteKeepsEarlierResponseOnAbort(t *testing.T) {
	responder := &testStep{
		name:        step.ResponseGeneration,
		capability:  step.CapabilityRespond,
		criticality: step.Critical,
		writes:      []turn.Field{turn.FieldResponse},
		run: func(_ context.Context, tc *turn.Context) error {
			tc.Response = "the real answer"
			return nil
		},
	}
	fatal := &testStep{
		name:        step.BackTranslation,
		capability:  step.CapabilityTranslate,
		criticality: step.Critical,
		run: func(context.Context, *turn.Context) error {
			return errors.New("translator exploded")
		},
	}
	exec, sink := newExecutor(t, responder, fatal)

	tc := turn.New("s", "u", "hi", "en")
	rec := trace.NewRecorder(sink, "s", tc.TurnID)
	result := exec.Execute(context.Background(),
		planner.Plan{step.ResponseGeneration, step.BackTranslation}, tc, rec)

	assert.True(t, result.Aborted)
	assert.Equal(t, "the real answer", tc.Response)
}

func TestExecuteStopsBetweenStepsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	first := &testStep{
		name:       step.LanguageDetection,
		capability: step.CapabilityDetectLanguage,
		run: func(context.Context, *turn.Context) error {
			cancel()
			return nil
		},
	}
	second := &testStep{
		name:        step.ResponseGeneration,
		capability:  step.CapabilityRespond,
		criticality: step.Critical,
		run: func(context.Context, *turn.Context) error {
			t.Fatal("step must not run after cancellation")
			return nil
		},
	}
	exec, sink := newExecutor(t, first, second)

	tc := turn.New("s", "u", "hi", "en")
	rec := trace.NewRecorder(sink, "s", tc.TurnID)
	result := exec.Execute(ctx,
		planner.Plan{step.LanguageDetection, step.ResponseGeneration}, tc, rec)

	assert.True(t, result.Cancelled)
	assert.False(t, result.Aborted)
}

func TestExecuteCancelledMidStepIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	interrupted := &testStep{
		name:        step.ResponseGeneration,
		capability:  step.CapabilityRespond,
		criticality: step.Critical,
		writes:      []turn.Field{turn.FieldResponse},
		run: func(stepCtx context.Context, _ *turn.Context) error {
			cancel()
			<-stepCtx.Done()
			return stepCtx.Err()
		},
	}
	exec, sink := newExecutor(t, interrupted)

	tc := turn.New("s", "u", "hi", "en")
	rec := trace.NewRecorder(sink, "s", tc.TurnID)
	result := exec.Execute(ctx, planner.Plan{step.ResponseGeneration}, tc, rec)

	assert.True(t, result.Cancelled)
	assert.False(t, result.Aborted)
	assert.Empty(t, result.FailedStep)
	assert.Empty(t, tc.Response, "a cancelled turn must not get the safe completion")
}

func TestExecuteClassifiesStepTimeout(t *testing.T) {
	slow := &testStep{
		name:       step.DocumentRetrieval,
		capability: step.CapabilityRetrieve,
		run: func(ctx context.Context, _ *turn.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	registry, err := step.NewRegistry(slow)
	require.NoError(t, err)
	exec := New(registry, logging.NewTestLogger().Logger, 10*time.Millisecond)

	tc := turn.New("s", "u", "hi", "en")
	rec := trace.NewRecorder(trace.NewMemorySink(), "s", tc.TurnID)
	result := exec.Execute(context.Background(), planner.Plan{step.DocumentRetrieval}, tc, rec)

	assert.False(t, result.Aborted)
	assert.True(t, tc.ErrorFlag)

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, trace.KindStepSkipped, entries[1].Kind)
	assert.Equal(t, "deadline exceeded", entries[1].Detail)
}

func entryKinds(entries []trace.Entry) []trace.EntryKind {
	out := make([]trace.EntryKind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}

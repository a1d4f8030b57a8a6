package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fyrsmithlabs/supportd/internal/actions"
	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/executor"
	"github.com/fyrsmithlabs/supportd/internal/governor"
	"github.com/fyrsmithlabs/supportd/internal/llm"
	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/planner"
	"github.com/fyrsmithlabs/supportd/internal/session"
	"github.com/fyrsmithlabs/supportd/internal/steps"
	"github.com/fyrsmithlabs/supportd/internal/trace"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// routingLLM answers by prompt shape, so one instance can serve a whole
// pipeline run deterministically.
type routingLLM struct {
	language string
	intent   string
	answer   string
	verify   string
	question string
}

func (f *routingLLM) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "ISO 639-1"):
		return f.language, nil
	case strings.Contains(prompt, "Classify the intent"):
		return f.intent, nil
	case strings.Contains(prompt, "verifying a customer support answer"):
		return f.verify, nil
	case strings.Contains(prompt, "clarifying question"):
		return f.question, nil
	case strings.Contains(prompt, "Translate the following text"):
		return "translated: " + prompt, nil
	default:
		return f.answer, nil
	}
}

func (f *routingLLM) CompleteJSON(context.Context, string, any) error {
	// Model planning is unavailable; every turn uses the fallback plan.
	return errors.New("planning model offline")
}

type emptySearcher struct{}

func (emptySearcher) AddDocuments(context.Context, []vectorstore.Document) ([]string, error) {
	return nil, nil
}

func (emptySearcher) Search(context.Context, string, int) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (emptySearcher) SearchWithFilters(context.Context, string, int, map[string]interface{}) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (emptySearcher) Close() error { return nil }

func newEngine(t *testing.T, model llm.Client) (*Service, *session.MemoryStore, *trace.MemorySink) {
	t.Helper()

	logger := logging.NewTestLogger().Logger
	pipeline := config.PipelineConfig{
		PivotLanguage:          "en",
		ConfidenceThreshold:    0.6,
		MaxClarificationRounds: 2,
		TopK:                   5,
		MinDocumentScore:       0.3,
		VerificationPasses:     3,
	}

	registry, err := steps.NewRegistry(steps.Deps{
		LLM:      model,
		Store:    emptySearcher{},
		Actions:  actions.NewMemoryStore(),
		Logger:   logger,
		Pipeline: pipeline,
	})
	require.NoError(t, err)

	exec := executor.New(registry, logger, time.Second)
	sessions := session.NewMemoryStore(50)
	sink := trace.NewMemorySink()

	engine := New(Options{
		Planner:       planner.New(model, registry, logger),
		Executor:      exec,
		Governor:      governor.New(exec, logger, pipeline.ConfidenceThreshold, pipeline.MaxClarificationRounds),
		Sessions:      sessions,
		Sink:          sink,
		Logger:        logger,
		Tracer:        noop.NewTracerProvider().Tracer("test"),
		PivotLanguage: pipeline.PivotLanguage,
		PlanTimeout:   time.Second,
	})
	return engine, sessions, sink
}

func TestHandleTurnSmalltalk(t *testing.T) {
	llm := &routingLLM{
		language: "en",
		intent:   "generic_smalltalk",
		answer:   "Hello! How can I help you today?",
		verify:   "TRUE",
	}
	engine, sessions, sink := newEngine(t, llm)

	result, err := engine.HandleTurn(context.Background(), "sess-1", "user-1", "Hi")
	require.NoError(t, err)

	assert.Equal(t, "Hello! How can I help you today?", result.Response)
	assert.Empty(t, result.Sources)
	assert.NotEmpty(t, result.TraceID)

	history, err := sessions.History(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "Hi", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)

	trail := sink.Trail("sess-1", result.TraceID)
	require.True(t, len(trail) > 1)
	assert.Equal(t, trace.KindPlanFailed, trail[0].Kind)
	assert.Equal(t, trace.KindPlan, trail[1].Kind)
	assert.Equal(t, planner.StrategyFallback, trail[1].Step)
	last := trail[len(trail)-1]
	assert.Equal(t, trace.KindTermination, last.Kind)
	assert.Equal(t, string(trace.TerminationAccepted), last.Detail)
}

func TestHandleTurnBoundedClarification(t *testing.T) {
	llm := &routingLLM{
		language: "en",
		intent:   "technical_support_request",
		answer:   "maybe try turning it off",
		verify:   "FALSE", // every answer verifies invalid
		question: "What exactly is failing?",
	}
	engine, _, _ := newEngine(t, llm)
	ctx := context.Background()

	// Rounds one and two ask a question.
	for i := 0; i < 2; i++ {
		result, err := engine.HandleTurn(ctx, "sess-2", "u", "it is broken, help")
		require.NoError(t, err)
		assert.Equal(t, "What exactly is failing?", result.Response)
	}

	// The third attempt hits the cap and ships the answer with a caveat.
	result, err := engine.HandleTurn(ctx, "sess-2", "u", "it is broken, help")
	require.NoError(t, err)
	assert.Contains(t, result.Response, "maybe try turning it off")
	assert.Contains(t, result.Response, "not fully confident")

	// The cycle is closed; the next turn starts a fresh count.
	result, err = engine.HandleTurn(ctx, "sess-2", "u", "still broken, help")
	require.NoError(t, err)
	assert.Equal(t, "What exactly is failing?", result.Response)
}

func TestHandleTurnCancellationPersistsNothing(t *testing.T) {
	llm := &routingLLM{language: "en", intent: "generic_smalltalk", answer: "hi", verify: "TRUE"}
	engine, sessions, _ := newEngine(t, llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.HandleTurn(ctx, "sess-3", "u", "Hi")
	require.Error(t, err)

	history, herr := sessions.History(context.Background(), "sess-3")
	require.NoError(t, herr)
	assert.Empty(t, history, "cancelled turns must not reach session history")
}

// cancellingLLM cancels the turn while the response step is running,
// like a client hanging up mid-inference.
type cancellingLLM struct {
	routingLLM
	cancel context.CancelFunc
}

func (f *cancellingLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if !strings.Contains(prompt, "ISO 639-1") && !strings.Contains(prompt, "Classify the intent") {
		f.cancel()
		return "", context.Canceled
	}
	return f.routingLLM.Complete(ctx, prompt)
}

func TestHandleTurnMidStepCancellationPersistsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llm := &cancellingLLM{
		routingLLM: routingLLM{language: "en", intent: "generic_smalltalk"},
		cancel:     cancel,
	}
	engine, sessions, _ := newEngine(t, llm)

	result, err := engine.HandleTurn(ctx, "sess-5", "u", "Hi")
	require.Error(t, err, "a cancelled turn must not resolve to the fatal-abort response")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)

	history, herr := sessions.History(context.Background(), "sess-5")
	require.NoError(t, herr)
	assert.Empty(t, history, "cancelled turns must not reach session history")
}

func TestHandleTurnEvictsIdleSessionState(t *testing.T) {
	llm := &routingLLM{
		language: "en",
		intent:   "technical_support_request",
		answer:   "try restarting the router",
		verify:   "FALSE",
		question: "Which device is affected?",
	}
	engine, _, _ := newEngine(t, llm)
	ctx := context.Background()

	// An open clarification cycle keeps its state pinned for the next turn.
	_, err := engine.HandleTurn(ctx, "sess-6", "u", "it is broken")
	require.NoError(t, err)
	engine.mu.Lock()
	assert.Contains(t, engine.state, "sess-6")
	engine.mu.Unlock()

	// A closed turn leaves nothing behind.
	llm.verify = "TRUE"
	_, err = engine.HandleTurn(ctx, "sess-7", "u", "thanks, solved")
	require.NoError(t, err)
	engine.mu.Lock()
	assert.NotContains(t, engine.state, "sess-7")
	engine.mu.Unlock()
}

func TestHandleTurnHistoryCarriesAcrossTurns(t *testing.T) {
	llm := &routingLLM{language: "en", intent: "generic_smalltalk", answer: "hello again", verify: "TRUE"}
	engine, sessions, _ := newEngine(t, llm)
	ctx := context.Background()

	_, err := engine.HandleTurn(ctx, "sess-4", "u", "Hi")
	require.NoError(t, err)
	_, err = engine.HandleTurn(ctx, "sess-4", "u", "Hi again")
	require.NoError(t, err)

	history, err := sessions.History(ctx, "sess-4")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

// Package orchestrator coordinates one conversational turn end to end:
// session history attach, planning, execution, the governor's disposition,
// trace completion, and history archival.
//
// Turns for different sessions run fully in parallel. Turns within one
// session are strictly serialized, because turn N+1 reads turn N's
// history and clarification state.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/executor"
	"github.com/fyrsmithlabs/supportd/internal/governor"
	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/planner"
	"github.com/fyrsmithlabs/supportd/internal/session"
	"github.com/fyrsmithlabs/supportd/internal/trace"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// TurnResult is what the caller receives for one handled turn.
type TurnResult struct {
	Response   string   `json:"response"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
	TraceID    string   `json:"trace_id"`
}

// sessionState is the per-session serialization lock plus the
// clarification count carried between turns. refs counts turns currently
// holding or waiting on the lock, so idle state can be evicted.
type sessionState struct {
	mu     sync.Mutex
	rounds int
	refs   int
}

// Service is the turn orchestration engine.
type Service struct {
	planner  *planner.Planner
	exec     *executor.Executor
	governor *governor.Governor
	sessions session.Store
	sink     trace.Sink
	logger   *logging.Logger
	tracer   oteltrace.Tracer

	pivotLanguage string
	planTimeout   time.Duration

	mu    sync.Mutex
	state map[string]*sessionState
}

// Options bundles the orchestrator's collaborators.
type Options struct {
	Planner       *planner.Planner
	Executor      *executor.Executor
	Governor      *governor.Governor
	Sessions      session.Store
	Sink          trace.Sink
	Logger        *logging.Logger
	Tracer        oteltrace.Tracer
	PivotLanguage string
	PlanTimeout   time.Duration
}

// New creates the orchestration service.
func New(opts Options) *Service {
	return &Service{
		planner:       opts.Planner,
		exec:          opts.Executor,
		governor:      opts.Governor,
		sessions:      opts.Sessions,
		sink:          opts.Sink,
		logger:        opts.Logger,
		tracer:        opts.Tracer,
		pivotLanguage: opts.PivotLanguage,
		planTimeout:   opts.PlanTimeout,
		state:         make(map[string]*sessionState),
	}
}

// HandleTurn processes one user message and returns the response with its
// confidence, sources, and trace identifier.
//
// A cancelled turn returns the context error and persists nothing to
// session history; its trace is still flushed with the cancellation
// reason. A turn aborted by a critical step failure still returns the
// safe-completion response rather than an error.
func (s *Service) HandleTurn(ctx context.Context, sessionID, userID, input string) (*TurnResult, error) {
	state := s.acquireState(sessionID)
	state.mu.Lock()
	defer func() {
		state.mu.Unlock()
		s.releaseState(sessionID, state)
	}()

	tc := turn.New(sessionID, userID, input, s.pivotLanguage)
	tc.ClarificationRounds = state.rounds

	ctx = logging.ContextWithSession(ctx, sessionID)
	ctx = logging.ContextWithTurn(ctx, tc.TurnID)

	ctx, span := s.tracer.Start(ctx, "orchestrator.handle_turn",
		oteltrace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("turn.id", tc.TurnID),
		))
	defer span.End()

	start := time.Now()
	rec := trace.NewRecorder(s.sink, sessionID, tc.TurnID)

	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		// A missing history backend degrades the turn, it does not
		// abort it.
		s.logger.Warn(ctx, "session history unavailable", zap.Error(err))
		tc.ErrorFlag = true
	}
	tc.AttachHistory(history)

	s.logger.Info(ctx, "turn started",
		zap.Int("history_messages", len(history)),
		zap.Int("clarification_rounds", tc.ClarificationRounds),
	)

	planCtx, cancelPlan := context.WithTimeout(ctx, s.planTimeout)
	plan := s.planner.Plan(planCtx, tc, rec)
	cancelPlan()

	result := s.exec.Execute(ctx, plan, tc, rec)

	var reason trace.TerminationReason
	switch {
	case result.Cancelled:
		reason = trace.TerminationCancelled
	case result.Aborted:
		reason = trace.TerminationFatal
	default:
		reason = s.governor.Govern(ctx, tc, rec)
	}

	if err := rec.Complete(reason); err != nil {
		s.logger.Warn(ctx, "trace flush failed", zap.Error(err))
	}
	TurnsTotal.WithLabelValues(string(reason)).Inc()
	TurnDuration.Observe(time.Since(start).Seconds())

	if reason == trace.TerminationCancelled {
		// Nothing from a cancelled turn reaches session history.
		s.logger.Warn(ctx, "turn cancelled", zap.Duration("elapsed", time.Since(start)))
		return nil, ctx.Err()
	}

	s.updateRounds(state, tc)
	s.archive(ctx, tc)

	s.logger.Info(ctx, "turn completed",
		zap.String("reason", string(reason)),
		zap.String("response_mode", string(tc.ResponseMode)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &TurnResult{
		Response:   tc.Response,
		Confidence: tc.SourceReliability,
		Sources:    tc.Sources(),
		TraceID:    tc.TurnID,
	}, nil
}

// acquireState returns the state record for a session, creating it on
// first use and pinning it against eviction.
func (s *Service) acquireState(sessionID string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[sessionID]
	if !ok {
		st = &sessionState{}
		s.state[sessionID] = st
	}
	st.refs++
	return st
}

// releaseState unpins a session's state. State with no open clarification
// cycle and no waiting turns is dropped, so the map only holds sessions
// mid-cycle or mid-flight.
func (s *Service) releaseState(sessionID string, st *sessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.refs--
	if st.refs == 0 && st.rounds == 0 {
		delete(s.state, sessionID)
	}
}

// updateRounds carries the clarification count to the next turn. A turn
// that asked a question advances the count; any other completed turn
// closes the cycle.
func (s *Service) updateRounds(state *sessionState, tc *turn.Context) {
	if tc.ClarificationAttempted {
		state.rounds = tc.ClarificationRounds
		return
	}
	state.rounds = 0
}

// archive appends the turn's exchange to session history. Failures are
// logged, not surfaced; the user already has the response.
func (s *Service) archive(ctx context.Context, tc *turn.Context) {
	msgs := []turn.Message{
		{Role: "user", Content: tc.Input, Timestamp: tc.CreatedAt()},
	}
	if tc.Response != "" {
		msgs = append(msgs, turn.Message{Role: "assistant", Content: tc.Response, Timestamp: time.Now()})
	}
	if err := s.sessions.Append(ctx, tc.SessionID, msgs...); err != nil {
		s.logger.Warn(ctx, "history archive failed", zap.Error(err))
	}
}

// Package executor runs a decided plan against a turn context. Each step
// executes on a clone of the context under its own deadline, and only the
// step's declared write-set is merged back, so every mutation is
// attributable and undeclared writes are discarded.
package executor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/planner"
	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/trace"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// fallbackResponse is the safe completion sent when a critical step
// aborts the plan and no usable response exists.
const fallbackResponse = "I'm sorry, I'm unable to help with that right now. Please try again in a moment or contact our support team directly."

// Result is the executor's disposition of one plan run.
type Result struct {
	// Aborted is set when a critical step failed and the remaining plan
	// was dropped in favor of the safe completion.
	Aborted bool

	// Cancelled is set when the caller's context ended between steps.
	Cancelled bool

	// FailedStep names the step that aborted the plan, if any.
	FailedStep step.Name
}

// Executor runs plans step by step with clone-run-merge isolation.
type Executor struct {
	registry    *step.Registry
	logger      *logging.Logger
	stepTimeout time.Duration
}

// New creates an Executor.
func New(registry *step.Registry, logger *logging.Logger, stepTimeout time.Duration) *Executor {
	return &Executor{registry: registry, logger: logger, stepTimeout: stepTimeout}
}

// Execute runs the plan in order against tc, recording every outcome.
//
// Optional step failures are absorbed: the step's writes are discarded,
// ErrorFlag is set, and execution continues. A critical failure drops the
// rest of the plan and installs the safe completion. Cancellation is
// honored at every step boundary: a turn context that ends mid-step
// surfaces as a cancellation once the step returns, never as a step
// failure.
func (e *Executor) Execute(ctx context.Context, plan planner.Plan, tc *turn.Context, rec *trace.Recorder) Result {
	for _, name := range plan {
		if err := ctx.Err(); err != nil {
			e.logger.Warn(ctx, "turn cancelled between steps",
				zap.String("next_step", string(name)),
			)
			return Result{Cancelled: true}
		}

		runErr := e.RunStep(ctx, name, tc, rec)
		if ctx.Err() != nil {
			// The step ran into the turn's own cancellation, not a
			// collaborator fault. No safe completion; the caller
			// discards the turn.
			e.logger.Warn(ctx, "turn cancelled mid-step",
				zap.String("step", string(name)),
			)
			return Result{Cancelled: true}
		}
		if runErr != nil {
			var f *step.Failure
			if !errors.As(runErr, &f) {
				f = step.Classify(name, runErr)
			}
			e.safeComplete(tc)
			return Result{Aborted: true, FailedStep: f.Step}
		}
	}
	return Result{}
}

// RunStep runs one registered step with clone-run-merge isolation and a
// per-step deadline. It returns an error only for failures the caller
// must treat as fatal; recoverable failures are absorbed here.
func (e *Executor) RunStep(ctx context.Context, name step.Name, tc *turn.Context, rec *trace.Recorder) error {
	s, err := e.registry.Get(name)
	if err != nil {
		// An unregistered name slipping past plan validation is a bug,
		// not a collaborator failure. Treat it as fatal.
		rec.StepFailed(string(name), err.Error(), 0)
		return step.Classify(name, err)
	}

	rec.StepStart(string(name))
	start := time.Now()

	clone := tc.Clone()
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	runErr := s.Run(stepCtx, clone)
	cancel()
	elapsed := time.Since(start)
	StepDuration.WithLabelValues(string(name)).Observe(elapsed.Seconds())

	if runErr != nil {
		f := step.Classify(name, runErr)
		if s.Criticality() == step.Critical {
			StepOutcomes.WithLabelValues(string(name), "failed").Inc()
			rec.StepFailed(string(name), f.Cause, elapsed)
			e.logger.Error(ctx, "critical step failed",
				zap.String("step", string(name)),
				zap.String("kind", string(f.Kind)),
				zap.Error(runErr),
			)
			return f
		}

		// Recoverable: drop the clone's writes and continue degraded.
		tc.ErrorFlag = true
		StepOutcomes.WithLabelValues(string(name), "skipped").Inc()
		rec.StepSkipped(string(name), f.Cause, elapsed)
		e.logger.Warn(ctx, "optional step skipped",
			zap.String("step", string(name)),
			zap.String("kind", string(f.Kind)),
			zap.Error(runErr),
		)
		return nil
	}

	changed := turn.Changed(tc, clone, s.Writes())
	turn.Merge(tc, clone, s.Writes())
	StepOutcomes.WithLabelValues(string(name), "success").Inc()
	rec.StepSuccess(string(name), "", elapsed, fieldStrings(changed))

	e.logger.Debug(ctx, "step completed",
		zap.String("step", string(name)),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// safeComplete installs the minimal fallback response after an aborted
// plan. An existing response from an earlier step is kept. The response
// never ships unverified: whatever goes out is at best uncertain.
func (e *Executor) safeComplete(tc *turn.Context) {
	tc.ErrorFlag = true
	if tc.Response == "" {
		tc.Response = fallbackResponse
		tc.ResponseMode = turn.ModeSimple
		tc.SourceReliability = 0
	}
	if tc.VerificationStatus == turn.VerificationUnverified {
		tc.VerificationStatus = turn.VerificationUncertain
	}
}

func fieldStrings(fields []turn.Field) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

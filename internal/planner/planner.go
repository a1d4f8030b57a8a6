// Package planner builds the ordered step plan for one turn. Planning is
// fully decided before the executor runs: the plan is fixed up front,
// validated against the static registry, and recorded to the trace. Only
// the retry governor may extend execution afterwards.
package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/llm"
	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/trace"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// Strategy labels how a plan was produced, recorded in the trace.
const (
	StrategyModel    = "model"
	StrategyFallback = "fallback"
)

// Plan is an ordered list of registered step names.
type Plan []step.Name

// Strings returns the plan as plain strings for trace and log fields.
func (p Plan) Strings() []string {
	out := make([]string, len(p))
	for i, name := range p {
		out[i] = string(name)
	}
	return out
}

// Planner produces a validated plan for a turn, preferring a
// model-proposed ordering and falling back to the deterministic default
// whenever the proposal is unavailable or invalid.
type Planner struct {
	llm      llm.Client
	registry *step.Registry
	logger   *logging.Logger
}

// New creates a Planner.
func New(client llm.Client, registry *step.Registry, logger *logging.Logger) *Planner {
	return &Planner{llm: client, registry: registry, logger: logger}
}

// Plan builds the plan for one turn and records it to the trace together
// with the strategy that produced it. It never fails: an unusable model
// proposal degrades to the deterministic fallback.
func (p *Planner) Plan(ctx context.Context, tc *turn.Context, rec *trace.Recorder) Plan {
	plan, err := p.modelPlan(ctx, tc)
	strategy := StrategyModel
	if err != nil {
		p.logger.Warn(ctx, "model planning failed, using fallback plan",
			zap.Error(err),
		)
		rec.PlanFailed(StrategyModel, err.Error())
		plan = p.Fallback()
		strategy = StrategyFallback
	}

	rec.Plan(strategy, plan.Strings())
	PlansTotal.WithLabelValues(strategy).Inc()
	p.logger.Info(ctx, "plan decided",
		zap.String("strategy", strategy),
		zap.Strings("steps", plan.Strings()),
	)
	return plan
}

// Fallback returns the deterministic full pipeline, filtered to steps
// actually registered in this deployment.
func (p *Planner) Fallback() Plan {
	ordered := []step.Name{
		step.LanguageDetection,
		step.PivotTranslation,
		step.IntentClassification,
		step.DocumentRetrieval,
		step.ResponseGeneration,
		step.Verification,
		step.BackTranslation,
	}
	var plan Plan
	for _, name := range ordered {
		if p.registry.Has(name) {
			plan = append(plan, name)
		}
	}
	return plan
}

// modelPlan asks the model for a step ordering and validates it.
func (p *Planner) modelPlan(ctx context.Context, tc *turn.Context) (Plan, error) {
	var b strings.Builder
	b.WriteString("You are planning the processing pipeline for one customer support message.\n")
	fmt.Fprintf(&b, "Message: %q\n\nAvailable steps:\n", tc.Input)
	for _, d := range p.registry.Describe() {
		if d.Name == step.Clarification {
			// Clarification is scheduled by the governor, never planned.
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Purpose)
	}
	b.WriteString("\nReturn a JSON array of step names, in execution order. ")
	b.WriteString("Include every step needed to answer the message correctly. Return only the JSON array.")

	var names []string
	if err := p.llm.CompleteJSON(ctx, b.String(), &names); err != nil {
		return nil, err
	}

	plan := make(Plan, 0, len(names))
	for _, n := range names {
		plan = append(plan, step.Name(strings.TrimSpace(n)))
	}
	if err := Validate(p.registry, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate checks a plan against the registry: it must be non-empty,
// reference only registered steps, contain no duplicates, exclude the
// governor-scheduled clarification step, and include at least one
// response-producing step.
func Validate(registry *step.Registry, plan Plan) error {
	if len(plan) == 0 {
		return step.ErrEmptyPlan
	}

	seen := make(map[step.Name]bool, len(plan))
	hasResponse := false
	for _, name := range plan {
		if seen[name] {
			return fmt.Errorf("duplicate step in plan: %s", name)
		}
		seen[name] = true

		s, err := registry.Get(name)
		if err != nil {
			return err
		}
		if name == step.Clarification {
			return fmt.Errorf("clarification is governor-scheduled, not plannable")
		}
		if s.Capability() == step.CapabilityRespond {
			hasResponse = true
		}
	}
	if !hasResponse {
		return step.ErrNoResponseStep
	}
	return nil
}

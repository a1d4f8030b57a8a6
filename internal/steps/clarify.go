package steps

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// fallbackQuestion is used when the model cannot produce a clarifying
// question. It is deliberately generic and always safe to send.
const fallbackQuestion = "Could you tell me a bit more about what you need help with?"

// Clarification replaces the turn's response with a clarifying question
// when the engine is not confident enough to answer. It is scheduled by
// the retry governor, never by the planner, and each invocation counts
// one clarification round.
type Clarification struct {
	deps Deps
}

// NewClarification creates the clarification step.
func NewClarification(deps Deps) *Clarification {
	return &Clarification{deps: deps}
}

func (s *Clarification) Name() step.Name               { return step.Clarification }
func (s *Clarification) Capability() step.Capability   { return step.CapabilityClarify }
func (s *Clarification) Criticality() step.Criticality { return step.Optional }

func (s *Clarification) Reads() []turn.Field {
	return []turn.Field{
		turn.FieldPivotInput,
		turn.FieldDetectedLanguage,
		turn.FieldFormality,
		turn.FieldIntent,
		turn.FieldClarificationRounds,
	}
}

func (s *Clarification) Writes() []turn.Field {
	return []turn.Field{
		turn.FieldResponse,
		turn.FieldResponseMode,
		turn.FieldClarificationAttempted,
		turn.FieldClarificationRounds,
	}
}

// Run implements step.Step.
func (s *Clarification) Run(ctx context.Context, tc *turn.Context) error {
	question, err := s.generateQuestion(ctx, tc)
	if err != nil || strings.TrimSpace(question) == "" {
		question = fallbackQuestion
		if err != nil {
			s.deps.Logger.Warn(ctx, "clarification model unavailable, using fallback question",
				zap.Error(err),
			)
		}
	}

	if tc.Formality == turn.FormalityFormal {
		question = "I would like to make sure I understand correctly. " + question
	}

	tc.Response = question
	tc.ResponseMode = turn.ModeSimple
	tc.ClarificationAttempted = true
	tc.ClarificationRounds++

	s.deps.Logger.Info(ctx, "clarification asked",
		zap.Int("round", tc.ClarificationRounds),
	)
	return nil
}

// generateQuestion asks the model for a single clarifying question in the
// user's language.
func (s *Clarification) generateQuestion(ctx context.Context, tc *turn.Context) (string, error) {
	language := tc.DetectedLanguage
	if language == "" {
		language = tc.PivotLanguage
	}

	var b strings.Builder
	b.WriteString("The user's request is ambiguous and you need more detail before answering.\n")
	fmt.Fprintf(&b, "User message: %q\n", tc.EffectiveInput())
	if tc.Intent != "" {
		fmt.Fprintf(&b, "Best intent guess so far: %s\n", tc.Intent)
	}
	fmt.Fprintf(&b, "Write ONE short clarifying question in language %q. Return only the question.", language)

	out, err := s.deps.LLM.Complete(ctx, b.String())
	if err != nil {
		return "", step.Classify(s.Name(), err)
	}
	return strings.TrimSpace(out), nil
}

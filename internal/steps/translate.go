package steps

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// translate asks the model for a bare translation of text.
func translate(ctx context.Context, deps Deps, text, targetLang string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following text to %s.\n"+
			"Return only the translated sentence without explanations.\n"+
			"Text: %s\nTranslated text:", targetLang, text)

	out, err := deps.LLM.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// PivotTranslation normalizes the input to the pivot language so intent
// classification and retrieval always see pivot-language text. It is a
// no-op, not an omission, when the languages already match: the step still
// runs and traces, keeping the trail uniform across turns.
type PivotTranslation struct {
	deps Deps
}

// NewPivotTranslation creates the input translation step.
func NewPivotTranslation(deps Deps) *PivotTranslation {
	return &PivotTranslation{deps: deps}
}

func (s *PivotTranslation) Name() step.Name               { return step.PivotTranslation }
func (s *PivotTranslation) Capability() step.Capability   { return step.CapabilityTranslate }
func (s *PivotTranslation) Criticality() step.Criticality { return step.Optional }

func (s *PivotTranslation) Reads() []turn.Field {
	return []turn.Field{turn.FieldDetectedLanguage}
}

func (s *PivotTranslation) Writes() []turn.Field {
	return []turn.Field{turn.FieldPivotInput}
}

// Run implements step.Step.
func (s *PivotTranslation) Run(ctx context.Context, tc *turn.Context) error {
	if !tc.NeedsPivotTranslation() {
		return nil
	}

	translated, err := translate(ctx, s.deps, tc.Input, tc.PivotLanguage)
	if err != nil {
		return step.Classify(s.Name(), err)
	}
	tc.PivotInput = translated

	s.deps.Logger.Debug(ctx, "input translated to pivot",
		zap.String("from", tc.DetectedLanguage),
		zap.String("to", tc.PivotLanguage),
	)
	return nil
}

// BackTranslation renders the response in the user's detected language.
// No-op when the languages match or no response exists yet.
type BackTranslation struct {
	deps Deps
}

// NewBackTranslation creates the response translation step.
func NewBackTranslation(deps Deps) *BackTranslation {
	return &BackTranslation{deps: deps}
}

func (s *BackTranslation) Name() step.Name               { return step.BackTranslation }
func (s *BackTranslation) Capability() step.Capability   { return step.CapabilityTranslate }
func (s *BackTranslation) Criticality() step.Criticality { return step.Optional }

func (s *BackTranslation) Reads() []turn.Field {
	return []turn.Field{turn.FieldDetectedLanguage, turn.FieldResponse}
}

func (s *BackTranslation) Writes() []turn.Field {
	return []turn.Field{turn.FieldResponse}
}

// Run implements step.Step.
func (s *BackTranslation) Run(ctx context.Context, tc *turn.Context) error {
	if !tc.NeedsPivotTranslation() || !tc.HasResponse() {
		return nil
	}

	translated, err := translate(ctx, s.deps, tc.Response, tc.DetectedLanguage)
	if err != nil {
		// A response in the pivot language beats no response at all;
		// the failure is still surfaced for the executor to record.
		return step.Classify(s.Name(), err)
	}
	tc.Response = translated

	s.deps.Logger.Debug(ctx, "response translated back",
		zap.String("to", tc.DetectedLanguage),
	)
	return nil
}

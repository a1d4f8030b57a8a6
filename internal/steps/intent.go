package steps

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// intentKeywords are the rule-based hints checked before the model guess.
var intentKeywords = map[turn.Intent][]string{
	turn.IntentTechnicalSupport:   {"error", "issue", "problem", "help", "doesn't", "won't"},
	turn.IntentProductInformation: {"feature", "spec", "compatibility", "information", "detail"},
	turn.IntentCostEstimation:     {"quote", "pricing", "price", "cost", "preventivo"},
	turn.IntentBookingOrSchedule:  {"schedule", "appointment", "booking", "demo", "meeting", "install"},
	turn.IntentDocumentRequest:    {"manual", "document", "certificate", "datasheet", "pdf"},
	turn.IntentOpenTicket:         {"open ticket", "create ticket", "support ticket"},
	turn.IntentComplaint:          {"complaint", "dissatisfied", "disappointed", "broken", "damaged"},
	turn.IntentSmalltalk:          {"hello", "hi", "ciao", "thanks", "thank you"},
}

// IntentClassification classifies the user's intent by combining a
// rule-based keyword guess with a model guess. Agreement between the two
// yields the highest confidence; a model-only or rule-only guess degrades
// it. The computed confidence drives the clarification cycle downstream.
type IntentClassification struct {
	deps Deps
}

// NewIntentClassification creates the intent classification step.
func NewIntentClassification(deps Deps) *IntentClassification {
	return &IntentClassification{deps: deps}
}

func (s *IntentClassification) Name() step.Name               { return step.IntentClassification }
func (s *IntentClassification) Capability() step.Capability   { return step.CapabilityClassify }
func (s *IntentClassification) Criticality() step.Criticality { return step.Critical }

func (s *IntentClassification) Reads() []turn.Field {
	return []turn.Field{turn.FieldPivotInput}
}

func (s *IntentClassification) Writes() []turn.Field {
	return []turn.Field{turn.FieldIntent, turn.FieldIntentConfidence, turn.FieldSourceReliability}
}

// Run implements step.Step.
func (s *IntentClassification) Run(ctx context.Context, tc *turn.Context) error {
	input := tc.EffectiveInput()
	ruleGuess := ruleBasedIntent(input)

	modelGuess, err := s.modelIntent(ctx, input)
	if err != nil {
		// The rule guess keeps the turn alive when the model is down;
		// with nothing to fall back on the step is fatal to the plan.
		if ruleGuess == "" {
			return step.Classify(s.Name(), err)
		}
		modelGuess = ""
		s.deps.Logger.Warn(ctx, "intent model unavailable, using rule guess",
			zap.String("intent", string(ruleGuess)),
			zap.Error(err),
		)
	}

	intent, confidence := combineGuesses(ruleGuess, modelGuess)
	if confidence < 0 || confidence > 1 {
		return step.NewFailure(s.Name(), step.FailureInvalidOutput,
			fmt.Sprintf("confidence out of range: %f", confidence))
	}

	tc.Intent = intent
	tc.IntentConfidence = confidence
	tc.SourceReliability = confidence

	s.deps.Logger.Info(ctx, "intent classified",
		zap.String("intent", string(intent)),
		zap.Float64("confidence", confidence),
	)
	return nil
}

// modelIntent asks the model to pick from the closed taxonomy. "unclear"
// and anything outside the taxonomy come back as an empty guess.
func (s *IntentClassification) modelIntent(ctx context.Context, input string) (turn.Intent, error) {
	var b strings.Builder
	b.WriteString("Classify the intent of the following user sentence:\n")
	fmt.Fprintf(&b, "Sentence: %q\n", input)
	b.WriteString("Choose and return ONLY ONE of the following categories (no explanation, no punctuation):\n")
	for _, intent := range turn.AllowedIntents() {
		fmt.Fprintf(&b, "- %s\n", intent)
	}
	b.WriteString("\nUse 'technical_support_request' if the message contains a clear request for assistance.\n")
	b.WriteString("Use 'complaint' if the message is primarily a complaint, even if it mentions a problem.\n")
	b.WriteString("If unclear, return: unclear")

	out, err := s.deps.LLM.Complete(ctx, b.String())
	if err != nil {
		return "", err
	}

	normalized := strings.ToLower(strings.TrimSpace(out))
	normalized = strings.Trim(normalized, ".,")
	guess := turn.Intent(normalized)
	if !guess.IsValid() {
		return "", nil
	}
	return guess, nil
}

// ruleBasedIntent returns the first intent whose keywords match, or "".
func ruleBasedIntent(input string) turn.Intent {
	lower := strings.ToLower(input)
	for _, intent := range turn.AllowedIntents() {
		for _, w := range intentKeywords[intent] {
			if strings.Contains(lower, w) {
				return intent
			}
		}
	}
	return ""
}

// combineGuesses merges the rule and model guesses into an intent and a
// confidence in [0,1].
func combineGuesses(rule, model turn.Intent) (turn.Intent, float64) {
	switch {
	case model != "" && rule == model:
		return model, 1.0
	case model != "" && rule != "":
		return model, 0.9
	case model != "":
		return model, 0.8
	case rule != "":
		return rule, 0.6
	default:
		return "", 0.0
	}
}

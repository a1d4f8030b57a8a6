package steps

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// Formality and mixed-language hints applied alongside model detection.
var (
	formalWords   = []string{"gentile", "salve", "buongiorno", "distinti", "dear", "regards"}
	informalWords = []string{"ciao", "hey", "hola", "yo"}
	greetingWords = []string{"hello", "ciao", "hola", "bonjour", "hallo"}
)

// LanguageDetection detects the input language via the model and derives
// formality and mixed-language flags from local heuristics.
type LanguageDetection struct {
	deps Deps
}

// NewLanguageDetection creates the language detection step.
func NewLanguageDetection(deps Deps) *LanguageDetection {
	return &LanguageDetection{deps: deps}
}

func (s *LanguageDetection) Name() step.Name               { return step.LanguageDetection }
func (s *LanguageDetection) Capability() step.Capability   { return step.CapabilityDetectLanguage }
func (s *LanguageDetection) Criticality() step.Criticality { return step.Optional }

func (s *LanguageDetection) Reads() []turn.Field { return nil }

func (s *LanguageDetection) Writes() []turn.Field {
	return []turn.Field{turn.FieldDetectedLanguage, turn.FieldFormality, turn.FieldMixedLanguage}
}

// Run implements step.Step.
func (s *LanguageDetection) Run(ctx context.Context, tc *turn.Context) error {
	prompt := fmt.Sprintf(
		"Detect the language of the following user message.\n"+
			"Reply ONLY with the ISO 639-1 language code (like 'en', 'it', 'fr', 'de').\n"+
			"No explanation, no punctuation, no space.\n"+
			"Message: %q\nLanguage code:", tc.Input)

	out, err := s.deps.LLM.Complete(ctx, prompt)
	if err != nil {
		return step.Classify(s.Name(), err)
	}

	lang := strings.ToLower(strings.TrimSpace(out))
	if len(lang) != 2 || !isAlpha(lang) {
		// Unclear detection defaults to the pivot rather than failing
		// the turn over an advisory field.
		lang = tc.PivotLanguage
	}

	tc.DetectedLanguage = lang
	tc.Formality = detectFormality(tc.Input)
	tc.MixedLanguage = detectMixedLanguage(tc.Input)

	s.deps.Logger.Debug(ctx, "language detected",
		zap.String("language", lang),
		zap.String("formality", string(tc.Formality)),
		zap.Bool("mixed", tc.MixedLanguage),
	)
	return nil
}

func detectFormality(text string) turn.Formality {
	lower := strings.ToLower(text)
	for _, w := range formalWords {
		if strings.Contains(lower, w) {
			return turn.FormalityFormal
		}
	}
	for _, w := range informalWords {
		if strings.Contains(lower, w) {
			return turn.FormalityInformal
		}
	}
	return turn.FormalityNeutral
}

// detectMixedLanguage reports greetings from more than one language in
// the same message.
func detectMixedLanguage(text string) bool {
	lower := strings.ToLower(text)
	count := 0
	for _, w := range greetingWords {
		if strings.Contains(lower, w) {
			count++
		}
	}
	return count > 1
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

func TestIntentClassificationAgreementGivesFullConfidence(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"technical_support_request"}}
	s := NewIntentClassification(testDeps(llm, nil, nil))

	tc := turn.New("s", "u", "I have an error with my device", "en")
	require.NoError(t, s.Run(context.Background(), tc))

	assert.Equal(t, turn.IntentTechnicalSupport, tc.Intent)
	assert.Equal(t, 1.0, tc.IntentConfidence)
}

func TestIntentClassificationModelOnly(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"product_information_request"}}
	s := NewIntentClassification(testDeps(llm, nil, nil))

	// No keyword matches; only the model has an opinion.
	tc := turn.New("s", "u", "tell me about the X200", "en")
	require.NoError(t, s.Run(context.Background(), tc))

	assert.Equal(t, turn.IntentProductInformation, tc.Intent)
	assert.Equal(t, 0.8, tc.IntentConfidence)
}

func TestIntentClassificationDisagreement(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"complaint"}}
	s := NewIntentClassification(testDeps(llm, nil, nil))

	// "error" matches the technical support keywords; the model wins
	// but confidence drops.
	tc := turn.New("s", "u", "this error ruined my week, I'm very dissatisfied... actually no, just the error", "en")
	require.NoError(t, s.Run(context.Background(), tc))

	assert.Equal(t, turn.IntentComplaint, tc.Intent)
	assert.InDelta(t, 0.9, tc.IntentConfidence, 1e-9)
}

func TestIntentClassificationUnclearModel(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"unclear"}}
	s := NewIntentClassification(testDeps(llm, nil, nil))

	tc := turn.New("s", "u", "I need a quote for the installation", "en")
	require.NoError(t, s.Run(context.Background(), tc))

	assert.Equal(t, turn.IntentCostEstimation, tc.Intent)
	assert.Equal(t, 0.6, tc.IntentConfidence)
}

func TestIntentClassificationNoGuessAtAll(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"unclear"}}
	s := NewIntentClassification(testDeps(llm, nil, nil))

	tc := turn.New("s", "u", "hmm", "en")
	require.NoError(t, s.Run(context.Background(), tc))

	assert.Empty(t, tc.Intent)
	assert.Zero(t, tc.IntentConfidence)
}

func TestIntentClassificationRuleFallbackOnModelOutage(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	s := NewIntentClassification(testDeps(llm, nil, nil))

	tc := turn.New("s", "u", "please open ticket for this", "en")
	require.NoError(t, s.Run(context.Background(), tc))

	assert.Equal(t, turn.IntentOpenTicket, tc.Intent)
	assert.Equal(t, 0.6, tc.IntentConfidence)
}

func TestIntentClassificationFatalWithoutFallback(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	s := NewIntentClassification(testDeps(llm, nil, nil))

	tc := turn.New("s", "u", "xyzzy", "en")
	err := s.Run(context.Background(), tc)
	require.Error(t, err)

	var f *step.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, step.FailureServiceUnavailable, f.Kind)
}

func TestCombineGuesses(t *testing.T) {
	intent, conf := combineGuesses(turn.IntentComplaint, turn.IntentComplaint)
	assert.Equal(t, turn.IntentComplaint, intent)
	assert.Equal(t, 1.0, conf)

	intent, conf = combineGuesses(turn.IntentComplaint, turn.IntentOpenTicket)
	assert.Equal(t, turn.IntentOpenTicket, intent)
	assert.Equal(t, 0.9, conf)

	intent, conf = combineGuesses("", turn.IntentSmalltalk)
	assert.Equal(t, turn.IntentSmalltalk, intent)
	assert.Equal(t, 0.8, conf)

	intent, conf = combineGuesses(turn.IntentSmalltalk, "")
	assert.Equal(t, turn.IntentSmalltalk, intent)
	assert.Equal(t, 0.6, conf)

	intent, conf = combineGuesses("", "")
	assert.Empty(t, intent)
	assert.Zero(t, conf)
}

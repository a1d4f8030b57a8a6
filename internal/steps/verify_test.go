package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/supportd/internal/turn"
)

func verifiedTurn() *turn.Context {
	tc := turn.New("s", "u", "question", "en")
	tc.Response = "the answer"
	tc.ResponseMode = turn.ModeGrounded
	tc.Documents = []turn.RetrievedDocument{{SourceID: "d", Score: 0.8, Excerpt: "evidence"}}
	return tc
}

func TestVerificationAllVotesAgree(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"TRUE", "TRUE", "TRUE"}}
	s := NewVerification(testDeps(llm, nil, nil))

	tc := verifiedTurn()
	require.NoError(t, s.Run(context.Background(), tc))

	assert.Equal(t, turn.VerificationValid, tc.VerificationStatus)
	assert.Len(t, llm.prompts, 3)
}

func TestVerificationMajorityValid(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"TRUE", "FALSE", "TRUE"}}
	s := NewVerification(testDeps(llm, nil, nil))

	tc := verifiedTurn()
	require.NoError(t, s.Run(context.Background(), tc))
	assert.Equal(t, turn.VerificationValid, tc.VerificationStatus)
}

func TestVerificationSingleVoteUncertain(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"TRUE", "FALSE", "FALSE"}}
	s := NewVerification(testDeps(llm, nil, nil))

	tc := verifiedTurn()
	require.NoError(t, s.Run(context.Background(), tc))
	assert.Equal(t, turn.VerificationUncertain, tc.VerificationStatus)
}

func TestVerificationNoVotesInvalid(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"FALSE", "FALSE", "FALSE"}}
	s := NewVerification(testDeps(llm, nil, nil))

	tc := verifiedTurn()
	require.NoError(t, s.Run(context.Background(), tc))
	assert.Equal(t, turn.VerificationInvalid, tc.VerificationStatus)
}

func TestVerificationThresholdsScaleWithPasses(t *testing.T) {
	singlePass := func(vote string) *turn.Context {
		llm := &scriptedLLM{responses: []string{vote}}
		deps := testDeps(llm, nil, nil)
		deps.Pipeline.VerificationPasses = 1
		s := NewVerification(deps)

		tc := verifiedTurn()
		require.NoError(t, s.Run(context.Background(), tc))
		require.Len(t, llm.prompts, 1)
		return tc
	}

	assert.Equal(t, turn.VerificationValid, singlePass("TRUE").VerificationStatus,
		"one configured pass must be able to reach valid")
	assert.Equal(t, turn.VerificationInvalid, singlePass("FALSE").VerificationStatus)

	llm := &scriptedLLM{responses: []string{"TRUE", "TRUE", "FALSE", "FALSE", "FALSE"}}
	deps := testDeps(llm, nil, nil)
	deps.Pipeline.VerificationPasses = 5
	s := NewVerification(deps)

	tc := verifiedTurn()
	require.NoError(t, s.Run(context.Background(), tc))
	assert.Equal(t, turn.VerificationUncertain, tc.VerificationStatus,
		"two of five votes is short of a majority")
}

func TestVerificationDegradesToUncertainOnOutage(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	s := NewVerification(testDeps(llm, nil, nil))

	tc := verifiedTurn()
	require.NoError(t, s.Run(context.Background(), tc))

	assert.Equal(t, turn.VerificationUncertain, tc.VerificationStatus)
	assert.True(t, tc.ErrorFlag)
}

func TestVerificationNoOpWithoutResponse(t *testing.T) {
	llm := &scriptedLLM{}
	s := NewVerification(testDeps(llm, nil, nil))

	tc := turn.New("s", "u", "q", "en")
	require.NoError(t, s.Run(context.Background(), tc))

	assert.Equal(t, turn.VerificationUnverified, tc.VerificationStatus)
	assert.Empty(t, llm.prompts)
}

func TestVerificationTrustsActionConfirmations(t *testing.T) {
	llm := &scriptedLLM{}
	s := NewVerification(testDeps(llm, nil, nil))

	tc := turn.New("s", "u", "open a ticket", "en")
	tc.Response = "I have opened a support ticket for you."
	tc.ResponseMode = turn.ModeAction

	require.NoError(t, s.Run(context.Background(), tc))
	assert.Equal(t, turn.VerificationValid, tc.VerificationStatus)
	assert.Empty(t, llm.prompts)
}

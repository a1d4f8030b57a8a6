package steps

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// Verification checks the generated response against the retrieved
// evidence with several independent model votes. A majority of positive
// votes marks the response valid, at least one marks it uncertain, none
// marks it invalid. A collaborator failure never invents a verdict; the
// status degrades to uncertain and the turn continues flagged.
type Verification struct {
	deps Deps
}

// NewVerification creates the verification step.
func NewVerification(deps Deps) *Verification {
	return &Verification{deps: deps}
}

func (s *Verification) Name() step.Name               { return step.Verification }
func (s *Verification) Capability() step.Capability   { return step.CapabilityVerify }
func (s *Verification) Criticality() step.Criticality { return step.Optional }

func (s *Verification) Reads() []turn.Field {
	return []turn.Field{turn.FieldResponse, turn.FieldResponseMode, turn.FieldDocuments}
}

func (s *Verification) Writes() []turn.Field {
	return []turn.Field{turn.FieldVerificationStatus, turn.FieldErrorFlag}
}

// Run implements step.Step.
func (s *Verification) Run(ctx context.Context, tc *turn.Context) error {
	if tc.Response == "" {
		return nil
	}
	// Action confirmations report what the system itself did; there is
	// nothing to cross-check against the documents.
	if tc.ResponseMode == turn.ModeAction {
		tc.VerificationStatus = turn.VerificationValid
		return nil
	}

	prompt := s.votePrompt(tc)
	passes := s.deps.Pipeline.VerificationPasses
	if passes < 1 {
		passes = 1
	}

	positive := 0
	failures := 0
	for i := 0; i < passes; i++ {
		out, err := s.deps.LLM.Complete(ctx, prompt)
		if err != nil {
			failures++
			continue
		}
		if strings.Contains(strings.ToUpper(out), "TRUE") {
			positive++
		}
	}

	if failures == passes {
		tc.VerificationStatus = turn.VerificationUncertain
		tc.ErrorFlag = true
		s.deps.Logger.Warn(ctx, "verification unavailable, marking uncertain",
			zap.Int("passes", passes),
		)
		return nil
	}

	majority := passes/2 + 1
	switch {
	case positive >= majority:
		tc.VerificationStatus = turn.VerificationValid
	case positive >= 1:
		tc.VerificationStatus = turn.VerificationUncertain
	default:
		tc.VerificationStatus = turn.VerificationInvalid
	}

	s.deps.Logger.Info(ctx, "response verified",
		zap.String("status", string(tc.VerificationStatus)),
		zap.Int("positive_votes", positive),
		zap.Int("passes", passes),
	)
	return nil
}

// votePrompt builds the yes/no consistency check for one vote.
func (s *Verification) votePrompt(tc *turn.Context) string {
	var b strings.Builder
	b.WriteString("You are verifying a customer support answer.\n")
	if len(tc.Documents) > 0 {
		b.WriteString("Evidence:\n")
		for i, d := range tc.Documents {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, d.Excerpt)
		}
		b.WriteString("\nDoes the answer below stay consistent with the evidence, without inventing facts?\n")
	} else {
		b.WriteString("Is the answer below a safe, plausible support reply that does not invent specific product facts?\n")
	}
	fmt.Fprintf(&b, "\nAnswer: %s\n\nReply with exactly TRUE or FALSE.", tc.Response)
	return b.String()
}

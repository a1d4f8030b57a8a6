// Package governor bounds the verification/clarification cycle. After the
// executor returns, the governor inspects the verification verdict and
// intent confidence and either accepts the response, replaces it with a
// clarifying question, or, once the clarification cap is reached, forces
// acceptance with an explicit low-confidence caveat. The cap is what
// guarantees termination against uncooperative input.
package governor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/executor"
	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/trace"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// caveat is appended to a response accepted at the clarification cap.
const caveat = "\n\nPlease note: I'm not fully confident in this answer. If it doesn't resolve your question, I can connect you with our support team."

// State machine states, recorded in governor trace transitions.
const (
	stateVerifying  = "verifying"
	stateAccepted   = "accepted"
	stateClarifying = "clarifying"
)

// Governor decides the disposition of a responded turn.
type Governor struct {
	exec      *executor.Executor
	logger    *logging.Logger
	threshold float64
	maxRounds int
}

// New creates a Governor. threshold is the minimum intent confidence for
// an uncertain response to pass; maxRounds caps clarification per session.
func New(exec *executor.Executor, logger *logging.Logger, threshold float64, maxRounds int) *Governor {
	return &Governor{exec: exec, logger: logger, threshold: threshold, maxRounds: maxRounds}
}

// Govern runs the verification/clarification decision for a turn whose
// plan completed. It may run the clarification step, mutating tc, and
// returns the turn's termination reason.
//
// ClarificationRounds is carried into the turn from session state by the
// caller; the next user turn re-enters classification with the question
// and answer in history.
func (g *Governor) Govern(ctx context.Context, tc *turn.Context, rec *trace.Recorder) trace.TerminationReason {
	status := tc.VerificationStatus

	if status == turn.VerificationValid {
		rec.Governor(stateVerifying, stateAccepted, "verification valid")
		return trace.TerminationAccepted
	}

	needsClarification := status == turn.VerificationInvalid ||
		(status == turn.VerificationUncertain && tc.IntentConfidence < g.threshold)

	if !needsClarification {
		// Uncertain but confidently classified, or never verified at
		// all. The response ships with a caveat termination so the
		// caller can surface reduced confidence; a never-verified
		// response is downgraded to uncertain so no answer leaves with
		// status unverified.
		if status == turn.VerificationUnverified {
			tc.VerificationStatus = turn.VerificationUncertain
		}
		rec.Governor(stateVerifying, stateAccepted, fmt.Sprintf("status %s above threshold", status))
		return trace.TerminationWithCaveat
	}

	if tc.ClarificationRounds >= g.maxRounds {
		// Retry limit reached. Not an error: surface the best available
		// response with an explicit low-confidence marker instead of
		// asking again.
		CapReached.Inc()
		rec.Governor(stateClarifying, stateAccepted,
			fmt.Sprintf("clarification cap %d reached", g.maxRounds))
		g.logger.Info(ctx, "clarification cap reached, accepting with caveat",
			zap.Int("rounds", tc.ClarificationRounds),
			zap.Int("max_rounds", g.maxRounds),
		)
		if tc.Response != "" {
			tc.Response += caveat
		}
		tc.VerificationStatus = turn.VerificationUncertain
		return trace.TerminationWithCaveat
	}

	rec.Governor(stateVerifying, stateClarifying,
		fmt.Sprintf("status %s, confidence %.2f below %.2f", status, tc.IntentConfidence, g.threshold))

	if err := g.exec.RunStep(ctx, step.Clarification, tc, rec); err != nil {
		// Clarification is optional, so RunStep only fails on a
		// registry bug. Keep the original response with a caveat.
		g.logger.Error(ctx, "clarification step unavailable", zap.Error(err))
		tc.VerificationStatus = turn.VerificationUncertain
		return trace.TerminationWithCaveat
	}

	// The clarifying question replaces the draft answer; the verdict on
	// the discarded draft no longer applies.
	tc.VerificationStatus = turn.VerificationUncertain
	ClarificationsTotal.Inc()

	rec.Governor(stateClarifying, stateAccepted,
		fmt.Sprintf("clarifying question issued, round %d", tc.ClarificationRounds))
	return trace.TerminationWithCaveat
}

package steps

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/actions"
	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// maxGroundedReliability caps the reliability reported for a grounded
// answer; even a perfect retrieval score never claims full certainty.
const maxGroundedReliability = 0.85

// ResponseGeneration produces the turn's response in one of three modes.
//
// Actionable intents perform the backend action and confirm it with a
// reference ID. Turns with usable documents produce a grounded answer
// constrained to the retrieved excerpts. Everything else gets a
// conservative simple answer.
type ResponseGeneration struct {
	deps Deps
}

// NewResponseGeneration creates the response generation step.
func NewResponseGeneration(deps Deps) *ResponseGeneration {
	return &ResponseGeneration{deps: deps}
}

func (s *ResponseGeneration) Name() step.Name               { return step.ResponseGeneration }
func (s *ResponseGeneration) Capability() step.Capability   { return step.CapabilityRespond }
func (s *ResponseGeneration) Criticality() step.Criticality { return step.Critical }

func (s *ResponseGeneration) Reads() []turn.Field {
	return []turn.Field{
		turn.FieldPivotInput,
		turn.FieldIntent,
		turn.FieldDocuments,
		turn.FieldFormality,
	}
}

func (s *ResponseGeneration) Writes() []turn.Field {
	return []turn.Field{
		turn.FieldResponse,
		turn.FieldResponseMode,
		turn.FieldSourceReliability,
	}
}

// Run implements step.Step.
func (s *ResponseGeneration) Run(ctx context.Context, tc *turn.Context) error {
	if tc.Intent.Actionable() {
		return s.runAction(ctx, tc)
	}
	if docs := s.usableDocuments(tc); len(docs) > 0 {
		return s.runGrounded(ctx, tc, docs)
	}
	return s.runSimple(ctx, tc)
}

// runAction performs the backend action for the intent and confirms it.
// Action failures are fatal; confirming an action that did not happen is
// worse than aborting the turn.
func (s *ResponseGeneration) runAction(ctx context.Context, tc *turn.Context) error {
	var (
		refID string
		kind  string
		err   error
	)
	switch tc.Intent {
	case turn.IntentOpenTicket, turn.IntentComplaint:
		kind = "ticket"
		var t *actions.Ticket
		t, err = s.deps.Actions.CreateTicket(ctx, actions.Ticket{
			SessionID:   tc.SessionID,
			UserID:      tc.UserID,
			Description: tc.EffectiveInput(),
			Status:      "open",
		})
		if err == nil {
			refID = t.ID
		}
	case turn.IntentCostEstimation:
		kind = "quote"
		var q *actions.Quote
		q, err = s.deps.Actions.CreateQuote(ctx, actions.Quote{
			SessionID: tc.SessionID,
			UserID:    tc.UserID,
			Request:   tc.EffectiveInput(),
		})
		if err == nil {
			refID = q.ID
		}
	case turn.IntentBookingOrSchedule:
		kind = "appointment"
		var a *actions.Appointment
		a, err = s.deps.Actions.CreateAppointment(ctx, actions.Appointment{
			SessionID: tc.SessionID,
			UserID:    tc.UserID,
			Request:   tc.EffectiveInput(),
		})
		if err == nil {
			refID = a.ID
		}
	default:
		return step.NewFailure(s.Name(), step.FailureInvalidOutput,
			fmt.Sprintf("intent %q marked actionable but has no action", tc.Intent))
	}
	if err != nil {
		return step.Classify(s.Name(), err)
	}

	tc.Response = actionConfirmation(kind, refID, tc.Formality)
	tc.ResponseMode = turn.ModeAction
	tc.SourceReliability = 1.0

	s.deps.Logger.Info(ctx, "backend action recorded",
		zap.String("action", kind),
		zap.String("reference", refID),
	)
	return nil
}

// runGrounded answers from the retrieved excerpts only. On model failure
// it degrades to quoting the best excerpt rather than aborting the turn.
func (s *ResponseGeneration) runGrounded(ctx context.Context, tc *turn.Context, docs []turn.RetrievedDocument) error {
	var b strings.Builder
	b.WriteString("You are a customer support assistant. Answer the question using ONLY the context below.\n")
	b.WriteString("If the context does not contain the answer, say you do not have that information.\n")
	b.WriteString("Do not invent product names, numbers, or policies.\n\nContext:\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, d.Excerpt)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\nAnswer:", tc.EffectiveInput())

	out, err := s.deps.LLM.Complete(ctx, b.String())
	if err != nil {
		s.deps.Logger.Warn(ctx, "grounded generation unavailable, quoting top document",
			zap.Error(err),
		)
		tc.Response = fmt.Sprintf("Here is what I found that may help:\n\n%s", docs[0].Excerpt)
	} else {
		tc.Response = strings.TrimSpace(out)
	}

	tc.ResponseMode = turn.ModeGrounded
	reliability := float64(docs[0].Score) * 0.9
	if reliability > maxGroundedReliability {
		reliability = maxGroundedReliability
	}
	tc.SourceReliability = reliability

	s.deps.Logger.Info(ctx, "grounded response generated",
		zap.Int("documents", len(docs)),
		zap.Float64("reliability", reliability),
	)
	return nil
}

// runSimple produces a direct answer with no grounding. It is the only
// mode with no fallback, so a model failure here is fatal.
func (s *ResponseGeneration) runSimple(ctx context.Context, tc *turn.Context) error {
	var b strings.Builder
	b.WriteString("You are a customer support assistant. Reply briefly and politely to the user.\n")
	b.WriteString("If the message asks for specific product facts you do not know, say so and offer to open a support ticket.\n")
	if tc.Formality == turn.FormalityFormal {
		b.WriteString("Use a formal register.\n")
	}
	fmt.Fprintf(&b, "\nUser: %s\nAssistant:", tc.EffectiveInput())

	out, err := s.deps.LLM.Complete(ctx, b.String())
	if err != nil {
		return step.Classify(s.Name(), err)
	}

	tc.Response = strings.TrimSpace(out)
	tc.ResponseMode = turn.ModeSimple
	s.deps.Logger.Info(ctx, "simple response generated")
	return nil
}

// usableDocuments filters the retrieved set to documents scoring above the
// configured floor.
func (s *ResponseGeneration) usableDocuments(tc *turn.Context) []turn.RetrievedDocument {
	var docs []turn.RetrievedDocument
	for _, d := range tc.Documents {
		if float64(d.Score) > s.deps.Pipeline.MinDocumentScore {
			docs = append(docs, d)
		}
	}
	return docs
}

// actionConfirmation renders the confirmation message for a completed
// backend action.
func actionConfirmation(kind, refID string, formality turn.Formality) string {
	var msg string
	switch kind {
	case "ticket":
		msg = fmt.Sprintf("I have opened a support ticket for you. Your reference number is %s. Our team will follow up shortly.", refID)
	case "quote":
		msg = fmt.Sprintf("I have forwarded your request to our sales team for a quote. Your reference number is %s.", refID)
	case "appointment":
		msg = fmt.Sprintf("I have recorded your booking request. Your reference number is %s. We will confirm the date and time soon.", refID)
	}
	if formality == turn.FormalityFormal {
		msg = "Certainly. " + msg
	}
	return msg
}

// Package turn defines the shared mutable state for one conversational turn.
//
// A Context is created when a user message arrives, threaded through every
// processing step of that turn, and archived to session history once the
// executor returns. It is never shared across turns of the same session;
// turns for one session are strictly serialized by the orchestrator.
package turn

import "time"

// ResponseMode categorizes how the response was produced.
type ResponseMode string

const (
	// ModeSimple is a direct answer with no document grounding.
	ModeSimple ResponseMode = "simple"

	// ModeGrounded is an answer built from retrieved documents.
	ModeGrounded ResponseMode = "grounded"

	// ModeAction is a confirmation of a backend action (ticket, quote, booking).
	ModeAction ResponseMode = "action"
)

// VerificationStatus is the verdict of the verification step on a response.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationValid      VerificationStatus = "valid"
	VerificationUncertain  VerificationStatus = "uncertain"
	VerificationInvalid    VerificationStatus = "invalid"
)

// Intent is a classified user intent from the fixed taxonomy.
type Intent string

const (
	IntentTechnicalSupport   Intent = "technical_support_request"
	IntentProductInformation Intent = "product_information_request"
	IntentCostEstimation     Intent = "cost_estimation"
	IntentBookingOrSchedule  Intent = "booking_or_schedule"
	IntentDocumentRequest    Intent = "document_request"
	IntentOpenTicket         Intent = "open_ticket"
	IntentComplaint          Intent = "complaint"
	IntentSmalltalk          Intent = "generic_smalltalk"
)

// AllowedIntents returns the closed intent taxonomy in stable order.
func AllowedIntents() []Intent {
	return []Intent{
		IntentTechnicalSupport,
		IntentProductInformation,
		IntentCostEstimation,
		IntentBookingOrSchedule,
		IntentDocumentRequest,
		IntentOpenTicket,
		IntentComplaint,
		IntentSmalltalk,
	}
}

// IsValid reports whether the intent belongs to the allowed taxonomy.
func (i Intent) IsValid() bool {
	for _, known := range AllowedIntents() {
		if i == known {
			return true
		}
	}
	return false
}

// Actionable reports whether the intent triggers a backend action instead
// of a purely informational response.
func (i Intent) Actionable() bool {
	switch i {
	case IntentOpenTicket, IntentCostEstimation, IntentBookingOrSchedule, IntentComplaint:
		return true
	}
	return false
}

// Formality is an advisory register detected from the user's phrasing.
type Formality string

const (
	FormalityNeutral  Formality = "neutral"
	FormalityFormal   Formality = "formal"
	FormalityInformal Formality = "informal"
)

// Message is one (role, text) pair of session history.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RetrievedDocument is one ranked retrieval result attached to a turn.
type RetrievedDocument struct {
	SourceID string  `json:"source_id"`
	Score    float32 `json:"score"`
	Excerpt  string  `json:"excerpt"`
}

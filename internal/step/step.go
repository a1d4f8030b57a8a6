// Package step defines the processing step contract and the static registry
// the planner validates plans against.
package step

import (
	"context"

	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// Name identifies a registered step.
type Name string

const (
	LanguageDetection    Name = "language_detection"
	PivotTranslation     Name = "pivot_translation"
	IntentClassification Name = "intent_classification"
	DocumentRetrieval    Name = "document_retrieval"
	ResponseGeneration   Name = "response_generation"
	Verification         Name = "verification"
	Clarification        Name = "clarification"
	BackTranslation      Name = "back_translation"
)

// Capability tags what a step contributes to a turn. The planner requires
// at least one CapabilityRespond step in every plan.
type Capability string

const (
	CapabilityDetectLanguage Capability = "detects_language"
	CapabilityTranslate      Capability = "translates"
	CapabilityClassify       Capability = "classifies_intent"
	CapabilityRetrieve       Capability = "retrieves_documents"
	CapabilityRespond        Capability = "produces_response"
	CapabilityVerify         Capability = "verifies_response"
	CapabilityClarify        Capability = "asks_clarification"
)

// Criticality is the static recoverable-vs-fatal classification of a step.
// It is a property of the step, never inferred at runtime.
type Criticality int

const (
	// Optional steps are skipped on failure; execution continues with
	// degraded context and ErrorFlag set.
	Optional Criticality = iota

	// Critical steps abort the remaining plan on failure and force the
	// minimal safe-completion path.
	Critical
)

// String returns the criticality label used in traces.
func (c Criticality) String() string {
	if c == Critical {
		return "critical"
	}
	return "optional"
}

// Step is a named unit of turn processing with a declared read/write-set.
//
// A step must be safe to invoke with a partially populated context, must
// confine its writes to the declared write-set, and must not touch any
// resource outside the turn context except its injected collaborators.
// Blocking collaborator calls carry the executor-supplied context deadline.
type Step interface {
	Name() Name
	Capability() Capability
	Criticality() Criticality

	// Reads and Writes declare the context fields this step consumes and
	// produces. The executor merges only the declared write-set back.
	Reads() []turn.Field
	Writes() []turn.Field

	// Run mutates tc in place. On failure it returns a *Failure (or an
	// error wrapping one) classified by the executor's two-tier policy.
	Run(ctx context.Context, tc *turn.Context) error
}

// Description is the planner-facing summary of one registered step.
type Description struct {
	Name       Name       `json:"name"`
	Capability Capability `json:"capability"`
	Purpose    string     `json:"purpose"`
}

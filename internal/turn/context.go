package turn

import (
	"time"

	"github.com/google/uuid"
)

// Memory caps on carried state. History and documents are trimmed from the
// oldest end so a long-lived session cannot grow a turn without bound.
const (
	MaxHistoryMessages = 50
	MaxDocuments       = 10
)

// Context is the shared mutable record of one conversational turn.
//
// Steps never write to a Context directly during execution; the executor
// runs each step against a clone and merges back only the step's declared
// write-set, so every field mutation is attributable to exactly one step.
type Context struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	TurnID    string `json:"turn_id"`

	// Input is immutable once the turn is created.
	Input string `json:"input"`

	// PivotInput is the pivot-language rendering of Input, set by the
	// pivot translation step when the detected language differs from the
	// pivot. Empty means Input is already in the pivot language.
	PivotInput string `json:"pivot_input,omitempty"`

	DetectedLanguage string    `json:"detected_language,omitempty"`
	PivotLanguage    string    `json:"pivot_language"`
	Formality        Formality `json:"formality,omitempty"`
	MixedLanguage    bool      `json:"mixed_language"`

	Intent           Intent  `json:"intent,omitempty"`
	IntentConfidence float64 `json:"intent_confidence"`

	// Documents is replaced wholesale by the retrieval step, never
	// mutated in place.
	Documents []RetrievedDocument `json:"documents,omitempty"`

	Response     string       `json:"response,omitempty"`
	ResponseMode ResponseMode `json:"response_mode,omitempty"`

	VerificationStatus     VerificationStatus `json:"verification_status"`
	ClarificationAttempted bool               `json:"clarification_attempted"`
	ClarificationRounds    int                `json:"clarification_rounds"`

	ErrorFlag         bool    `json:"error_flag"`
	SourceReliability float64 `json:"source_reliability"`

	// History is the carried-over session history, oldest first. It does
	// not include the current turn's input.
	History []Message `json:"history,omitempty"`

	createdAt time.Time
}

// New creates a Context for a fresh turn. The pivot language is fixed per
// deployment and set once here.
func New(sessionID, userID, input, pivotLanguage string) *Context {
	return &Context{
		SessionID:          sessionID,
		UserID:             userID,
		TurnID:             uuid.NewString(),
		Input:              input,
		PivotLanguage:      pivotLanguage,
		VerificationStatus: VerificationUnverified,
		createdAt:          time.Now(),
	}
}

// CreatedAt returns the turn creation time.
func (c *Context) CreatedAt() time.Time { return c.createdAt }

// Clone returns a deep copy. Slices are copied so writes to the clone never
// alias the original.
func (c *Context) Clone() *Context {
	clone := *c
	if c.Documents != nil {
		clone.Documents = make([]RetrievedDocument, len(c.Documents))
		copy(clone.Documents, c.Documents)
	}
	if c.History != nil {
		clone.History = make([]Message, len(c.History))
		copy(clone.History, c.History)
	}
	return &clone
}

// AttachHistory sets the carried-over session history, trimming to the
// most recent MaxHistoryMessages entries.
func (c *Context) AttachHistory(history []Message) {
	if len(history) > MaxHistoryMessages {
		history = history[len(history)-MaxHistoryMessages:]
	}
	c.History = history
}

// ReplaceDocuments swaps in a new retrieval result set, capped at
// MaxDocuments highest-ranked entries. The previous set is discarded.
func (c *Context) ReplaceDocuments(docs []RetrievedDocument) {
	if len(docs) > MaxDocuments {
		docs = docs[:MaxDocuments]
	}
	c.Documents = docs
}

// EffectiveInput returns the pivot-language rendering of the input when
// one exists, the raw input otherwise. Classification and retrieval read
// this so they always operate on pivot-language text.
func (c *Context) EffectiveInput() string {
	if c.PivotInput != "" {
		return c.PivotInput
	}
	return c.Input
}

// HasResponse reports whether a response has been produced for this turn.
func (c *Context) HasResponse() bool { return c.Response != "" }

// NeedsPivotTranslation reports whether the detected language differs from
// the deployment pivot. Translation steps are no-ops when this is false.
func (c *Context) NeedsPivotTranslation() bool {
	return c.DetectedLanguage != "" && c.DetectedLanguage != c.PivotLanguage
}

// Sources returns the source IDs of retrieved documents, ranked order.
func (c *Context) Sources() []string {
	if len(c.Documents) == 0 {
		return nil
	}
	out := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		out[i] = d.SourceID
	}
	return out
}

package turn

// Field names a mutable Context field for read/write-set declarations.
// The input, identity, and history fields are set at construction and are
// not part of any step's write-set.
type Field string

const (
	FieldDetectedLanguage       Field = "detected_language"
	FieldPivotInput             Field = "pivot_input"
	FieldFormality              Field = "formality"
	FieldMixedLanguage          Field = "mixed_language"
	FieldIntent                 Field = "intent"
	FieldIntentConfidence       Field = "intent_confidence"
	FieldDocuments              Field = "documents"
	FieldResponse               Field = "response"
	FieldResponseMode           Field = "response_mode"
	FieldVerificationStatus     Field = "verification_status"
	FieldClarificationAttempted Field = "clarification_attempted"
	FieldClarificationRounds    Field = "clarification_rounds"
	FieldErrorFlag              Field = "error_flag"
	FieldSourceReliability      Field = "source_reliability"
)

// AllFields returns every declarable field in stable order.
func AllFields() []Field {
	return []Field{
		FieldDetectedLanguage,
		FieldPivotInput,
		FieldFormality,
		FieldMixedLanguage,
		FieldIntent,
		FieldIntentConfidence,
		FieldDocuments,
		FieldResponse,
		FieldResponseMode,
		FieldVerificationStatus,
		FieldClarificationAttempted,
		FieldClarificationRounds,
		FieldErrorFlag,
		FieldSourceReliability,
	}
}

// Merge copies the named fields from src into dst. Undeclared fields are
// left untouched, which is the executor's defense against accidental
// cross-field writes by a step.
func Merge(dst, src *Context, fields []Field) {
	for _, f := range fields {
		copyField(dst, src, f)
	}
}

// Changed reports which of the given fields differ between before and
// after. Used for trace attribution of step writes.
func Changed(before, after *Context, fields []Field) []Field {
	var out []Field
	for _, f := range fields {
		if !fieldEqual(before, after, f) {
			out = append(out, f)
		}
	}
	return out
}

func copyField(dst, src *Context, f Field) {
	switch f {
	case FieldDetectedLanguage:
		dst.DetectedLanguage = src.DetectedLanguage
	case FieldPivotInput:
		dst.PivotInput = src.PivotInput
	case FieldFormality:
		dst.Formality = src.Formality
	case FieldMixedLanguage:
		dst.MixedLanguage = src.MixedLanguage
	case FieldIntent:
		dst.Intent = src.Intent
	case FieldIntentConfidence:
		dst.IntentConfidence = src.IntentConfidence
	case FieldDocuments:
		if src.Documents == nil {
			dst.Documents = nil
			return
		}
		docs := make([]RetrievedDocument, len(src.Documents))
		copy(docs, src.Documents)
		dst.Documents = docs
	case FieldResponse:
		dst.Response = src.Response
	case FieldResponseMode:
		dst.ResponseMode = src.ResponseMode
	case FieldVerificationStatus:
		dst.VerificationStatus = src.VerificationStatus
	case FieldClarificationAttempted:
		dst.ClarificationAttempted = src.ClarificationAttempted
	case FieldClarificationRounds:
		dst.ClarificationRounds = src.ClarificationRounds
	case FieldErrorFlag:
		dst.ErrorFlag = src.ErrorFlag
	case FieldSourceReliability:
		dst.SourceReliability = src.SourceReliability
	}
}

func fieldEqual(a, b *Context, f Field) bool {
	switch f {
	case FieldDetectedLanguage:
		return a.DetectedLanguage == b.DetectedLanguage
	case FieldPivotInput:
		return a.PivotInput == b.PivotInput
	case FieldFormality:
		return a.Formality == b.Formality
	case FieldMixedLanguage:
		return a.MixedLanguage == b.MixedLanguage
	case FieldIntent:
		return a.Intent == b.Intent
	case FieldIntentConfidence:
		return a.IntentConfidence == b.IntentConfidence
	case FieldDocuments:
		if len(a.Documents) != len(b.Documents) {
			return false
		}
		for i := range a.Documents {
			if a.Documents[i] != b.Documents[i] {
				return false
			}
		}
		return true
	case FieldResponse:
		return a.Response == b.Response
	case FieldResponseMode:
		return a.ResponseMode == b.ResponseMode
	case FieldVerificationStatus:
		return a.VerificationStatus == b.VerificationStatus
	case FieldClarificationAttempted:
		return a.ClarificationAttempted == b.ClarificationAttempted
	case FieldClarificationRounds:
		return a.ClarificationRounds == b.ClarificationRounds
	case FieldErrorFlag:
		return a.ErrorFlag == b.ErrorFlag
	case FieldSourceReliability:
		return a.SourceReliability == b.SourceReliability
	}
	return true
}

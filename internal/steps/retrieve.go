package steps

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/turn"
)

// excerptLimit caps how much of a document rides along in the turn.
const excerptLimit = 800

// DocumentRetrieval queries the knowledge base for documents relevant to
// the input and replaces the turn's document set wholesale. An empty
// result is a valid outcome; the response step degrades to simple mode.
type DocumentRetrieval struct {
	deps Deps
}

// NewDocumentRetrieval creates the retrieval step.
func NewDocumentRetrieval(deps Deps) *DocumentRetrieval {
	return &DocumentRetrieval{deps: deps}
}

func (s *DocumentRetrieval) Name() step.Name               { return step.DocumentRetrieval }
func (s *DocumentRetrieval) Capability() step.Capability   { return step.CapabilityRetrieve }
func (s *DocumentRetrieval) Criticality() step.Criticality { return step.Optional }

func (s *DocumentRetrieval) Reads() []turn.Field {
	return []turn.Field{turn.FieldPivotInput, turn.FieldIntent}
}

func (s *DocumentRetrieval) Writes() []turn.Field {
	return []turn.Field{turn.FieldDocuments, turn.FieldSourceReliability}
}

// Run implements step.Step.
func (s *DocumentRetrieval) Run(ctx context.Context, tc *turn.Context) error {
	// Smalltalk needs no grounding; the step still runs and traces.
	if tc.Intent == turn.IntentSmalltalk {
		return nil
	}

	filters := map[string]interface{}{"access_role": "customer"}
	results, err := s.deps.Store.SearchWithFilters(ctx, tc.EffectiveInput(), s.deps.Pipeline.TopK, filters)
	if err != nil {
		return step.Classify(s.Name(), err)
	}

	docs := make([]turn.RetrievedDocument, 0, len(results))
	for _, r := range results {
		excerpt := r.Content
		if len(excerpt) > excerptLimit {
			excerpt = excerpt[:excerptLimit]
		}
		docs = append(docs, turn.RetrievedDocument{
			SourceID: r.ID,
			Score:    r.Score,
			Excerpt:  excerpt,
		})
	}
	tc.ReplaceDocuments(docs)

	if len(docs) > 0 {
		tc.SourceReliability = float64(docs[0].Score)
	}

	s.deps.Logger.Info(ctx, "documents retrieved",
		zap.Int("count", len(docs)),
		zap.Int("top_k", s.deps.Pipeline.TopK),
	)
	return nil
}

// Package steps implements the concrete processing steps registered with
// the orchestration engine: language handling, intent classification,
// retrieval, response generation, verification, and clarification.
package steps

import (
	"github.com/fyrsmithlabs/supportd/internal/actions"
	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/llm"
	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/step"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// Deps bundles the external collaborators injected into every step.
type Deps struct {
	LLM      llm.Client
	Store    vectorstore.Store
	Actions  actions.Store
	Logger   *logging.Logger
	Pipeline config.PipelineConfig
}

// NewRegistry builds the static step catalogue for one deployment.
func NewRegistry(deps Deps) (*step.Registry, error) {
	return step.NewRegistry(
		NewLanguageDetection(deps),
		NewPivotTranslation(deps),
		NewIntentClassification(deps),
		NewDocumentRetrieval(deps),
		NewResponseGeneration(deps),
		NewVerification(deps),
		NewClarification(deps),
		NewBackTranslation(deps),
	)
}

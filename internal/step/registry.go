package step

import (
	"fmt"
	"sort"
)

// Registry is the fixed catalogue of steps available to the planner and
// executor. It is assembled once at startup and read-only afterwards, so
// lookups need no synchronization.
type Registry struct {
	steps map[Name]Step
	order []Name
}

// NewRegistry builds a registry from the given steps. Duplicate names are
// a configuration error.
func NewRegistry(steps ...Step) (*Registry, error) {
	r := &Registry{steps: make(map[Name]Step, len(steps))}
	for _, s := range steps {
		if _, exists := r.steps[s.Name()]; exists {
			return nil, fmt.Errorf("duplicate step registration: %s", s.Name())
		}
		r.steps[s.Name()] = s
		r.order = append(r.order, s.Name())
	}
	return r, nil
}

// Get returns the step with the given name.
func (r *Registry) Get(name Name) (Step, error) {
	s, ok := r.steps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, name)
	}
	return s, nil
}

// Has reports whether a step is registered.
func (r *Registry) Has(name Name) bool {
	_, ok := r.steps[name]
	return ok
}

// Names returns all registered step names in registration order.
func (r *Registry) Names() []Name {
	out := make([]Name, len(r.order))
	copy(out, r.order)
	return out
}

// WithCapability returns the names of steps carrying the capability,
// sorted for deterministic plan validation messages.
func (r *Registry) WithCapability(cap Capability) []Name {
	var out []Name
	for name, s := range r.steps {
		if s.Capability() == cap {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Describe returns planner-facing descriptions in registration order.
func (r *Registry) Describe() []Description {
	out := make([]Description, 0, len(r.order))
	for _, name := range r.order {
		s := r.steps[name]
		out = append(out, Description{
			Name:       s.Name(),
			Capability: s.Capability(),
			Purpose:    purposeOf(s.Name()),
		})
	}
	return out
}

// purposeOf returns the one-line purpose shown to the planning model.
func purposeOf(name Name) string {
	switch name {
	case LanguageDetection:
		return "detect the user's language, formality and mixed-language usage"
	case PivotTranslation:
		return "translate the input to the pivot language when they differ"
	case IntentClassification:
		return "classify the user's intent with a confidence score"
	case DocumentRetrieval:
		return "retrieve relevant knowledge-base documents for the input"
	case ResponseGeneration:
		return "generate the grounded, action or simple response"
	case Verification:
		return "verify the generated response against the input"
	case Clarification:
		return "ask the user a clarifying question"
	case BackTranslation:
		return "translate the response back to the user's language"
	}
	return string(name)
}

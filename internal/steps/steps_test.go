package steps

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/fyrsmithlabs/supportd/internal/actions"
	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// scriptedLLM returns queued responses in order; the last response
// repeats once the queue drains. A non-nil err fails every call.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (f *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	out := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return out, nil
}

func (f *scriptedLLM) CompleteJSON(ctx context.Context, prompt string, out any) error {
	raw, err := f.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

// fakeSearcher is a canned vectorstore.
type fakeSearcher struct {
	results []vectorstore.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) AddDocuments(context.Context, []vectorstore.Document) ([]string, error) {
	return nil, nil
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int) ([]vectorstore.SearchResult, error) {
	return f.SearchWithFilters(ctx, query, topK, nil)
}

func (f *fakeSearcher) SearchWithFilters(_ context.Context, query string, _ int, _ map[string]interface{}) ([]vectorstore.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSearcher) Close() error { return nil }

// testDeps builds step dependencies around the given fakes.
func testDeps(llmClient *scriptedLLM, store *fakeSearcher, acts actions.Store) Deps {
	if store == nil {
		store = &fakeSearcher{}
	}
	if acts == nil {
		acts = actions.NewMemoryStore()
	}
	return Deps{
		LLM:     llmClient,
		Store:   store,
		Actions: acts,
		Logger:  logging.NewTestLogger().Logger,
		Pipeline: config.PipelineConfig{
			PivotLanguage:          "en",
			ConfidenceThreshold:    0.6,
			MaxClarificationRounds: 2,
			TopK:                   5,
			MinDocumentScore:       0.3,
			VerificationPasses:     3,
		},
	}
}

// Package llm wraps the language-model inference collaborator.
//
// Every call carries a bounded timeout; callers classify timeout and
// malformed-output errors through their own failure taxonomy.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/supportd/internal/config"
)

var (
	// ErrMalformedOutput indicates the model returned output that failed
	// parsing or schema validation.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrEmptyCompletion indicates the model returned no usable text.
	ErrEmptyCompletion = errors.New("empty model completion")
)

// Client is the inference contract consumed by steps and the planner.
type Client interface {
	// Complete returns the model's text completion for the prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteJSON asks for a JSON response and unmarshals it into out.
	// Parsing failures wrap ErrMalformedOutput.
	CompleteJSON(ctx context.Context, prompt string, out any) error
}

// Service is the langchaingo-backed Client for any OpenAI-compatible
// endpoint (hosted API or a local Ollama/TEI gateway).
type Service struct {
	model   llms.Model
	timeout time.Duration
}

// New creates a Service from config.
func New(cfg config.LLMConfig) (*Service, error) {
	opts := []openai.Option{
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	}
	if cfg.APIKey.IsSet() {
		opts = append(opts, openai.WithToken(cfg.APIKey.Value()))
	} else {
		// langchaingo requires a token even for local endpoints
		opts = append(opts, openai.WithToken("local"))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return &Service{model: model, timeout: cfg.Timeout.Duration()}, nil
}

// NewWithModel wraps an existing llms.Model. Used by tests and by callers
// that construct the model themselves.
func NewWithModel(model llms.Model, timeout time.Duration) *Service {
	return &Service{model: model, timeout: timeout}
}

// Complete implements Client.
func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

// CompleteJSON implements Client.
func (s *Service) CompleteJSON(ctx context.Context, prompt string, out any) error {
	raw, err := s.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// extractJSON strips markdown fences and surrounding prose that chat
// models wrap around JSON payloads.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "```"); idx >= 0 {
		raw = raw[idx+3:]
		raw = strings.TrimPrefix(raw, "json")
		if end := strings.Index(raw, "```"); end >= 0 {
			raw = raw[:end]
		}
	}
	// Fall back to the outermost bracket pair.
	start := strings.IndexAny(raw, "[{")
	end := strings.LastIndexAny(raw, "]}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

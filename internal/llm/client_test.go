package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel implements llms.Model with a canned completion.
type fakeModel struct {
	content string
	err     error
}

func (f *fakeModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.content}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

func TestComplete(t *testing.T) {
	svc := NewWithModel(&fakeModel{content: "  hello  "}, time.Second)

	out, err := svc.Complete(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestCompleteEmptyOutput(t *testing.T) {
	svc := NewWithModel(&fakeModel{content: "   "}, time.Second)

	_, err := svc.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestCompleteWrapsModelError(t *testing.T) {
	svc := NewWithModel(&fakeModel{err: errors.New("upstream 503")}, time.Second)

	_, err := svc.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion failed")
}

func TestCompleteJSON(t *testing.T) {
	svc := NewWithModel(&fakeModel{content: "```json\n[\"a\", \"b\"]\n```"}, time.Second)

	var out []string
	require.NoError(t, svc.CompleteJSON(context.Background(), "p", &out))
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestCompleteJSONMalformed(t *testing.T) {
	svc := NewWithModel(&fakeModel{content: "definitely not json"}, time.Second)

	var out []string
	err := svc.CompleteJSON(context.Background(), "p", &out)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"bare object":     {`{"a": 1}`, `{"a": 1}`},
		"fenced":          {"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		"fence no lang":   {"```\n[1, 2]\n```", `[1, 2]`},
		"surrounding":     {`Here you go: ["x"] hope that helps`, `["x"]`},
		"nested brackets": {`{"plan": ["a", "b"]}`, `{"plan": ["a", "b"]}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

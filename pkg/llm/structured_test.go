package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	content string
	err     error
	delay   time.Duration
	last    *SamplingOptions
	prompts []string
}

func (f *fakeClient) Chat(ctx context.Context, msgs []Message, opts *SamplingOptions) (*Response, error) {
	f.last = opts
	f.prompts = append(f.prompts, msgs[len(msgs)-1].Content)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Content: f.content}, nil
}

var sampleSchema = MustCompileSchema("sample", `{
	"type": "object",
	"required": ["ids"],
	"properties": {"ids": {"type": "array", "items": {"type": "string"}}}
}`)

type sample struct {
	IDs []string `json:"ids"`
}

func TestStructuredCompleter_Complete(t *testing.T) {
	fc := &fakeClient{content: "```json\n{\"ids\": [\"OBJ-A-1\"]}\n```"}
	s := NewStructuredCompleter(fc, WithMaxTokens(4000))

	var out sample
	require.NoError(t, s.Complete(context.Background(), "map this", sampleSchema, &out))
	assert.Equal(t, []string{"OBJ-A-1"}, out.IDs)
	assert.Equal(t, 4000, fc.last.MaxTokens)
	require.NotNil(t, fc.last.ResponseFormat)
	assert.Equal(t, "sample", fc.last.ResponseFormat.Name)
	assert.Equal(t, []string{"map this"}, fc.prompts)
}

func TestStructuredCompleter_ResponseErrors(t *testing.T) {
	tests := map[string]string{
		"not json":        "I think OBJ-A-1 matches",
		"schema mismatch": `{"ids": "OBJ-A-1"}`,
		"missing field":   `{}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			s := NewStructuredCompleter(&fakeClient{content: content})
			var out sample
			err := s.Complete(context.Background(), "p", sampleSchema, &out)
			require.ErrorIs(t, err, ErrResponse)
			assert.NotErrorIs(t, err, ErrCall)
		})
	}
}

func TestStructuredCompleter_CallError(t *testing.T) {
	s := NewStructuredCompleter(&fakeClient{err: errors.New("connection reset")})
	err := s.Complete(context.Background(), "p", sampleSchema, &sample{})
	require.ErrorIs(t, err, ErrCall)
}

func TestStructuredCompleter_Timeout(t *testing.T) {
	s := NewStructuredCompleter(&fakeClient{delay: time.Second, content: `{"ids":[]}`}, WithTimeout(20*time.Millisecond))
	err := s.Complete(context.Background(), "p", sampleSchema, &sample{})
	require.ErrorIs(t, err, ErrCall)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStructuredCompleter_LimiterHonoursCancellation(t *testing.T) {
	limiter := NewLimiter(0.001)
	require.True(t, limiter.Allow())

	s := NewStructuredCompleter(&fakeClient{content: `{"ids":[]}`}, WithLimiter(limiter))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Complete(ctx, "p", sampleSchema, &sample{})
	require.ErrorIs(t, err, ErrCall)
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema("broken", []byte(`{"type": 12}`))
	require.Error(t, err)
}

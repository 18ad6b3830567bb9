package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrCall covers transport, service and timeout failures.
	ErrCall = errors.New("llm call failed")
	// ErrResponse covers completions that are not JSON or violate the schema.
	ErrResponse = errors.New("llm response invalid")
)

// Completer is the structured-completion capability the mappers depend on:
// send a prompt, receive JSON matching schema decoded into out.
type Completer interface {
	Complete(ctx context.Context, prompt string, schema *Schema, out any) error
}

const DefaultTimeout = 60 * time.Second

// StructuredCompleter implements Completer on top of a chat Client. Calls
// are paced by an optional rate limiter and bounded by a timeout. It never
// retries.
type StructuredCompleter struct {
	client   Client
	limiter  *rate.Limiter
	timeout  time.Duration
	sampling SamplingOptions
	logger   *slog.Logger
}

type CompleterOption func(*StructuredCompleter)

func WithTimeout(d time.Duration) CompleterOption {
	return func(s *StructuredCompleter) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMaxTokens(n int) CompleterOption {
	return func(s *StructuredCompleter) { s.sampling.MaxTokens = n }
}

func WithTemperature(t float64) CompleterOption {
	return func(s *StructuredCompleter) { s.sampling.Temperature = t }
}

// WithLimiter shares a limiter across completers so every stage draws from
// the same request budget.
func WithLimiter(l *rate.Limiter) CompleterOption {
	return func(s *StructuredCompleter) { s.limiter = l }
}

func WithCompleterLogger(l *slog.Logger) CompleterOption {
	return func(s *StructuredCompleter) { s.logger = l }
}

// NewLimiter builds a limiter for rps requests per second. rps <= 0 means
// unlimited.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func NewStructuredCompleter(client Client, opts ...CompleterOption) *StructuredCompleter {
	s := &StructuredCompleter{
		client:  client,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "llm")
	}
	return s
}

func (s *StructuredCompleter) Complete(ctx context.Context, prompt string, schema *Schema, out any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %w", ErrCall, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := s.sampling
	opts.ResponseFormat = &ResponseFormat{Name: schema.Name(), Schema: schema.Document()}

	start := time.Now()
	resp, err := s.client.Chat(callCtx, []Message{{Role: "user", Content: prompt}}, &opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCall, err)
	}
	s.logger.DebugContext(ctx, "completion received",
		"schema", schema.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.FinishReason,
	)

	body := stripCodeFence(resp.Content)

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return fmt.Errorf("%w: not JSON: %v", ErrResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrResponse, schema.Name(), err)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrResponse, schema.Name(), err)
	}
	return nil
}

// stripCodeFence removes a ```json fence some models wrap output in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

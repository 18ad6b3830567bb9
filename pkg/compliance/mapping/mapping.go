// Package mapping runs the two LLM-driven mapping stages of control
// generation: obligations to control objectives, and objectives plus a
// company context to control variants.
//
// Both mappers ask the model to reuse registry entries before minting new
// ones. IDs the model returns that the registry does not know are dropped
// and counted, never surfaced as errors. A failed or malformed completion
// degrades to an empty result for that item; it never aborts a batch.
package mapping

import (
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Mindburn-Labs/controlgen/pkg/observability"
)

// ErrUnresolvedReference describes a model-supplied registry ID that did
// not resolve. It is recorded on outcomes, not returned.
var ErrUnresolvedReference = errors.New("unresolved registry reference")

const (
	// DefaultObligationMaxTokens bounds the obligation mapping completion.
	DefaultObligationMaxTokens = 4000
	// DefaultVariantMaxTokens bounds the variant mapping completion.
	DefaultVariantMaxTokens = 6000

	fallbackDomain = "General"
)

// Option configures a mapper.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	telemetry   *observability.Provider
	concurrency int
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithTelemetry(p *observability.Provider) Option {
	return func(o *options) { o.telemetry = p }
}

// WithConcurrency bounds how many items a batch maps at once. Values below
// one mean sequential.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func buildOptions(component string, opts []Option) options {
	o := options{concurrency: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", component)
	}
	if o.telemetry == nil {
		o.telemetry = observability.Noop()
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return o
}

// clean NFC-normalises model text and trims surrounding space.
func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func cleanAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = clean(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

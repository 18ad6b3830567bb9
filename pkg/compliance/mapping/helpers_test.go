package mapping

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
	"github.com/Mindburn-Labs/controlgen/pkg/llm"
	"github.com/Mindburn-Labs/controlgen/pkg/registry"
	"github.com/Mindburn-Labs/controlgen/pkg/store"
)

// scriptedClient answers each chat with respond(prompt).
type scriptedClient struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (c *scriptedClient) Chat(_ context.Context, msgs []llm.Message, _ *llm.SamplingOptions) (*llm.Response, error) {
	prompt := msgs[len(msgs)-1].Content
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()

	content, err := c.respond(prompt)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: content, FinishReason: "stop"}, nil
}

func (c *scriptedClient) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

func reply(content string) func(string) (string, error) {
	return func(string) (string, error) { return content, nil }
}

func newRegistries(t *testing.T, opts ...registry.Option) (*registry.ObjectiveRegistry, *registry.VariantRegistry) {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewFileDocumentStore(t.TempDir())
	require.NoError(t, err)

	objectives, err := registry.NewObjectiveRegistry(ctx, st, opts...)
	require.NoError(t, err)
	variants, err := registry.NewVariantRegistry(ctx, st, opts...)
	require.NoError(t, err)
	return objectives, variants
}

func obligation(id, domain string) contracts.Obligation {
	return contracts.Obligation{
		ObligationID:    id,
		Text:            "Ensure personal data is processed lawfully, fairly and transparently",
		FrameworkSource: "GDPR (EU) 2016/679",
		ClauseSource:    "5.1.a",
		Domain:          domain,
		Impact:          "Critical",
	}
}

func company(employees int, jurisdictions ...string) contracts.CompanyContext {
	return contracts.CompanyContext{
		CompanyName:        "Acme",
		EmployeeCount:      &employees,
		Industry:           "Fintech",
		Jurisdictions:      jurisdictions,
		RiskAppetite:       "Low",
		ComplianceMaturity: "Developing",
	}
}

func idFromPrompt(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if id, ok := strings.CutPrefix(line, "ID: OBL-"); ok {
			return "OBL-" + id
		}
	}
	return ""
}

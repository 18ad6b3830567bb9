package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/controlgen/pkg/artifacts"
	"github.com/Mindburn-Labs/controlgen/pkg/compliance/controls"
	"github.com/Mindburn-Labs/controlgen/pkg/compliance/mapping"
	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
	"github.com/Mindburn-Labs/controlgen/pkg/llm"
	"github.com/Mindburn-Labs/controlgen/pkg/registry"
	"github.com/Mindburn-Labs/controlgen/pkg/store"
)

const threeTierVariant = `{
  "analysis": "Needs notices.",
  "matched_variant_ids": [],
  "new_variants": [{
    "variant_name": "Privacy notice management",
    "base_description": "Maintain privacy notices",
    "variants": [
      {"variant_type": "startup", "applies_if": "employee_count < 50", "description_additions": "Templates", "evidence_requirements": ["Notice"], "review_interval": "12 months"},
      {"variant_type": "sme", "applies_if": "employee_count >= 50 and employee_count < 1000", "description_additions": "Registry", "evidence_requirements": ["DMS export", "Approval logs"], "review_interval": "6 months"},
      {"variant_type": "enterprise", "applies_if": "employee_count >= 1000", "description_additions": "Platform", "evidence_requirements": ["Audit report"], "review_interval": "3 months"}
    ],
    "jurisdiction_requirements": {"SE": ["Plain Swedish language"], "EU": ["Article 13 content"]}
  }],
  "reasoning": "Empty registry."
}`

// pipelineClient answers stage 1 and stage 2 prompts separately.
type pipelineClient struct {
	mu         sync.Mutex
	calls      int
	obligation func(prompt string) (string, error)
	variant    func(prompt string) (string, error)
}

func (c *pipelineClient) Chat(_ context.Context, msgs []llm.Message, _ *llm.SamplingOptions) (*llm.Response, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	prompt := msgs[len(msgs)-1].Content
	var (
		content string
		err     error
	)
	switch {
	case strings.HasPrefix(prompt, "You are a compliance expert mapping legal obligations"):
		content, err = c.obligation(prompt)
	case strings.HasPrefix(prompt, "You are a compliance expert mapping control objectives"):
		content, err = c.variant(prompt)
	default:
		return nil, errors.New("unexpected prompt")
	}
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: content}, nil
}

func newObjectiveReply(name, domain string) string {
	return fmt.Sprintf(`{"matched_objective_ids": [], "new_objectives": [{"objective_name": %q, "description": "d", "domain": %q}]}`, name, domain)
}

type harness struct {
	gen        *Generator
	objectives *registry.ObjectiveRegistry
	variants   *registry.VariantRegistry
}

func newHarness(t *testing.T, client llm.Client, opts ...registry.Option) harness {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewFileDocumentStore(t.TempDir())
	require.NoError(t, err)
	objectives, err := registry.NewObjectiveRegistry(ctx, st, opts...)
	require.NoError(t, err)
	variants, err := registry.NewVariantRegistry(ctx, st, opts...)
	require.NoError(t, err)

	completer := llm.NewStructuredCompleter(client)
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	gen := NewGenerator(
		mapping.NewObligationMapper(completer, objectives),
		mapping.NewVariantMapper(completer, variants),
		controls.NewBuilder(nil),
		WithClock(func() time.Time { return fixed }),
	)
	return harness{gen: gen, objectives: objectives, variants: variants}
}

func dataProtectionObligation(id string) contracts.Obligation {
	return contracts.Obligation{
		ObligationID:    id,
		Text:            "Ensure personal data processing is conducted in a transparent manner",
		FrameworkSource: "GDPR (EU) 2016/679",
		ClauseSource:    "5.1.a",
		Domain:          "Data protection",
		Impact:          "Critical",
	}
}

func acme(employees int) contracts.CompanyContext {
	return contracts.CompanyContext{
		CompanyName:        "Acme Corporation",
		EmployeeCount:      &employees,
		Industry:           "SaaS",
		Jurisdictions:      []string{"SE", "EU"},
		RiskAppetite:       "Low",
		ComplianceMaturity: "Developing",
	}
}

func TestGenerate_EndToEnd(t *testing.T) {
	cases := []struct {
		name      string
		scheme    registry.VariantIDScheme
		variantID string
	}{
		{"legacy ids", registry.LegacyVariantIDs, "CV-DATAPROTECTION-1"},
		{"sequential ids", registry.SequentialVariantIDs, "CV-DATAPROTECTION-1-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &pipelineClient{
				obligation: func(string) (string, error) { return newObjectiveReply("Transparent processing", "Data protection"), nil },
				variant:    func(string) (string, error) { return threeTierVariant, nil },
			}
			h := newHarness(t, client, registry.WithVariantIDScheme(tc.scheme))

			res, err := h.gen.Generate(context.Background(), []contracts.Obligation{dataProtectionObligation("OBL-GDPR-2")}, acme(250))
			require.NoError(t, err)

			require.Len(t, res.Objectives, 1)
			assert.Equal(t, "OBJ-DATAPROTECTION-1", res.Objectives[0].ObjectiveID)
			assert.Equal(t, 1, h.objectives.Len())

			require.Equal(t, 1, h.variants.Len())
			v, ok := h.variants.Get(tc.variantID)
			require.True(t, ok)
			assert.Len(t, v.Variants, 3)

			require.Len(t, res.Controls, 1)
			c := res.Controls[0]
			assert.Equal(t, tc.variantID+"-SME", c.ControlID)
			assert.Equal(t, "OBL-GDPR-2", c.LinkedObligationIDs)
			assert.Equal(t, "Critical", c.Impact)
			assert.Equal(t, "6 months", c.ReviewInterval)
			assert.True(t, strings.HasSuffix(c.Description,
				"\n\nJurisdiction-specific requirements:\n- Plain Swedish language\n- Article 13 content\n"))

			m := res.Metadata
			assert.Regexp(t, regexp.MustCompile(`^gen_20260314_092653_[0-9a-f]{6}$`), m.GenerationID)
			assert.Equal(t, 1, m.NumObligations)
			assert.Equal(t, 1, m.NumObjectives)
			assert.Equal(t, 1, m.NumControls)
			assert.Equal(t, 1, m.NumNewObjectives)
			assert.Equal(t, 1, m.NumNewVariants)
			assert.Zero(t, m.NumDroppedReferences)
			assert.Zero(t, m.NumLLMFailures)
			assert.Equal(t, GenerationMethod, m.GenerationMethod)
			assert.Equal(t, []string{"control-generation", "llm-driven", "gdpr", "data-protection", "sme", "saas"}, m.TraceTags)

			assert.Equal(t, []string{"OBL-GDPR-2"}, res.ObjectiveObligations["OBJ-DATAPROTECTION-1"])
			assert.Empty(t, res.Provenance.Uncovered())
		})
	}
}

func TestGenerate_SharedObjectiveAndReverseIndex(t *testing.T) {
	client := &pipelineClient{
		obligation: func(prompt string) (string, error) {
			if strings.Contains(prompt, "ID: OBL-A\n") {
				return newObjectiveReply("Transparency", "Privacy"), nil
			}
			return `{"matched_objective_ids": ["OBJ-PRIVACY-1", "OBJ-GHOST-3"], "new_objectives": []}`, nil
		},
		variant: func(string) (string, error) { return threeTierVariant, nil },
	}
	h := newHarness(t, client)

	obligations := []contracts.Obligation{
		{ObligationID: "OBL-A", Text: "a", FrameworkSource: "GDPR", ClauseSource: "1", Domain: "Privacy", Impact: "Low"},
		{ObligationID: "OBL-B", Text: "b", FrameworkSource: "DORA art", ClauseSource: "2", Domain: "Privacy", Impact: "High"},
	}
	res, err := h.gen.Generate(context.Background(), obligations, acme(10))
	require.NoError(t, err)

	require.Len(t, res.Objectives, 1)
	assert.Equal(t, []string{"OBL-A", "OBL-B"}, res.ObjectiveObligations["OBJ-PRIVACY-1"])
	require.Len(t, res.Controls, 1)
	assert.Equal(t, "CV-PRIVACY-1-1-STARTUP", res.Controls[0].ControlID)
	assert.Equal(t, "OBL-A; OBL-B", res.Controls[0].LinkedObligationIDs)
	assert.Equal(t, "High", res.Controls[0].Impact)
	assert.Equal(t, 1, res.Metadata.NumDroppedReferences)

	// Matching does not extend the stored objective's links.
	obj, ok := h.objectives.Get("OBJ-PRIVACY-1")
	require.True(t, ok)
	assert.Equal(t, []string{"OBL-A"}, obj.LinkedObligationIDs)
}

func TestGenerate_ContainsFailures(t *testing.T) {
	client := &pipelineClient{
		obligation: func(prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, "ID: OBL-FAIL\n"):
				return "", errors.New("upstream 500")
			case strings.Contains(prompt, "ID: OBL-NOVARIANT\n"):
				return newObjectiveReply("Orphan", "Security"), nil
			default:
				return newObjectiveReply("Notices", "Privacy"), nil
			}
		},
		variant: func(prompt string) (string, error) {
			if strings.Contains(prompt, "ID: OBJ-SECURITY-1\n") {
				return "not json", nil
			}
			return threeTierVariant, nil
		},
	}
	h := newHarness(t, client)

	obligations := []contracts.Obligation{
		{ObligationID: "OBL-OK", Text: "a", FrameworkSource: "GDPR", ClauseSource: "1", Domain: "Privacy"},
		{ObligationID: "OBL-FAIL", Text: "b", FrameworkSource: "GDPR", ClauseSource: "2"},
		{ObligationID: "OBL-NOVARIANT", Text: "c", FrameworkSource: "GDPR", ClauseSource: "3", Domain: "Security"},
	}
	res, err := h.gen.Generate(context.Background(), obligations, acme(2000))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Metadata.NumObligations)
	assert.Equal(t, 2, res.Metadata.NumObjectives)
	require.Len(t, res.Controls, 1)
	assert.Equal(t, "CV-PRIVACY-1-1-ENTERPRISE", res.Controls[0].ControlID)
	assert.Equal(t, "Critical", res.Controls[0].Impact)
	assert.Equal(t, 2, res.Metadata.NumLLMFailures)
	assert.Empty(t, res.ObligationObjectives["OBL-FAIL"])
	assert.Equal(t, []string{"OBL-FAIL", "OBL-NOVARIANT"}, res.Provenance.Uncovered())
}

func TestGenerate_ConcurrentStageTwoKeepsOrder(t *testing.T) {
	domains := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot"}
	client := &pipelineClient{
		obligation: func(prompt string) (string, error) {
			for i, d := range domains {
				if strings.Contains(prompt, fmt.Sprintf("ID: OBL-%d\n", i)) {
					return newObjectiveReply("Objective "+d, d), nil
				}
			}
			return "", errors.New("unknown obligation")
		},
		variant: func(string) (string, error) { return threeTierVariant, nil },
	}
	h := newHarness(t, client)
	h.gen = NewGenerator(h.gen.obligations, h.gen.variants, nil, WithConcurrency(4))

	var obligations []contracts.Obligation
	for i, d := range domains {
		obligations = append(obligations, contracts.Obligation{
			ObligationID: fmt.Sprintf("OBL-%d", i), Text: "t", FrameworkSource: "ISO 27001", ClauseSource: "A", Domain: d,
		})
	}
	res, err := h.gen.Generate(context.Background(), obligations, acme(100))
	require.NoError(t, err)
	require.Len(t, res.Controls, len(domains))
	for i, d := range domains {
		assert.Equal(t, "CV-"+strings.ToUpper(d)+"-1-1-SME", res.Controls[i].ControlID)
	}
	assert.Equal(t, 12, client.calls)
}

func TestGenerate_InvalidCompany(t *testing.T) {
	h := newHarness(t, &pipelineClient{})
	_, err := h.gen.Generate(context.Background(), nil, contracts.CompanyContext{})
	assert.Error(t, err)
}

func TestGenerate_Cancelled(t *testing.T) {
	h := newHarness(t, &pipelineClient{
		obligation: func(string) (string, error) { return newObjectiveReply("x", "Privacy"), nil },
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.gen.Generate(ctx, []contracts.Obligation{dataProtectionObligation("OBL-1")}, acme(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublish(t *testing.T) {
	client := &pipelineClient{
		obligation: func(string) (string, error) { return newObjectiveReply("Transparent processing", "Data protection"), nil },
		variant:    func(string) (string, error) { return threeTierVariant, nil },
	}
	h := newHarness(t, client)
	res, err := h.gen.Generate(context.Background(), []contracts.Obligation{dataProtectionObligation("OBL-GDPR-2")}, acme(250))
	require.NoError(t, err)

	st, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)

	out := res.Output()
	pub, err := Publish(context.Background(), st, out)
	require.NoError(t, err)
	assert.Equal(t, res.Metadata.GenerationID+".json", pub.Name)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, pub.CanonicalDigest)

	data, err := st.Get(context.Background(), pub.Name)
	require.NoError(t, err)
	assert.Equal(t, artifacts.Digest(data), pub.Digest)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	meta := doc["metadata"].(map[string]any)
	assert.Equal(t, "objectives_variants", meta["generation_method"])
	assert.EqualValues(t, 250, meta["employee_count"])
	controlsOut := doc["controls"].([]any)
	require.Len(t, controlsOut, 1)
	assert.Equal(t, "CV-DATAPROTECTION-1-1-SME", controlsOut[0].(map[string]any)["control_id"])
	linkage := doc["linkage"].(map[string]any)
	assert.Equal(t, []any{"OBJ-DATAPROTECTION-1"}, linkage["obligation_objectives"].(map[string]any)["OBL-GDPR-2"])

	again, err := out.Digest()
	require.NoError(t, err)
	assert.Equal(t, pub.CanonicalDigest, again)
}

func TestOutput_EmptyRun(t *testing.T) {
	out := (&Result{Metadata: RunMetadata{GenerationID: "gen_x"}}).Output()
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"controls":[]`)
	assert.Contains(t, string(data), `"uncovered_obligation_ids":[]`)
	assert.Equal(t, "gen_x.json", out.FileName())
}

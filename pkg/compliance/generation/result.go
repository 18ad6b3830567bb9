package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/controlgen/pkg/artifacts"
	"github.com/Mindburn-Labs/controlgen/pkg/canonicalize"
	"github.com/Mindburn-Labs/controlgen/pkg/compliance/controls"
	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
)

// RunMetadata describes one generation run.
type RunMetadata struct {
	GenerationID       string    `json:"generation_id"`
	GeneratedAt        time.Time `json:"generated_at"`
	CompanyName        string    `json:"company_name"`
	EmployeeCount      *int      `json:"employee_count"`
	Industry           string    `json:"industry"`
	Jurisdictions      []string  `json:"jurisdictions"`
	RiskAppetite       string    `json:"risk_appetite"`
	ComplianceMaturity string    `json:"compliance_maturity"`

	NumObligations       int `json:"num_obligations"`
	NumObjectives        int `json:"num_objectives"`
	NumControls          int `json:"num_controls"`
	NumNewObjectives     int `json:"num_new_objectives"`
	NumNewVariants       int `json:"num_new_variants"`
	NumDroppedReferences int `json:"num_dropped_references"`
	NumLLMFailures       int `json:"num_llm_failures"`

	GenerationMethod string   `json:"generation_method"`
	TraceTags        []string `json:"trace_tags"`
}

// Result is everything a run produced. Controls follow the order in which
// their objectives were first seen.
type Result struct {
	Metadata   RunMetadata
	Controls   []contracts.Control
	Objectives []contracts.ControlObjective
	// ObligationObjectives maps each obligation ID to the objectives stage 1
	// returned for it, empty when mapping failed.
	ObligationObjectives map[string][]contracts.ControlObjective
	// ObjectiveObligations is the reverse index, in obligation input order.
	ObjectiveObligations map[string][]string
	Provenance           *controls.ProvenanceGraph
}

// Linkage is the traceability section of a run output.
type Linkage struct {
	ObligationObjectives map[string][]string `json:"obligation_objectives"`
	ObjectiveObligations map[string][]string `json:"objective_obligations"`
	Graph                controls.Linkage    `json:"graph"`
}

// RunOutput is the document published for a run.
type RunOutput struct {
	Metadata RunMetadata         `json:"metadata"`
	Controls []contracts.Control `json:"controls"`
	Linkage  Linkage             `json:"linkage"`
}

// Output assembles the publishable document.
func (r *Result) Output() RunOutput {
	obl := make(map[string][]string, len(r.ObligationObjectives))
	for id, objs := range r.ObligationObjectives {
		ids := make([]string, len(objs))
		for i, o := range objs {
			ids[i] = o.ObjectiveID
		}
		obl[id] = ids
	}
	rev := make(map[string][]string, len(r.ObjectiveObligations))
	for id, obs := range r.ObjectiveObligations {
		rev[id] = append([]string{}, obs...)
	}

	out := RunOutput{
		Metadata: r.Metadata,
		Controls: r.Controls,
		Linkage: Linkage{
			ObligationObjectives: obl,
			ObjectiveObligations: rev,
		},
	}
	if out.Controls == nil {
		out.Controls = []contracts.Control{}
	}
	if r.Provenance != nil {
		out.Linkage.Graph = r.Provenance.Export()
	} else {
		out.Linkage.Graph = controls.NewProvenanceGraph().Export()
	}
	return out
}

// Digest is the SHA-256 of the RFC 8785 canonical form of the output.
func (o RunOutput) Digest() (string, error) {
	return canonicalize.Digest(o)
}

// FileName is the artifact name a run is published under.
func (o RunOutput) FileName() string {
	return o.Metadata.GenerationID + ".json"
}

// Published records where a run output went.
type Published struct {
	Name string
	// Digest covers the stored bytes; CanonicalDigest the canonical form.
	Digest          string
	CanonicalDigest string
}

// Publish writes the output as indented JSON to st.
func Publish(ctx context.Context, st artifacts.Store, out RunOutput) (Published, error) {
	canonical, err := out.Digest()
	if err != nil {
		return Published{}, fmt.Errorf("digest run output: %w", err)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return Published{}, fmt.Errorf("marshal run output: %w", err)
	}
	name := out.FileName()
	digest, err := st.Put(ctx, name, data)
	if err != nil {
		return Published{}, fmt.Errorf("publish %s: %w", name, err)
	}
	return Published{Name: name, Digest: digest, CanonicalDigest: canonical}, nil
}

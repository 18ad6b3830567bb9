package controls

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
)

// NodeType identifies node categories in the provenance graph.
type NodeType string

const (
	NodeObligation NodeType = "OBLIGATION"
	NodeObjective  NodeType = "OBJECTIVE"
	NodeVariant    NodeType = "VARIANT"
	NodeControl    NodeType = "CONTROL"
)

// EdgeType identifies edge categories in the provenance graph.
type EdgeType string

const (
	EdgeMapsTo         EdgeType = "MAPS_TO"         // Obligation → Objective
	EdgeImplementedBy  EdgeType = "IMPLEMENTED_BY"  // Objective → Variant
	EdgeInstantiatedAs EdgeType = "INSTANTIATED_AS" // Variant → Control
	EdgeSatisfies      EdgeType = "SATISFIES"       // Control → Obligation
)

// Node is a vertex in the provenance graph.
type Node struct {
	ID         string            `json:"id"`
	Type       NodeType          `json:"type"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Edge is a directed edge in the provenance graph.
type Edge struct {
	ID     string   `json:"id"`
	Type   EdgeType `json:"type"`
	FromID string   `json:"from_id"`
	ToID   string   `json:"to_id"`
}

// ProvenanceGraph links the obligations of one run to the objectives,
// variants and controls derived from them.
type ProvenanceGraph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[string]*Edge
	adj   map[string][]string // node ID → edge IDs (outbound)
}

func NewProvenanceGraph() *ProvenanceGraph {
	return &ProvenanceGraph{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
		adj:   make(map[string][]string),
	}
}

// AddNode adds or replaces a node.
func (g *ProvenanceGraph) AddNode(n *Node) error {
	if n == nil || n.ID == "" || n.Type == "" {
		return fmt.Errorf("invalid node")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[n.ID] = n
	return nil
}

// Link adds a typed edge between two existing nodes. Linking the same pair
// twice with the same type is a no-op.
func (g *ProvenanceGraph) Link(t EdgeType, fromID, toID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[fromID]; !ok {
		return fmt.Errorf("from node %s not found", fromID)
	}
	if _, ok := g.nodes[toID]; !ok {
		return fmt.Errorf("to node %s not found", toID)
	}

	id := fmt.Sprintf("%s:%s->%s", t, fromID, toID)
	if _, ok := g.edges[id]; ok {
		return nil
	}
	g.edges[id] = &Edge{ID: id, Type: t, FromID: fromID, ToID: toID}
	g.adj[fromID] = append(g.adj[fromID], id)
	return nil
}

func (g *ProvenanceGraph) GetNode(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Outbound returns the edges leaving a node in insertion order.
func (g *ProvenanceGraph) Outbound(nodeID string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edgeIDs := g.adj[nodeID]
	result := make([]*Edge, 0, len(edgeIDs))
	for _, eid := range edgeIDs {
		if e, ok := g.edges[eid]; ok {
			result = append(result, e)
		}
	}
	return result
}

// SatisfyingControls returns the controls that satisfy an obligation,
// sorted by ID.
func (g *ProvenanceGraph) SatisfyingControls(obligationID string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*Node
	for _, e := range g.edges {
		if e.Type == EdgeSatisfies && e.ToID == obligationID {
			if n, ok := g.nodes[e.FromID]; ok {
				result = append(result, n)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Uncovered returns the IDs of obligations no control satisfies, sorted.
func (g *ProvenanceGraph) Uncovered() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	covered := make(map[string]bool)
	for _, e := range g.edges {
		if e.Type == EdgeSatisfies {
			covered[e.ToID] = true
		}
	}
	var out []string
	for id, n := range g.nodes {
		if n.Type == NodeObligation && !covered[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Stats returns graph statistics.
func (g *ProvenanceGraph) Stats() (nodes, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes), len(g.edges)
}

// Linkage is a deterministic export of the graph.
type Linkage struct {
	Nodes     []Node   `json:"nodes"`
	Edges     []Edge   `json:"edges"`
	Uncovered []string `json:"uncovered_obligation_ids"`
}

// Export returns nodes and edges sorted by ID.
func (g *ProvenanceGraph) Export() Linkage {
	uncovered := g.Uncovered()

	g.mu.RLock()
	defer g.mu.RUnlock()

	out := Linkage{
		Nodes:     make([]Node, 0, len(g.nodes)),
		Edges:     make([]Edge, 0, len(g.edges)),
		Uncovered: uncovered,
	}
	if out.Uncovered == nil {
		out.Uncovered = []string{}
	}
	for _, n := range g.nodes {
		out.Nodes = append(out.Nodes, *n)
	}
	for _, e := range g.edges {
		out.Edges = append(out.Edges, *e)
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	sort.Slice(out.Edges, func(i, j int) bool { return out.Edges[i].ID < out.Edges[j].ID })
	return out
}

// AddObligation, AddObjective, AddVariant and AddControl register typed
// nodes for the pipeline's entities.

func (g *ProvenanceGraph) AddObligation(o contracts.Obligation) error {
	return g.AddNode(&Node{ID: o.ObligationID, Type: NodeObligation, Label: o.FrameworkSource + " " + o.ClauseSource,
		Properties: nonEmpty(map[string]string{"domain": o.Domain, "impact": o.Impact})})
}

func (g *ProvenanceGraph) AddObjective(o contracts.ControlObjective) error {
	return g.AddNode(&Node{ID: o.ObjectiveID, Type: NodeObjective, Label: o.Name,
		Properties: nonEmpty(map[string]string{"domain": o.Domain})})
}

func (g *ProvenanceGraph) AddVariant(v contracts.ControlVariant) error {
	return g.AddNode(&Node{ID: v.VariantID, Type: NodeVariant, Label: v.Name,
		Properties: nonEmpty(map[string]string{"domain": v.Domain})})
}

func (g *ProvenanceGraph) AddControl(c contracts.Control) error {
	return g.AddNode(&Node{ID: c.ControlID, Type: NodeControl, Label: c.Name,
		Properties: nonEmpty(map[string]string{"review_interval": c.ReviewInterval, "impact": c.Impact})})
}

func nonEmpty(m map[string]string) map[string]string {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

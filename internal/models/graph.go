package models

// GraphMode selects the radius of a projected subgraph.
type GraphMode string

const (
	GraphFocus   GraphMode = "focus"
	GraphContext GraphMode = "context"
	GraphFull    GraphMode = "full"
)

// Valid reports whether m is a known mode.
func (m GraphMode) Valid() bool {
	switch m {
	case GraphFocus, GraphContext, GraphFull:
		return true
	}
	return false
}

// GraphNode is a document in a projected graph.
type GraphNode struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Size        int    `json:"size"`
	Color       string `json:"color"`
	Connections int    `json:"connections"`
	Active      bool   `json:"active,omitempty"`
}

// GraphEdge is a directed link between two nodes.
type GraphEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphData is a bounded node/edge set.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

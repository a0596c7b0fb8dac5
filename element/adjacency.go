package element

import "context"

// Adjacency holds nodal neighbourhoods by index into Mesh.Node / Mesh.Element
type Adjacency struct {
	NodeElements [][]int // [node] → neighbouring elements
	NodeNodes    [][]int // [node] → neighbouring nodes, self excluded
}

// NumNeighbourElements returns the patch size of a node
func (a *Adjacency) NumNeighbourElements(node int) int {
	return len(a.NodeElements[node])
}

// AdjacencyProvider discovers nodal neighbourhoods. It is invoked once per
// estimator run so the neighbourhoods always match the current mesh.
type AdjacencyProvider interface {
	Adjacency(ctx context.Context, m Mesh) (*Adjacency, error)
}

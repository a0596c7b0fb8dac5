package utils

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidConnectivity is returned when element-to-vertex data references
// nodes outside the mesh or the built maps fail verification
var ErrInvalidConnectivity = errors.New("invalid connectivity")

// NodeConnector builds nodal neighbourhoods (patches) from element connectivity
type NodeConnector struct {
	// Mesh dimensions
	NumNodes int // Total nodes
	K        int // Total elements

	// Input connectivity
	EToV [][]int // Element → node indices

	// Nodal neighbourhoods, sorted and without duplicates
	NodeToElems [][]int // [node] → elements containing the node
	NodeToNodes [][]int // [node] → nodes sharing an element with the node, self excluded
}

// NewNodeConnector creates a node connector from element-to-vertex connectivity
func NewNodeConnector(numNodes int, EToV [][]int) (*NodeConnector, error) {
	// Validate inputs
	if numNodes <= 0 {
		return nil, fmt.Errorf("%w: NumNodes=%d", ErrInvalidConnectivity, numNodes)
	}
	for k, verts := range EToV {
		if len(verts) == 0 {
			return nil, fmt.Errorf("%w: element %d has no vertices", ErrInvalidConnectivity, k)
		}
		for _, v := range verts {
			if v < 0 || v >= numNodes {
				return nil, fmt.Errorf("%w: element %d references node %d (NumNodes=%d)",
					ErrInvalidConnectivity, k, v, numNodes)
			}
		}
	}

	nc := &NodeConnector{
		NumNodes: numNodes,
		K:        len(EToV),
		EToV:     EToV,
	}

	nc.buildNodeToElems()
	nc.buildNodeToNodes()

	return nc, nil
}

// buildNodeToElems inverts EToV
func (nc *NodeConnector) buildNodeToElems() {
	nc.NodeToElems = make([][]int, nc.NumNodes)
	for k, verts := range nc.EToV {
		for _, v := range verts {
			elems := nc.NodeToElems[v]
			// An element lists a node at most once, but guard degenerate input
			if len(elems) > 0 && elems[len(elems)-1] == k {
				continue
			}
			nc.NodeToElems[v] = append(elems, k)
		}
	}
}

// buildNodeToNodes collects, for every node, the other nodes of its elements
func (nc *NodeConnector) buildNodeToNodes() {
	nc.NodeToNodes = make([][]int, nc.NumNodes)
	seen := make(map[int]struct{})
	for n := 0; n < nc.NumNodes; n++ {
		for key := range seen {
			delete(seen, key)
		}
		neighbours := make([]int, 0, 2*len(nc.NodeToElems[n]))
		for _, k := range nc.NodeToElems[n] {
			for _, v := range nc.EToV[k] {
				if v == n {
					continue
				}
				if _, ok := seen[v]; ok {
					continue
				}
				seen[v] = struct{}{}
				neighbours = append(neighbours, v)
			}
		}
		sort.Ints(neighbours)
		nc.NodeToNodes[n] = neighbours
	}
}

// GetNeighbourElements returns the elements around a node
func (nc *NodeConnector) GetNeighbourElements(node int) []int {
	if node < 0 || node >= nc.NumNodes {
		return nil
	}
	return nc.NodeToElems[node]
}

// GetNeighbourNodes returns the nodes sharing an element with a node
func (nc *NodeConnector) GetNeighbourNodes(node int) []int {
	if node < 0 || node >= nc.NumNodes {
		return nil
	}
	return nc.NodeToNodes[node]
}

// Verify checks index validity and symmetry of the nodal neighbourhoods
func (nc *NodeConnector) Verify() error {
	// Verify 1: every node→element entry really contains the node
	incidences := 0
	for n := 0; n < nc.NumNodes; n++ {
		for _, k := range nc.NodeToElems[n] {
			if k < 0 || k >= nc.K {
				return fmt.Errorf("%w: node %d lists element %d (K=%d)", ErrInvalidConnectivity, n, k, nc.K)
			}
			if !contains(nc.EToV[k], n) {
				return fmt.Errorf("%w: node %d lists element %d which does not contain it",
					ErrInvalidConnectivity, n, k)
			}
			incidences++
		}
	}

	// Verify 2: conservation - total incidences equals total distinct element vertices
	expected := 0
	for _, verts := range nc.EToV {
		expected += len(uniqueInts(verts))
	}
	if incidences != expected {
		return fmt.Errorf("%w: conservation error: %d node incidences != %d element vertices",
			ErrInvalidConnectivity, incidences, expected)
	}

	// Verify 3: symmetry - m is a neighbour of n iff n is a neighbour of m
	for n := 0; n < nc.NumNodes; n++ {
		for _, m := range nc.NodeToNodes[n] {
			if m == n {
				return fmt.Errorf("%w: node %d lists itself as neighbour", ErrInvalidConnectivity, n)
			}
			if !contains(nc.NodeToNodes[m], n) {
				return fmt.Errorf("%w: asymmetric neighbours %d -> %d", ErrInvalidConnectivity, n, m)
			}
		}
	}

	return nil
}

func contains(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func uniqueInts(values []int) []int {
	out := make([]int, 0, len(values))
	for _, v := range values {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

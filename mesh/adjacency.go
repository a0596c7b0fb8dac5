package mesh

import (
	"context"
	"fmt"

	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/utils"
)

// ConnectivityProvider discovers nodal neighbourhoods from the element
// connectivity of any element.Mesh
type ConnectivityProvider struct {
	// Verify runs the NodeConnector consistency checks after building
	Verify bool
}

var _ element.AdjacencyProvider = ConnectivityProvider{}

func (p ConnectivityProvider) Adjacency(ctx context.Context, m element.Mesh) (*element.Adjacency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	EToV := make([][]int, m.NumElements())
	for k := range EToV {
		EToV[k] = m.Element(k).NodeIndices()
	}

	nc, err := utils.NewNodeConnector(m.NumNodes(), EToV)
	if err != nil {
		return nil, fmt.Errorf("node connectivity: %w", err)
	}
	if p.Verify {
		if err = nc.Verify(); err != nil {
			return nil, fmt.Errorf("node connectivity: %w", err)
		}
	}

	return &element.Adjacency{
		NodeElements: nc.NodeToElems,
		NodeNodes:    nc.NodeToNodes,
	}, nil
}

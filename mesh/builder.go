package mesh

import (
	"fmt"

	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// New builds a mesh from node coordinates and element connectivity. The
// geometry of each element follows from its vertex count; node and element
// ids are their indices.
func New(dim element.Dimensionality, coords []r3.Vec, EToV [][]int) (*Mesh, error) {
	if dim != element.D2 && dim != element.D3 {
		return nil, fmt.Errorf("unsupported mesh dimension %d", dim)
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("mesh has no nodes")
	}

	m := &Mesh{
		dim:      dim,
		nodes:    make([]*Node, len(coords)),
		elements: make([]*Element, len(EToV)),
		info:     element.NewAttributes(),
	}

	for i, x := range coords {
		if dim == element.D2 && x.Z != 0 {
			return nil, fmt.Errorf("node %d: z=%g in a 2D mesh", i, x.Z)
		}
		m.nodes[i] = &Node{
			id:     i,
			coords: x,
			data:   element.NewAttributes(),
		}
	}

	for k, verts := range EToV {
		geom, ok := utils.GeometryFromVertexCount(int(dim), len(verts))
		if !ok {
			return nil, fmt.Errorf("element %d: %d vertices in %dD: %w",
				k, len(verts), dim, element.ErrUnsupportedGeometry)
		}
		for _, v := range verts {
			if v < 0 || v >= len(coords) {
				return nil, fmt.Errorf("element %d references node %d (NumNodes=%d): %w",
					k, v, len(coords), utils.ErrInvalidConnectivity)
			}
		}
		m.elements[k] = &Element{
			id:    k,
			geom:  geom,
			nodes: append([]int(nil), verts...),
			mesh:  m,
			data:  element.NewAttributes(),
		}
	}

	return m, nil
}

// Plane returns coordinates in the z=0 plane from x,y pairs
func Plane(xy ...[2]float64) []r3.Vec {
	coords := make([]r3.Vec, len(xy))
	for i, p := range xy {
		coords[i] = r3.Vec{X: p[0], Y: p[1]}
	}
	return coords
}

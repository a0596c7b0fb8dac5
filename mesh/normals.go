package mesh

import (
	"fmt"
	"sort"

	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Local facets of the linear simplices, in vertex order
var (
	triEdges = [][]int{{0, 1}, {1, 2}, {2, 0}}
	tetFaces = [][]int{{0, 1, 2}, {0, 1, 3}, {1, 2, 3}, {0, 2, 3}}
)

type facetKey [3]int

type facet struct {
	owner int   // Element holding the facet
	verts []int // Global nodes of the facet
	count int   // Number of elements sharing the facet
}

// ComputeBoundaryNormals assigns an outward unit NORMAL to every boundary
// node that does not carry one yet. The nodal normal is the area weighted
// sum of the outward normals of the boundary facets around the node. It
// returns the number of nodes that received a normal.
func ComputeBoundaryNormals(m element.Mesh) (int, error) {
	facets := make(map[facetKey]*facet)
	var order []facetKey

	for k := 0; k < m.NumElements(); k++ {
		el := m.Element(k)
		var local [][]int
		switch el.GeometryType() {
		case utils.Tri:
			local = triEdges
		case utils.Tet:
			local = tetFaces
		default:
			return 0, fmt.Errorf("element %d boundary facets: %w", el.ID(), element.ErrUnsupportedGeometry)
		}
		nodes := el.NodeIndices()
		for _, lf := range local {
			verts := make([]int, len(lf))
			for i, lv := range lf {
				verts[i] = nodes[lv]
			}
			key := keyOf(verts)
			if f, ok := facets[key]; ok {
				f.count++
				continue
			}
			facets[key] = &facet{owner: k, verts: verts, count: 1}
			order = append(order, key)
		}
	}

	sums := make(map[int]r3.Vec)
	for _, key := range order {
		f := facets[key]
		if f.count != 1 {
			continue
		}
		n := facetNormal(m, f)
		for _, v := range f.verts {
			sums[v] = r3.Add(sums[v], n)
		}
	}

	nodes := make([]int, 0, len(sums))
	for v := range sums {
		nodes = append(nodes, v)
	}
	sort.Ints(nodes)

	assigned := 0
	for _, v := range nodes {
		data := m.Node(v).Data()
		if data.Has(element.Normal) {
			continue
		}
		s := sums[v]
		length := r3.Norm(s)
		if length == 0 {
			continue
		}
		s = r3.Scale(1/length, s)
		if m.Dimension() == element.D2 {
			data.SetVector(element.Normal, []float64{s.X, s.Y})
		} else {
			data.SetVector(element.Normal, []float64{s.X, s.Y, s.Z})
		}
		assigned++
	}
	return assigned, nil
}

// facetNormal returns the outward normal of a facet scaled by its length or area
func facetNormal(m element.Mesh, f *facet) r3.Vec {
	x := make([]r3.Vec, len(f.verts))
	for i, v := range f.verts {
		x[i] = m.Node(v).Coordinates()
	}

	var n r3.Vec
	if len(x) == 2 {
		e := r3.Sub(x[1], x[0])
		n = r3.Vec{X: e.Y, Y: -e.X}
	} else {
		n = r3.Scale(0.5, r3.Cross(r3.Sub(x[1], x[0]), r3.Sub(x[2], x[0])))
	}

	// Orient away from the owning element
	inward := r3.Sub(element.Centroid(m.Element(f.owner).Vertices()), element.Centroid(x))
	if r3.Dot(n, inward) > 0 {
		n = r3.Scale(-1, n)
	}
	return n
}

func keyOf(verts []int) facetKey {
	key := facetKey{-1, -1, -1}
	copy(key[:], verts)
	s := key[:len(verts)]
	sort.Ints(s)
	return key
}

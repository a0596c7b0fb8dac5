package mesh

import (
	"fmt"

	gocfdutils "github.com/notargets/gocfd/utils"
	"github.com/notargets/gocfd/DG3D/mesh/readers"
	"github.com/notargets/sprmetric/element"
	"gonum.org/v1/gonum/spatial/r3"
)

// ReadTetMesh reads the tetrahedra of a Gambit or Gmsh mesh file. Higher
// order tetrahedra keep their corner nodes; other element types are skipped.
// The returned mesh has geometry only; stresses are attached by the caller.
func ReadTetMesh(path string) (*Mesh, error) {
	src, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	coords := make([]r3.Vec, len(src.Vertices))
	for i, v := range src.Vertices {
		coords[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}

	EToV := make([][]int, 0, src.NumElements)
	for k := 0; k < src.NumElements; k++ {
		switch src.ElementTypes[k] {
		case gocfdutils.Tet, gocfdutils.Tet10:
		default:
			continue
		}
		nodes := src.EtoV[k]
		if len(nodes) < 4 {
			return nil, fmt.Errorf("%s: element %d has %d nodes", path, k, len(nodes))
		}
		EToV = append(EToV, append([]int(nil), nodes[:4]...))
	}
	if len(EToV) == 0 {
		return nil, fmt.Errorf("%s: no tetrahedra", path)
	}

	return New(element.D3, coords, EToV)
}

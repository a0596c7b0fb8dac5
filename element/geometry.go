package element

import (
	"fmt"
	"math"

	"github.com/notargets/sprmetric/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// TriangleArea returns the area of triangle abc
func TriangleArea(a, b, c r3.Vec) float64 {
	return 0.5 * r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
}

// Circumradius returns the radius of the circle through a, b and c
func Circumradius(a, b, c r3.Vec) float64 {
	area := TriangleArea(a, b, c)
	if area == 0 {
		return math.Inf(1)
	}
	la := r3.Norm(r3.Sub(b, c))
	lb := r3.Norm(r3.Sub(c, a))
	lc := r3.Norm(r3.Sub(a, b))
	return la * lb * lc / (4 * area)
}

// TetVolume returns the (unsigned) volume of tetrahedron abcd
func TetVolume(a, b, c, d r3.Vec) float64 {
	return math.Abs(r3.Dot(r3.Sub(b, a), r3.Cross(r3.Sub(c, a), r3.Sub(d, a)))) / 6
}

// Centroid returns the arithmetic mean of the vertices
func Centroid(verts []r3.Vec) r3.Vec {
	var c r3.Vec
	if len(verts) == 0 {
		return c
	}
	for _, v := range verts {
		c = r3.Add(c, v)
	}
	return r3.Scale(1/float64(len(verts)), c)
}

// Measure returns the area of a triangle or the volume of a tetrahedron
func Measure(geom utils.GeometryType, verts []r3.Vec) (float64, error) {
	if err := checkVertices(geom, verts); err != nil {
		return 0, err
	}
	switch geom {
	case utils.Tri:
		return TriangleArea(verts[0], verts[1], verts[2]), nil
	case utils.Tet:
		return TetVolume(verts[0], verts[1], verts[2], verts[3]), nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnsupportedGeometry, geom)
}

// CharacteristicSize returns the geometric size h of an element:
// twice the circumradius for 3-node triangles and (12·V/√2)^(1/3) for
// 4-node tetrahedra, which equals the edge length of a regular tetrahedron.
func CharacteristicSize(geom utils.GeometryType, verts []r3.Vec) (float64, error) {
	if err := checkVertices(geom, verts); err != nil {
		return 0, err
	}
	switch geom {
	case utils.Tri:
		return 2 * Circumradius(verts[0], verts[1], verts[2]), nil
	case utils.Tet:
		v := TetVolume(verts[0], verts[1], verts[2], verts[3])
		return math.Cbrt(12 * v / math.Sqrt2), nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnsupportedGeometry, geom)
}

// CheckSizable reports whether CharacteristicSize supports the element
func CheckSizable(el Element) error {
	if err := checkVertices(el.GeometryType(), el.Vertices()); err != nil {
		return fmt.Errorf("element %d: %w", el.ID(), err)
	}
	return nil
}

func checkVertices(geom utils.GeometryType, verts []r3.Vec) error {
	switch geom {
	case utils.Tri, utils.Tet:
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedGeometry, geom)
	}
	if len(verts) != geom.NumVertices() {
		return fmt.Errorf("%w: %v with %d vertices", ErrUnsupportedGeometry, geom, len(verts))
	}
	return nil
}

package utils

// GeometryType identifies the shape of an element
type GeometryType uint8

const (
	// 3D element types
	Tet     GeometryType = iota // Tetrahedron
	Hex                         // Hexahedron
	Prism                       // Triangular prism
	Pyramid                     // Square-based pyramid

	// 2D element types
	Tri       // Triangle
	Rectangle // Rectangle/Quadrilateral

	// 1D element type
	Line // Line segment
)

func (g GeometryType) String() string {
	switch g {
	case Tet:
		return "Tet"
	case Hex:
		return "Hex"
	case Prism:
		return "Prism"
	case Pyramid:
		return "Pyramid"
	case Tri:
		return "Tri"
	case Rectangle:
		return "Rectangle"
	case Line:
		return "Line"
	}
	return "Unknown"
}

// NumVertices returns the number of corner vertices of the linear shape
func (g GeometryType) NumVertices() int {
	switch g {
	case Tet:
		return 4
	case Hex:
		return 8
	case Prism:
		return 6
	case Pyramid:
		return 5
	case Tri:
		return 3
	case Rectangle:
		return 4
	case Line:
		return 2
	}
	return 0
}

// GeometryFromVertexCount guesses the linear simplex shape for a vertex count
// in the given spatial dimension. Only linear shapes are recognised.
func GeometryFromVertexCount(dim, nverts int) (GeometryType, bool) {
	switch {
	case dim == 2 && nverts == 3:
		return Tri, true
	case dim == 2 && nverts == 4:
		return Rectangle, true
	case dim == 3 && nverts == 4:
		return Tet, true
	case dim == 3 && nverts == 8:
		return Hex, true
	}
	return 0, false
}

package element

import (
	"errors"

	"github.com/notargets/sprmetric/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Dimensionality represents the spatial dimension of a mesh
type Dimensionality uint8

const (
	D0 Dimensionality = iota // 0D (points)
	D1                       // 1D (lines, edges)
	D2                       // 2D (triangles, quadrilaterals)
	D3                       // 3D (tetrahedra, hexahedra, etc.)
)

// VoigtSize is the length of a stress vector in Voigt notation:
// 3 in 2D (σxx, σyy, σxy) and 6 in 3D (σxx, σyy, σzz, σyz, σzx, σxy)
func (d Dimensionality) VoigtSize() int {
	switch d {
	case D2:
		return 3
	case D3:
		return 6
	}
	return 0
}

// MetricSize is the length of a flattened symmetric d×d metric tensor
func (d Dimensionality) MetricSize() int {
	n := int(d)
	return n * (n + 1) / 2
}

// Valid reports whether the dimension is supported by the estimator
func (d Dimensionality) Valid() bool {
	return d == D2 || d == D3
}

var (
	// ErrUnsupportedGeometry marks element topologies the estimator cannot size
	ErrUnsupportedGeometry = errors.New("unsupported element geometry")
	// ErrMissingAttribute marks reads of attributes that were never written
	ErrMissingAttribute = errors.New("missing attribute")
)

// Mesh is the externally owned model container. The estimator reads
// geometry and integration point data through it and writes attributes on
// existing entities; it never creates or removes nodes or elements.
type Mesh interface {
	Dimension() Dimensionality
	NumNodes() int
	NumElements() int
	Node(i int) Node
	Element(k int) Element

	// ProcessInfo holds mesh-wide values such as ERROR_ESTIMATE
	ProcessInfo() *Attributes
}

// Node is a mesh vertex with an attribute bag
type Node interface {
	ID() int
	Coordinates() r3.Vec
	Data() *Attributes
}

// Element is a mesh cell with read-only integration point sampling.
// All sampling methods return one entry per integration point.
type Element interface {
	ID() int
	GeometryType() utils.GeometryType
	NodeIndices() []int // Indices into Mesh.Node, not node IDs
	Vertices() []r3.Vec // Coordinates of NodeIndices, same order
	Data() *Attributes

	IntegrationPointStress() ([][]float64, error)     // Voigt stress per point
	IntegrationPointCoordinates() ([]r3.Vec, error)   // Physical coordinates per point
	IntegrationPointErrorEnergy() ([]float64, error)  // Error energy indicator per point
	IntegrationPointStrainEnergy() ([]float64, error) // Strain energy per point
}

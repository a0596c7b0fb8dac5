// Package mesh is an in-memory container satisfying element.Mesh. It holds
// node coordinates, simplex connectivity and the integration point samples
// produced by an upstream analysis, and carries the attribute bags the
// estimator reads and writes.
package mesh

import (
	"fmt"

	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Evaluator computes energy indicators for elements that were not given
// explicit samples. It runs after nodal stresses have been recovered.
type Evaluator interface {
	ErrorEnergy(m element.Mesh, el element.Element) ([]float64, error)
	StrainEnergy(m element.Mesh, el element.Element) ([]float64, error)
}

// Mesh stores nodes and elements by index
type Mesh struct {
	dim       element.Dimensionality
	nodes     []*Node
	elements  []*Element
	info      *element.Attributes
	evaluator Evaluator
}

var _ element.Mesh = (*Mesh)(nil)

func (m *Mesh) Dimension() element.Dimensionality { return m.dim }
func (m *Mesh) NumNodes() int                     { return len(m.nodes) }
func (m *Mesh) NumElements() int                  { return len(m.elements) }
func (m *Mesh) Node(i int) element.Node           { return m.nodes[i] }
func (m *Mesh) Element(k int) element.Element     { return m.elements[k] }
func (m *Mesh) ProcessInfo() *element.Attributes  { return m.info }

// Nodes returns the concrete nodes
func (m *Mesh) Nodes() []*Node {
	return m.nodes
}

// Elements returns the concrete elements
func (m *Mesh) Elements() []*Element {
	return m.elements
}

// EToV returns the element to node connectivity
func (m *Mesh) EToV() [][]int {
	etov := make([][]int, len(m.elements))
	for k, el := range m.elements {
		etov[k] = el.nodes
	}
	return etov
}

// SetEvaluator installs the indicator evaluator used by elements without
// explicit energy samples
func (m *Mesh) SetEvaluator(e Evaluator) {
	m.evaluator = e
}

// Node is a mesh vertex
type Node struct {
	id     int
	coords r3.Vec
	data   *element.Attributes
}

func (n *Node) ID() int                   { return n.id }
func (n *Node) Coordinates() r3.Vec       { return n.coords }
func (n *Node) Data() *element.Attributes { return n.data }

// Element is a mesh cell with its integration point samples
type Element struct {
	id    int
	geom  utils.GeometryType
	nodes []int
	mesh  *Mesh
	data  *element.Attributes

	// Integration point samples
	stress       [][]float64 // [point] → Voigt stress
	points       []r3.Vec    // [point] → physical coordinates
	errorEnergy  []float64   // [point] → error energy indicator
	strainEnergy []float64   // [point] → strain energy indicator
}

func (e *Element) ID() int                          { return e.id }
func (e *Element) GeometryType() utils.GeometryType { return e.geom }
func (e *Element) NodeIndices() []int               { return e.nodes }
func (e *Element) Data() *element.Attributes        { return e.data }

// Vertices returns the node coordinates in connectivity order
func (e *Element) Vertices() []r3.Vec {
	verts := make([]r3.Vec, len(e.nodes))
	for i, n := range e.nodes {
		verts[i] = e.mesh.nodes[n].coords
	}
	return verts
}

// SetStress stores the integration point stresses. When points is nil a
// single point at the centroid is assumed.
func (e *Element) SetStress(stress [][]float64, points []r3.Vec) error {
	voigt := e.mesh.dim.VoigtSize()
	if points == nil {
		if len(stress) != 1 {
			return fmt.Errorf("element %d: %d stress samples need explicit point coordinates", e.id, len(stress))
		}
	} else if len(points) != len(stress) {
		return fmt.Errorf("element %d: %d stress samples for %d points", e.id, len(stress), len(points))
	}
	for q, s := range stress {
		if len(s) != voigt {
			return fmt.Errorf("element %d point %d: stress length %d, expected %d", e.id, q, len(s), voigt)
		}
	}
	e.stress = stress
	e.points = points
	return nil
}

// SetEnergies stores the error and strain energy indicators per point
func (e *Element) SetEnergies(errorEnergy, strainEnergy []float64) {
	e.errorEnergy = errorEnergy
	e.strainEnergy = strainEnergy
}

func (e *Element) IntegrationPointStress() ([][]float64, error) {
	if e.stress == nil {
		return nil, fmt.Errorf("element %d integration point stress: %w", e.id, element.ErrMissingAttribute)
	}
	return e.stress, nil
}

func (e *Element) IntegrationPointCoordinates() ([]r3.Vec, error) {
	if e.points != nil {
		return e.points, nil
	}
	return []r3.Vec{element.Centroid(e.Vertices())}, nil
}

func (e *Element) IntegrationPointErrorEnergy() ([]float64, error) {
	if e.errorEnergy != nil {
		return e.errorEnergy, nil
	}
	if e.mesh.evaluator != nil {
		return e.mesh.evaluator.ErrorEnergy(e.mesh, e)
	}
	return nil, fmt.Errorf("element %d error energy: %w", e.id, element.ErrMissingAttribute)
}

func (e *Element) IntegrationPointStrainEnergy() ([]float64, error) {
	if e.strainEnergy != nil {
		return e.strainEnergy, nil
	}
	if e.mesh.evaluator != nil {
		return e.mesh.evaluator.StrainEnergy(e.mesh, e)
	}
	return nil, fmt.Errorf("element %d strain energy: %w", e.id, element.ErrMissingAttribute)
}

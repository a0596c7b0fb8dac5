// Package indicator evaluates the integration point energy indicators of
// linear elastic simplex elements from the recovered nodal stresses.
package indicator

import (
	"fmt"

	"github.com/notargets/sprmetric/element"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Hypothesis selects the constitutive assumption
type Hypothesis uint8

const (
	PlaneStrain Hypothesis = iota
	PlaneStress
	Solid
)

func (h Hypothesis) String() string {
	switch h {
	case PlaneStrain:
		return "plane_strain"
	case PlaneStress:
		return "plane_stress"
	case Solid:
		return "solid"
	}
	return fmt.Sprintf("Hypothesis(%d)", uint8(h))
}

// ParseHypothesis accepts the String form. An empty name picks plane strain
// in 2D and the solid law in 3D.
func ParseHypothesis(name string, dim element.Dimensionality) (Hypothesis, error) {
	switch name {
	case "":
		if dim == element.D3 {
			return Solid, nil
		}
		return PlaneStrain, nil
	case "plane_strain":
		return PlaneStrain, nil
	case "plane_stress":
		return PlaneStress, nil
	case "solid":
		return Solid, nil
	}
	return 0, fmt.Errorf("unknown hypothesis %q", name)
}

// Dimension returns the spatial dimension the hypothesis applies to
func (h Hypothesis) Dimension() element.Dimensionality {
	if h == Solid {
		return element.D3
	}
	return element.D2
}

// Elastic evaluates energies for an isotropic linear elastic material.
// Integration points are weighted equally over the element measure.
type Elastic struct {
	Young      float64
	Poisson    float64
	Hypothesis Hypothesis

	compliance *mat.SymDense // Voigt compliance with engineering shear strains
}

// NewElastic builds the evaluator and its compliance matrix
func NewElastic(young, poisson float64, h Hypothesis) (*Elastic, error) {
	if young <= 0 {
		return nil, fmt.Errorf("young's modulus %g must be positive", young)
	}
	if poisson <= -1 || poisson >= 0.5 {
		return nil, fmt.Errorf("poisson's ratio %g outside (-1, 0.5)", poisson)
	}

	var c *mat.SymDense
	E, nu := young, poisson
	switch h {
	case PlaneStress:
		c = mat.NewSymDense(3, []float64{
			1, -nu, 0,
			-nu, 1, 0,
			0, 0, 2 * (1 + nu),
		})
		c.ScaleSym(1/E, c)
	case PlaneStrain:
		c = mat.NewSymDense(3, []float64{
			1 - nu, -nu, 0,
			-nu, 1 - nu, 0,
			0, 0, 2,
		})
		c.ScaleSym((1+nu)/E, c)
	case Solid:
		g := 2 * (1 + nu)
		c = mat.NewSymDense(6, []float64{
			1, -nu, -nu, 0, 0, 0,
			-nu, 1, -nu, 0, 0, 0,
			-nu, -nu, 1, 0, 0, 0,
			0, 0, 0, g, 0, 0,
			0, 0, 0, 0, g, 0,
			0, 0, 0, 0, 0, g,
		})
		c.ScaleSym(1/E, c)
	default:
		return nil, fmt.Errorf("unsupported hypothesis %v", h)
	}

	return &Elastic{
		Young:      young,
		Poisson:    poisson,
		Hypothesis: h,
		compliance: c,
	}, nil
}

// EnergyNorm returns σᵀ C⁻¹ σ
func (e *Elastic) EnergyNorm(sigma []float64) float64 {
	v := mat.NewVecDense(len(sigma), sigma)
	return mat.Inner(v, e.compliance, v)
}

// StrainEnergy returns ½ σhᵀ C⁻¹ σh · w per integration point
func (e *Elastic) StrainEnergy(m element.Mesh, el element.Element) ([]float64, error) {
	stress, weight, err := e.samples(m, el)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(stress))
	for q, s := range stress {
		out[q] = 0.5 * e.EnergyNorm(s) * weight
	}
	return out, nil
}

// ErrorEnergy returns (σ* − σh)ᵀ C⁻¹ (σ* − σh) · w per integration point,
// with σ* the recovered nodal stress interpolated linearly to the point
func (e *Elastic) ErrorEnergy(m element.Mesh, el element.Element) ([]float64, error) {
	stress, weight, err := e.samples(m, el)
	if err != nil {
		return nil, err
	}
	points, err := el.IntegrationPointCoordinates()
	if err != nil {
		return nil, fmt.Errorf("element %d: %w", el.ID(), err)
	}

	nodes := el.NodeIndices()
	recovered := make([][]float64, len(nodes))
	for i, n := range nodes {
		if recovered[i], err = m.Node(n).Data().MustVector(element.RecoveredStress); err != nil {
			return nil, fmt.Errorf("element %d node %d: %w", el.ID(), m.Node(n).ID(), err)
		}
	}

	verts := el.Vertices()
	out := make([]float64, len(stress))
	diff := make([]float64, len(stress[0]))
	for q, s := range stress {
		lambda, err := barycentric(m.Dimension(), verts, points[q])
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", el.ID(), err)
		}
		for j := range diff {
			diff[j] = -s[j]
			for i, l := range lambda {
				diff[j] += l * recovered[i][j]
			}
		}
		out[q] = e.EnergyNorm(diff) * weight
	}
	return out, nil
}

// samples returns the element stresses and the weight of one point
func (e *Elastic) samples(m element.Mesh, el element.Element) ([][]float64, float64, error) {
	if m.Dimension() != e.Hypothesis.Dimension() {
		return nil, 0, fmt.Errorf("%v material in a %dD mesh", e.Hypothesis, m.Dimension())
	}
	measure, err := element.Measure(el.GeometryType(), el.Vertices())
	if err != nil {
		return nil, 0, fmt.Errorf("element %d: %w", el.ID(), err)
	}
	stress, err := el.IntegrationPointStress()
	if err != nil {
		return nil, 0, err
	}
	if len(stress) == 0 {
		return nil, 0, fmt.Errorf("element %d has no integration points", el.ID())
	}
	return stress, measure / float64(len(stress)), nil
}

// barycentric returns the linear shape function values of a simplex at x
func barycentric(dim element.Dimensionality, verts []r3.Vec, x r3.Vec) ([]float64, error) {
	n := int(dim)
	if len(verts) != n+1 {
		return nil, fmt.Errorf("%d vertices for a %dD simplex: %w", len(verts), n, element.ErrUnsupportedGeometry)
	}

	comp := func(v r3.Vec, i int) float64 {
		switch i {
		case 0:
			return v.X
		case 1:
			return v.Y
		}
		return v.Z
	}

	T := mat.NewDense(n, n, nil)
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			T.Set(i, j, comp(verts[j+1], i)-comp(verts[0], i))
		}
		rhs.SetVec(i, comp(x, i)-comp(verts[0], i))
	}

	var mu mat.VecDense
	if err := mu.SolveVec(T, rhs); err != nil {
		return nil, fmt.Errorf("degenerate simplex: %w", err)
	}

	lambda := make([]float64, n+1)
	lambda[0] = 1
	for i := 0; i < n; i++ {
		lambda[i+1] = mu.AtVec(i)
		lambda[0] -= lambda[i+1]
	}
	return lambda, nil
}

package indicator

import (
	"testing"

	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestParseHypothesis(t *testing.T) {
	for _, tc := range []struct {
		name string
		dim  element.Dimensionality
		want Hypothesis
	}{
		{"", element.D2, PlaneStrain},
		{"", element.D3, Solid},
		{"plane_stress", element.D2, PlaneStress},
		{"plane_strain", element.D2, PlaneStrain},
		{"solid", element.D3, Solid},
	} {
		h, err := ParseHypothesis(tc.name, tc.dim)
		require.NoError(t, err)
		assert.Equal(t, tc.want, h)
	}
	_, err := ParseHypothesis("shell", element.D2)
	assert.Error(t, err)
	assert.Equal(t, "plane_stress", PlaneStress.String())
}

func TestNewElasticRejects(t *testing.T) {
	_, err := NewElastic(0, 0.3, Solid)
	assert.Error(t, err)
	_, err = NewElastic(1, 0.5, Solid)
	assert.Error(t, err)
	_, err = NewElastic(1, 0.3, Hypothesis(7))
	assert.Error(t, err)
}

func TestEnergyNorm(t *testing.T) {
	E, nu := 200.0, 0.25

	e, err := NewElastic(E, nu, PlaneStress)
	require.NoError(t, err)
	assert.InDelta(t, (4+1-2*nu*2)/E, e.EnergyNorm([]float64{2, 1, 0}), 1e-15)
	assert.InDelta(t, 2*(1+nu)/E, e.EnergyNorm([]float64{0, 0, 1}), 1e-15)

	// Plane strain equals the solid law with σzz = ν(σxx + σyy)
	ps, err := NewElastic(E, nu, PlaneStrain)
	require.NoError(t, err)
	solid, err := NewElastic(E, nu, Solid)
	require.NoError(t, err)
	sxx, syy, sxy := 3.0, -1.0, 0.5
	szz := nu * (sxx + syy)
	assert.InDelta(t,
		solid.EnergyNorm([]float64{sxx, syy, szz, 0, 0, sxy}),
		ps.EnergyNorm([]float64{sxx, syy, sxy}), 1e-14)
}

func unitTriangle(t *testing.T) *mesh.Mesh {
	m, err := mesh.New(element.D2,
		mesh.Plane([2]float64{0, 0}, [2]float64{2, 0}, [2]float64{0, 2}),
		[][]int{{0, 1, 2}})
	require.NoError(t, err)
	return m
}

func TestElasticEnergies(t *testing.T) {
	m := unitTriangle(t)
	require.NoError(t, m.Elements()[0].SetStress([][]float64{{1, 0, 0}}, nil))
	e, err := NewElastic(1, 0, PlaneStress)
	require.NoError(t, err)

	strain, err := e.StrainEnergy(m, m.Element(0))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5 * 2}, strain, 1e-15, "½σ²/E over area 2")

	_, err = e.ErrorEnergy(m, m.Element(0))
	assert.ErrorIs(t, err, element.ErrMissingAttribute, "not recovered yet")

	for i := 0; i < 3; i++ {
		m.Node(i).Data().SetVector(element.RecoveredStress, []float64{1, 0, 0})
	}
	errs, err := e.ErrorEnergy(m, m.Element(0))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0}, errs, 1e-15)

	// σ* varies linearly; its centroid value is the nodal mean
	m.Node(0).Data().SetVector(element.RecoveredStress, []float64{4, 0, 0})
	errs, err = e.ErrorEnergy(m, m.Element(0))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1 * 2}, errs, 1e-14)

	t.Run("wrong dimension", func(t *testing.T) {
		solid, err := NewElastic(1, 0, Solid)
		require.NoError(t, err)
		_, err = solid.StrainEnergy(m, m.Element(0))
		assert.Error(t, err)
	})
}

func TestElasticAsMeshEvaluator(t *testing.T) {
	m := unitTriangle(t)
	require.NoError(t, m.Elements()[0].SetStress([][]float64{{0, 2, 0}}, nil))
	e, err := NewElastic(4, 0, PlaneStress)
	require.NoError(t, err)
	m.SetEvaluator(e)

	strain, err := m.Element(0).IntegrationPointStrainEnergy()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5 * 4 / 4 * 2}, strain, 1e-15)
}

func TestBarycentric(t *testing.T) {
	tet := []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}
	l, err := barycentric(element.D3, tet, r3.Vec{X: 0.25, Y: 0.25, Z: 0.25})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, l, 1e-15)

	l, err = barycentric(element.D3, tet, r3.Vec{Z: 1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 1}, l, 1e-15)

	_, err = barycentric(element.D2, tet, r3.Vec{})
	assert.ErrorIs(t, err, element.ErrUnsupportedGeometry)
}

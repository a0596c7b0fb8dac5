package process

import (
	"context"
	"math"
	"testing"

	"github.com/notargets/sprmetric/config"
	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/indicator"
	"github.com/notargets/sprmetric/mesh"
	"github.com/notargets/sprmetric/partitions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// plate returns an n×n grid of unit squares split into triangles with a
// quadratic stress field sampled at the centroids and elastic indicators
func plate(t *testing.T, n int) *mesh.Mesh {
	var coords []r3.Vec
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			coords = append(coords, r3.Vec{X: float64(i), Y: float64(j)})
		}
	}
	var EToV [][]int
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a := j*(n+1) + i
			EToV = append(EToV, []int{a, a + 1, a + n + 2}, []int{a, a + n + 2, a + n + 1})
		}
	}
	m, err := mesh.New(element.D2, coords, EToV)
	require.NoError(t, err)

	for _, el := range m.Elements() {
		c := element.Centroid(el.Vertices())
		require.NoError(t, el.SetStress([][]float64{{c.X * c.X, c.Y * c.Y, c.X * c.Y}}, nil))
	}
	e, err := indicator.NewElastic(100, 0.3, indicator.PlaneStrain)
	require.NoError(t, err)
	m.SetEvaluator(e)
	return m
}

func quiet() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func newProcess(t *testing.T, m element.Mesh, s config.Settings, opts ...Option) *SPRMetricProcess {
	p, err := New(m, s, append([]Option{WithLogger(quiet())}, opts...)...)
	require.NoError(t, err)
	return p
}

func TestExecuteInvariants(t *testing.T) {
	m := plate(t, 4)
	s := config.Default()
	s.MinimalSize = 0.5
	s.MaximalSize = 3

	res, err := newProcess(t, m, s).Execute(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, expectedPatches(t, m), res.Recovery.Patches)

	assert.Greater(t, res.Global.OverallError, 0.0)
	assert.Greater(t, res.Global.OverallEnergy, 0.0)
	assert.GreaterOrEqual(t, res.Global.ErrorPercentage, 0.0)
	assert.LessOrEqual(t, res.Global.ErrorPercentage, 1.0)

	info := m.ProcessInfo()
	assert.Equal(t, res.Global.ErrorPercentage, info.ScalarOr(element.ErrorEstimate, -1))
	assert.Equal(t, res.Global.OverallError, info.ScalarOr(element.ErrorOverall, -1))
	assert.Equal(t, res.Global.OverallEnergy, info.ScalarOr(element.EnergyNormOverall, -1))

	for _, el := range m.Elements() {
		h, ok := el.Data().Scalar(element.ElementH)
		require.True(t, ok)
		assert.GreaterOrEqual(t, h, s.MinimalSize)
		assert.LessOrEqual(t, h, s.MaximalSize)
		assert.True(t, el.Data().Has(element.ElementError))
	}
	for _, n := range m.Nodes() {
		sigma, ok := n.Data().Vector(element.RecoveredStress)
		require.True(t, ok)
		assert.Len(t, sigma, 3)

		mmg, ok := n.Data().Vector(element.MMGMetric)
		require.True(t, ok)
		require.Len(t, mmg, 3)
		assert.Zero(t, mmg[1])
		assert.Equal(t, mmg[0], mmg[2])
		h := 1 / math.Sqrt(mmg[0])
		assert.GreaterOrEqual(t, h, s.MinimalSize-1e-12)
		assert.LessOrEqual(t, h, s.MaximalSize+1e-12)
	}
}

// expectedPatches counts one patch per node with more than Dim elements
// and one per qualifying neighbour of every other node
func expectedPatches(t *testing.T, m *mesh.Mesh) int {
	adj, err := mesh.ConnectivityProvider{}.Adjacency(context.Background(), m)
	require.NoError(t, err)
	n := 0
	for i := range adj.NodeElements {
		if adj.NumNeighbourElements(i) > 2 {
			n++
			continue
		}
		for _, j := range adj.NodeNodes[i] {
			if adj.NumNeighbourElements(j) > 2 {
				n++
			}
		}
	}
	return n
}

func TestExecuteIdempotent(t *testing.T) {
	m := plate(t, 3)
	p := newProcess(t, m, config.Default())

	first, err := p.Execute(context.Background())
	require.NoError(t, err)
	snapshot := func() (stress, metrics [][]float64, sizes []float64) {
		for _, n := range m.Nodes() {
			v, _ := n.Data().Vector(element.RecoveredStress)
			stress = append(stress, v)
			v, _ = n.Data().Vector(element.MMGMetric)
			metrics = append(metrics, v)
		}
		for _, el := range m.Elements() {
			sizes = append(sizes, el.Data().ScalarOr(element.ElementH, 0))
		}
		return stress, metrics, sizes
	}
	s1, m1, h1 := snapshot()

	second, err := p.Execute(context.Background())
	require.NoError(t, err)
	s2, m2, h2 := snapshot()

	assert.Equal(t, first.Global, second.Global)
	assert.Equal(t, s1, s2)
	assert.Equal(t, m1, m2)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestExecuteIndependentOfScheduling(t *testing.T) {
	run := func(opts ...Option) (*Result, *mesh.Mesh) {
		m := plate(t, 5)
		res, err := newProcess(t, m, config.Default(), opts...).Execute(context.Background())
		require.NoError(t, err)
		return res, m
	}

	ref, refMesh := run(WithWorkers(1))
	for _, opts := range [][]Option{
		{WithWorkers(3)},
		{WithWorkers(4), WithPartitionStrategy(partitions.RoundRobin)},
		{WithWorkers(100)},
	} {
		res, m := run(opts...)
		assert.Equal(t, ref.Global, res.Global)
		assert.Equal(t, ref.Recovery, res.Recovery)
		for i, n := range m.Nodes() {
			want, _ := refMesh.Node(i).Data().Vector(element.MMGMetric)
			got, _ := n.Data().Vector(element.MMGMetric)
			assert.Equal(t, want, got, "node %d", i)
		}
	}
}

func TestExecuteUnsupportedTopology(t *testing.T) {
	m, err := mesh.New(element.D2,
		mesh.Plane([2]float64{0, 0}, [2]float64{1, 0}, [2]float64{1, 1}, [2]float64{0, 1}, [2]float64{2, 0}),
		[][]int{{0, 1, 2, 3}, {1, 4, 2}})
	require.NoError(t, err)

	_, err = newProcess(t, m, config.Default()).Execute(context.Background())
	assert.ErrorIs(t, err, element.ErrUnsupportedGeometry)
	for _, n := range m.Nodes() {
		assert.False(t, n.Data().Has(element.RecoveredStress), "nothing written")
	}
	assert.False(t, m.ProcessInfo().Has(element.ErrorEstimate))
}

// Ten elements, all the error in one of them, and a target of ten elements
func TestExecuteTargetElementCount(t *testing.T) {
	var coords []r3.Vec
	for i := 0; i <= 5; i++ {
		coords = append(coords, r3.Vec{X: float64(i)}, r3.Vec{X: float64(i), Y: 1})
	}
	var EToV [][]int
	for i := 0; i < 5; i++ {
		EToV = append(EToV, []int{2 * i, 2*i + 2, 2*i + 3}, []int{2 * i, 2*i + 3, 2*i + 1})
	}
	m, err := mesh.New(element.D2, coords, EToV)
	require.NoError(t, err)

	eps := 0.5
	for k, el := range m.Elements() {
		require.NoError(t, el.SetStress([][]float64{{1, 0, 0}}, nil))
		errE := 0.0
		if k == 3 {
			errE = eps * eps
		}
		el.SetEnergies([]float64{errE}, []float64{0.5})
	}

	s := config.Default()
	s.SetNumberOfElements = true
	s.NumberOfElements = 10
	log, hook := test.NewNullLogger()
	p, err := New(m, s, WithLogger(log))
	require.NoError(t, err)

	res, err := p.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, res.GuardedElements)

	scale := math.Sqrt((10+eps*eps)/10) * s.Error
	h0 := math.Sqrt2
	for k, el := range m.Elements() {
		h := el.Data().ScalarOr(element.ElementH, 0)
		if k == 3 {
			assert.InDelta(t, h0/eps*scale, h, 1e-12)
			assert.Less(t, h, h0)
			continue
		}
		assert.Equal(t, s.MaximalSize, h)
	}

	var warnings []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings = append(warnings, e)
		}
	}
	require.Len(t, warnings, 1, "one summary warning per pass")
	assert.Equal(t, 9, warnings[0].Data["elements"])
}

// Two tetrahedra sharing a face: no node has a full patch, the sizes follow
// the closed-form tetrahedron formula
func TestExecuteTwoTets(t *testing.T) {
	coords := []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1, Z: 1}}
	m, err := mesh.New(element.D3, coords, [][]int{{0, 1, 2, 3}, {1, 2, 3, 4}})
	require.NoError(t, err)
	for _, el := range m.Elements() {
		require.NoError(t, el.SetStress([][]float64{{1, 2, 3, 0, 0, 0}}, nil))
		el.SetEnergies([]float64{0.04}, []float64{0.5})
	}

	s := config.Default()
	res, err := newProcess(t, m, s).Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Recovery.Patches)
	assert.Equal(t, 5, res.Recovery.Orphans)
	assert.InEpsilon(t, math.Sqrt(0.08), res.Global.OverallError, 1e-12)
	assert.InEpsilon(t, math.Sqrt2, res.Global.OverallEnergy, 1e-12)

	scale := math.Sqrt((2+0.08)/2) * s.Error
	want := []float64{math.Pow(2, 1.0/6.0) / 0.2 * scale, math.Sqrt2 / 0.2 * scale}
	for k, el := range m.Elements() {
		assert.InEpsilon(t, want[k], el.Data().ScalarOr(element.ElementH, 0), 1e-12)
	}

	mmg, ok := m.Node(0).Data().Vector(element.MMGMetric)
	require.True(t, ok)
	require.Len(t, mmg, 6)
	assert.InEpsilon(t, 1/(want[0]*want[0]), mmg[0], 1e-12)
	assert.Equal(t, []float64{0, 0}, mmg[1:3])
	assert.Equal(t, mmg[0], mmg[3])
	assert.Equal(t, mmg[0], mmg[5])

	// Node 1 sees both tetrahedra and takes the smaller size
	mmg, _ = m.Node(1).Data().Vector(element.MMGMetric)
	assert.InEpsilon(t, 1/(want[0]*want[0]), mmg[0], 1e-12)

	sigma, ok := m.Node(4).Data().Vector(element.RecoveredStress)
	require.True(t, ok)
	assert.Equal(t, make([]float64, 6), sigma)
}

func TestExecuteContact(t *testing.T) {
	m := plate(t, 3)
	top := m.NumNodes() - 2 // On the upper edge
	m.Node(top).Data().SetScalar(element.ContactPressure, -1)
	_, err := mesh.ComputeBoundaryNormals(m)
	require.NoError(t, err)

	res, err := newProcess(t, m, config.Default()).Execute(context.Background())
	require.NoError(t, err)
	assert.Positive(t, res.Recovery.Contact)

	t.Run("missing normal", func(t *testing.T) {
		m.Node(top).Data().Delete(element.Normal)
		_, err := newProcess(t, m, config.Default()).Execute(context.Background())
		assert.ErrorIs(t, err, element.ErrMissingAttribute)
	})
}

func TestExecuteMetrics(t *testing.T) {
	m := plate(t, 2)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	p := newProcess(t, m, config.Default(), WithMetrics(metrics))
	res, err := p.Execute(context.Background())
	require.NoError(t, err)
	_, err = p.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Runs))
	assert.Equal(t, 2*float64(res.Recovery.Patches), testutil.ToFloat64(metrics.Patches.WithLabelValues("standard")))
	assert.Zero(t, testutil.ToFloat64(metrics.Patches.WithLabelValues("contact")))
	assert.Equal(t, res.Global.ErrorPercentage, testutil.ToFloat64(metrics.ErrorEstimate))

	count, err := testutil.GatherAndCount(reg, "sprmetric_pass_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newProcess(t, plate(t, 2), config.Default()).Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	m := plate(t, 1)

	s := config.Default()
	s.MinimalSize = -1
	_, err := New(m, s)
	assert.ErrorIs(t, err, config.ErrInvalidSettings)

	s = config.Default()
	s.EchoLevel = 3
	p, err := New(m, s)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, p.log.GetLevel())
	assert.Positive(t, p.workers)
}

func TestConverged(t *testing.T) {
	r := &Result{}
	r.Global.ErrorPercentage = 0.05
	assert.True(t, r.Converged(0.1))
	assert.True(t, r.Converged(0.05))
	assert.False(t, r.Converged(0.01))
}

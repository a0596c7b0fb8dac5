// Package spr implements superconvergent patch recovery of nodal stresses
// from integration point samples, with an optional penalty constraint that
// ties the recovered normal traction to the nodal contact pressure.
package spr

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/linalg"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Settings controls the recovery solves
type Settings struct {
	PenaltyNormal     float64 // Weight of the normal traction constraint
	PenaltyTangential float64 // Weight of the tangential traction constraint
	Regularization    float64 // Shift applied to singular patch matrices
	WarnRegularized   bool    // Log regularised patches as warnings instead of debug
}

// Stats counts how patches were solved
type Stats struct {
	Patches     int // Patch evaluations
	Contact     int // Patches solved with the contact penalty system
	Regularized int // Patches whose matrix needed the regularisation shift
	Fallback    int // Contact patches that fell back to the standard fit
	Degenerate  int // Patches still singular after regularisation
	Orphans     int // Sparse nodes with no neighbour able to host a patch
}

// Add accumulates o into s
func (s *Stats) Add(o Stats) {
	s.Patches += o.Patches
	s.Contact += o.Contact
	s.Regularized += o.Regularized
	s.Fallback += o.Fallback
	s.Degenerate += o.Degenerate
	s.Orphans += o.Orphans
}

// Recoverer evaluates stress patches on a mesh. It only reads the mesh, so
// one Recoverer can serve concurrent callers working on different nodes.
type Recoverer struct {
	mesh     element.Mesh
	adj      *element.Adjacency
	strategy Strategy
	settings Settings
	log      logrus.Ext1FieldLogger
}

// NewRecoverer prepares patch recovery for a mesh and its adjacency
func NewRecoverer(m element.Mesh, adj *element.Adjacency, settings Settings, log logrus.Ext1FieldLogger) (*Recoverer, error) {
	strategy, err := NewStrategy(m.Dimension())
	if err != nil {
		return nil, err
	}
	if adj == nil || len(adj.NodeElements) != m.NumNodes() || len(adj.NodeNodes) != m.NumNodes() {
		return nil, fmt.Errorf("adjacency does not cover the %d mesh nodes", m.NumNodes())
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recoverer{
		mesh:     m,
		adj:      adj,
		strategy: strategy,
		settings: settings,
		log:      log,
	}, nil
}

// Strategy returns the dimension strategy in use
func (r *Recoverer) Strategy() Strategy {
	return r.strategy
}

// RecoverNode returns the recovered stress at a node. A node surrounded by
// more than Dim elements is the center of its own patch. Otherwise the
// result is the mean of the evaluations at the node of every neighbouring
// node's patch that has more than Dim elements; a node without any such
// neighbour gets the zero vector.
func (r *Recoverer) RecoverNode(node int) ([]float64, Stats, error) {
	var stats Stats
	dim := int(r.strategy.Dimension())
	count := r.adj.NumNeighbourElements(node)

	if count > dim {
		sigma, ps, err := r.RecoverStress(node, node, count)
		stats.Add(ps)
		return sigma, stats, err
	}

	sum := make([]float64, r.strategy.VoigtSize())
	contributions := 0
	for _, neighbour := range r.adj.NodeNodes[node] {
		if r.adj.NumNeighbourElements(neighbour) <= dim {
			continue
		}
		sigma, ps, err := r.RecoverStress(node, neighbour, count)
		stats.Add(ps)
		if err != nil {
			return nil, stats, err
		}
		floats.Add(sum, sigma)
		contributions++
	}

	if contributions == 0 {
		stats.Orphans++
		r.log.WithField("node", r.mesh.Node(node).ID()).Debug("no neighbouring patch, recovered stress set to zero")
		return sum, stats, nil
	}
	floats.Scale(1/float64(contributions), sum)
	return sum, stats, nil
}

// RecoverStress fits the patch around patchCenter and evaluates it at
// center. neighbourCount is the number of elements around center; when it
// exceeds Dim the patch is centered on the node itself and the constant
// coefficient is the result.
func (r *Recoverer) RecoverStress(center, patchCenter, neighbourCount int) ([]float64, Stats, error) {
	pressure := r.mesh.Node(center).Data().ScalarOr(element.ContactPressure, 0)
	if math.Abs(pressure) > linalg.Epsilon {
		sigma, stats, err := r.contactPatch(center, patchCenter, pressure)
		if !errors.Is(err, linalg.ErrIllConditioned) {
			return sigma, stats, err
		}
		r.log.WithFields(logrus.Fields{
			"node":  r.mesh.Node(center).ID(),
			"patch": r.mesh.Node(patchCenter).ID(),
		}).Warnf("contact patch ill-conditioned, using unconstrained fit: %v", err)
		sigma, fallback, err := r.standardPatch(center, patchCenter, neighbourCount)
		fallback.Add(Stats{Contact: stats.Contact, Regularized: stats.Regularized, Fallback: 1})
		return sigma, fallback, err
	}
	return r.standardPatch(center, patchCenter, neighbourCount)
}

// sample is one integration point of the patch
type sample struct {
	offset r3.Vec // Point position relative to the patch center
	stress []float64
}

// patchSamples gathers every integration point of the elements around patchCenter
func (r *Recoverer) patchSamples(patchCenter int) ([]sample, error) {
	origin := r.mesh.Node(patchCenter).Coordinates()
	voigt := r.strategy.VoigtSize()

	var samples []sample
	for _, k := range r.adj.NodeElements[patchCenter] {
		el := r.mesh.Element(k)
		stresses, err := el.IntegrationPointStress()
		if err != nil {
			return nil, fmt.Errorf("element %d stress: %w", el.ID(), err)
		}
		coords, err := el.IntegrationPointCoordinates()
		if err != nil {
			return nil, fmt.Errorf("element %d coordinates: %w", el.ID(), err)
		}
		if len(stresses) != len(coords) {
			return nil, fmt.Errorf("element %d has %d stress samples but %d coordinates",
				el.ID(), len(stresses), len(coords))
		}
		for q := range stresses {
			if len(stresses[q]) != voigt {
				return nil, fmt.Errorf("element %d point %d: stress length %d, expected %d",
					el.ID(), q, len(stresses[q]), voigt)
			}
			samples = append(samples, sample{
				offset: r3.Sub(coords[q], origin),
				stress: stresses[q],
			})
		}
	}
	return samples, nil
}

// standardPatch solves the unconstrained least squares fit A·coeff = b
func (r *Recoverer) standardPatch(center, patchCenter, neighbourCount int) ([]float64, Stats, error) {
	stats := Stats{Patches: 1}
	nt, voigt := r.strategy.NumTerms(), r.strategy.VoigtSize()

	samples, err := r.patchSamples(patchCenter)
	if err != nil {
		return nil, stats, err
	}

	A := mat.NewDense(nt, nt, nil)
	b := mat.NewDense(nt, voigt, nil)
	p := make([]float64, nt)
	for _, s := range samples {
		r.strategy.Basis(p, s.offset)
		for i := 0; i < nt; i++ {
			for j := 0; j < nt; j++ {
				A.Set(i, j, A.At(i, j)+p[i]*p[j])
			}
			for j := 0; j < voigt; j++ {
				b.Set(i, j, b.At(i, j)+p[i]*s.stress[j])
			}
		}
	}

	sol, err := linalg.SolveInverse(A, b, r.settings.Regularization)
	if sol.Regularized {
		stats.Regularized++
		entry := r.log.WithFields(logrus.Fields{
			"patch": r.mesh.Node(patchCenter).ID(),
			"det":   sol.Det,
		})
		if r.settings.WarnRegularized {
			entry.Warn("singular patch matrix regularized")
		} else {
			entry.Debug("singular patch matrix regularized")
		}
		if traceEnabled(r.log) {
			r.log.Tracef("patch matrix:\n%v", mat.Formatted(A))
		}
	}
	if errors.Is(err, linalg.ErrIllConditioned) {
		// Only the constant term is recoverable
		stats.Degenerate++
		r.log.WithField("patch", r.mesh.Node(patchCenter).ID()).Warnf("degenerate patch, using sample mean: %v", err)
		return sampleMean(samples, voigt), stats, nil
	}
	if err != nil {
		return nil, stats, err
	}

	sigma := make([]float64, voigt)
	dim := int(r.strategy.Dimension())
	if neighbourCount > dim {
		mat.Row(sigma, 0, sol.X)
		return sigma, stats, nil
	}

	offset := r3.Sub(r.mesh.Node(center).Coordinates(), r.mesh.Node(patchCenter).Coordinates())
	r.strategy.Basis(p, offset)
	for j := 0; j < voigt; j++ {
		for i := 0; i < nt; i++ {
			sigma[j] += p[i] * sol.X.At(i, j)
		}
	}
	return sigma, stats, nil
}

// contactPatch solves the penalty augmented fit. Each Voigt component has
// its own linear basis, so the unknowns are Voigt·(Dim+1) coefficients.
func (r *Recoverer) contactPatch(center, patchCenter int, pressure float64) ([]float64, Stats, error) {
	stats := Stats{Patches: 1, Contact: 1}
	nt, voigt := r.strategy.NumTerms(), r.strategy.VoigtSize()

	normal, err := r.nodeNormal(center)
	if err != nil {
		return nil, stats, err
	}

	samples, err := r.patchSamples(patchCenter)
	if err != nil {
		return nil, stats, err
	}

	sys := linalg.NewSparseSystem(voigt * nt)
	p := make([]float64, nt)
	for _, s := range samples {
		r.strategy.Basis(p, s.offset)
		for j := 0; j < voigt; j++ {
			base := j * nt
			for k := 0; k < nt; k++ {
				for l := 0; l < nt; l++ {
					sys.AddToMatrix(base+k, base+l, p[k]*p[l])
				}
				sys.AddToRHS(base+k, p[k]*s.stress[j])
			}
		}
	}

	// Penalty rows act at the node being recovered
	offset := r3.Sub(r.mesh.Node(center).Coordinates(), r.mesh.Node(patchCenter).Coordinates())
	r.strategy.Basis(p, offset)

	normalRow, tangentRows := r.strategy.ContactRows(normal)
	np := projectBasis(normalRow, p)
	sys.AddOuter(r.settings.PenaltyNormal, np, np)
	sys.AddScaledRHS(r.settings.PenaltyNormal*pressure, np)
	for _, row := range tangentRows {
		tp := projectBasis(row, p)
		sys.AddOuter(r.settings.PenaltyTangential, tp, tp)
	}

	if traceEnabled(r.log) {
		r.log.Tracef("contact patch matrix (%d non-zeros):\n%v", sys.NNZ(), mat.Formatted(sys.Matrix()))
	}

	sol, err := sys.Solve(r.settings.Regularization)
	if sol.Regularized {
		stats.Regularized++
	}
	if err != nil {
		return nil, stats, err
	}

	sigma := make([]float64, voigt)
	for j := 0; j < voigt; j++ {
		for k := 0; k < nt; k++ {
			sigma[j] += p[k] * sol.X.AtVec(j*nt+k)
		}
	}

	r.log.WithFields(logrus.Fields{
		"node":     r.mesh.Node(center).ID(),
		"pressure": floats.Dot(normalRow, sigma),
		"lm":       pressure,
	}).Debug("recovered contact pressure")
	return sigma, stats, nil
}

// nodeNormal returns the unit outward normal stored on a node
func (r *Recoverer) nodeNormal(node int) (r3.Vec, error) {
	n := r.mesh.Node(node)
	v, err := n.Data().MustVector(element.Normal)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("contact node %d: %w", n.ID(), err)
	}
	var normal r3.Vec
	switch len(v) {
	case 3:
		normal.Z = v[2]
		fallthrough
	case 2:
		normal.X, normal.Y = v[0], v[1]
	default:
		return r3.Vec{}, fmt.Errorf("contact node %d: normal has %d components", n.ID(), len(v))
	}
	length := r3.Norm(normal)
	if length <= linalg.Epsilon {
		return r3.Vec{}, fmt.Errorf("contact node %d: zero normal", n.ID())
	}
	return r3.Scale(1/length, normal), nil
}

// projectBasis returns row·P for the block basis P of one point, i.e. the
// entry for Voigt component j and basis term k is row[j]·p[k]
func projectBasis(row, p []float64) []float64 {
	out := make([]float64, len(row)*len(p))
	for j, rj := range row {
		for k, pk := range p {
			out[j*len(p)+k] = rj * pk
		}
	}
	return out
}

func sampleMean(samples []sample, voigt int) []float64 {
	mean := make([]float64, voigt)
	if len(samples) == 0 {
		return mean
	}
	for _, s := range samples {
		floats.Add(mean, s.stress)
	}
	floats.Scale(1/float64(len(samples)), mean)
	return mean
}

func traceEnabled(log logrus.Ext1FieldLogger) bool {
	switch l := log.(type) {
	case *logrus.Logger:
		return l.IsLevelEnabled(logrus.TraceLevel)
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(logrus.TraceLevel)
	}
	return false
}

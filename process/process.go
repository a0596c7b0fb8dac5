// Package process runs the SPR error estimator over a mesh: nodal stress
// recovery, element error and size update, and the nodal metric for the
// remesher, as three parallel passes separated by barriers.
package process

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/notargets/sprmetric/config"
	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/estimate"
	"github.com/notargets/sprmetric/linalg"
	"github.com/notargets/sprmetric/mesh"
	"github.com/notargets/sprmetric/metric"
	"github.com/notargets/sprmetric/partitions"
	"github.com/notargets/sprmetric/sizing"
	"github.com/notargets/sprmetric/spr"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SPRMetricProcess computes the error estimate and the remeshing metric of
// a solved mesh. Execute may be called again after the solution changes.
type SPRMetricProcess struct {
	mesh      element.Mesh
	settings  config.Settings
	log       *logrus.Logger
	adjacency element.AdjacencyProvider
	metrics   *Metrics
	workers   int
	strategy  partitions.PartitionStrategy
}

// Option configures a SPRMetricProcess
type Option func(*SPRMetricProcess)

// WithLogger replaces the default logger, whose level follows echo_level
func WithLogger(log *logrus.Logger) Option {
	return func(p *SPRMetricProcess) {
		p.log = log
	}
}

// WithAdjacencyProvider replaces the connectivity based neighbour discovery
func WithAdjacencyProvider(a element.AdjacencyProvider) Option {
	return func(p *SPRMetricProcess) {
		p.adjacency = a
	}
}

// WithMetrics records every run in m
func WithMetrics(m *Metrics) Option {
	return func(p *SPRMetricProcess) {
		p.metrics = m
	}
}

// WithWorkers overrides the workers setting
func WithWorkers(n int) Option {
	return func(p *SPRMetricProcess) {
		p.workers = n
	}
}

// WithPartitionStrategy selects how entities are split among workers
func WithPartitionStrategy(s partitions.PartitionStrategy) Option {
	return func(p *SPRMetricProcess) {
		p.strategy = s
	}
}

// New validates the settings and prepares a process for the mesh
func New(m element.Mesh, settings config.Settings, opts ...Option) (*SPRMetricProcess, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if !m.Dimension().Valid() {
		return nil, fmt.Errorf("unsupported mesh dimension %d", m.Dimension())
	}

	p := &SPRMetricProcess{
		mesh:      m,
		settings:  settings,
		adjacency: mesh.ConnectivityProvider{},
		workers:   settings.Workers,
		strategy:  partitions.BlockPartition,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.log == nil {
		p.log = logrus.New()
		p.log.SetLevel(settings.LogLevel())
	}
	if p.workers <= 0 {
		p.workers = runtime.GOMAXPROCS(0)
	}
	return p, nil
}

// PassDurations is the wall time of each pass
type PassDurations struct {
	Recovery time.Duration
	Estimate time.Duration // Element error, reduction and size update
	Metric   time.Duration
}

// Result summarises one run
type Result struct {
	RunID           string
	Global          estimate.Global
	Recovery        spr.Stats
	GuardedElements int // Zero error elements set to the maximal size
	ClampedElements int // Sizes limited by the size bounds
	Durations       PassDurations
}

// Converged reports whether the relative error is within target
func (r *Result) Converged(target float64) bool {
	return r.Global.ErrorPercentage <= target
}

// Execute runs the three passes. Unsupported element shapes are reported
// before any attribute is written.
func (p *SPRMetricProcess) Execute(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := p.log.WithFields(logrus.Fields{
		"process": "sprmetric",
		"run":     res.RunID,
	})

	for k := 0; k < p.mesh.NumElements(); k++ {
		if err := element.CheckSizable(p.mesh.Element(k)); err != nil {
			return nil, err
		}
	}

	adj, err := p.adjacency.Adjacency(ctx, p.mesh)
	if err != nil {
		return nil, fmt.Errorf("adjacency: %w", err)
	}

	nodeLayout, err := p.layout(p.mesh.NumNodes())
	if err != nil {
		return nil, err
	}
	elemLayout, err := p.layout(p.mesh.NumElements())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if res.Recovery, err = p.recoveryPass(ctx, log.WithField("pass", "recovery"), adj, nodeLayout); err != nil {
		return nil, err
	}
	res.Durations.Recovery = time.Since(start)

	start = time.Now()
	if err = p.estimatePass(ctx, log.WithField("pass", "estimate"), elemLayout, res); err != nil {
		return nil, err
	}
	res.Durations.Estimate = time.Since(start)

	start = time.Now()
	if err = p.metricPass(ctx, log.WithField("pass", "metric"), adj, nodeLayout); err != nil {
		return nil, err
	}
	res.Durations.Metric = time.Since(start)

	info := p.mesh.ProcessInfo()
	info.SetScalar(element.ErrorEstimate, res.Global.ErrorPercentage)
	info.SetScalar(element.ErrorOverall, res.Global.OverallError)
	info.SetScalar(element.EnergyNormOverall, res.Global.OverallEnergy)

	if p.metrics != nil {
		p.metrics.observe(res)
	}

	if p.settings.EchoLevel >= 2 {
		log.WithFields(logrus.Fields{
			"error_overall":       res.Global.OverallError,
			"energy_norm_overall": res.Global.OverallEnergy,
		}).Info("global norms")
	}
	log.WithFields(logrus.Fields{
		"error_estimate": res.Global.ErrorPercentage,
		"patches":        res.Recovery.Patches,
		"regularized":    res.Recovery.Regularized,
		"guarded":        res.GuardedElements,
	}).Info("error estimation finished")
	return res, nil
}

// layout splits n entities among the workers
func (p *SPRMetricProcess) layout(n int) (*partitions.PartitionLayout, error) {
	pb := &partitions.PartitionBuilder{
		NumEntities:   n,
		NumPartitions: p.workers,
		Strategy:      p.strategy,
	}
	return pb.BuildPartitions()
}

// runPass calls work for every entity, one goroutine per partition. Each
// call only writes to its own entity.
func (p *SPRMetricProcess) runPass(ctx context.Context, layout *partitions.PartitionLayout,
	work func(part, entity int) error) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, part := range layout.Partitions {
		g.Go(func() error {
			for _, k := range part.Entities {
				if err := gCtx.Err(); err != nil {
					return err
				}
				if err := work(part.ID, k); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// recoveryPass writes RECOVERED_STRESS on every node
func (p *SPRMetricProcess) recoveryPass(ctx context.Context, log *logrus.Entry, adj *element.Adjacency,
	layout *partitions.PartitionLayout) (spr.Stats, error) {
	rec, err := spr.NewRecoverer(p.mesh, adj, spr.Settings{
		PenaltyNormal:     p.settings.PenaltyNormal,
		PenaltyTangential: p.settings.PenaltyTangential,
		Regularization:    linalg.DefaultRegularization,
		WarnRegularized:   p.settings.EchoLevel >= 1,
	}, log)
	if err != nil {
		return spr.Stats{}, err
	}

	stats := make([]spr.Stats, layout.NumPartitions)
	err = p.runPass(ctx, layout, func(part, i int) error {
		sigma, s, err := rec.RecoverNode(i)
		stats[part].Add(s)
		if err != nil {
			return fmt.Errorf("recover node %d: %w", p.mesh.Node(i).ID(), err)
		}
		node := p.mesh.Node(i)
		node.Data().SetVector(element.RecoveredStress, sigma)
		log.WithField("node", node.ID()).Debugf("recovered stress %v", sigma)
		return nil
	})

	var total spr.Stats
	for _, s := range stats {
		total.Add(s)
	}
	return total, err
}

// estimatePass writes ELEMENT_ERROR and ELEMENT_H on every element and
// fills the global estimate
func (p *SPRMetricProcess) estimatePass(ctx context.Context, log *logrus.Entry,
	layout *partitions.PartitionLayout, res *Result) error {
	n := p.mesh.NumElements()
	estimates := make([]estimate.ElementEstimate, n)
	h0 := make([]float64, n)

	err := p.runPass(ctx, layout, func(_, k int) error {
		el := p.mesh.Element(k)
		est, err := estimate.EstimateElement(el)
		if err != nil {
			return err
		}
		if h0[k], err = sizing.CharacteristicSize(el); err != nil {
			return err
		}
		estimates[k] = est
		el.Data().SetScalar(element.ElementError, est.Error)
		return nil
	})
	if err != nil {
		return err
	}

	// Reduction in element order
	res.Global = estimate.Aggregate(estimates)

	updater := sizing.NewUpdater(sizing.Settings{
		MinSize:             p.settings.MinimalSize,
		MaxSize:             p.settings.MaximalSize,
		TargetError:         p.settings.Error,
		SetNumberOfElements: p.settings.SetNumberOfElements,
		NumberOfElements:    p.settings.NumberOfElements,
	})
	scale := updater.Scale(res.Global, n)

	guarded := make([]int, layout.NumPartitions)
	clamped := make([]int, layout.NumPartitions)
	err = p.runPass(ctx, layout, func(part, k int) error {
		el := p.mesh.Element(k)
		size := updater.Update(h0[k], estimates[k].Error, scale)
		if size.Guarded {
			guarded[part]++
			log.WithField("element", el.ID()).Debug("element error is zero, assigning the maximal size")
		}
		if size.Clamped {
			clamped[part]++
		}
		el.Data().SetScalar(element.ElementH, size.H)
		log.WithFields(logrus.Fields{
			"element": el.ID(),
			"error":   estimates[k].Error,
			"h0":      h0[k],
			"h":       size.H,
		}).Debug("element size")
		return nil
	})
	for part := range guarded {
		res.GuardedElements += guarded[part]
		res.ClampedElements += clamped[part]
	}
	if err == nil && res.GuardedElements > 0 {
		log.WithField("elements", res.GuardedElements).Warn("elements without error assigned the maximal size")
	}
	return err
}

// metricPass writes MMG_METRIC on every node
func (p *SPRMetricProcess) metricPass(ctx context.Context, log *logrus.Entry, adj *element.Adjacency,
	layout *partitions.PartitionLayout) error {
	policy := metric.PolicyFor(p.settings.AverageNodalH)
	dim := p.mesh.Dimension()

	return p.runPass(ctx, layout, func(_, i int) error {
		elems := adj.NodeElements[i]
		sizes := make([]float64, 0, len(elems))
		for _, k := range elems {
			sizes = append(sizes, p.mesh.Element(k).Data().ScalarOr(element.ElementH, 0))
		}

		node := p.mesh.Node(i)
		h, ok := metric.NodalSize(sizes, policy)
		if !ok {
			h = p.settings.MaximalSize
			log.WithField("node", node.ID()).Debug("no neighbouring element size, using the maximal size")
		}
		node.Data().SetVector(element.MMGMetric, metric.TensorToVector(metric.Isotropic(dim, h)))
		log.WithFields(logrus.Fields{"node": node.ID(), "h": h}).Debug("nodal size")
		return nil
	})
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/notargets/sprmetric/config"
	"github.com/notargets/sprmetric/element"
	"github.com/notargets/sprmetric/indicator"
	"github.com/notargets/sprmetric/mesh"
	"github.com/notargets/sprmetric/partitions"
	"github.com/notargets/sprmetric/process"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sprmetric",
		Short: "SPR error estimation and remeshing metrics",
		Long: `sprmetric recovers nodal stresses from a solved finite element model,
estimates the discretisation error and writes the nodal metric tensors a
remesher needs to reach the target error.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newDefaultsCmd())
	return root
}

type runOptions struct {
	settingsPath string
	outputPath   string
	metricsPath  string
	workers      int
	roundRobin   bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run MODEL",
		Short: "Estimate the error of a model and write the nodal metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.settingsPath, "settings", "s", "", "settings file, defaults when empty")
	f.StringVarP(&opts.outputPath, "output", "o", "", "report file, stdout when empty")
	f.StringVar(&opts.metricsPath, "metrics", "", "write Prometheus metrics in text format to this file")
	f.IntVarP(&opts.workers, "workers", "w", 0, "worker count, overrides the settings file")
	f.BoolVar(&opts.roundRobin, "round-robin", false, "distribute entities cyclically among workers")
	return cmd
}

func newDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.Default().Write(cmd.OutOrStdout())
		},
	}
}

// report is the YAML document written by run
type report struct {
	RunID             string          `yaml:"run_id"`
	ErrorEstimate     float64         `yaml:"error_estimate"`
	ErrorOverall      float64         `yaml:"error_overall"`
	EnergyNormOverall float64         `yaml:"energy_norm_overall"`
	Converged         bool            `yaml:"converged"`
	Nodes             []nodeReport    `yaml:"nodes"`
	Elements          []elementReport `yaml:"elements"`
}

type nodeReport struct {
	ID              int       `yaml:"id"`
	RecoveredStress []float64 `yaml:"recovered_stress,flow"`
	Metric          []float64 `yaml:"metric,flow"`
}

type elementReport struct {
	ID    int     `yaml:"id"`
	Error float64 `yaml:"error"`
	H     float64 `yaml:"h"`
}

func run(ctx context.Context, modelPath string, opts runOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	settings := config.Default()
	if opts.settingsPath != "" {
		var err error
		if settings, err = config.Load(opts.settingsPath); err != nil {
			return err
		}
	}
	if opts.workers > 0 {
		settings.Workers = opts.workers
	}

	md, err := mesh.LoadModel(modelPath)
	if err != nil {
		return err
	}
	m, err := md.Build()
	if err != nil {
		return fmt.Errorf("model %s: %w", modelPath, err)
	}
	if md.Material != nil {
		h, err := indicator.ParseHypothesis(md.Material.Hypothesis, m.Dimension())
		if err != nil {
			return err
		}
		e, err := indicator.NewElastic(md.Material.Young, md.Material.Poisson, h)
		if err != nil {
			return err
		}
		m.SetEvaluator(e)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(settings.LogLevel())

	reg := prometheus.NewRegistry()
	strategy := partitions.BlockPartition
	if opts.roundRobin {
		strategy = partitions.RoundRobin
	}
	p, err := process.New(m, settings,
		process.WithLogger(log),
		process.WithMetrics(process.NewMetrics(reg)),
		process.WithPartitionStrategy(strategy))
	if err != nil {
		return err
	}

	res, err := p.Execute(ctx)
	if err != nil {
		return err
	}

	if err = writeReport(m, res, settings, opts.outputPath, stdout); err != nil {
		return err
	}
	if opts.metricsPath != "" {
		return prometheus.WriteToTextfile(opts.metricsPath, reg)
	}
	return nil
}

func writeReport(m *mesh.Mesh, res *process.Result, settings config.Settings, path string, stdout io.Writer) error {
	r := report{
		RunID:             res.RunID,
		ErrorEstimate:     res.Global.ErrorPercentage,
		ErrorOverall:      res.Global.OverallError,
		EnergyNormOverall: res.Global.OverallEnergy,
		Converged:         res.Converged(settings.Error),
	}
	for _, n := range m.Nodes() {
		sigma, _ := n.Data().Vector(element.RecoveredStress)
		mmg, _ := n.Data().Vector(element.MMGMetric)
		r.Nodes = append(r.Nodes, nodeReport{ID: n.ID(), RecoveredStress: sigma, Metric: mmg})
	}
	for _, el := range m.Elements() {
		r.Elements = append(r.Elements, elementReport{
			ID:    el.ID(),
			Error: el.Data().ScalarOr(element.ElementError, 0),
			H:     el.Data().ScalarOr(element.ElementH, 0),
		})
	}

	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

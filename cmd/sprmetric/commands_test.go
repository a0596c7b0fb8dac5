package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/sprmetric/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const fanModel = `
dimension: 2
nodes:
  - [0, 0]
  - [1, 0]
  - [1, 1]
  - [0, 1]
  - [0.5, 0.5]
elements:
  - nodes: [0, 1, 4]
    stress: [[1, 0, 0]]
  - nodes: [1, 2, 4]
    stress: [[2, 0, 0]]
  - nodes: [2, 3, 4]
    stress: [[1, 1, 0]]
  - nodes: [3, 0, 4]
    stress: [[0, 1, 0.5]]
material:
  young: 100
  poisson: 0.3
  hypothesis: plane_stress
`

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDefaultsCommand(t *testing.T) {
	out, err := execute(t, "defaults")
	require.NoError(t, err)

	s, err := config.Parse(bytes.NewBufferString(out))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), s)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "fan.yaml")
	require.NoError(t, os.WriteFile(model, []byte(fanModel), 0o644))
	settings := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("average_nodal_h: true\nmaximal_size: 4\n"), 0o644))
	metrics := filepath.Join(dir, "metrics.prom")

	out, err := execute(t, "run", model, "--settings", settings, "--metrics", metrics, "-w", "2")
	require.NoError(t, err)

	var r report
	require.NoError(t, yaml.Unmarshal([]byte(out), &r))
	assert.NotEmpty(t, r.RunID)
	assert.Len(t, r.Nodes, 5)
	assert.Len(t, r.Elements, 4)
	assert.GreaterOrEqual(t, r.ErrorEstimate, 0.0)
	assert.LessOrEqual(t, r.ErrorEstimate, 1.0)
	for _, n := range r.Nodes {
		assert.Len(t, n.RecoveredStress, 3)
		assert.Len(t, n.Metric, 3)
	}
	for _, el := range r.Elements {
		assert.LessOrEqual(t, el.H, 4.0)
	}

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sprmetric_runs_total 1")

	t.Run("report file", func(t *testing.T) {
		path := filepath.Join(dir, "report.yaml")
		_, err := execute(t, "run", model, "-o", path, "--round-robin")
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "error_estimate:")
	})
}

func TestRunCommandErrors(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err, "model argument required")

	_, err = execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	dir := t.TempDir()
	model := filepath.Join(dir, "fan.yaml")
	require.NoError(t, os.WriteFile(model, []byte(fanModel), 0o644))
	settings := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("minimal_sise: 1\n"), 0o644))
	_, err = execute(t, "run", model, "-s", settings)
	assert.ErrorIs(t, err, config.ErrInvalidSettings)
}

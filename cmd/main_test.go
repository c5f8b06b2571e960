package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumi/internal/analysis"
	"lumi/internal/dataset"
)

type failingCloseRepository struct {
	dataset.DiscardRepository
}

func (failingCloseRepository) Close() error { return errors.New("disk full") }

func TestCloseOutput(t *testing.T) {
	err := closeOutput(failingCloseRepository{}, nil)
	assert.ErrorContains(t, err, "disk full")

	err = closeOutput(failingCloseRepository{}, context.Canceled)
	assert.ErrorIs(t, err, context.Canceled, "run error takes precedence")

	assert.NoError(t, closeOutput(dataset.DiscardRepository{}, nil))
}

func setupConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	xs := write("xs.txt", "100 ttbar 2.0 1.0 1.0\n200 wjets 3.0 1.0 1.0\n")
	counts := write("counts.txt", "100 10 1.0\n200 10 1.0\n")
	sel := write("selection.yaml", "cuts:\n  - name: two_leptons\n    when: n_lep >= 2\n")

	return write("config.yaml", `
logger:
  level: error
weights:
  cross_sections: `+xs+`
  counts: `+counts+`
  scale: 1.5
events:
  variables:
    n_lep: int
selection:
  file: `+sel+`
`+extra)
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestShowCommand(t *testing.T) {
	configPath := setupConfig(t, "")

	out, err := execute(t, "", "show", "--config", configPath)
	require.NoError(t, err)
	assert.Equal(t, "# scale 1.5\n100\t3\n200\t4.5\n", out)

	out, err = execute(t, "", "show", "--config", configPath, "200")
	require.NoError(t, err)
	assert.Equal(t, "200\t4.5\n", out)

	out, err = execute(t, "", "show", "--config", configPath, "999")
	require.NoError(t, err)
	assert.Equal(t, "999\t0\n", out, "unknown dataset weighs zero under the default policy")
}

func TestShowCommand_StrictPolicy(t *testing.T) {
	configPath := setupConfig(t, "")
	t.Setenv("LUMI_WEIGHTS_MISSING", "error")

	_, err := execute(t, "", "show", "--config", configPath, "999")
	assert.ErrorContains(t, err, "unknown dataset: 999")
}

func TestWeighCommand(t *testing.T) {
	configPath := setupConfig(t, "")
	events := `{"mc_dataset_id": 100, "n_lep": 2}
{"mc_dataset_id": 200, "n_lep": 3}
{"mc_dataset_id": 200, "n_lep": 1}
`

	out, err := execute(t, events, "weigh", "--config", configPath, "--json")
	require.NoError(t, err)

	var summary analysis.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, int64(3), summary.Read)
	assert.Equal(t, int64(2), summary.Selected)
	assert.Equal(t, []analysis.Yield{
		{DatasetID: 100, Events: 1, Weighted: 3.0},
		{DatasetID: 200, Events: 1, Weighted: 4.5},
	}, summary.Yields)
}

func TestWeighCommand_Output(t *testing.T) {
	output := filepath.Join(t.TempDir(), "weighted.jsonl")
	configPath := setupConfig(t, "output:\n  file: "+output+"\n")

	out, err := execute(t, `{"mc_dataset_id": 100, "n_lep": 2}`, "weigh", "--config", configPath, "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Cutflow:")
	assert.Contains(t, out, "100\t1\t3\n")

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"weight":3`)
}

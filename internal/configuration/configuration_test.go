package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumi/internal/weight"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: DEBUG
weights:
  cross_sections: xs.txt
  counts: counts.txt
  scale: 20.3e3
  missing: error
  watch: true
events:
  variables:
    n_lep: int
    met: double
selection:
  file: selection.yaml
output:
  file: weighted.jsonl
server:
  address: ":8081"
  metrics_address: ":9091"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", config.Logger.Level)
	assert.Equal(t, "xs.txt", config.Weights.CrossSections)
	assert.Equal(t, 20.3e3, config.Weights.Scale)
	assert.Equal(t, weight.MissingError, config.Weights.MissingPolicy())
	assert.True(t, config.Weights.Watch)
	assert.Equal(t, "mc_dataset_id", config.Events.DatasetField)
	assert.Equal(t, "int", config.Events.Variables["mc_dataset_id"], "dataset field should be declared implicitly")
	assert.Equal(t, "double", config.Events.Variables["met"])
	assert.Equal(t, "lumi_weight(mc_dataset_id)", config.Events.DefaultWeight())
	assert.Equal(t, "selection.yaml", config.Selection.File)
	assert.Equal(t, 100, config.Output.Size)
	assert.Equal(t, 20, config.Output.Amount)
	assert.Equal(t, ":8081", config.Server.Address)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
weights:
  cross_sections: xs.txt
  counts: counts.txt
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "info", config.Logger.Level)
	assert.Equal(t, 1.0, config.Weights.Scale)
	assert.Equal(t, weight.MissingZero, config.Weights.MissingPolicy())
	assert.Equal(t, ":8080", config.Server.Address)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
weights:
  cross_sections: xs.txt
  counts: counts.txt
  scale: 1.0
`)
	t.Setenv("LUMI_WEIGHTS_SCALE", "36.1")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 36.1, config.Weights.Scale)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing counts": `
weights:
  cross_sections: xs.txt
`,
		"bad level": `
logger:
  level: verbose
weights:
  cross_sections: xs.txt
  counts: counts.txt
`,
		"bad policy": `
weights:
  cross_sections: xs.txt
  counts: counts.txt
  missing: ignore
`,
		"bad variable type": `
weights:
  cross_sections: xs.txt
  counts: counts.txt
events:
  variables:
    met: float
`,
		"non-int dataset field": `
weights:
  cross_sections: xs.txt
  counts: counts.txt
events:
  dataset_field: run
  variables:
    run: string
`,
		"same addresses": `
weights:
  cross_sections: xs.txt
  counts: counts.txt
server:
  address: ":8080"
  metrics_address: ":8080"
`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "error reading config file")
}

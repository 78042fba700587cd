package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/pmc"
	"github.com/ChrisMcGann/peptag/pkg/taggraph"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peptag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "models", cfg.ModelDir)
	assert.Equal(t, pmc.DefaultParentMassPPM, cfg.ParentMassPPM)
	assert.Equal(t, taggraph.DefaultTagLength, cfg.TagLength)
	assert.Equal(t, taggraph.DefaultMaxTags, cfg.MaxTags)
	assert.Greater(t, cfg.Workers, 0)
	assert.True(t, cfg.PMC().RetainRunnerUp)
	assert.Equal(t, taggraph.DefaultModPenalty, cfg.Penalty())
	assert.Equal(t, taggraph.DefaultConfig(), cfg.Tagging())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
model_dir: /srv/models
workers: 3
retain_runner_up: false
phospho: true
mod_penalty: 0
tag_length: 4
max_tags: -1
variable_mods: ["Phospho@STY"]
fixed_mods: ["Carbamidomethyl@C"]
filter:
  window_width: 0
  top_n: 50
  ion_types: [b, y]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/models", cfg.ModelDir)
	assert.Equal(t, 3, cfg.Workers)
	assert.False(t, cfg.PMC().RetainRunnerUp)
	assert.True(t, cfg.PMC().Phospho)
	assert.Equal(t, 0.0, cfg.Penalty())
	assert.Equal(t, 4, cfg.TagLength)
	assert.Equal(t, -1, cfg.MaxTags)
	assert.Equal(t, 50, cfg.PeakFilter().TopN)
	assert.Zero(t, cfg.PeakFilter().WindowWidth)
	assert.Equal(t, []string{"b", "y"}, cfg.PeakFilter().IonTypes)

	mods, err := cfg.Mods(core.DefaultModDatabase())
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.True(t, mods[0].Fixed)
	assert.Equal(t, "C", mods[0].Residues)
	assert.False(t, mods[1].Fixed)
	assert.True(t, mods[1].IsPhospho())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvModelDir, "/env/models")
	t.Setenv(EnvWorkers, "7")
	t.Setenv(EnvLogMode, "dev")
	t.Setenv(EnvPhospho, "true")

	cfg, err := Load(writeConfig(t, "model_dir: /file/models\nworkers: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, "/env/models", cfg.ModelDir)
	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "dev", cfg.LogMode)
	assert.True(t, cfg.Phospho)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"bad yaml", "workers: [", nil},
		{"negative workers", "workers: -2", nil},
		{"tag too long", "tag_length: 40", nil},
		{"bad log mode", "log_mode: loud", nil},
		{"bad max tags", "max_tags: -5", nil},
		{"window without peaks", "filter:\n  window_width: 50\n  window_peaks: 0\n", nil},
		{"unknown ion type", "filter:\n  ion_types: [z]\n", nil},
		{"bad worker env", "", map[string]string{EnvWorkers: "many"}},
		{"bad phospho env", "", map[string]string{EnvPhospho: "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestUnknownMod(t *testing.T) {
	cfg := Default()
	cfg.VariableMods = []string{"Nonsense@K"}
	_, err := cfg.Mods(core.DefaultModDatabase())
	assert.Error(t, err)
}

// Package config loads PepTag run settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/filter"
	"github.com/ChrisMcGann/peptag/pkg/pmc"
	"github.com/ChrisMcGann/peptag/pkg/taggraph"
)

// Environment variables read by Load.
const (
	EnvModelDir = "PEPTAG_MODEL_DIR"
	EnvWorkers  = "PEPTAG_WORKERS"
	EnvLogMode  = "PEPTAG_LOG_MODE"
	EnvPhospho  = "PEPTAG_PHOSPHO"
)

// FilterConfig mirrors filter.Config.
type FilterConfig struct {
	WindowWidth     float64  `yaml:"window_width"`
	WindowPeaks     int      `yaml:"window_peaks"`
	TopN            int      `yaml:"top_n"`
	IntensityCutoff float64  `yaml:"intensity_cutoff"`
	IonTypes        []string `yaml:"ion_types"`
}

// Config holds all run settings.
type Config struct {
	ModelDir  string `yaml:"model_dir"`
	LogMode   string `yaml:"log_mode"`
	Workers   int    `yaml:"workers"`
	ChunkSize int    `yaml:"chunk_size"`

	ParentMassPPM      float64 `yaml:"parent_mass_ppm"`
	RunnerUpSeparation float64 `yaml:"runner_up_separation"`
	RetainRunnerUp     *bool   `yaml:"retain_runner_up"`
	MultiCharge        bool    `yaml:"multi_charge"`
	Phospho            bool    `yaml:"phospho"`

	FragmentTolerance   float64  `yaml:"fragment_tolerance"`
	ParentMassTolerance float64  `yaml:"parent_mass_tolerance"`
	TagLength           int      `yaml:"tag_length"`
	MaxTags             int      `yaml:"max_tags"`
	EdgeScoreMultiplier float64  `yaml:"edge_score_multiplier"`
	ModPenalty          *float64 `yaml:"mod_penalty"`
	FixedMods           []string `yaml:"fixed_mods"`
	VariableMods        []string `yaml:"variable_mods"`

	Filter *FilterConfig `yaml:"filter"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path (skipped when empty), applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	applyDefaults(cfg)
	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ModelDir == "" {
		cfg.ModelDir = "models"
	}
	if cfg.LogMode == "" {
		cfg.LogMode = "prod"
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 256
	}
	if cfg.ParentMassPPM == 0 {
		cfg.ParentMassPPM = pmc.DefaultParentMassPPM
	}
	if cfg.RunnerUpSeparation == 0 {
		cfg.RunnerUpSeparation = pmc.DefaultRunnerUpSeparation
	}
	if cfg.RetainRunnerUp == nil {
		retain := true
		cfg.RetainRunnerUp = &retain
	}
	if cfg.FragmentTolerance == 0 {
		cfg.FragmentTolerance = taggraph.DefaultFragmentTolerance
	}
	if cfg.ParentMassTolerance == 0 {
		cfg.ParentMassTolerance = taggraph.DefaultParentMassTolerance
	}
	if cfg.TagLength == 0 {
		cfg.TagLength = taggraph.DefaultTagLength
	}
	if cfg.MaxTags == 0 {
		cfg.MaxTags = taggraph.DefaultMaxTags
	}
	if cfg.EdgeScoreMultiplier == 0 {
		cfg.EdgeScoreMultiplier = taggraph.DefaultEdgeScoreMultiplier
	}
	if cfg.ModPenalty == nil {
		penalty := taggraph.DefaultModPenalty
		cfg.ModPenalty = &penalty
	}
	if cfg.Filter == nil {
		cfg.Filter = &FilterConfig{
			WindowWidth: filter.DefaultWindowWidth,
			WindowPeaks: filter.DefaultWindowPeaks,
		}
	}
}

func applyEnvironmentOverrides(cfg *Config) error {
	if dir := os.Getenv(EnvModelDir); dir != "" {
		cfg.ModelDir = dir
	}
	if mode := os.Getenv(EnvLogMode); mode != "" {
		cfg.LogMode = mode
	}
	if workers := os.Getenv(EnvWorkers); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		cfg.Workers = n
	}
	if phospho := os.Getenv(EnvPhospho); phospho != "" {
		on, err := strconv.ParseBool(phospho)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPhospho, err)
		}
		cfg.Phospho = on
	}
	return nil
}

// Validate checks ranges after defaults and overrides are applied.
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.LogMode) {
	case "dev", "prod", "production":
	default:
		return fmt.Errorf("log_mode must be dev or prod, got %q", cfg.LogMode)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ParentMassPPM < 0 {
		return fmt.Errorf("parent_mass_ppm must not be negative, got %g", cfg.ParentMassPPM)
	}
	if cfg.RunnerUpSeparation < 0 {
		return fmt.Errorf("runner_up_separation must not be negative, got %g", cfg.RunnerUpSeparation)
	}
	if cfg.FragmentTolerance <= 0 || cfg.ParentMassTolerance <= 0 {
		return fmt.Errorf("tolerances must be positive, got fragment %g and parent %g",
			cfg.FragmentTolerance, cfg.ParentMassTolerance)
	}
	if cfg.TagLength < 1 || cfg.TagLength > taggraph.MaxTagLength {
		return fmt.Errorf("tag_length must be between 1 and %d, got %d", taggraph.MaxTagLength, cfg.TagLength)
	}
	if cfg.MaxTags < -1 {
		return fmt.Errorf("max_tags must be -1 (unlimited) or more, got %d", cfg.MaxTags)
	}
	if f := cfg.Filter; f != nil && f.WindowWidth > 0 && f.WindowPeaks <= 0 {
		return fmt.Errorf("filter.window_peaks must be positive when the window filter is on, got %d", f.WindowPeaks)
	}
	if f := cfg.Filter; f != nil {
		if _, err := filter.ParseIonKinds(f.IonTypes); err != nil {
			return fmt.Errorf("filter.ion_types: %w", err)
		}
	}
	return nil
}

// PMC returns the parent mass correction settings.
func (cfg *Config) PMC() *pmc.Config {
	return &pmc.Config{
		ParentMassPPM:      cfg.ParentMassPPM,
		RunnerUpSeparation: cfg.RunnerUpSeparation,
		RetainRunnerUp:     cfg.RetainRunnerUp == nil || *cfg.RetainRunnerUp,
		MultiCharge:        cfg.MultiCharge,
		Phospho:            cfg.Phospho,
	}
}

// Tagging returns the tag graph settings.
func (cfg *Config) Tagging() taggraph.Config {
	return taggraph.Config{
		FragmentTolerance:   cfg.FragmentTolerance,
		ParentMassTolerance: cfg.ParentMassTolerance,
		EdgeScoreMultiplier: cfg.EdgeScoreMultiplier,
	}
}

// PeakFilter returns the peak preprocessing settings.
func (cfg *Config) PeakFilter() *filter.Config {
	if cfg.Filter == nil {
		return filter.DefaultConfig()
	}
	return &filter.Config{
		WindowWidth:     cfg.Filter.WindowWidth,
		WindowPeaks:     cfg.Filter.WindowPeaks,
		TopN:            cfg.Filter.TopN,
		IntensityCutoff: cfg.Filter.IntensityCutoff,
		IonTypes:        cfg.Filter.IonTypes,
	}
}

// Mods parses the fixed and variable modifications against db.
func (cfg *Config) Mods(db *core.ModDatabase) ([]core.ModSpec, error) {
	var mods []core.ModSpec
	for _, group := range []struct {
		specs []string
		fixed bool
	}{{cfg.FixedMods, true}, {cfg.VariableMods, false}} {
		for _, s := range group.specs {
			mod, err := db.ParseModSpec(s, group.fixed)
			if err != nil {
				return nil, err
			}
			mods = append(mods, mod)
		}
	}
	return mods, nil
}

// Penalty returns the modified jump penalty.
func (cfg *Config) Penalty() float64 {
	if cfg.ModPenalty == nil {
		return taggraph.DefaultModPenalty
	}
	return *cfg.ModPenalty
}

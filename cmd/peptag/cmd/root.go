// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/peptag/pkg/config"
	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/logger"
	"github.com/ChrisMcGann/peptag/pkg/modelstore"
	"github.com/ChrisMcGann/peptag/pkg/pipeline"
)

// customModsFile is read from the working directory when present.
const customModsFile = "unimod_custom.csv"

var (
	// Global flags
	configPath  string
	envFile     string
	modelDir    string
	logMode     string
	workers     int
	phospho     bool
	multiCharge bool
	modsCSV     string

	// Flags shared by the scoring commands
	inputFile    string
	outputFile   string
	tagLength    int
	maxTags      int
	fixedMods    []string
	variableMods []string
)

// Set up by the root command before any subcommand runs.
var (
	cfg   *config.Config
	log   *logger.Logger
	modDB *core.ModDatabase
)

var rootCmd = &cobra.Command{
	Use:   "peptag",
	Short: "PepTag - sequence tags from tandem mass spectra",
	Long: `PepTag corrects the precursor mass and charge of MS/MS spectra and
generates short, scored amino acid sequence tags for database filtering.

Settings come from a YAML file (--config), PEPTAG_* environment variables
(a .env file is loaded first) and flags, in increasing priority.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if log != nil {
			log.Sync()
		}
	},
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && log != nil {
		log.Error("command failed", "error", xerrors.New(err))
	}
	return err
}

func init() {
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(chargeCmd)
	rootCmd.AddCommand(cutsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(summarizeCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&envFile, "env", ".env", "Environment file loaded before the configuration")
	pf.StringVarP(&modelDir, "models", "m", "", "Model directory (overrides config)")
	pf.StringVar(&logMode, "log-mode", "", "Log mode: dev or prod (overrides config)")
	pf.IntVarP(&workers, "workers", "j", 0, "Number of worker goroutines (overrides config)")
	pf.BoolVar(&phospho, "phospho", false, "Use phosphopeptide models and features")
	pf.BoolVar(&multiCharge, "multi-charge", false, "Ignore file charges and consider charges 1 to 3")
	pf.StringVar(&modsCSV, "mods-csv", "", "Extra modifications CSV (mod,massshift,aa)")

	for _, c := range []*cobra.Command{tagsCmd, chargeCmd, cutsCmd} {
		c.Flags().StringVarP(&inputFile, "in", "i", "", "Input spectra (.mgf or .msp, required)")
		c.Flags().StringVarP(&outputFile, "out", "o", "", "Output SQLite database (prints to stdout if empty)")
		c.MarkFlagRequired("in")
	}
	tagsCmd.Flags().IntVarP(&tagLength, "length", "l", 0, "Tag length in residues (overrides config)")
	tagsCmd.Flags().IntVarP(&maxTags, "max-tags", "n", 0, "Tags kept per spectrum, -1 for all (overrides config)")
	tagsCmd.Flags().StringSliceVar(&fixedMods, "fixed", nil, "Fixed modifications, e.g. Carbamidomethyl@C")
	tagsCmd.Flags().StringSliceVar(&variableMods, "variable", nil, "Variable modifications, e.g. Phospho@STY")
}

// setup loads the environment, configuration, logger and modification database.
func setup(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	log, err = logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	log = log.With("command", cmd.Name())

	modDB, err = loadModDatabase()
	return err
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("models") {
		cfg.ModelDir = modelDir
	}
	if flags.Changed("log-mode") {
		cfg.LogMode = logMode
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("phospho") {
		cfg.Phospho = phospho
	}
	if flags.Changed("multi-charge") {
		cfg.MultiCharge = multiCharge
	}
	if flags.Changed("length") {
		cfg.TagLength = tagLength
	}
	if flags.Changed("max-tags") {
		cfg.MaxTags = maxTags
	}
	if flags.Changed("fixed") {
		cfg.FixedMods = fixedMods
	}
	if flags.Changed("variable") {
		cfg.VariableMods = variableMods
	}
}

// loadModDatabase extends the default database with --mods-csv or, failing
// that, unimod_custom.csv in the working directory.
func loadModDatabase() (*core.ModDatabase, error) {
	db := core.DefaultModDatabase()
	path, required := modsCSV, true
	if path == "" {
		path, required = customModsFile, false
	}

	f, err := os.Open(path)
	if err != nil {
		if required {
			return nil, fmt.Errorf("failed to open modifications: %w", err)
		}
		return db, nil
	}
	defer f.Close()
	if err := db.LoadFromCSV(f); err != nil {
		if required {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		log.Warn("failed to load custom modifications", "file", path, "error", err)
	}
	return db, nil
}

// loadStore reads the configured model directory.
func loadStore() (*modelstore.Store, error) {
	if _, err := os.Stat(cfg.ModelDir); err != nil {
		log.Warn("model directory not readable, using built-in defaults", "dir", cfg.ModelDir, "error", err)
		return modelstore.New()
	}
	return modelstore.Load(cfg.ModelDir, log)
}

// newPipeline builds a pipeline from the configuration.
func newPipeline(store *modelstore.Store) (*pipeline.Pipeline, error) {
	mods, err := cfg.Mods(modDB)
	if err != nil {
		return nil, err
	}
	opts := pipeline.Options{
		Workers:    cfg.Workers,
		TagLength:  cfg.TagLength,
		MaxTags:    cfg.MaxTags,
		ModPenalty: cfg.Penalty(),
		Mods:       mods,
		Filter:     cfg.PeakFilter(),
		PMC:        cfg.PMC(),
		Tagging:    cfg.Tagging(),
	}
	return pipeline.New(store, opts, log), nil
}

// commandLine records how a run was started.
func commandLine() string {
	return strings.Join(os.Args[1:], " ")
}

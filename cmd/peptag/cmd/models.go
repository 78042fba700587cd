package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/peptag/pkg/modelstore"
)

var strictModels bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Load and list the models of the model directory",
	Long: `Load every classifier, network and skew table of the model directory,
report which were found, and fail on malformed files. With --strict a
missing model is an error too.`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&strictModels, "strict", false, "Fail when any model is missing")
}

func runModels(cmd *cobra.Command, _ []string) error {
	store, err := modelstore.Load(cfg.ModelDir, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model directory: %s\n", cfg.ModelDir)
	for _, name := range store.Available() {
		fmt.Fprintf(out, "  loaded   %s\n", name)
	}
	for _, name := range store.Missing() {
		fmt.Fprintf(out, "  missing  %s\n", name)
	}
	skew, _ := store.SkewTables()
	fmt.Fprintf(out, "Skew bins: %d\n", len(skew))

	if missing := store.Missing(); strictModels && len(missing) > 0 {
		return fmt.Errorf("%d models missing from %s", len(missing), cfg.ModelDir)
	}
	return nil
}

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mdobak/go-xerrors"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/pipeline"
	"github.com/ChrisMcGann/peptag/pkg/writer/sqlite"
)

var chargeCmd = &cobra.Command{
	Use:   "charge",
	Short: "Print the corrected charge and parent mass hypotheses",
	Long: `Run parent mass and charge correction only. Each spectrum gets one line
per retained (charge, parent mass) hypothesis, best first within a charge.

Example:
  peptag charge --in run.mgf --multi-charge`,
	RunE: runCharge,
}

func runCharge(cmd *cobra.Command, _ []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	p, err := newPipeline(store)
	if err != nil {
		return err
	}
	src, err := openSpectra(inputFile)
	if err != nil {
		return err
	}
	defer src.Close()

	var w *sqlite.Writer
	if outputFile != "" {
		w, err = sqlite.NewWriter(outputFile, commandLine())
		if err != nil {
			return fmt.Errorf("failed to create output database: %w", err)
		}
		defer func() {
			if w != nil {
				w.Close()
			}
		}()
	}

	var stats pipeline.Stats
	out := cmd.OutOrStdout()
	for {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		chunk, err := src.next(cfg.ChunkSize)
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			break
		}
		for _, spec := range chunk {
			tweaks, err := p.Tweaks(spec)
			if err != nil {
				stats.Skipped++
				if !errors.Is(err, core.ErrNoPeaks) {
					log.Warn("spectrum failed, skipping", "spectrum", spec.Name(), "error", xerrors.New(err))
				}
				continue
			}
			stats.Processed++
			if w != nil {
				if err := w.WriteResult(&pipeline.Result{Spectrum: spec, Tweaks: tweaks}); err != nil {
					return err
				}
				continue
			}
			for _, tw := range tweaks {
				fmt.Fprintf(out, "%s\t%d\t%.4f\t%.4f\n",
					spec.Name(), tw.Charge, tw.ParentMass, core.MZFromParentMass(tw.ParentMass, tw.Charge))
			}
		}
	}

	if w != nil {
		err := w.Finalize(stats, "charge "+filepath.Base(inputFile))
		w = nil
		if err != nil {
			return fmt.Errorf("failed to finalize database: %w", err)
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Processed: %d spectra\n", stats.Processed)
	if stats.Skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipped: %d spectra\n", stats.Skipped)
	}
	return nil
}

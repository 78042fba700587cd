package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/peptag/pkg/pipeline"
	"github.com/ChrisMcGann/peptag/pkg/writer/sqlite"
)

var cutsCmd = &cobra.Command{
	Use:   "cuts",
	Short: "Score every cut point of annotated spectra",
	Long: `Score the cut points of each annotated spectrum's peptide with the tag
network, or the phospho cut network for phosphopeptides. Spectra without an
annotation are skipped.

Example:
  peptag cuts --in library.msp --out cuts.db`,
	RunE: runCuts,
}

func runCuts(cmd *cobra.Command, _ []string) error {
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
			if spec.Sequence == "" {
				stats.Skipped++
				continue
			}
			pep, scores, err := p.CutScores(spec, modDB)
			if err != nil {
				stats.Skipped++
				log.Warn("spectrum failed, skipping", "spectrum", spec.Name(), "error", xerrors.New(err))
				continue
			}
			stats.Processed++
			if w != nil {
				if err := w.WriteCutScores(spec, pep, scores); err != nil {
					return err
				}
				continue
			}
			parts := make([]string, len(scores))
			for i, s := range scores {
				parts[i] = fmt.Sprintf("%.3f", s)
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", spec.Name(), pep, strings.Join(parts, " "))
		}
	}

	if w != nil {
		err := w.Finalize(stats, "cuts "+filepath.Base(inputFile))
		w = nil
		if err != nil {
			return fmt.Errorf("failed to finalize database: %w", err)
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Scored: %d spectra\n", stats.Processed)
	if stats.Skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipped: %d spectra (unannotated or unparsable)\n", stats.Skipped)
	}
	return nil
}

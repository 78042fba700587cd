package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/pipeline"
	"github.com/ChrisMcGann/peptag/pkg/reader"
	"github.com/ChrisMcGann/peptag/pkg/writer/sqlite"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Generate sequence tags for every spectrum",
	Long: `Correct the parent mass and charge of each spectrum, then generate its
best scoring sequence tags.

Examples:
  # Print the top 20 tags of length 3
  peptag tags --in run.mgf --max-tags 20

  # Store tags in a database, allowing phosphorylation
  peptag tags --in run.mgf --out run.db --variable Phospho@STY --phospho`,
	RunE: runTags,
}

// spectrumSource streams spectra from an input file in chunks.
type spectrumSource struct {
	file   *os.File
	it     reader.Iterator
	source string
}

func openSpectra(path string) (*spectrumSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	it, err := reader.New(f, reader.Format(path), modDB)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &spectrumSource{file: f, it: it, source: filepath.Base(path)}, nil
}

// next returns up to n spectra; an empty chunk means the input is exhausted.
func (s *spectrumSource) next(n int) ([]*core.Spectrum, error) {
	var chunk []*core.Spectrum
	for len(chunk) < n && s.it.Next() {
		spec := s.it.Spectrum()
		spec.SourceFile = s.source
		chunk = append(chunk, spec)
	}
	if err := s.it.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", s.source, err)
	}
	return chunk, nil
}

func (s *spectrumSource) Close() error {
	return s.file.Close()
}

// runChunks feeds the input through p chunk by chunk and accumulates stats.
func runChunks(cmd *cobra.Command, p *pipeline.Pipeline, emit func(*pipeline.Result) error) (pipeline.Stats, error) {
	var total pipeline.Stats
	src, err := openSpectra(inputFile)
	if err != nil {
		return total, err
	}
	defer src.Close()

	for {
		chunk, err := src.next(cfg.ChunkSize)
		if err != nil {
			return total, err
		}
		if len(chunk) == 0 {
			return total, nil
		}
		stats, err := p.Run(cmd.Context(), chunk, emit)
		total.Processed += stats.Processed
		total.Skipped += stats.Skipped
		total.Tags += stats.Tags
		if err != nil {
			return total, err
		}
		log.Debug("chunk done", "spectra", len(chunk), "processed", total.Processed)
	}
}

func runTags(cmd *cobra.Command, _ []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	p, err := newPipeline(store)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	emit := func(res *pipeline.Result) error {
		printTags(out, res)
		return nil
	}
	var w *sqlite.Writer
	if outputFile != "" {
		w, err = sqlite.NewWriter(outputFile, commandLine())
		if err != nil {
			return fmt.Errorf("failed to create output database: %w", err)
		}
		emit = w.WriteResult
	}

	stats, err := runChunks(cmd, p, emit)
	if err != nil {
		if w != nil {
			w.Close()
		}
		return err
	}
	if w != nil {
		if err := w.Finalize(stats, "tags "+filepath.Base(inputFile)); err != nil {
			return fmt.Errorf("failed to finalize database: %w", err)
		}
		log.Info("tags written", "out", outputFile, "run", w.RunID())
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Processed: %d spectra, %d tags\n", stats.Processed, stats.Tags)
	if stats.Skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipped: %d spectra\n", stats.Skipped)
	}
	return nil
}

// printTags writes one line per tag: spectrum, rank, charge, parent mass,
// prefix mass, residues, suffix mass and score.
func printTags(out io.Writer, res *pipeline.Result) {
	name := res.Spectrum.Name()
	if len(res.Tags) == 0 {
		fmt.Fprintf(out, "%s\t-\n", name)
		return
	}
	for rank, tag := range res.Tags {
		fmt.Fprintf(out, "%s\t%d\t%d\t%.3f\t%.3f\t%s\t%.3f\t%.3f\n",
			name, rank+1, tag.Charge, tag.ParentMass,
			tag.PrefixMass, tag.Annotated(), tag.SuffixMass, tag.Score)
	}
}

package cmd

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/peptag/pkg/reader"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a spectrum file",
	Long:  `Print the spectrum count, precursor m/z range, peak count statistics and charge histogram of an MGF or MSP file.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	spectra, err := reader.ReadFile(args[0], modDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\n", args[0])
	fmt.Fprintf(out, "Spectra: %d\n", len(spectra))
	if len(spectra) == 0 {
		return nil
	}

	minMZ, maxMZ := math.Inf(1), math.Inf(-1)
	peaks := make([]float64, len(spectra))
	charges := make(map[int]int)
	annotated := 0
	for i, spec := range spectra {
		if spec.PrecursorMZ > 0 {
			minMZ = math.Min(minMZ, spec.PrecursorMZ)
			maxMZ = math.Max(maxMZ, spec.PrecursorMZ)
		}
		peaks[i] = float64(len(spec.Peaks))
		if len(spec.FileCharges) == 0 {
			charges[0]++
		}
		for _, z := range spec.FileCharges {
			charges[z]++
		}
		if spec.Sequence != "" {
			annotated++
		}
	}

	if minMZ <= maxMZ {
		fmt.Fprintf(out, "Precursor m/z: %.4f - %.4f\n", minMZ, maxMZ)
	}
	mean, std := stat.MeanStdDev(peaks, nil)
	if len(peaks) < 2 {
		std = 0
	}
	sort.Float64s(peaks)
	fmt.Fprintf(out, "Peaks per spectrum: mean %.1f, sd %.1f, median %.0f, max %.0f\n",
		mean, std, stat.Quantile(0.5, stat.Empirical, peaks, nil), peaks[len(peaks)-1])
	fmt.Fprintf(out, "Annotated: %d\n", annotated)

	zs := make([]int, 0, len(charges))
	for z := range charges {
		zs = append(zs, z)
	}
	sort.Ints(zs)
	fmt.Fprintln(out, "Charges:")
	for _, z := range zs {
		label := fmt.Sprintf("%d+", z)
		if z == 0 {
			label = "unknown"
		}
		fmt.Fprintf(out, "  %-8s %d\n", label, charges[z])
	}
	return nil
}

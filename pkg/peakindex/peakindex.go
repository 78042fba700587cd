// Package peakindex bins a spectrum's peaks into 0.1 Da intensity bins, assigns
// discrete intensity levels and tracks which peaks have been claimed by ions.
package peakindex

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/peptag/pkg/core"
)

const (
	// BinWidth is the width of one intensity bin in Da.
	BinWidth = 0.1

	// TightRadius bounds the skew of peaks counted in the tight intensity array.
	TightRadius = 0.15

	spreadBins    = 6
	maxWeakPeaks  = 200
	cutoffPerMass = 50.0

	// maxBinCount covers every fragment of the heaviest scorable parent.
	maxBinCount = int((core.MaxParentMass + 1.0) / BinWidth)
)

// Params are the binning parameters a scoring model imposes on the index.
type Params struct {
	Scheme              int
	IntensityRadius     float64
	HalfIntensityRadius float64
}

// LevelCount returns the number of intensity levels of the scheme, absent level included.
func LevelCount(scheme int) (int, error) {
	switch scheme {
	case 0, 1, 4:
		return 4, nil
	case 2, 3:
		return 3, nil
	}
	return 0, fmt.Errorf("unknown intensity scheme %d", scheme)
}

// halves reports whether the scheme halves intensity for peaks far from the bin.
func (p *Params) halves() bool {
	return p.Scheme == 1 || p.Scheme == 3
}

func (p *Params) multiplier(skew float64) float64 {
	if p.halves() && skew >= p.HalfIntensityRadius {
		return 0.5
	}
	return 1.0
}

// Bin returns the intensity bin of a mass.
func Bin(mass float64) int {
	return int(math.Floor((mass + BinWidth/2) / BinWidth))
}

// Index holds binned intensities, levels and noise probabilities for one spectrum.
type Index struct {
	spec   *core.Spectrum
	params *Params

	Thresholds   []float64
	Intensity    []float64 // Coarse binned intensity
	Tight        []float64 // Intensity of peaks within TightRadius of the bin
	Levels       []int
	FirstPeak    []int // First peak touching each bin, -1 for none
	NoiseLogProb []float64

	absent int
}

// New creates an unbuilt index over spec. Peaks must be sorted and ranked.
func New(spec *core.Spectrum) *Index {
	return &Index{spec: spec}
}

// Spectrum returns the indexed spectrum.
func (ix *Index) Spectrum() *core.Spectrum {
	return ix.spec
}

// Params returns the parameters of the last build, or nil.
func (ix *Index) Params() *Params {
	return ix.params
}

// Built reports whether binned arrays are available.
func (ix *Index) Built() bool {
	return ix.Thresholds != nil
}

// BinCount returns the number of intensity bins.
func (ix *Index) BinCount() int {
	return len(ix.Levels)
}

// AbsentLevel returns the level of a bin with no intensity.
func (ix *Index) AbsentLevel() int {
	return ix.absent
}

// Build computes thresholds, binned intensities, levels and noise probabilities.
// It is a no-op when already built (unless force is set), when p is nil, or when
// the spectrum has no peaks.
func (ix *Index) Build(p *Params, force bool) error {
	if ix.Built() && !force {
		return nil
	}
	if p == nil {
		return nil
	}
	levels, err := LevelCount(p.Scheme)
	if err != nil {
		return err
	}
	ix.params = p
	ix.absent = levels - 1
	if len(ix.spec.Peaks) == 0 {
		return nil
	}

	for _, m := range []float64{ix.spec.PrecursorMZ, ix.spec.ParentMass} {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return fmt.Errorf("cannot index spectrum with precursor mass %g", m)
		}
	}

	thresholds, err := IntensityLevelThresholds(ix.spec, p.Scheme)
	if err != nil {
		return err
	}

	binCount := int((max(ix.referenceMZ(), 0)*3 + 2*core.ProtonMass + 1.0) / BinWidth)
	binCount = min(binCount, maxBinCount)
	ix.Intensity = make([]float64, binCount)
	ix.Tight = make([]float64, binCount)
	ix.Levels = make([]int, binCount)
	ix.FirstPeak = make([]int, binCount)
	for i := range ix.FirstPeak {
		ix.FirstPeak[i] = -1
	}

	for pi, peak := range ix.spec.Peaks {
		bin := Bin(peak.Mass)
		for near := bin - spreadBins; near <= bin+spreadBins; near++ {
			if near < 0 || near >= binCount {
				continue
			}
			skew := math.Abs(peak.Mass - float64(near)*BinWidth)
			if skew > p.IntensityRadius {
				continue
			}
			ix.Intensity[near] += peak.Intensity * p.multiplier(skew)
			if skew < TightRadius {
				ix.Tight[near] += peak.Intensity
			}
			if ix.FirstPeak[near] < 0 {
				ix.FirstPeak[near] = pi
			}
		}
	}

	ix.Thresholds = thresholds
	counts := make([]int, len(thresholds))
	for bin, intensity := range ix.Intensity {
		level := ix.LevelForIntensity(intensity)
		ix.Levels[bin] = level
		counts[level]++
	}

	ix.NoiseLogProb = make([]float64, len(thresholds))
	for level, count := range counts {
		ix.NoiseLogProb[level] = math.Log(float64(count+1) / float64(binCount))
	}
	return nil
}

// referenceMZ is the precursor m/z used to size the bin arrays.
func (ix *Index) referenceMZ() float64 {
	if ix.spec.PrecursorMZ > 0 {
		return ix.spec.PrecursorMZ
	}
	return ix.spec.ParentMass
}

// LevelForIntensity returns the first level whose threshold the intensity exceeds.
func (ix *Index) LevelForIntensity(intensity float64) int {
	for level, threshold := range ix.Thresholds {
		if intensity > threshold {
			return level
		}
	}
	return 0
}

// InRange reports whether mass falls on the bin scale of a built index.
func (ix *Index) InRange(mass float64) bool {
	bin := Bin(mass)
	return bin >= 0 && bin < len(ix.Levels)
}

// LookupLevel returns the binned intensity level at mass without claiming peaks.
func (ix *Index) LookupLevel(mass float64) int {
	bin := Bin(mass)
	if bin < 0 || bin >= len(ix.Levels) {
		return ix.absent
	}
	return ix.Levels[bin]
}

// TightAt returns the tight binned intensity at mass, or 0 off the scale.
func (ix *Index) TightAt(mass float64) float64 {
	bin := Bin(mass)
	if bin < 0 || bin >= len(ix.Tight) {
		return 0
	}
	return ix.Tight[bin]
}

// IntensityLevelThresholds computes the descending level thresholds of a spectrum.
// The last threshold is always -1 so every intensity maps to some level.
func IntensityLevelThresholds(spec *core.Spectrum, scheme int) ([]float64, error) {
	n := len(spec.Peaks)
	if n == 0 {
		return nil, core.ErrNoPeaks
	}

	intensities := make([]float64, n)
	for i, p := range spec.Peaks {
		intensities[i] = p.Intensity
	}
	total := floats.Sum(intensities)

	var weakRank int
	switch scheme {
	case 0, 1, 2, 3:
		weakRank = int(spec.ParentMass / cutoffPerMass)
		if n-maxWeakPeaks > weakRank {
			weakRank = n - maxWeakPeaks
		}
	case 4:
		weakRank = n / 3
		if weakRank > maxWeakPeaks {
			weakRank = maxWeakPeaks
		}
	default:
		return nil, fmt.Errorf("unknown intensity scheme %d", scheme)
	}

	var weak []float64
	strong := -1.0
	for _, p := range spec.Peaks {
		if p.Rank >= weakRank {
			weak = append(weak, p.Intensity)
			continue
		}
		if strong < 0 || p.Intensity < strong {
			strong = p.Intensity
		}
	}
	if strong < 0 {
		strong = floats.Max(intensities)
	}

	grass := total / float64(2*n)
	if len(weak) > 0 {
		sort.Float64s(weak)
		grass = weak[len(weak)/2]
	}

	switch scheme {
	case 0, 1:
		return []float64{strong, math.Min(strong*0.5, grass*2), 0, -1}, nil
	case 2, 3:
		return []float64{strong, 0, -1}, nil
	default:
		return []float64{grass * 10, grass * 2, grass * 0.1, -1}, nil
	}
}

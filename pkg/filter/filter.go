// Package filter provides peak preprocessing applied before scoring
package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/peptag/pkg/core"
)

// Window filter defaults
const (
	DefaultWindowWidth = 50.0
	DefaultWindowPeaks = 6
)

// Config holds filtering configuration
type Config struct {
	WindowWidth     float64  // Window width in Da for the local filter (0 = disabled)
	WindowPeaks     int      // Peaks kept per window
	TopN            int      // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64  // Keep only peaks above this % of base peak (0 = no cutoff)
	IonTypes        []string // Keep only annotated peaks of these ion kinds, e.g. "y" or "b-H2O" (nil = all)
}

// DefaultConfig returns the window filter used ahead of tagging.
func DefaultConfig() *Config {
	return &Config{
		WindowWidth: DefaultWindowWidth,
		WindowPeaks: DefaultWindowPeaks,
	}
}

// Apply applies all configured filters to a spectrum, then re-sorts and ranks its peaks.
func (c *Config) Apply(spec *core.Spectrum) error {
	RemoveZeroIntensityPeaks(spec)
	spec.SortPeaks()

	if len(c.IonTypes) > 0 {
		if err := c.filterByIonType(spec); err != nil {
			return err
		}
	}

	if c.IntensityCutoff > 0 {
		c.filterByIntensity(spec)
	}

	if c.WindowWidth > 0 {
		if c.WindowPeaks <= 0 {
			return fmt.Errorf("window filter needs a positive peak count, got %d", c.WindowPeaks)
		}
		c.filterByWindow(spec)
	}

	if c.TopN > 0 {
		c.filterTopN(spec)
	}

	spec.SortPeaks()
	spec.RankPeaks()

	if len(spec.Peaks) == 0 {
		return core.ErrNoPeaks
	}
	return nil
}

// filterByIonType keeps only peaks whose annotation parses to an allowed ion kind.
func (c *Config) filterByIonType(spec *core.Spectrum) error {
	kinds, err := ParseIonKinds(c.IonTypes)
	if err != nil {
		return err
	}

	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Annotation == "" {
			continue
		}
		ann, err := ParseIonAnnotation(peak.Annotation)
		if err != nil {
			continue
		}
		if kinds[ann.Kind] {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
	return nil
}

// ParseIonKinds resolves a list of ion kind names.
func ParseIonKinds(names []string) (map[core.IonKind]bool, error) {
	kinds := make(map[core.IonKind]bool, len(names))
	for _, name := range names {
		k, err := core.ParseIonKind(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		kinds[k] = true
	}
	return kinds, nil
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(spec *core.Spectrum) {
	if len(spec.Peaks) == 0 {
		return
	}

	maxIntensity := 0.0
	for _, peak := range spec.Peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}

	threshold := (c.IntensityCutoff / 100.0) * maxIntensity

	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}

	spec.Peaks = filtered
}

// filterByWindow keeps a peak when it is among the WindowPeaks most intense
// peaks within WindowWidth/2 on either side. Peaks must be sorted by mass.
func (c *Config) filterByWindow(spec *core.Spectrum) {
	half := c.WindowWidth / 2
	neighbors := make([]float64, 0, 32)

	var filtered []core.Peak
	start := 0
	for _, peak := range spec.Peaks {
		for start < len(spec.Peaks) && spec.Peaks[start].Mass <= peak.Mass-half {
			start++
		}
		neighbors = neighbors[:0]
		for j := start; j < len(spec.Peaks) && spec.Peaks[j].Mass <= peak.Mass+half; j++ {
			neighbors = append(neighbors, spec.Peaks[j].Intensity)
		}
		if len(neighbors) < c.WindowPeaks {
			filtered = append(filtered, peak)
			continue
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(neighbors)))
		if peak.Intensity >= neighbors[c.WindowPeaks-1] {
			filtered = append(filtered, peak)
		}
	}

	spec.Peaks = filtered
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(spec *core.Spectrum) {
	if len(spec.Peaks) <= c.TopN {
		return
	}

	peaks := make([]core.Peak, len(spec.Peaks))
	copy(peaks, spec.Peaks)

	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})

	spec.Peaks = peaks[:c.TopN]
}

// IonAnnotation is a parsed fragment annotation such as "y3" or "b2^2".
type IonAnnotation struct {
	Kind     core.IonKind
	Position int
	Charge   int
}

var annotationPattern = regexp.MustCompile(`^([aby])(\d+)(-H2O|-NH3|\+i)?(?:\^(\d+))?`)

// ParseIonAnnotation parses annotations like "y3", "b2^2", "y10-H2O" or "b4+i".
func ParseIonAnnotation(annotation string) (*IonAnnotation, error) {
	matches := annotationPattern.FindStringSubmatch(annotation)
	if matches == nil {
		return nil, fmt.Errorf("invalid ion annotation format: %s", annotation)
	}

	info := &IonAnnotation{Charge: 1}

	pos, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, fmt.Errorf("invalid position in annotation %s: %w", annotation, err)
	}
	info.Position = pos

	if matches[4] != "" {
		info.Charge, err = strconv.Atoi(matches[4])
		if err != nil {
			return nil, fmt.Errorf("invalid charge in annotation %s: %w", annotation, err)
		}
	}

	prefix := matches[1] == "b"
	switch {
	case matches[1] == "a":
		info.Kind = core.IonA
	case matches[3] == "-H2O":
		info.Kind = pick(prefix, core.IonBH2O, core.IonYH2O)
	case matches[3] == "-NH3":
		info.Kind = pick(prefix, core.IonBNH3, core.IonYNH3)
	case matches[3] == "+i":
		info.Kind = pick(prefix, core.IonBIsotope, core.IonYIsotope)
	case info.Charge == 2:
		info.Kind = pick(prefix, core.IonB2, core.IonY2)
	default:
		info.Kind = pick(prefix, core.IonB, core.IonY)
	}

	return info, nil
}

func pick(prefix bool, b, y core.IonKind) core.IonKind {
	if prefix {
		return b
	}
	return y
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(spec *core.Spectrum) {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}

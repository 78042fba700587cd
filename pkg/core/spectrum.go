// Package core provides the spectrum, peptide and modification models shared by
// the PepTag scoring packages.
package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrNoPeaks is returned when a spectrum has nothing left to score.
var ErrNoPeaks = errors.New("spectrum has no peaks")

// Spectrum represents a single fragmentation spectrum with its precursor hypothesis.
type Spectrum struct {
	Title       string
	Sequence    string // Annotation, if the spectrum is identified
	Charge      int    // Precursor charge; 0 when unknown
	FileCharges []int  // Charges reported by the input file
	PrecursorMZ float64
	ParentMass  float64 // Singly protonated (M+H) mass for Charge
	Peaks       []Peak

	// Optional metadata
	RetentionTime   *float64
	CollisionEnergy *float64
	Modifications   []Modification
	ScanNumber      int

	// Internal tracking
	SourceFile   string
	SourceFormat string // mgf, msp
}

// Peak represents a fragment mass and intensity.
type Peak struct {
	Mass       float64
	Intensity  float64
	Rank       int    // Intensity rank, 0 = most intense
	Annotation string // Ion annotation (e.g., "y3", "b2^2")
}

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based residue index; -1 for N-term, len(seq) for C-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Phospho")
}

// ValidationError represents an error found during spectrum validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum can be scored.
func (s *Spectrum) Validate() error {
	var errs []string

	if s.Charge < 0 || s.Charge > MaxCharge {
		errs = append(errs, fmt.Sprintf("charge must be between 0 and %d", MaxCharge))
	}
	if s.PrecursorMZ <= 0 && s.ParentMass <= 0 {
		errs = append(errs, "precursor m/z must be positive")
	}
	if !finite(s.PrecursorMZ) || s.PrecursorMZ > MaxPrecursorMZ {
		errs = append(errs, fmt.Sprintf("precursor m/z must be finite and at most %g", MaxPrecursorMZ))
	}
	if !finite(s.ParentMass) || s.ParentMass > MaxParentMass {
		errs = append(errs, fmt.Sprintf("parent mass must be finite and at most %g", MaxParentMass))
	}
	if len(s.Peaks) == 0 {
		errs = append(errs, "at least one peak is required")
	}
	if len(s.Modifications) > MaxPeptideMods {
		errs = append(errs, fmt.Sprintf("at most %d modifications are supported", MaxPeptideMods))
	}

	for i, peak := range s.Peaks {
		if !finite(peak.Mass) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid mass", i))
		}
		if !finite(peak.Intensity) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.Mass <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d mass must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by mass")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ArePeaksSorted checks if peaks are sorted by mass in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].Mass < s.Peaks[i-1].Mass {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by mass in ascending order.
func (s *Spectrum) SortPeaks() {
	sort.SliceStable(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].Mass < s.Peaks[j].Mass
	})
}

// RankPeaks assigns intensity ranks; ties keep mass order.
func (s *Spectrum) RankPeaks() {
	order := make([]int, len(s.Peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.Peaks[order[a]].Intensity > s.Peaks[order[b]].Intensity
	})
	for rank, idx := range order {
		s.Peaks[idx].Rank = rank
	}
}

// TotalIntensity returns the summed intensity of all peaks.
func (s *Spectrum) TotalIntensity() float64 {
	total := 0.0
	for _, p := range s.Peaks {
		total += p.Intensity
	}
	return total
}

// SetCharge applies a charge hypothesis and derives the parent mass from the precursor m/z.
func (s *Spectrum) SetCharge(charge int) {
	s.Charge = charge
	if charge > 0 && s.PrecursorMZ > 0 {
		s.ParentMass = ParentMassFromMZ(s.PrecursorMZ, charge)
	}
}

// Clone returns a deep copy that can be scored independently.
func (s *Spectrum) Clone() *Spectrum {
	c := *s
	c.Peaks = append([]Peak(nil), s.Peaks...)
	c.FileCharges = append([]int(nil), s.FileCharges...)
	c.Modifications = append([]Modification(nil), s.Modifications...)
	return &c
}

// ModString returns a string representation of modifications in format "mass@pos;mass@pos;..."
func (s *Spectrum) ModString() string {
	if len(s.Modifications) == 0 {
		return ""
	}

	var parts []string
	for _, mod := range s.Modifications {
		parts = append(parts, fmt.Sprintf("%.6f@%d", mod.Mass, mod.Position))
	}
	return strings.Join(parts, ";")
}

// Name returns the spectrum title, or "Sequence/Charge" when untitled.
func (s *Spectrum) Name() string {
	if s.Title != "" {
		return s.Title
	}
	return fmt.Sprintf("%s/%d", s.Sequence, s.Charge)
}

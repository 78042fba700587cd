// Package pmc corrects the parent mass and charge of a spectrum by scoring
// candidate masses on the strength of their b/y self-convolution.
package pmc

import (
	"errors"
	"fmt"
	"math"

	"github.com/ChrisMcGann/peptag/pkg/classifier"
	"github.com/ChrisMcGann/peptag/pkg/convolution"
	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/logger"
	"github.com/ChrisMcGann/peptag/pkg/modelstore"
	"github.com/ChrisMcGann/peptag/pkg/peakindex"
)

const (
	// CandidateStep is the spacing of candidate parent masses.
	CandidateStep = 0.1

	// IsotopeShift is the spacing of the isotope candidate ranges.
	IsotopeShift = 1.0

	// DefaultParentMassPPM is the default candidate radius.
	DefaultParentMassPPM = 2000.0

	// DefaultRunnerUpSeparation is the default minimum distance between best and runner-up.
	DefaultRunnerUpSeparation = 0.4

	phosSearchRadius = 0.5
	stepEpsilon      = 1e-6
)

var (
	singlyOffsets = []float64{-18, -17, 0, 1, -1, 0.5, -16.5}
	doublyOffsets = []float64{0.4, 1.2, -17.5, -1, 4}
)

// Config controls candidate enumeration and hypothesis retention.
type Config struct {
	ParentMassPPM      float64
	RunnerUpSeparation float64
	RetainRunnerUp     bool
	MultiCharge        bool // Correct charge even when the file reports one
	Phospho            bool
}

// DefaultConfig returns the standard correction settings.
func DefaultConfig() *Config {
	return &Config{
		ParentMassPPM:      DefaultParentMassPPM,
		RunnerUpSeparation: DefaultRunnerUpSeparation,
		RetainRunnerUp:     true,
	}
}

// Candidate is one (charge, parent mass) hypothesis.
type Candidate struct {
	Charge    int
	Mass      float64 // M+H
	Convolve  []float64
	Convolve2 []float64 // Singly against doubly charged peaks; charge > 1 only
	Features  []float64
	Score     float64

	phosIntensity float64 // Parent-loss intensity fraction, phospho mode only
	phosSkew      float64
}

// Result holds the candidates of one charge and the retained hypotheses.
type Result struct {
	Charge     int
	CoreMass   float64
	Candidates []*Candidate
	Best       *Candidate
	RunnerUp   *Candidate // nil when none qualifies or retention is off
}

// Corrector runs parent mass and charge correction against a model store.
type Corrector struct {
	store *modelstore.Store
	cfg   *Config
	log   *logger.Logger
}

// New creates a corrector. A nil cfg uses DefaultConfig.
func New(store *modelstore.Store, cfg *Config, log *logger.Logger) *Corrector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Corrector{store: store, cfg: cfg, log: log}
}

// CoreMass is the M+H mass implied by a precursor m/z at charge.
func CoreMass(mz float64, charge int) float64 {
	return mz*float64(charge) - core.ProtonMass*float64(charge-1)
}

// EnumerateCandidates lists candidate masses within ppm of coreMass, stepping
// down from the core and then up from it. When the radius is under a dalton,
// the neighbouring isotope masses are searched too, stopping short of the core range.
func EnumerateCandidates(coreMass, ppm float64) []float64 {
	r := coreMass * ppm / 1e6
	masses := walk(nil, coreMass, coreMass-r, coreMass+r)
	if r < IsotopeShift {
		gap := CandidateStep / 2
		below := coreMass - IsotopeShift
		masses = walk(masses, below, below-r, math.Min(below+r, coreMass-r-gap))
		above := coreMass + IsotopeShift
		masses = walk(masses, above, math.Max(above-r, coreMass+r+gap), above+r)
	}
	return masses
}

// walk appends the grid points of [lo, hi] centred on center, downward first.
func walk(out []float64, center, lo, hi float64) []float64 {
	for k := 0; ; k++ {
		m := center - float64(k)*CandidateStep
		if m < lo-stepEpsilon {
			break
		}
		if m <= hi+stepEpsilon {
			out = append(out, m)
		}
	}
	for k := 1; ; k++ {
		m := center + float64(k)*CandidateStep
		if m > hi+stepEpsilon {
			break
		}
		if m >= lo-stepEpsilon {
			out = append(out, m)
		}
	}
	return out
}

// precursorMZ returns the spectrum's m/z, deriving it from the parent mass when unset.
func precursorMZ(spec *core.Spectrum) float64 {
	if spec.PrecursorMZ > 0 {
		return spec.PrecursorMZ
	}
	return core.MZFromParentMass(spec.ParentMass, max(1, spec.Charge))
}

// Correct scores every candidate mass of the spectrum at charge. Without a
// model for the charge the core mass is taken as best with score 1.
func (c *Corrector) Correct(ix *peakindex.Index, charge int) (*Result, error) {
	if charge < 1 {
		return nil, fmt.Errorf("charge %d out of range", charge)
	}
	spec := ix.Spectrum()
	if len(spec.Peaks) == 0 {
		return nil, core.ErrNoPeaks
	}

	res := &Result{Charge: charge, CoreMass: CoreMass(precursorMZ(spec), charge)}
	engine := convolution.New(ix, res.CoreMass)
	for _, mass := range EnumerateCandidates(res.CoreMass, c.cfg.ParentMassPPM) {
		cand := &Candidate{Charge: charge, Mass: mass}
		c.convolve(engine, cand, res.CoreMass)
		if c.cfg.Phospho {
			c.characterizePhosphate(spec, cand)
		}
		cand.Features = c.features(cand, res.CoreMass)
		res.Candidates = append(res.Candidates, cand)
	}

	model, err := c.store.PMCModel(charge)
	if errors.Is(err, modelstore.ErrMissingModel) {
		res.Best = res.Candidates[0]
		res.Best.Score = 1.0
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	c.choose(res, model)
	return res, nil
}

func (c *Corrector) convolve(engine *convolution.Engine, cand *Candidate, coreMass float64) {
	shift := cand.Mass - coreMass
	cand.Convolve = make([]float64, len(singlyOffsets))
	for i, off := range singlyOffsets {
		cand.Convolve[i] = engine.Convolve(off+shift, false)
	}
	if cand.Charge < 2 {
		return
	}
	cand.Convolve2 = make([]float64, len(doublyOffsets))
	for i, off := range c.doublyOffsets() {
		cand.Convolve2[i] = engine.Convolve(off+shift, true)
	}
}

// doublyOffsets swaps in the offsets that separate phosphopeptides better.
func (c *Corrector) doublyOffsets() []float64 {
	if !c.cfg.Phospho {
		return doublyOffsets
	}
	offsets := append([]float64(nil), doublyOffsets...)
	offsets[0] = 0.2
	offsets[2] = -18.0
	return offsets
}

// characterizePhosphate finds the most intense peak near each parent-loss mass
// of the candidate and records its intensity fraction and skew.
func (c *Corrector) characterizePhosphate(spec *core.Spectrum, cand *Candidate) {
	z := float64(cand.Charge)
	mz := (cand.Mass + (z-1)*core.ProtonMass) / z
	total := spec.TotalIntensity()
	cand.phosIntensity, cand.phosSkew = 0, 0
	for _, loss := range []float64{core.PhosphateLoss, core.PhosphateLoss + core.WaterMass} {
		expected := mz - loss/z
		best, intensity, skew := -1, 0.0, 0.0
		for i, p := range spec.Peaks {
			diff := math.Abs(p.Mass - expected)
			if diff > phosSearchRadius {
				continue
			}
			if p.Intensity > intensity {
				best, intensity, skew = i, p.Intensity, diff
			}
		}
		if best >= 0 && total > 0 {
			cand.phosIntensity += intensity / total
			cand.phosSkew += skew
		}
	}
}

// features builds the classifier vector of a candidate.
func (c *Corrector) features(cand *Candidate, coreMass float64) []float64 {
	var f []float64
	delta := coreMass - cand.Mass
	if cand.Charge == 1 {
		f = append(f, math.Abs(delta))
	} else {
		f = append(f, delta, delta*delta)
	}

	f = appendRelative(f, cand.Convolve, 4)
	if cand.Charge > 1 {
		f = appendRelative(f, cand.Convolve2, 3)
	}
	if c.cfg.Phospho {
		f = append(f, cand.phosIntensity, cand.phosSkew)
	}
	return f
}

// appendRelative appends the first n values, each followed by its ratio to the mean of all values.
func appendRelative(f, values []float64, n int) []float64 {
	avg := 0.0
	for _, v := range values {
		avg += v
	}
	avg = math.Max(convolution.Floor, avg/float64(len(values)))
	for _, v := range values[:n] {
		f = append(f, v, v/avg)
	}
	return f
}

// choose scores the candidates and keeps the best and, optionally, the best
// candidate far enough from it.
func (c *Corrector) choose(res *Result, model classifier.Model) {
	for _, cand := range res.Candidates {
		cand.Score = model.Score(cand.Features)
		if res.Best == nil || cand.Score > res.Best.Score {
			res.Best = cand
		}
	}
	if !c.cfg.RetainRunnerUp {
		return
	}
	for _, cand := range res.Candidates {
		if math.Abs(cand.Mass-res.Best.Mass) <= c.cfg.RunnerUpSeparation {
			continue
		}
		if res.RunnerUp == nil || cand.Score > res.RunnerUp.Score {
			res.RunnerUp = cand
		}
	}
}

package pmc

import (
	"errors"
	"math"
	"sort"

	"github.com/ChrisMcGann/peptag/pkg/convolution"
	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/modelstore"
	"github.com/ChrisMcGann/peptag/pkg/peakindex"
)

const (
	// Charge1Threshold is the CC1 score above which a spectrum is singly charged.
	Charge1Threshold = 1.0

	// TweakDeadband is the CC2 margin beyond which one of charges 2 and 3 is dropped.
	TweakDeadband = 0.5

	// MaxTweaks is the number of hypothesis slots: best and runner-up for
	// charges 1, 2, 3 and 4 or more.
	MaxTweaks = 8

	phosPeakFloor = 0.1
)

// Tweak is one (charge, parent mass) hypothesis passed on to scoring.
type Tweak struct {
	Charge     int // 0 for an unused slot
	ParentMass float64
}

// Tweaks holds best and runner-up hypotheses per charge at slot min(3, z-1)*2.
type Tweaks [MaxTweaks]Tweak

// Active returns the used slots in order.
func (t *Tweaks) Active() []Tweak {
	var out []Tweak
	for _, tw := range t {
		if tw.Charge > 0 {
			out = append(out, tw)
		}
	}
	return out
}

func (t *Tweaks) put(res *Result) {
	slot := min(3, res.Charge-1) * 2
	t[slot] = Tweak{Charge: res.Charge, ParentMass: res.Best.Mass}
	if res.RunnerUp != nil {
		t[slot+1] = Tweak{Charge: res.Charge, ParentMass: res.RunnerUp.Mass}
	}
}

func (t *Tweaks) clear(slots ...int) {
	for _, s := range slots {
		t[s] = Tweak{}
	}
}

// Decision is the outcome of charge correction.
type Decision struct {
	Charge int
	Score1 float64 // Charge 1 versus the rest
	Score2 float64 // Charge 2 versus 3
	Best   [3]*Result
}

// intensitySplit sums peak intensity and counts below mz, up to 2 mz and above.
type intensitySplit struct {
	total           float64
	low, med, high  float64
	lowN, medN, hiN float64
	n               float64
}

func splitAt(spec *core.Spectrum, mz float64) intensitySplit {
	var s intensitySplit
	for _, p := range spec.Peaks {
		s.total += p.Intensity
		switch {
		case p.Mass <= mz:
			s.low += p.Intensity
			s.lowN++
		case p.Mass <= 2*mz:
			s.med += p.Intensity
			s.medN++
		default:
			s.high += p.Intensity
			s.hiN++
		}
	}
	s.n = float64(len(spec.Peaks))
	return s
}

// pairFeatures appends the share and difference of a against its competitor.
func pairFeatures(f []float64, a, competitor float64) []float64 {
	return append(f, a/math.Max(convolution.Floor, a+competitor), a-competitor)
}

// CC1Features compares the charge 1 interpretation against charges 2 and 3.
func CC1Features(spec *core.Spectrum, r1, r2, r3 *Result) []float64 {
	s := splitAt(spec, r1.Best.Mass)
	f := []float64{
		(s.med + s.high) / math.Max(0.001, s.total),
		(s.medN + s.hiN) / s.n,
	}
	for i := 0; i < 4; i++ {
		f = pairFeatures(f, r1.Best.Convolve[i], math.Max(r2.Best.Convolve[i], r3.Best.Convolve[i]))
	}
	return f
}

// CC2Features compares the charge 2 interpretation against charge 3. The
// phospho variant adds the relative strength of the parent-loss peaks.
func CC2Features(spec *core.Spectrum, r2, r3 *Result, phospho bool) []float64 {
	b2, b3 := r2.Best, r3.Best
	s := splitAt(spec, b2.Mass/2)
	total := math.Max(convolution.Floor, s.total)
	f := []float64{
		(s.med + s.high) / total,
		(s.medN + s.hiN) / s.n,
		s.med / total,
		s.medN / s.n,
		s.low / total,
		s.lowN / s.n,
		math.Abs(s.med+s.high-s.low) / total,
	}
	for i := 0; i < 4; i++ {
		f = pairFeatures(f, b2.Convolve[i], b3.Convolve[i])
	}
	for i := 0; i < 3; i++ {
		f = pairFeatures(f, b2.Convolve2[i], b3.Convolve2[i])
	}
	f = append(f, b2.Mass/1000)
	if phospho {
		p2 := math.Max(phosPeakFloor, b2.phosIntensity)
		p3 := math.Max(phosPeakFloor, b3.phosIntensity)
		f = append(f, p2/(p2+p3))
	}
	return f
}

// correctAll runs correction at charges 1, 2 and 3.
func (c *Corrector) correctAll(ix *peakindex.Index) ([3]*Result, error) {
	var out [3]*Result
	for z := 1; z <= 3; z++ {
		res, err := c.Correct(ix, z)
		if err != nil {
			return out, err
		}
		out[z-1] = res
	}
	return out, nil
}

// score applies a charge model; a missing model scores 0.
func (c *Corrector) score(which int, phospho bool, features []float64) (float64, bool, error) {
	model, err := c.store.CCModel(which, phospho)
	if errors.Is(err, modelstore.ErrMissingModel) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return model.Score(features), true, nil
}

// ChargeCorrect picks the most likely charge of an indexed spectrum from its
// parent mass corrections at charges 1, 2 and 3. Without a charge 2 versus 3
// model the decision defaults to charge 2 unless the spectrum is singly charged.
func (c *Corrector) ChargeCorrect(ix *peakindex.Index) (*Decision, error) {
	results, err := c.correctAll(ix)
	if err != nil {
		return nil, err
	}
	spec := ix.Spectrum()
	d := &Decision{Best: results}

	d.Score1, _, err = c.score(1, false, CC1Features(spec, results[0], results[1], results[2]))
	if err != nil {
		return nil, err
	}
	var have2 bool
	d.Score2, have2, err = c.score(2, false, CC2Features(spec, results[1], results[2], false))
	if err != nil {
		return nil, err
	}

	switch {
	case d.Score1 > Charge1Threshold:
		d.Charge = 1
	case d.Score2 > 0 || !have2:
		d.Charge = 2
	default:
		d.Charge = 3
	}
	return d, nil
}

// Tweak produces the parent mass and charge hypotheses of a spectrum. Without
// a PRM network the file values are trusted. When the file reports charges and
// multi-charge mode is off, each reported charge is corrected for mass only.
// Otherwise charges 1 to 3 are corrected and pruned by the charge models.
func (c *Corrector) Tweak(spec *core.Spectrum) (Tweaks, error) {
	var tweaks Tweaks
	if len(spec.Peaks) == 0 {
		return tweaks, nil
	}
	mz := precursorMZ(spec)

	net, err := c.store.PRMNetwork(2)
	if errors.Is(err, modelstore.ErrMissingModel) {
		charge, pm := spec.Charge, spec.ParentMass
		if charge == 0 {
			charge = 2
		}
		if spec.Charge == 0 || pm <= 0 {
			pm = CoreMass(mz, charge)
		}
		tweaks[min(3, charge-1)*2] = Tweak{Charge: charge, ParentMass: pm}
		return tweaks, nil
	}
	if err != nil {
		return tweaks, err
	}

	work := spec.Clone()
	work.PrecursorMZ = mz
	work.SetCharge(2)
	ix := peakindex.New(work)
	if err := ix.Build(net.IndexParams(), false); err != nil {
		return tweaks, err
	}

	if !c.cfg.MultiCharge && len(spec.FileCharges) > 0 {
		charges := append([]int(nil), spec.FileCharges...)
		sort.Ints(charges)
		for _, z := range charges {
			if z < 1 {
				continue
			}
			res, err := c.Correct(ix, z)
			if err != nil {
				return tweaks, err
			}
			tweaks.put(res)
		}
		return tweaks, nil
	}

	results, err := c.correctAll(ix)
	if err != nil {
		return tweaks, err
	}
	for _, res := range results {
		tweaks.put(res)
	}

	score1, _, err := c.score(1, false, CC1Features(work, results[0], results[1], results[2]))
	if err != nil {
		return tweaks, err
	}
	if score1 > 0 {
		tweaks.clear(2, 3, 4, 5)
		return tweaks, nil
	}
	tweaks.clear(0, 1)

	score2, _, err := c.score(2, c.cfg.Phospho, CC2Features(work, results[1], results[2], c.cfg.Phospho))
	if err != nil {
		return tweaks, err
	}
	if score2 >= TweakDeadband {
		tweaks.clear(4, 5)
	}
	if score2 <= -TweakDeadband {
		tweaks.clear(2, 3)
	}
	c.log.Debug("tweaked spectrum", "title", spec.Title, "cc1", score1, "cc2", score2, "hypotheses", len(tweaks.Active()))
	return tweaks, nil
}

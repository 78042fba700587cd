package pmc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/ionscore"
	"github.com/ChrisMcGann/peptag/pkg/logger"
	"github.com/ChrisMcGann/peptag/pkg/modelstore"
	"github.com/ChrisMcGann/peptag/pkg/peakindex"
)

var params = &peakindex.Params{Scheme: 0, IntensityRadius: 0.5, HalfIntensityRadius: 0.25}

// featureModel scores a candidate by a single feature.
type featureModel int

func (m featureModel) Score(f []float64) float64 { return f[m] }
func (m featureModel) Dims() int                 { return int(m) + 1 }

// constModel scores every vector the same.
type constModel float64

func (m constModel) Score([]float64) float64 { return float64(m) }
func (m constModel) Dims() int               { return 0 }

func spectrum(mz float64, charge int, pairs ...float64) *core.Spectrum {
	spec := &core.Spectrum{Title: "test", PrecursorMZ: mz}
	spec.SetCharge(charge)
	for i := 0; i+1 < len(pairs); i += 2 {
		spec.Peaks = append(spec.Peaks, core.Peak{Mass: pairs[i], Intensity: pairs[i+1]})
	}
	spec.SortPeaks()
	spec.RankPeaks()
	return spec
}

func indexed(t *testing.T, spec *core.Spectrum) *peakindex.Index {
	t.Helper()
	ix := peakindex.New(spec)
	require.NoError(t, ix.Build(params, false))
	return ix
}

// pairedSpectrum holds complementary b/y peaks of a peptide of parent mass
// 1500 reported at a precursor m/z 0.6 Da too high.
func pairedSpectrum() *core.Spectrum {
	const truePM = 1500.0
	var pairs []float64
	for _, b := range []float64{300, 450, 600, 750} {
		pairs = append(pairs, b, 100, truePM+core.ProtonMass-b, 100)
	}
	return spectrum(core.MZFromParentMass(truePM+0.6, 2), 2, pairs...)
}

// halfMassSpectrum holds a strong peak at half the 2000 Da parent mass with
// two weaker peaks either side of it, reported at charge 2.
func halfMassSpectrum() *core.Spectrum {
	mz := core.MZFromParentMass(2000, 2)
	return spectrum(mz, 2, mz-1, 20, mz, 100, mz+1, 20)
}

func newStore(t *testing.T) *modelstore.Store {
	t.Helper()
	s, err := modelstore.New()
	require.NoError(t, err)
	return s
}

func TestCoreMass(t *testing.T) {
	assert.InDelta(t, 1000.0, CoreMass(1000, 1), 1e-9)
	assert.InDelta(t, 2000.0, CoreMass(core.MZFromParentMass(2000, 2), 2), 1e-9)
	assert.InDelta(t, 2000.0, CoreMass(core.MZFromParentMass(2000, 3), 3), 1e-9)
}

func TestEnumerateCandidates(t *testing.T) {
	tests := []struct {
		name string
		core float64
		ppm  float64
		want int
	}{
		{"wide radius", 1000, 2000, 41},
		{"radius under a dalton adds isotopes", 1000, 500, 31},
		{"zero radius", 1000, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masses := EnumerateCandidates(tt.core, tt.ppm)
			require.Len(t, masses, tt.want)
			assert.Equal(t, tt.core, masses[0])

			r := tt.core * tt.ppm / 1e6
			for i, m := range masses {
				near := math.Abs(m-tt.core) <= r+stepEpsilon
				if r < IsotopeShift {
					near = near ||
						math.Abs(m-tt.core+IsotopeShift) <= r+stepEpsilon ||
						math.Abs(m-tt.core-IsotopeShift) <= r+stepEpsilon
				}
				assert.True(t, near, "candidate %f outside the search ranges", m)
				for _, other := range masses[:i] {
					assert.Greater(t, math.Abs(m-other), CandidateStep/2, "duplicate candidate %f", m)
				}
			}
		})
	}
}

func TestCorrectWithoutModel(t *testing.T) {
	spec := pairedSpectrum()
	c := New(newStore(t), nil, logger.Nop())

	res, err := c.Correct(indexed(t, spec), 2)
	require.NoError(t, err)
	assert.Same(t, res.Candidates[0], res.Best)
	assert.Equal(t, 1.0, res.Best.Score)
	assert.InDelta(t, 1500.6, res.Best.Mass, 1e-6)
	assert.Nil(t, res.RunnerUp)
}

func TestCorrectErrors(t *testing.T) {
	c := New(newStore(t), nil, logger.Nop())

	_, err := c.Correct(indexed(t, pairedSpectrum()), 0)
	assert.Error(t, err)

	empty := spectrum(500, 2)
	_, err = c.Correct(peakindex.New(empty), 2)
	assert.ErrorIs(t, err, core.ErrNoPeaks)
}

func TestCorrectFindsComplementaryMass(t *testing.T) {
	store := newStore(t)
	// Feature 6 is the unshifted singly convolution for charges above 1
	store.SetClassifier(modelstore.PMC2, featureModel(6))

	tests := []struct {
		name     string
		cfg      *Config
		runnerUp bool
	}{
		{"with runner-up", DefaultConfig(), true},
		{"best only", &Config{ParentMassPPM: DefaultParentMassPPM, RunnerUpSeparation: DefaultRunnerUpSeparation}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(store, tt.cfg, logger.Nop())
			res, err := c.Correct(indexed(t, pairedSpectrum()), 2)
			require.NoError(t, err)

			assert.InDelta(t, 1500.0, res.Best.Mass, 0.15)
			assert.Greater(t, res.Best.Score, 0.5)
			for _, cand := range res.Candidates {
				assert.Len(t, cand.Features, 16)
				assert.Len(t, cand.Convolve2, len(doublyOffsets))
			}

			if !tt.runnerUp {
				assert.Nil(t, res.RunnerUp)
				return
			}
			require.NotNil(t, res.RunnerUp)
			assert.Greater(t, math.Abs(res.RunnerUp.Mass-res.Best.Mass), DefaultRunnerUpSeparation)
			assert.Less(t, res.RunnerUp.Score, res.Best.Score)
		})
	}
}

func TestCorrectHalfMassPeak(t *testing.T) {
	tests := []struct {
		name  string
		model bool
	}{
		{"without model", false},
		{"with model", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			if tt.model {
				store.SetClassifier(modelstore.PMC2, featureModel(6))
			}
			c := New(store, nil, logger.Nop())
			res, err := c.Correct(indexed(t, halfMassSpectrum()), 2)
			require.NoError(t, err)

			assert.InDelta(t, 2000.0, res.Best.Mass, 1.0)
			assert.Contains(t, res.Candidates, res.Best)
			if res.RunnerUp != nil {
				assert.Contains(t, res.Candidates, res.RunnerUp)
			}

			prm, err := ionscore.DefaultTagNetwork(2)
			require.NoError(t, err)
			store.SetNetwork(modelstore.PRM2, prm)
			tweaks, err := c.Tweak(halfMassSpectrum())
			require.NoError(t, err)
			require.NotEmpty(t, tweaks.Active())
			assert.Equal(t, 2, tweaks.Active()[0].Charge)
			assert.InDelta(t, 2000.0, tweaks.Active()[0].ParentMass, 1.0)
		})
	}
}

func TestFeatureLengths(t *testing.T) {
	spec := pairedSpectrum()
	ix := indexed(t, spec)

	tests := []struct {
		name    string
		phospho bool
		charge  int
		want    int
	}{
		{"charge 1", false, 1, 9},
		{"charge 2", false, 2, 16},
		{"charge 3 phospho", true, 3, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Phospho = tt.phospho
			c := New(newStore(t), cfg, logger.Nop())
			res, err := c.Correct(ix, tt.charge)
			require.NoError(t, err)
			assert.Len(t, res.Best.Features, tt.want)
		})
	}
}

func TestCharacterizePhosphate(t *testing.T) {
	const pm = 1200.0
	mz := core.MZFromParentMass(pm, 2)
	loss := mz - core.PhosphateLoss/2
	spec := spectrum(mz, 2, 400, 100, loss+0.1, 300, loss-0.3, 50, 800, 50)

	cfg := DefaultConfig()
	cfg.Phospho = true
	c := New(newStore(t), cfg, logger.Nop())
	cand := &Candidate{Charge: 2, Mass: pm}
	c.characterizePhosphate(spec, cand)

	assert.InDelta(t, 0.6, cand.phosIntensity, 1e-9)
	assert.InDelta(t, 0.1, cand.phosSkew, 1e-6)
}

func TestCCFeatures(t *testing.T) {
	spec := pairedSpectrum()
	c := New(newStore(t), nil, logger.Nop())
	results, err := c.correctAll(indexed(t, spec))
	require.NoError(t, err)

	cc1 := CC1Features(spec, results[0], results[1], results[2])
	assert.Len(t, cc1, 10)
	for _, v := range cc1 {
		assert.False(t, math.IsNaN(v))
	}
	assert.Len(t, CC2Features(spec, results[1], results[2], false), 22)
	assert.Len(t, CC2Features(spec, results[1], results[2], true), 23)
}

func TestChargeCorrect(t *testing.T) {
	tests := []struct {
		name string
		cc1  *constModel
		cc2  *constModel
		want int
	}{
		{"singly charged", ptr(2), ptr(-1), 1},
		{"doubly charged", ptr(0.5), ptr(0.3), 2},
		{"triply charged", ptr(0.5), ptr(-0.3), 3},
		{"no charge models", nil, nil, 2},
		{"no charge two model", ptr(-1), nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			if tt.cc1 != nil {
				store.SetClassifier(modelstore.CC1, *tt.cc1)
			}
			if tt.cc2 != nil {
				store.SetClassifier(modelstore.CC2, *tt.cc2)
			}
			c := New(store, nil, logger.Nop())
			d, err := c.ChargeCorrect(indexed(t, pairedSpectrum()))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Charge)
			for z, res := range d.Best {
				assert.Equal(t, z+1, res.Charge)
			}
		})
	}
}

func ptr(v float64) *constModel {
	m := constModel(v)
	return &m
}

func TestTweakWithoutNetwork(t *testing.T) {
	c := New(newStore(t), nil, logger.Nop())

	unknown := spectrum(500.5, 0, 200, 10)
	tweaks, err := c.Tweak(unknown)
	require.NoError(t, err)
	assert.Equal(t, []Tweak{{Charge: 2, ParentMass: CoreMass(500.5, 2)}}, tweaks.Active())

	known := spectrum(500.5, 3, 200, 10)
	tweaks, err = c.Tweak(known)
	require.NoError(t, err)
	assert.Equal(t, []Tweak{{Charge: 3, ParentMass: known.ParentMass}}, tweaks[4:5])
	assert.Len(t, tweaks.Active(), 1)
}

func TestTweak(t *testing.T) {
	prm, err := ionscore.DefaultTagNetwork(2)
	require.NoError(t, err)

	tests := []struct {
		name        string
		fileCharges []int
		multi       bool
		cc1, cc2    *constModel
		wantCharges []int
	}{
		{"file charge trusted", []int{3}, false, nil, nil, []int{3}},
		{"file charges sorted", []int{3, 2}, false, nil, nil, []int{2, 3}},
		{"multi-charge ignores file", []int{3}, true, nil, nil, []int{2, 3}},
		{"no charge models", nil, false, nil, nil, []int{2, 3}},
		{"singly charged", nil, false, ptr(0.2), nil, []int{1}},
		{"charge 2 only", nil, false, ptr(-1), ptr(0.7), []int{2}},
		{"charge 3 only", nil, false, ptr(-1), ptr(-0.7), []int{3}},
		{"inside deadband", nil, false, ptr(-1), ptr(0.2), []int{2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			store.SetNetwork(modelstore.PRM2, prm)
			if tt.cc1 != nil {
				store.SetClassifier(modelstore.CC1, *tt.cc1)
			}
			if tt.cc2 != nil {
				store.SetClassifier(modelstore.CC2, *tt.cc2)
			}
			cfg := DefaultConfig()
			cfg.RetainRunnerUp = false
			cfg.MultiCharge = tt.multi
			c := New(store, cfg, logger.Nop())

			spec := pairedSpectrum()
			spec.FileCharges = tt.fileCharges
			tweaks, err := c.Tweak(spec)
			require.NoError(t, err)

			var charges []int
			for _, tw := range tweaks.Active() {
				charges = append(charges, tw.Charge)
				assert.Greater(t, tw.ParentMass, 0.0)
			}
			assert.Equal(t, tt.wantCharges, charges)
			assert.Equal(t, 2, spec.Charge, "input spectrum must not change")
		})
	}
}

func TestTweakEmptySpectrum(t *testing.T) {
	c := New(newStore(t), nil, logger.Nop())
	tweaks, err := c.Tweak(spectrum(500, 2))
	require.NoError(t, err)
	assert.Empty(t, tweaks.Active())
}

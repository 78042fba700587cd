package peakindex

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/peptag/pkg/core"
)

// rankedSpectrum builds a sorted, ranked spectrum from mass/intensity pairs.
func rankedSpectrum(parentMass float64, pairs ...float64) *core.Spectrum {
	spec := &core.Spectrum{ParentMass: parentMass, PrecursorMZ: parentMass, Charge: 1}
	for i := 0; i+1 < len(pairs); i += 2 {
		spec.Peaks = append(spec.Peaks, core.Peak{Mass: pairs[i], Intensity: pairs[i+1]})
	}
	spec.SortPeaks()
	spec.RankPeaks()
	return spec
}

var scheme0 = &Params{Scheme: 0, IntensityRadius: 0.5, HalfIntensityRadius: 0.25}

func TestBin(t *testing.T) {
	tests := []struct {
		mass float64
		want int
	}{
		{0, 0},
		{100.0, 1000},
		{100.04, 1000},
		{100.06, 1001},
		{-0.3, -3},
	}

	for _, tt := range tests {
		if got := Bin(tt.mass); got != tt.want {
			t.Errorf("Bin(%.2f) = %d, want %d", tt.mass, got, tt.want)
		}
	}
}

func TestIntensityLevelThresholds(t *testing.T) {
	tests := []struct {
		name   string
		scheme int
		spec   *core.Spectrum
		want   []float64
	}{
		{
			name:   "scheme 0 without weak peaks",
			scheme: 0,
			spec:   rankedSpectrum(2000, 100, 10, 200, 20, 300, 30, 400, 40, 500, 50, 600, 60, 700, 70, 800, 80, 900, 90, 1000, 100),
			want:   []float64{10, 5, 0, -1},
		},
		{
			name:   "scheme 2",
			scheme: 2,
			spec:   rankedSpectrum(2000, 100, 10, 200, 20, 300, 30),
			want:   []float64{10, 0, -1},
		},
		{
			name:   "scheme 4 uses grass median",
			scheme: 4,
			spec:   rankedSpectrum(2000, 100, 10, 200, 20, 300, 30, 400, 40, 500, 50, 600, 60, 700, 70, 800, 80, 900, 90),
			want:   []float64{400, 80, 4, -1},
		},
		{
			name:   "scheme 1 with weak peaks",
			scheme: 1,
			spec:   rankedSpectrum(100, 100, 10, 200, 20, 300, 30, 400, 40),
			want:   []float64{30, 15, 0, -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IntensityLevelThresholds(tt.spec, tt.scheme)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-9)
		})
	}

	_, err := IntensityLevelThresholds(rankedSpectrum(2000, 100, 1), 9)
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	spec := rankedSpectrum(1000.5, 100.0, 10, 250.0, 100, 600.0, 50)
	ix := New(spec)
	require.NoError(t, ix.Build(scheme0, false))

	assert.True(t, ix.Built())
	mz := 1000.5
	assert.Equal(t, int((mz*3+2*core.ProtonMass+1)/BinWidth), ix.BinCount())
	assert.Equal(t, 3, ix.AbsentLevel())

	// Intensity spreads across the radius
	for _, bin := range []int{996, 1000, 1004} {
		assert.InDelta(t, 10.0, ix.Intensity[bin], 1e-9, "bin %d", bin)
	}
	assert.Zero(t, ix.Intensity[994])
	assert.Zero(t, ix.Intensity[1006])
	assert.Zero(t, ix.Intensity[1500])

	// Tight only counts peaks within 0.15 Da
	assert.InDelta(t, 10.0, ix.Tight[1001], 1e-9)
	assert.Zero(t, ix.Tight[1002])

	assert.Equal(t, 0, ix.FirstPeak[1000])
	assert.Equal(t, 1, ix.FirstPeak[2500])
	assert.Equal(t, -1, ix.FirstPeak[1500])

	assert.Equal(t, 0, ix.LookupLevel(250.0))
	assert.Equal(t, 3, ix.LookupLevel(400.0))
	assert.Equal(t, 3, ix.LookupLevel(1e6))
	assert.True(t, ix.InRange(250.0))
	assert.False(t, ix.InRange(1e6))
	assert.False(t, ix.InRange(-1))

	total := 0.0
	for _, lp := range ix.NoiseLogProb {
		assert.LessOrEqual(t, lp, 0.0)
		total += math.Exp(lp)
	}
	assert.InDelta(t, 1.0, total, 0.01)
}

func TestBuildHalvesFarPeaks(t *testing.T) {
	spec := rankedSpectrum(1000, 100.0, 10)
	ix := New(spec)
	require.NoError(t, ix.Build(&Params{Scheme: 1, IntensityRadius: 0.5, HalfIntensityRadius: 0.25}, false))

	assert.InDelta(t, 10.0, ix.Intensity[1000], 1e-9)
	assert.InDelta(t, 10.0, ix.Intensity[1002], 1e-9)
	assert.InDelta(t, 5.0, ix.Intensity[1003], 1e-9)
}

func TestBuildClampsBins(t *testing.T) {
	spec := rankedSpectrum(1000, 100.0, 10, 200.0, 20)
	spec.PrecursorMZ = 1e12
	ix := New(spec)
	require.NoError(t, ix.Build(scheme0, false))
	assert.Len(t, ix.Intensity, maxBinCount)
	assert.Len(t, ix.FirstPeak, maxBinCount)
	assert.Greater(t, ix.Intensity[Bin(200.0)], 0.0)
}

func TestBuildIdempotent(t *testing.T) {
	spec := rankedSpectrum(1500, 150.0, 20, 300.0, 5, 450.0, 70, 800.0, 33)
	ix := New(spec)
	require.NoError(t, ix.Build(scheme0, false))

	levels := append([]int(nil), ix.Levels...)
	intensity := append([]float64(nil), ix.Intensity...)
	noise := append([]float64(nil), ix.NoiseLogProb...)

	require.NoError(t, ix.Build(scheme0, false))
	assert.Equal(t, levels, ix.Levels)
	assert.Equal(t, intensity, ix.Intensity)
	assert.Equal(t, noise, ix.NoiseLogProb)

	require.NoError(t, ix.Build(scheme0, true))
	assert.Equal(t, levels, ix.Levels)
	assert.Equal(t, intensity, ix.Intensity)

	// A second build with other params is ignored unless forced
	require.NoError(t, ix.Build(&Params{Scheme: 2, IntensityRadius: 0.5}, false))
	assert.Len(t, ix.Thresholds, 4)
	require.NoError(t, ix.Build(&Params{Scheme: 2, IntensityRadius: 0.5}, true))
	assert.Len(t, ix.Thresholds, 3)
}

func TestBuildSkipped(t *testing.T) {
	t.Run("no model", func(t *testing.T) {
		ix := New(rankedSpectrum(1000, 100.0, 10))
		require.NoError(t, ix.Build(nil, false))
		assert.False(t, ix.Built())
		assert.Equal(t, 0, ix.LookupLevel(100.0))
	})

	t.Run("no peaks", func(t *testing.T) {
		ix := New(&core.Spectrum{ParentMass: 1000})
		require.NoError(t, ix.Build(scheme0, false))
		assert.False(t, ix.Built())
		assert.Equal(t, 3, ix.LookupLevel(100.0))
		assert.Equal(t, 3, ix.ClaimPeaks(NewClaims(0), 100.0, core.IonB, 0))
	})

	t.Run("non-finite precursor", func(t *testing.T) {
		spec := rankedSpectrum(1000, 100.0, 10)
		spec.PrecursorMZ = math.Inf(1)
		assert.Error(t, New(spec).Build(scheme0, false))
		spec.PrecursorMZ = math.NaN()
		assert.Error(t, New(spec).Build(scheme0, false))
	})

	t.Run("unknown scheme", func(t *testing.T) {
		ix := New(rankedSpectrum(1000, 100.0, 10))
		assert.Error(t, ix.Build(&Params{Scheme: 7}, false))
	})
}

func TestClaimPeaks(t *testing.T) {
	spec := rankedSpectrum(1000, 100.0, 10, 100.2, 40, 300.0, 25)
	ix := New(spec)
	require.NoError(t, ix.Build(scheme0, false))
	claims := NewClaims(len(spec.Peaks))

	level := ix.ClaimPeaks(claims, 100.1, core.IonB, 2)
	assert.Equal(t, ix.LevelForIntensity(50), level)
	assert.Equal(t, Claim{Ion: core.IonB, Owner: 2}, claims[0])
	assert.Equal(t, Claim{Ion: core.IonB, Owner: 2}, claims[1])
	assert.False(t, claims.Claimed(2))

	// Claimed peaks are never reclaimed
	assert.Equal(t, ix.AbsentLevel(), ix.ClaimPeaks(claims, 100.1, core.IonY, 3))
	assert.Equal(t, core.IonB, claims[0].Ion)

	ix.ClaimParentPeak(claims, 300.0)
	assert.Equal(t, Claim{Ion: core.IonParentLoss, Owner: -1}, claims[2])

	claims.Reset()
	for i := range claims {
		assert.False(t, claims.Claimed(i))
	}

	assert.Equal(t, ix.AbsentLevel(), ix.ClaimPeaks(claims, -50, core.IonB, 0))
}

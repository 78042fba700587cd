package peakindex

import (
	"math"

	"github.com/ChrisMcGann/peptag/pkg/core"
)

// Claim records the ion explaining a peak and the cut that owns it.
type Claim struct {
	Ion   core.IonKind
	Owner int // Cut index; -1 for parent-loss claims
}

// Claims is a per-pass side table parallel to the spectrum's peaks.
type Claims []Claim

// NewClaims returns an empty claim table for n peaks.
func NewClaims(n int) Claims {
	return make(Claims, n)
}

// Reset releases every claim.
func (c Claims) Reset() {
	for i := range c {
		c[i] = Claim{}
	}
}

// Claimed reports whether peak i is already explained.
func (c Claims) Claimed(i int) bool {
	return c[i].Ion != core.IonNone
}

// ClaimPeaks claims every unclaimed peak within the intensity radius of mass for
// ion and owner, and returns the level of the claimed intensity. Masses off the
// scale return the absent level.
func (ix *Index) ClaimPeaks(claims Claims, mass float64, ion core.IonKind, owner int) int {
	intensity, ok := ix.claim(claims, mass, ion, owner)
	if !ok {
		return ix.absent
	}
	return ix.LevelForIntensity(intensity)
}

// ClaimParentPeak claims peaks near mass as parent-loss peaks.
func (ix *Index) ClaimParentPeak(claims Claims, mass float64) {
	ix.claim(claims, mass, core.IonParentLoss, -1)
}

func (ix *Index) claim(claims Claims, mass float64, ion core.IonKind, owner int) (float64, bool) {
	bin := Bin(mass)
	if bin < 0 || bin >= len(ix.FirstPeak) {
		return 0, false
	}
	p := ix.params
	lo, hi := mass-p.IntensityRadius, mass+p.IntensityRadius

	intensity := 0.0
	peaks := ix.spec.Peaks
	start := ix.FirstPeak[bin]
	if start < 0 {
		return 0, true
	}
	for i := start; i < len(peaks); i++ {
		if peaks[i].Mass > hi {
			break
		}
		if peaks[i].Mass < lo || claims.Claimed(i) {
			continue
		}
		intensity += peaks[i].Intensity * p.multiplier(math.Abs(mass-peaks[i].Mass))
		claims[i] = Claim{Ion: ion, Owner: owner}
	}
	return intensity, true
}

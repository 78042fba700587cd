package ionscore

import (
	"fmt"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/peakindex"
)

// Values holds one value per network node.
type Values []int

// noise returns the null log-probability of level for the indexed spectrum.
func (net *Network) noise(ix *peakindex.Index, level int) (float64, error) {
	table := net.RandomScores
	if !net.GlobalNoise && len(ix.NoiseLogProb) > 0 {
		table = ix.NoiseLogProb
	}
	if level < 0 || level >= len(table) {
		return 0, &StructuralError{Node: "noise", Index: level, Size: len(table)}
	}
	return table[level], nil
}

// score sums witness log-probabilities minus the null model.
func (net *Network) score(ix *peakindex.Index, values Values) (float64, error) {
	total := 0.0
	for _, n := range net.Nodes {
		if !n.Witness() {
			continue
		}
		lp, err := net.logProbability(n, values)
		if err != nil {
			return 0, err
		}
		null, err := net.noise(ix, values[n.Index])
		if err != nil {
			return 0, err
		}
		total += lp - null
	}
	return total, nil
}

// PRMValues computes node values for a bare prefix residue mass. Peaks are read,
// never claimed, and residue-dependent nodes take their default value.
func (net *Network) PRMValues(ix *peakindex.Index, parentMass, prm float64) Values {
	e := &evaluation{
		ix:         ix,
		parentMass: parentMass,
		prm:        prm,
		minLevel:   net.MinLevel,
		cut:        -1,
	}
	values := make(Values, len(net.Nodes))
	for i, n := range net.Nodes {
		values[i] = n.cat.value(n, e)
	}
	return values
}

// ScorePRM scores the evidence for a cut at prm, returning the score and the
// values it was computed from.
func (net *Network) ScorePRM(ix *peakindex.Index, parentMass, prm float64) (float64, Values, error) {
	values := net.PRMValues(ix, parentMass, prm)
	score, err := net.score(ix, values)
	if err != nil {
		return 0, nil, err
	}
	return score, values, nil
}

// ScorePeptide returns one score per cut point 0..len(peptide) of pep against
// the indexed spectrum. Claims are reset first; phosphorylated peptides claim
// their parent-loss peaks before any fragment. Fragment nodes then claim peaks
// in ion order across every cut before scores are summed.
func (net *Network) ScorePeptide(ix *peakindex.Index, claims peakindex.Claims, pep *core.Peptide, parentMass float64) ([]float64, error) {
	if len(claims) != len(ix.Spectrum().Peaks) {
		return nil, fmt.Errorf("claim table has %d entries for %d peaks", len(claims), len(ix.Spectrum().Peaks))
	}
	claims.Reset()

	sites := pep.PhosphoSites()
	if len(sites) > 0 && ix.Built() {
		claimParentLoss(ix, claims, parentMass, ix.Spectrum().Charge)
	}

	length := pep.Len()
	prms := make([]float64, length+1)
	for i := 0; i < length; i++ {
		prms[i+1] = prms[i] + pep.ResidueMassAt(i)
	}

	values := make([]Values, length+1)
	for cut := range values {
		values[cut] = make(Values, len(net.Nodes))
	}
	e := &evaluation{
		ix:         ix,
		claims:     claims,
		parentMass: parentMass,
		minLevel:   net.MinLevel,
		peptide:    pep,
		sites:      sites,
	}
	for _, idx := range net.claimOrder {
		n := net.Nodes[idx]
		for cut := 0; cut <= length; cut++ {
			e.prm = prms[cut]
			e.cut = cut
			values[cut][idx] = n.cat.value(n, e)
		}
	}

	scores := make([]float64, length+1)
	for cut := range scores {
		s, err := net.score(ix, values[cut])
		if err != nil {
			return nil, fmt.Errorf("cut %d: %w", cut, err)
		}
		scores[cut] = s
	}
	return scores, nil
}

// claimParentLoss claims the phosphate and phosphate-plus-water losses from the
// precursor, and their first isotopes.
func claimParentLoss(ix *peakindex.Index, claims peakindex.Claims, parentMass float64, charge int) {
	if charge < 1 {
		charge = 2
	}
	z := float64(charge)
	mz := core.MZFromParentMass(parentMass, charge)
	for _, loss := range []float64{core.PhosphateLoss, core.PhosphateLoss + core.WaterMass} {
		ix.ClaimParentPeak(claims, mz-loss/z)
	}
	for _, loss := range []float64{core.PhosphateLoss, core.PhosphateLoss + core.WaterMass} {
		ix.ClaimParentPeak(claims, mz-loss/z+core.ProtonMass/z)
	}
}

// FlankAdjustment returns how the score of a mass changes once the residues
// either side of it are known. values come from PRMValues or ScorePRM; left or
// right is 0 when the mass is a sequence end.
func (net *Network) FlankAdjustment(values Values, left, right byte) (float64, error) {
	adjusted := append(Values(nil), values...)
	for _, n := range net.Nodes {
		switch n.Kind {
		case KindFlank:
			adjusted[n.Index] = flankValue(n.Flag, left, right)
		case KindPrefixAA:
			adjusted[n.Index] = residueValue(n.Flag, left)
		case KindSuffixAA:
			adjusted[n.Index] = residueValue(n.Flag, right)
		}
	}

	total := 0.0
	for _, n := range net.Nodes {
		if !n.Witness() || !n.FlankDependent() {
			continue
		}
		after, err := net.logProbability(n, adjusted)
		if err != nil {
			return 0, err
		}
		before, err := net.logProbability(n, values)
		if err != nil {
			return 0, err
		}
		total += after - before
	}
	return total, nil
}

package taggraph

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/peptag/pkg/core"
)

// Jump is a residue, possibly modified, that can link two tag graph nodes.
type Jump struct {
	Residue byte
	Mass    float64
	Mod     *core.ModSpec // nil for an unmodified residue
	Score   float64
}

// Jumps indexes residue jumps by mass in 1 Da buckets.
type Jumps struct {
	buckets map[int][]*Jump
	max     float64
	count   int
}

// NewJumps builds the jump table for a modification set. Fixed residue
// modifications shift their residues; variable ones add a jump carrying
// modPenalty. Terminal modifications never form jumps. Unmodified Q and I are
// left out since K and L cover their masses.
func NewJumps(mods []core.ModSpec, modPenalty float64) *Jumps {
	var base [26]float64
	for aa := byte('A'); aa <= 'Z'; aa++ {
		if m, ok := core.ResidueMass(aa); ok {
			base[aa-'A'] = m
		}
	}
	for _, mod := range mods {
		if !mod.Fixed || mod.Terminus != core.AnyPosition {
			continue
		}
		for aa := byte('A'); aa <= 'Z'; aa++ {
			if base[aa-'A'] > 0 && mod.Residues != "" && mod.Allows(aa) {
				base[aa-'A'] += mod.Mass
			}
		}
	}

	j := &Jumps{buckets: make(map[int][]*Jump)}
	for aa := byte('A'); aa <= 'Z'; aa++ {
		mass := base[aa-'A']
		if mass <= 0 {
			continue
		}
		if aa != 'Q' && aa != 'I' {
			j.add(&Jump{Residue: aa, Mass: mass})
		}
		for i := range mods {
			mod := &mods[i]
			if mod.Fixed || mod.Terminus != core.AnyPosition || !mod.Allows(aa) {
				continue
			}
			if mass+mod.Mass <= 0 {
				continue
			}
			j.add(&Jump{Residue: aa, Mass: mass + mod.Mass, Mod: mod, Score: modPenalty})
		}
	}
	return j
}

func bucket(mass float64) int {
	return int(math.Round(mass))
}

func (j *Jumps) add(jump *Jump) {
	b := bucket(jump.Mass)
	j.buckets[b] = append(j.buckets[b], jump)
	j.max = math.Max(j.max, jump.Mass)
	j.count++
}

// Len returns the number of jumps.
func (j *Jumps) Len() int {
	return j.count
}

// MaxMass returns the heaviest jump.
func (j *Jumps) MaxMass() float64 {
	return j.max
}

// Match returns the jumps within eps of gap, checking the neighbouring buckets
// to absorb rounding.
func (j *Jumps) Match(gap, eps float64) []*Jump {
	var out []*Jump
	b := bucket(gap)
	for k := b - 1; k <= b+1; k++ {
		for _, jump := range j.buckets[k] {
			if math.Abs(gap-jump.Mass) <= eps {
				out = append(out, jump)
			}
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Mass < out[b].Mass
	})
	return out
}

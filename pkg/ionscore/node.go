package ionscore

import (
	"fmt"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/peakindex"
)

// Kind identifies a node category.
type Kind int

const (
	KindPrefix Kind = iota
	KindPrefix2
	KindSuffix
	KindSuffix2
	KindSector
	KindFlank
	KindPrefixAA
	KindSuffixAA
	KindPrefixContain
	KindSuffixContain
	KindPrefixContainPhos
	KindSuffixContainPhos
)

var kindNames = map[Kind]string{
	KindPrefix:            "prefix",
	KindPrefix2:           "prefix2",
	KindSuffix:            "suffix",
	KindSuffix2:           "suffix2",
	KindSector:            "sector",
	KindFlank:             "flank",
	KindPrefixAA:          "prefix-aa",
	KindSuffixAA:          "suffix-aa",
	KindPrefixContain:     "prefix-contain",
	KindSuffixContain:     "suffix-contain",
	KindPrefixContainPhos: "prefix-contain-phos",
	KindSuffixContainPhos: "suffix-contain-phos",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// evaluation is the context a node value is computed in. claims is nil when
// scoring a bare mass, and peptide is nil unless a candidate is being scored.
type evaluation struct {
	ix         *peakindex.Index
	claims     peakindex.Claims
	parentMass float64
	prm        float64
	minLevel   int

	peptide *core.Peptide
	cut     int // -1 for a bare mass
	sites   []int
}

// category implements value domain and value computation for one node kind.
type category interface {
	valueCount(scheme, flag int) (int, error)
	value(n *Node, e *evaluation) int
	// witness nodes contribute to scores; the rest only condition them.
	witness() bool
	// flank nodes depend on the residues around the cut.
	flank() bool
}

func categoryFor(k Kind) (category, error) {
	switch k {
	case KindPrefix, KindPrefix2, KindSuffix, KindSuffix2:
		return intensityCategory{kind: k}, nil
	case KindSector:
		return sectorCategory{}, nil
	case KindFlank:
		return flankCategory{}, nil
	case KindPrefixAA:
		return residueCategory{}, nil
	case KindSuffixAA:
		return residueCategory{suffix: true}, nil
	case KindPrefixContain:
		return containCategory{}, nil
	case KindSuffixContain:
		return containCategory{suffix: true}, nil
	case KindPrefixContainPhos:
		return phosCategory{}, nil
	case KindSuffixContainPhos:
		return phosCategory{suffix: true}, nil
	}
	return nil, fmt.Errorf("unknown node kind %d", int(k))
}

// intensityCategory reads (or claims) the intensity level of a fragment peak.
type intensityCategory struct {
	kind Kind
}

func (c intensityCategory) valueCount(scheme, _ int) (int, error) {
	return peakindex.LevelCount(scheme)
}

func (c intensityCategory) mass(n *Node, e *evaluation) float64 {
	switch c.kind {
	case KindPrefix:
		return e.prm + n.MassOffset
	case KindPrefix2:
		return (e.prm + n.MassOffset + core.ProtonMass) / 2
	case KindSuffix:
		return e.parentMass - e.prm + n.MassOffset
	default:
		return (e.parentMass - e.prm + n.MassOffset + core.ProtonMass) / 2
	}
}

func (c intensityCategory) value(n *Node, e *evaluation) int {
	mass := c.mass(n, e)
	if !e.ix.InRange(mass) {
		return e.minLevel
	}
	if e.claims == nil {
		return e.ix.LookupLevel(mass)
	}
	return e.ix.ClaimPeaks(e.claims, mass, n.Ion, e.cut)
}

func (intensityCategory) witness() bool { return true }
func (intensityCategory) flank() bool   { return false }

// sectorCategory partitions the mass range into equal-ish sectors.
type sectorCategory struct{}

func (sectorCategory) valueCount(_, flag int) (int, error) {
	switch flag {
	case 0:
		return 2, nil
	case 1:
		return 3, nil
	case 2:
		return 4, nil
	case 3, 4:
		return 5, nil
	}
	return 0, fmt.Errorf("sector flag %d", flag)
}

var sectorBounds = [][]float64{
	{0.5},
	{0.33, 0.66},
	{0.25, 0.5, 0.75},
	{0.2, 0.4, 0.6, 0.8},
	{0.2, 0.4, 0.6, 0.8},
}

func (sectorCategory) value(n *Node, e *evaluation) int {
	for i, frac := range sectorBounds[n.Flag] {
		if e.prm < e.parentMass*frac {
			return i
		}
	}
	return len(sectorBounds[n.Flag])
}

func (sectorCategory) witness() bool { return false }
func (sectorCategory) flank() bool   { return false }

// flankCategory captures residue effects on either side of the cut.
type flankCategory struct{}

func (flankCategory) valueCount(_, flag int) (int, error) {
	switch flag {
	case 0, 1:
		return 4, nil
	case 2, 3:
		return 3, nil
	}
	return 0, fmt.Errorf("flank flag %d", flag)
}

func (flankCategory) value(n *Node, e *evaluation) int {
	if e.peptide == nil {
		return 0
	}
	left, right := e.neighbours()
	return flankValue(n.Flag, left, right)
}

func (flankCategory) witness() bool { return false }
func (flankCategory) flank() bool   { return true }

// flankValue applies the b (flag 0) and y (flag 1) flank rules.
func flankValue(flag int, left, right byte) int {
	switch flag {
	case 0:
		switch {
		case left == 'G' || left == 'P':
			return 0
		case right == 'P':
			return 1
		case right == 'H' || right == 'R':
			return 2
		}
		return 3
	case 1:
		switch {
		case right == 'P':
			return 0
		case right == 'R' || right == 'K':
			return 1
		case left == 'P' || right == 'H':
			return 2
		}
		return 3
	}
	return 0
}

// residueCategory flags a specific residue before (or after) the cut.
type residueCategory struct {
	suffix bool
}

func (residueCategory) valueCount(_, flag int) (int, error) {
	if flag < 0 || flag >= 26 {
		return 0, fmt.Errorf("residue flag %d", flag)
	}
	return 2, nil
}

func (c residueCategory) value(n *Node, e *evaluation) int {
	if e.peptide == nil {
		return 0
	}
	left, right := e.neighbours()
	aa := left
	if c.suffix {
		aa = right
	}
	return residueValue(n.Flag, aa)
}

func residueValue(flag int, aa byte) int {
	if aa != 0 && int(aa)-'A' == flag {
		return 1
	}
	return 0
}

func (residueCategory) witness() bool { return false }
func (residueCategory) flank() bool   { return true }

// containCategory counts acidic (flags 0, 1) or basic (flags 2, 3) residues in a
// fragment. Even flags are presence flags; odd flags distinguish none, one and many.
type containCategory struct {
	suffix bool
}

func (containCategory) valueCount(_, flag int) (int, error) {
	switch flag {
	case 0, 2:
		return 2, nil
	case 1, 3:
		return 3, nil
	}
	return 0, fmt.Errorf("contain flag %d", flag)
}

func (c containCategory) value(n *Node, e *evaluation) int {
	if e.peptide == nil {
		return 0
	}
	residues := e.peptide.Residues
	lo, hi := 0, e.cut
	if c.suffix {
		lo, hi = e.cut, len(residues)
	}

	count := 0
	for i := lo; i < hi; i++ {
		switch residues[i] {
		case 'D', 'E':
			if n.Flag < 2 {
				count++
			}
		case 'R', 'K', 'H':
			if n.Flag >= 2 {
				count++
			}
		}
	}
	if n.Flag%2 == 0 || count < 2 {
		return min(count, 1)
	}
	return 2
}

func (containCategory) witness() bool { return false }
func (containCategory) flank() bool   { return false }

// phosCategory flags a phosphorylated residue on the prefix (or suffix) fragment.
type phosCategory struct {
	suffix bool
}

func (phosCategory) valueCount(int, int) (int, error) {
	return 2, nil
}

func (c phosCategory) value(_ *Node, e *evaluation) int {
	for _, site := range e.sites {
		if !c.suffix && site < e.cut {
			return 1
		}
		if c.suffix && e.cut <= site {
			return 1
		}
	}
	return 0
}

func (phosCategory) witness() bool { return false }
func (phosCategory) flank() bool   { return false }

// neighbours returns the residues either side of the current cut, 0 past the ends.
func (e *evaluation) neighbours() (left, right byte) {
	residues := e.peptide.Residues
	if e.cut > 0 {
		left = residues[e.cut-1]
	}
	if e.cut < len(residues) {
		right = residues[e.cut]
	}
	return left, right
}

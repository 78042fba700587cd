package ionscore

import (
	"fmt"

	"github.com/ChrisMcGann/peptag/pkg/core"
)

// defaultRandomCounts is the level distribution of a random bin: almost always empty.
var defaultRandomCounts = []int{5, 10, 25, 960}

// DefaultTagNetwork returns a built-in network for scoring tag-graph nodes when
// no trained model is available. Its tables are generated: fragment peaks are
// likely strong, more so when a correlated fragment is strong, and less so
// near the ends of the peptide or after a glycine or proline.
func DefaultTagNetwork(charge int) (*Network, error) {
	def := Definition{
		Name:                fmt.Sprintf("default-tag-%d", max(2, min(charge, 3))),
		Scheme:              0,
		IntensityRadius:     0.5,
		HalfIntensityRadius: 0.25,
		GlobalNoise:         true,
		RandomCounts:        defaultRandomCounts,
		Padding:             1,
		Nodes: []NodeDef{
			{Name: "sector", Kind: KindSector, Flag: 2},
			{Name: "b-flank", Kind: KindFlank, Flag: 0},
			{Name: "y-flank", Kind: KindFlank, Flag: 1},
			{Name: "b", Kind: KindPrefix, Ion: core.IonB, MassOffset: core.IonB.DefaultOffset(), Parents: []int{0, 1}},
			{Name: "y", Kind: KindSuffix, Ion: core.IonY, MassOffset: core.IonY.DefaultOffset(), Parents: []int{0, 2, 3}},
			{Name: "b-isotope", Kind: KindPrefix, Ion: core.IonBIsotope, MassOffset: core.IonBIsotope.DefaultOffset(), Parents: []int{3}},
			{Name: "y-H2O", Kind: KindSuffix, Ion: core.IonYH2O, MassOffset: core.IonYH2O.DefaultOffset(), Parents: []int{4}},
		},
	}
	if charge > 2 {
		def.Name = "default-tag-3"
		def.Nodes = append(def.Nodes,
			NodeDef{Name: "b2", Kind: KindPrefix2, Ion: core.IonB2, MassOffset: core.IonB2.DefaultOffset(), Parents: []int{3}},
			NodeDef{Name: "y2", Kind: KindSuffix2, Ion: core.IonY2, MassOffset: core.IonY2.DefaultOffset(), Parents: []int{4}},
		)
	}

	// Value counts are needed to lay out the tables, so build once without counts.
	shape, err := Build(def)
	if err != nil {
		return nil, err
	}
	for i := range def.Nodes {
		n := shape.Nodes[i]
		if n.Witness() {
			def.Nodes[i].Counts = generatedCounts(shape, n)
		}
	}
	return Build(def)
}

// generatedCounts fills the table of an intensity node, one block of level
// counts per parent combination.
func generatedCounts(net *Network, n *Node) []int {
	size := tableSize(net.Nodes, n)
	counts := make([]int, 0, size)
	parents := make([]int, len(n.Parents))
	for block := 0; block < size/n.ValueCount; block++ {
		rem := block
		for i, p := range n.Parents {
			vc := net.Nodes[p].ValueCount
			parents[i] = rem % vc
			rem /= vc
		}
		counts = append(counts, levelCounts(n.ValueCount, evidence(net, n, parents))...)
	}
	return counts
}

// evidence is the expected strength of n's peak in [0, 1] given parent values.
func evidence(net *Network, n *Node, parents []int) float64 {
	s := 0.6
	if n.Ion != core.IonB && n.Ion != core.IonY {
		s = 0.3
	}
	for i, p := range n.Parents {
		parent := net.Nodes[p]
		v := parents[i]
		switch parent.Kind {
		case KindSector:
			if v == 0 || v == parent.ValueCount-1 {
				s -= 0.2
			}
		case KindFlank:
			if v == 0 {
				s -= 0.25
			}
			if v == 1 && n.Ion == core.IonY {
				s += 0.15
			}
		case KindPrefix, KindPrefix2, KindSuffix, KindSuffix2:
			absent := parent.ValueCount - 1
			s += 0.4 * (float64(absent-v)/float64(absent) - 0.5)
		}
	}
	return max(0.05, min(s, 0.95))
}

// levelCounts spreads a thousand observations over the levels, the absent level last.
func levelCounts(levels int, s float64) []int {
	absent := levels - 1
	out := make([]int, levels)
	out[absent] = int(1000 * (1 - s))
	weight := 0
	for v := 0; v < absent; v++ {
		weight += absent - v
	}
	for v := 0; v < absent; v++ {
		out[v] = int(1000 * s * float64(absent-v) / float64(weight))
	}
	return out
}

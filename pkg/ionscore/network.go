// Package ionscore implements the conditional-probability network that scores
// fragment-ion evidence at a mass or at every cut point of a candidate peptide.
package ionscore

import (
	"fmt"
	"math"
	"sort"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/peakindex"
)

const (
	// MaxParents bounds the parents of one node.
	MaxParents = 100

	// MaxTableSize bounds the probability table of one node.
	MaxTableSize = 10000
)

// StructuralError reports a probability-table index outside the table. It means
// the network definition and its tables disagree.
type StructuralError struct {
	Node  string
	Index int
	Size  int
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("node %s: table index %d outside table of %d entries", e.Node, e.Index, e.Size)
}

// Node is one variable of the network.
type Node struct {
	Index      int
	Name       string
	Kind       Kind
	Flag       int
	Ion        core.IonKind // Fragment claimed by intensity nodes
	MassOffset float64
	ValueCount int
	Parents    []int // Node indices, all lower than Index
	Strides    []int // Table stride of each parent
	Counts     []int
	LogProbs   []float64

	cat       category
	dependsOn bool // True when the node or a parent reads flanking residues
}

// Witness reports whether the node contributes to scores.
func (n *Node) Witness() bool {
	return n.cat.witness()
}

// FlankDependent reports whether the node's probability depends on flanking residues.
func (n *Node) FlankDependent() bool {
	return n.dependsOn
}

// Network is an immutable conditional-probability network. It is safe for
// concurrent use once built.
type Network struct {
	Name                string
	Cuts                bool // Trained on peptide cut points rather than bare masses
	Scheme              int
	IntensityRadius     float64
	HalfIntensityRadius float64
	MinLevel            int  // Level of an absent or off-scale peak
	GlobalNoise         bool // Score against RandomScores rather than the spectrum noise
	RandomCounts        []int
	RandomScores        []float64
	Nodes               []*Node

	claimOrder []int
}

// NodeDef describes one node of a Definition.
type NodeDef struct {
	Name       string
	Kind       Kind
	Flag       int
	Ion        core.IonKind
	MassOffset float64
	Parents    []int
	Counts     []int     // Training counts; used when LogProbs is nil
	LogProbs   []float64 // Explicit log-probabilities
}

// Definition describes a network to Build.
type Definition struct {
	Name                string
	Cuts                bool
	Scheme              int
	IntensityRadius     float64
	HalfIntensityRadius float64
	GlobalNoise         bool
	RandomCounts        []int
	Padding             int // Added to every count before normalising
	Nodes               []NodeDef
}

// Build constructs a network from a definition. Parents must precede their
// children; probability tables come from LogProbs, Counts or a uniform default.
func Build(def Definition) (*Network, error) {
	levels, err := peakindex.LevelCount(def.Scheme)
	if err != nil {
		return nil, err
	}
	if def.IntensityRadius <= 0 {
		return nil, fmt.Errorf("intensity radius must be positive, got %g", def.IntensityRadius)
	}

	net := &Network{
		Name:                def.Name,
		Cuts:                def.Cuts,
		Scheme:              def.Scheme,
		IntensityRadius:     def.IntensityRadius,
		HalfIntensityRadius: def.HalfIntensityRadius,
		MinLevel:            levels - 1,
		GlobalNoise:         def.GlobalNoise,
	}

	for i, d := range def.Nodes {
		n := &Node{
			Index:      i,
			Name:       d.Name,
			Kind:       d.Kind,
			Flag:       d.Flag,
			Ion:        d.Ion,
			MassOffset: d.MassOffset,
			Parents:    append([]int(nil), d.Parents...),
		}
		if err := net.attach(n); err != nil {
			return nil, err
		}
		n.Strides = strides(net.Nodes, n)
		size := tableSize(net.Nodes, n)
		if size > MaxTableSize {
			return nil, fmt.Errorf("node %s: table of %d entries exceeds %d", n.Name, size, MaxTableSize)
		}

		switch {
		case d.LogProbs != nil:
			if len(d.LogProbs) != size {
				return nil, fmt.Errorf("node %s: %d log-probabilities for a table of %d", n.Name, len(d.LogProbs), size)
			}
			n.LogProbs = append([]float64(nil), d.LogProbs...)
		case d.Counts != nil:
			if len(d.Counts) != size {
				return nil, fmt.Errorf("node %s: %d counts for a table of %d", n.Name, len(d.Counts), size)
			}
			n.Counts = append([]int(nil), d.Counts...)
			n.LogProbs = probabilities(n.Counts, n.ValueCount, def.Padding)
		default:
			n.Counts = make([]int, size)
			n.LogProbs = probabilities(n.Counts, n.ValueCount, 1)
		}
	}

	net.RandomCounts = make([]int, levels)
	copy(net.RandomCounts, def.RandomCounts)
	net.RandomScores = randomScores(net.RandomCounts)
	net.finish()
	return net, nil
}

// attach validates n against the nodes already in the network and appends it.
func (net *Network) attach(n *Node) error {
	cat, err := categoryFor(n.Kind)
	if err != nil {
		return fmt.Errorf("node %s: %w", n.Name, err)
	}
	count, err := cat.valueCount(net.Scheme, n.Flag)
	if err != nil {
		return fmt.Errorf("node %s: %w", n.Name, err)
	}
	if n.ValueCount != 0 && n.ValueCount != count {
		return fmt.Errorf("node %s: %d values, %s nodes with flag %d have %d", n.Name, n.ValueCount, n.Kind, n.Flag, count)
	}
	if len(n.Parents) > MaxParents {
		return fmt.Errorf("node %s: %d parents, at most %d allowed", n.Name, len(n.Parents), MaxParents)
	}
	for _, p := range n.Parents {
		if p < 0 || p >= len(net.Nodes) {
			return fmt.Errorf("node %s: parent %d is not defined before it", n.Name, p)
		}
	}
	n.cat = cat
	n.ValueCount = count
	n.Index = len(net.Nodes)
	net.Nodes = append(net.Nodes, n)
	return nil
}

// finish derives flank dependence and the claim order.
func (net *Network) finish() {
	for _, n := range net.Nodes {
		n.dependsOn = n.cat.flank()
		for _, p := range n.Parents {
			if net.Nodes[p].cat.flank() {
				n.dependsOn = true
			}
		}
	}

	// Intensity nodes claim peaks in ion order; the others never claim and go last.
	net.claimOrder = make([]int, len(net.Nodes))
	for i := range net.claimOrder {
		net.claimOrder[i] = i
	}
	rank := func(n *Node) int {
		if !n.Witness() {
			return math.MaxInt
		}
		return n.Ion.ClaimRank()
	}
	sort.SliceStable(net.claimOrder, func(a, b int) bool {
		return rank(net.Nodes[net.claimOrder[a]]) < rank(net.Nodes[net.claimOrder[b]])
	})
}

// strides returns the table stride of each parent: own value varies fastest,
// then parents in order.
func strides(nodes []*Node, n *Node) []int {
	out := make([]int, len(n.Parents))
	block := n.ValueCount
	for i, p := range n.Parents {
		out[i] = block
		block *= nodes[p].ValueCount
	}
	return out
}

func tableSize(nodes []*Node, n *Node) int {
	size := n.ValueCount
	for _, p := range n.Parents {
		size *= nodes[p].ValueCount
	}
	return size
}

// probabilities normalises each block of valueCount counts into log-probabilities.
func probabilities(counts []int, valueCount, padding int) []float64 {
	out := make([]float64, len(counts))
	for start := 0; start < len(counts); start += valueCount {
		total := 0
		for i := start; i < start+valueCount; i++ {
			total += counts[i] + padding
		}
		for i := start; i < start+valueCount; i++ {
			if total == 0 {
				out[i] = math.Log(1 / float64(valueCount))
				continue
			}
			out[i] = math.Log(float64(counts[i]+padding) / float64(total))
		}
	}
	return out
}

// randomScores is the log-probability of each level at a random mass.
func randomScores(counts []int) []float64 {
	total := 0
	for _, c := range counts {
		total += c + 1
	}
	out := make([]float64, len(counts))
	for i, c := range counts {
		out[i] = math.Log(float64(c+1) / float64(total))
	}
	return out
}

// IndexParams returns the peak-index parameters the network was trained with.
func (net *Network) IndexParams() *peakindex.Params {
	return &peakindex.Params{
		Scheme:              net.Scheme,
		IntensityRadius:     net.IntensityRadius,
		HalfIntensityRadius: net.HalfIntensityRadius,
	}
}

// NodeLogProbability looks up log P(own | parents) for node.
func (net *Network) NodeLogProbability(node *Node, own int, parents []int) (float64, error) {
	idx := own
	for i, stride := range node.Strides {
		if i < len(parents) {
			idx += parents[i] * stride
		}
	}
	if idx < 0 || idx >= len(node.LogProbs) {
		return 0, &StructuralError{Node: node.Name, Index: idx, Size: len(node.LogProbs)}
	}
	return node.LogProbs[idx], nil
}

// logProbability evaluates a node against a full value vector.
func (net *Network) logProbability(node *Node, values Values) (float64, error) {
	parents := make([]int, len(node.Parents))
	for i, p := range node.Parents {
		parents[i] = values[p]
	}
	return net.NodeLogProbability(node, values[node.Index], parents)
}

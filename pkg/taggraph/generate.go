package taggraph

import (
	"fmt"
	"math"

	"github.com/ChrisMcGann/peptag/pkg/core"
)

// walker carries the current path of a depth-first tag search.
type walker struct {
	g      *Graph
	length int
	nodes  []int
	edges  []*Edge
	tags   []Tag
}

// GenerateTags enumerates every path of exactly length edges and returns the
// best maxCount distinct tags (all of them when maxCount is negative). A graph
// built from fewer than two usable peaks yields no tags.
func (g *Graph) GenerateTags(length, maxCount int) ([]Tag, error) {
	if g.state != EdgesPopulated {
		return nil, fmt.Errorf("generating tags from a graph in state %s: %w", g.state, ErrState)
	}
	if length < 1 || length > MaxTagLength {
		return nil, fmt.Errorf("tag length %d outside 1..%d", length, MaxTagLength)
	}
	g.state = TagsExtracted
	if g.usablePeaks < 2 {
		return nil, nil
	}

	w := &walker{
		g:      g,
		length: length,
		nodes:  make([]int, 0, length+1),
		edges:  make([]*Edge, 0, length),
	}
	for root := range g.Nodes {
		n := &g.Nodes[root]
		if !n.Kind.Endpoint() && n.Mass > g.cfg.ParentMassTolerance && n.Mass < core.GlycineMass-g.cfg.FragmentTolerance {
			continue
		}
		if err := w.walk(root); err != nil {
			return nil, err
		}
	}
	return Merge(w.tags, maxCount), nil
}

func (w *walker) walk(node int) error {
	w.nodes = append(w.nodes, node)
	defer func() { w.nodes = w.nodes[:len(w.nodes)-1] }()

	if len(w.edges) == w.length {
		return w.emit()
	}
	out := w.g.edges(node)
	for i := range out {
		w.edges = append(w.edges, &out[i])
		err := w.walk(out[i].To)
		w.edges = w.edges[:len(w.edges)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

// flank returns the score change of path node i once its neighbouring residues
// are known.
func (w *walker) flank(i int) (float64, error) {
	n := &w.g.Nodes[w.nodes[i]]
	if w.g.net == nil || n.values == nil {
		return 0, nil
	}
	var left, right byte
	if i > 0 {
		left = w.edges[i-1].Jump.Residue
	}
	if i < len(w.edges) {
		right = w.edges[i].Jump.Residue
	}
	return w.g.net.FlankAdjustment(n.values, left, right)
}

// emit scores the current path and records it as a tag.
func (w *walker) emit() error {
	g := w.g
	first := &g.Nodes[w.nodes[0]]
	last := &g.Nodes[w.nodes[len(w.nodes)-1]]

	if first.Kind == NodeLeftMod && !first.Mod.Allows(w.edges[0].Jump.Residue) {
		return nil
	}
	if last.Kind == NodeRightMod && !last.Mod.Allows(w.edges[len(w.edges)-1].Jump.Residue) {
		return nil
	}

	nodeScore, internal := 0.0, 0
	for i, idx := range w.nodes {
		n := &g.Nodes[idx]
		if n.Kind.Endpoint() {
			continue
		}
		adj, err := w.flank(i)
		if err != nil {
			return fmt.Errorf("flank score at %.3f: %w", n.Mass, err)
		}
		nodeScore += n.Score + adj
		internal++
	}

	tag := Tag{
		PrefixMass: first.Mass,
		SuffixMass: g.parentMass - core.ParentMassBoost - last.Mass,
		Score:      nodeScore * float64(w.length+1) / float64(max(1, internal)),
		Charge:     g.charge,
		ParentMass: g.parentMass,
	}
	if first.Kind == NodeLeftMod {
		tag.Mods = append(tag.Mods, TagMod{Position: 0, Mod: first.Mod})
	}

	residues := make([]byte, len(w.edges))
	for i, e := range w.edges {
		residues[i] = e.Jump.Residue
		tag.Score += e.Score
		tag.Skew += e.Skew
		tag.AbsSkew += math.Abs(e.Skew)
		if e.Jump.Mod != nil {
			tag.Mods = append(tag.Mods, TagMod{Position: i, Mod: e.Jump.Mod})
		}
	}
	if last.Kind == NodeRightMod {
		tag.Mods = append(tag.Mods, TagMod{Position: len(w.edges) - 1, Mod: last.Mod})
	}
	tag.Residues = string(residues)

	tag.Score += g.cfg.EdgeScoreMultiplier *
		(g.skew[skewBin(tag.Skew, len(g.skew))] + g.absSkew[skewBin(tag.AbsSkew, len(g.absSkew))])
	w.tags = append(w.tags, tag)
	return nil
}

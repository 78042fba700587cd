// Package taggraph builds a graph over candidate cut positions of a spectrum and
// extracts short, scored sequence tags from its paths.
package taggraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/ionscore"
	"github.com/ChrisMcGann/peptag/pkg/peakindex"
)

const (
	// DefaultFragmentTolerance is the default jump matching tolerance in Da.
	DefaultFragmentTolerance = 0.5

	// DefaultParentMassTolerance is the default parent mass tolerance in Da.
	DefaultParentMassTolerance = 2.5

	// DefaultTagLength is the default number of residues per tag.
	DefaultTagLength = 3

	// DefaultMaxTags is the default number of tags kept per spectrum.
	DefaultMaxTags = 100

	// DefaultEdgeScoreMultiplier weights the skew tables in the tag score.
	DefaultEdgeScoreMultiplier = 2.0

	// DefaultModPenalty is added to the score of every modified jump.
	DefaultModPenalty = -1.0

	// MinNodeMass is the lightest prefix mass, other than zero, kept as a node.
	MinNodeMass = 50.0

	// MaxTagLength bounds the number of residues per tag.
	MaxTagLength = 12
)

// ErrState is returned when graph operations are called out of order.
var ErrState = errors.New("tag graph operation out of order")

// State is the build stage of a graph.
type State int

const (
	Empty State = iota
	NodesAdded
	EdgesPopulated
	TagsExtracted
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case NodesAdded:
		return "nodes added"
	case EdgesPopulated:
		return "edges populated"
	case TagsExtracted:
		return "tags extracted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// NodeKind tells how a node's mass was derived.
type NodeKind int

const (
	NodeB        NodeKind = iota // Peak read as a b ion
	NodeY                        // Peak read as a y ion
	NodeLeft                     // Prefix mass zero
	NodeLeftMod                  // Prefix mass of an N-terminal modification
	NodeRight                    // Full residue mass
	NodeRightMod                 // Full residue mass less a C-terminal modification
)

func (k NodeKind) String() string {
	switch k {
	case NodeB:
		return "b"
	case NodeY:
		return "y"
	case NodeLeft:
		return "left"
	case NodeLeftMod:
		return "left-mod"
	case NodeRight:
		return "right"
	case NodeRightMod:
		return "right-mod"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Endpoint reports whether the kind is a sequence end rather than a peak.
func (k NodeKind) Endpoint() bool {
	return k >= NodeLeft
}

func (k NodeKind) left() bool  { return k == NodeLeft || k == NodeLeftMod }
func (k NodeKind) right() bool { return k == NodeRight || k == NodeRightMod }

// Node is a candidate prefix residue mass.
type Node struct {
	Kind  NodeKind
	Mass  float64
	Peak  int // Index of the source peak, -1 for endpoints
	Rank  int // Intensity rank of the source peak, -1 for endpoints
	Score float64
	Mod   *core.ModSpec // Terminal modification of a mod endpoint

	values    ionscore.Values
	firstEdge int
	edgeCount int
}

// Edge links two nodes whose mass gap matches a jump.
type Edge struct {
	From, To int
	Jump     *Jump
	Skew     float64 // Gap minus jump mass
	Score    float64
}

// Config holds tagging tolerances and scoring weights.
type Config struct {
	FragmentTolerance   float64
	ParentMassTolerance float64
	EdgeScoreMultiplier float64
}

// DefaultConfig returns the standard tagging settings.
func DefaultConfig() Config {
	return Config{
		FragmentTolerance:   DefaultFragmentTolerance,
		ParentMassTolerance: DefaultParentMassTolerance,
		EdgeScoreMultiplier: DefaultEdgeScoreMultiplier,
	}
}

// Graph is the tag graph of one spectrum under one (charge, parent mass)
// hypothesis. Nodes and edges live in arenas addressed by index. A Graph is
// not safe for concurrent use.
type Graph struct {
	cfg     Config
	skew    []float64
	absSkew []float64

	state       State
	parentMass  float64
	charge      int
	usablePeaks int
	net         *ionscore.Network

	Nodes []Node
	Edges []Edge
}

// New creates an empty graph. skew and absSkew score the signed and absolute
// total skew of a tag in 0.05 Da bins; empty tables score zero.
func New(cfg Config, skew, absSkew []float64) *Graph {
	if len(skew) == 0 {
		skew = []float64{0}
	}
	if len(absSkew) == 0 {
		absSkew = []float64{0}
	}
	return &Graph{cfg: cfg, skew: skew, absSkew: absSkew}
}

// State returns the build stage.
func (g *Graph) State() State {
	return g.state
}

// Reset discards the graph so the next hypothesis can be built.
func (g *Graph) Reset() {
	g.state = Empty
	g.parentMass, g.charge, g.usablePeaks = 0, 0, 0
	g.net = nil
	g.Nodes = g.Nodes[:0]
	g.Edges = g.Edges[:0]
}

// usable reports whether a node mass can start or end a residue.
func (g *Graph) usable(mass float64) bool {
	eps := g.cfg.FragmentTolerance
	return mass > -eps && (mass < eps || mass > MinNodeMass) && mass < g.parentMass+g.cfg.ParentMassTolerance
}

// AddNodes adds a b and a y node for every peak of spec whose prefix mass is
// plausible at parentMass, the two sequence endpoints and an endpoint per
// terminal modification in mods. Nodes are sorted by mass.
func (g *Graph) AddNodes(spec *core.Spectrum, parentMass float64, mods []core.ModSpec) error {
	if g.state != Empty {
		return fmt.Errorf("adding nodes to a graph in state %s: %w", g.state, ErrState)
	}
	g.parentMass = parentMass
	g.charge = spec.Charge

	for i, p := range spec.Peaks {
		before := len(g.Nodes)
		if m := p.Mass - core.ProtonMass; g.usable(m) {
			g.Nodes = append(g.Nodes, Node{Kind: NodeB, Mass: m, Peak: i, Rank: p.Rank})
		}
		if m := parentMass - p.Mass; g.usable(m) {
			g.Nodes = append(g.Nodes, Node{Kind: NodeY, Mass: m, Peak: i, Rank: p.Rank})
		}
		if len(g.Nodes) > before {
			g.usablePeaks++
		}
	}

	residues := parentMass - core.ParentMassBoost
	g.Nodes = append(g.Nodes,
		Node{Kind: NodeLeft, Mass: 0, Peak: -1, Rank: -1},
		Node{Kind: NodeRight, Mass: residues, Peak: -1, Rank: -1},
	)
	for i := range mods {
		mod := &mods[i]
		switch mod.Terminus {
		case core.NTerminus:
			g.Nodes = append(g.Nodes, Node{Kind: NodeLeftMod, Mass: mod.Mass, Peak: -1, Rank: -1, Mod: mod})
		case core.CTerminus:
			g.Nodes = append(g.Nodes, Node{Kind: NodeRightMod, Mass: residues - mod.Mass, Peak: -1, Rank: -1, Mod: mod})
		}
	}

	sort.SliceStable(g.Nodes, func(a, b int) bool {
		return g.Nodes[a].Mass < g.Nodes[b].Mass
	})
	g.state = NodesAdded
	return nil
}

// ScoreNodes scores every peak node as a cut with net against the indexed
// spectrum. Endpoints score 0. The node values are kept for flank re-scoring
// during tag generation.
func (g *Graph) ScoreNodes(net *ionscore.Network, ix *peakindex.Index) error {
	if g.state != NodesAdded {
		return fmt.Errorf("scoring nodes of a graph in state %s: %w", g.state, ErrState)
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Kind.Endpoint() {
			n.Score = 0
			continue
		}
		score, values, err := net.ScorePRM(ix, g.parentMass, n.Mass)
		if err != nil {
			return fmt.Errorf("scoring node at %.3f: %w", n.Mass, err)
		}
		n.Score, n.values = score, values
	}
	g.net = net
	return nil
}

// PopulateEdges links every ordered node pair whose gap matches a jump within
// the fragment tolerance. Left endpoints receive no edges and right endpoints
// emit none.
func (g *Graph) PopulateEdges(jumps *Jumps) error {
	if g.state != NodesAdded {
		return fmt.Errorf("populating edges of a graph in state %s: %w", g.state, ErrState)
	}
	minJump := core.GlycineMass - 2
	maxJump := jumps.MaxMass() + g.cfg.ParentMassTolerance

	for i := range g.Nodes {
		from := &g.Nodes[i]
		from.firstEdge = len(g.Edges)
		from.edgeCount = 0
		if from.Kind.right() {
			continue
		}
		for j := i + 1; j < len(g.Nodes); j++ {
			to := &g.Nodes[j]
			if to.Kind.left() {
				continue
			}
			gap := to.Mass - from.Mass
			if gap < minJump {
				continue
			}
			if gap > maxJump {
				break
			}
			for _, jump := range jumps.Match(gap, g.cfg.FragmentTolerance) {
				g.Edges = append(g.Edges, Edge{
					From:  i,
					To:    j,
					Jump:  jump,
					Skew:  gap - jump.Mass,
					Score: jump.Score,
				})
				from.edgeCount++
			}
		}
	}
	g.state = EdgesPopulated
	return nil
}

// edges returns the outgoing edges of node i.
func (g *Graph) edges(i int) []Edge {
	n := &g.Nodes[i]
	return g.Edges[n.firstEdge : n.firstEdge+n.edgeCount]
}

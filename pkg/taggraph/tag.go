package taggraph

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChrisMcGann/peptag/pkg/core"
)

const (
	// SkewBinWidth is the width of a skew table bin in Da.
	SkewBinWidth = 0.05

	// DuplicateMassTolerance is how close flanking masses of equal tags must be
	// for the tags to count as duplicates.
	DuplicateMassTolerance = 1.5
)

// TagMod places a modification on a tag residue.
type TagMod struct {
	Position int
	Mod      *core.ModSpec
}

// Tag is a short sequence read from the spectrum with the masses either side.
type Tag struct {
	PrefixMass float64
	Residues   string
	Mods       []TagMod
	SuffixMass float64
	Score      float64
	Skew       float64 // Summed signed edge skew
	AbsSkew    float64 // Summed absolute edge skew
	Charge     int
	ParentMass float64
}

// Annotated returns the residues with modification names in brackets.
func (t *Tag) Annotated() string {
	if len(t.Mods) == 0 {
		return t.Residues
	}
	var sb strings.Builder
	for i := 0; i < len(t.Residues); i++ {
		sb.WriteByte(t.Residues[i])
		for _, m := range t.Mods {
			if m.Position == i {
				fmt.Fprintf(&sb, "(%s)", m.Mod.Name)
			}
		}
	}
	return sb.String()
}

func (t *Tag) String() string {
	return fmt.Sprintf("%.2f %s %.2f", t.PrefixMass, t.Annotated(), t.SuffixMass)
}

// skewBin maps a total skew to its table bin, clamping to the last.
func skewBin(skew float64, bins int) int {
	bin := int(math.Abs(skew) / SkewBinWidth)
	return min(bin, bins-1)
}

// SortTags orders tags by score, then lower absolute skew, then lower prefix mass.
func SortTags(tags []Tag) {
	sort.SliceStable(tags, func(a, b int) bool {
		ta, tb := &tags[a], &tags[b]
		if ta.Score != tb.Score {
			return ta.Score > tb.Score
		}
		if ta.AbsSkew != tb.AbsSkew {
			return ta.AbsSkew < tb.AbsSkew
		}
		return ta.PrefixMass < tb.PrefixMass
	})
}

// trie is a prefix tree over annotated tag residues. Each terminal node keeps
// the tags already accepted for that residue string.
type trie struct {
	children map[byte]*trie
	tags     []*Tag
}

func newTrie() *trie {
	return &trie{children: make(map[byte]*trie)}
}

// insert adds tag unless an accepted tag has the same residues and flanking
// masses within DuplicateMassTolerance. When the duplicate scores lower its
// masses and score are replaced.
func (t *trie) insert(tag *Tag) bool {
	node := t
	key := tag.Annotated()
	for i := 0; i < len(key); i++ {
		child, ok := node.children[key[i]]
		if !ok {
			child = newTrie()
			node.children[key[i]] = child
		}
		node = child
	}
	for _, old := range node.tags {
		if math.Abs(old.PrefixMass-tag.PrefixMass) > DuplicateMassTolerance ||
			math.Abs(old.SuffixMass-tag.SuffixMass) > DuplicateMassTolerance {
			continue
		}
		if tag.Score > old.Score {
			old.PrefixMass, old.SuffixMass = tag.PrefixMass, tag.SuffixMass
			old.Score, old.Skew, old.AbsSkew = tag.Score, tag.Skew, tag.AbsSkew
		}
		return false
	}
	node.tags = append(node.tags, tag)
	return true
}

// Merge sorts tags, drops duplicates and keeps at most maxCount (all when
// maxCount is negative). Tags from several hypotheses of one spectrum are
// merged the same way.
func Merge(tags []Tag, maxCount int) []Tag {
	SortTags(tags)
	root := newTrie()
	var kept []*Tag
	for i := range tags {
		if maxCount >= 0 && len(kept) >= maxCount {
			break
		}
		tag := tags[i]
		tag.Mods = append([]TagMod(nil), tag.Mods...)
		if root.insert(&tag) {
			kept = append(kept, &tag)
		}
	}
	out := make([]Tag, len(kept))
	for i, t := range kept {
		out[i] = *t
	}
	return out
}

// Package convolution correlates a spectrum with mass-shifted copies of itself to
// detect complementary b/y peak pairs around a candidate parent mass.
package convolution

import (
	"math"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/peakindex"
)

const (
	// Floor keeps the self-convolution strictly positive.
	Floor = 1e-6

	totalScale = 100.0
)

// Engine computes normalised self-convolutions of one indexed spectrum at a base
// mass. Values are memoised per offset; an Engine is not safe for concurrent use.
type Engine struct {
	ix       *peakindex.Index
	baseMass float64
	scale    float64
	self     float64

	singly map[int64]float64
	doubly map[int64]float64
}

// New prepares an engine for ix around baseMass (an M+H parent mass). The index
// should be built; an unbuilt index convolves to zero everywhere.
func New(ix *peakindex.Index, baseMass float64) *Engine {
	e := &Engine{
		ix:       ix,
		baseMass: baseMass,
		singly:   make(map[int64]float64),
		doubly:   make(map[int64]float64),
	}

	spec := ix.Spectrum()
	if total := spec.TotalIntensity(); total > 0 {
		e.scale = totalScale / total
		e.scale *= e.scale
	}

	e.self = Floor
	for _, p := range spec.Peaks {
		e.self += p.Intensity * ix.TightAt(p.Mass) * e.scale
	}
	return e
}

// BaseMass returns the parent mass the engine convolves around.
func (e *Engine) BaseMass() float64 {
	return e.baseMass
}

// SelfConvolution returns the raw overlap of the spectrum with itself.
func (e *Engine) SelfConvolution() float64 {
	return e.self
}

// Convolve returns the overlap between each peak and its complement at offset,
// normalised by the self-convolution. With doubly set the complement of a singly
// charged peak is taken as a doubly charged fragment.
func (e *Engine) Convolve(offset float64, doubly bool) float64 {
	memo := e.singly
	if doubly {
		memo = e.doubly
	}
	key := int64(math.Round(offset * 1000))
	if v, ok := memo[key]; ok {
		return v
	}

	sum := 0.0
	for _, p := range e.ix.Spectrum().Peaks {
		var other float64
		if doubly {
			other = e.baseMass + 2*core.ProtonMass - 2*p.Mass + offset
		} else {
			other = e.baseMass + core.ProtonMass - p.Mass + offset
		}
		sum += p.Intensity * e.ix.TightAt(other) * e.scale
	}

	v := sum / e.self
	memo[key] = v
	return v
}

// Memoised returns the number of cached convolutions.
func (e *Engine) Memoised() int {
	return len(e.singly) + len(e.doubly)
}

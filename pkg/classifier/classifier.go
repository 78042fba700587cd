// Package classifier evaluates the kernel machines and linear discriminants used
// for parent mass and charge correction.
package classifier

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrFormat is returned for malformed model or range files.
var ErrFormat = errors.New("malformed model file")

// Model scores a feature vector. Implementations are immutable and safe for
// concurrent use.
type Model interface {
	Score(features []float64) float64
	Dims() int
}

// Range holds per-feature extrema used to scale features into [-1, 1].
type Range struct {
	Min []float64
	Max []float64
	set []bool
}

// NewRange returns a range from parallel min/max slices.
func NewRange(min, max []float64) (*Range, error) {
	if len(min) != len(max) {
		return nil, fmt.Errorf("%w: %d minima for %d maxima", ErrFormat, len(min), len(max))
	}
	r := &Range{}
	for i := range min {
		if err := r.put(i, min[i], max[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Range) put(i int, lo, hi float64) error {
	if hi <= lo {
		return fmt.Errorf("%w: feature %d has max %g <= min %g", ErrFormat, i+1, hi, lo)
	}
	for len(r.Min) <= i {
		r.Min = append(r.Min, 0)
		r.Max = append(r.Max, 0)
		r.set = append(r.set, false)
	}
	r.Min[i], r.Max[i], r.set[i] = lo, hi, true
	return nil
}

// ParseRange reads "index min max" lines with 1-based feature indices. Lines
// without a positive index (such as an "x" header) are ignored.
func ParseRange(r io.Reader) (*Range, error) {
	rng := &Range{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil || idx < 1 {
			continue
		}
		lo, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid min: %v", ErrFormat, lineNum, err)
		}
		hi, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid max: %v", ErrFormat, lineNum, err)
		}
		if err := rng.put(idx-1, lo, hi); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading range file: %w", err)
	}
	return rng, nil
}

// Scale maps features into [-1, 1] relative to the range; features without a
// range pass through. With clamp set, results are clipped to [-1, 1].
func (r *Range) Scale(features []float64, dims int, clamp bool) []float64 {
	out := make([]float64, dims)
	for i := 0; i < dims && i < len(features); i++ {
		x := features[i]
		if r != nil && i < len(r.set) && r.set[i] {
			half := (r.Max[i] - r.Min[i]) / 2
			x = (x-r.Min[i])/half - 1
			if clamp {
				x = clip(x)
			}
		}
		out[i] = x
	}
	return out
}

func clip(x float64) float64 {
	if x < -1 {
		return -1
	}
	if x > 1 {
		return 1
	}
	return x
}

package classifier

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// KernelMachine is a radial basis function support vector machine.
type KernelMachine struct {
	Gamma   float64
	Rho     float64
	Vectors [][]float64
	Weights []float64
	Range   *Range
	dims    int
}

// NewKernelMachine builds a kernel machine; vectors are zero-padded to a common length.
func NewKernelMachine(gamma, rho float64, vectors [][]float64, weights []float64, rng *Range) (*KernelMachine, error) {
	if len(vectors) != len(weights) {
		return nil, fmt.Errorf("%w: %d support vectors for %d weights", ErrFormat, len(vectors), len(weights))
	}
	k := &KernelMachine{Gamma: gamma, Rho: rho, Weights: weights, Range: rng}
	for _, v := range vectors {
		if len(v) > k.dims {
			k.dims = len(v)
		}
	}
	k.Vectors = make([][]float64, len(vectors))
	for i, v := range vectors {
		padded := make([]float64, k.dims)
		copy(padded, v)
		k.Vectors[i] = padded
	}
	return k, nil
}

// Dims returns the feature count the machine was trained on.
func (k *KernelMachine) Dims() int {
	return k.dims
}

// Score returns sum(weight * exp(-gamma * |scaled - sv|^2)) - rho.
func (k *KernelMachine) Score(features []float64) float64 {
	scaled := k.Range.Scale(features, k.dims, true)
	total := 0.0
	for i, sv := range k.Vectors {
		d := floats.Distance(scaled, sv, 2)
		total += k.Weights[i] * math.Exp(-k.Gamma*d*d)
	}
	return total - k.Rho
}

// ParseKernelMachine reads a model file ("gamma X", "rho X", "sv", then
// "weight index:value ..." lines) and an optional range file.
func ParseKernelMachine(model io.Reader, scaling io.Reader) (*KernelMachine, error) {
	var gamma, rho float64
	var vectors [][]float64
	var weights []float64

	scanner := bufio.NewScanner(model)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	inVectors := false
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if !inVectors {
			if fields[0] == "sv" {
				inVectors = true
				continue
			}
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: line %d: header '%s' needs a value", ErrFormat, lineNum, fields[0])
			}
			switch fields[0] {
			case "gamma", "rho":
				v, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: invalid %s: %v", ErrFormat, lineNum, fields[0], err)
				}
				if fields[0] == "gamma" {
					gamma = v
				} else {
					rho = v
				}
			}
			continue
		}

		weight, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid weight: %v", ErrFormat, lineNum, err)
		}
		var sv []float64
		for _, f := range fields[1:] {
			idxStr, valStr, ok := strings.Cut(f, ":")
			if !ok {
				return nil, fmt.Errorf("%w: line %d: expected index:value, got '%s'", ErrFormat, lineNum, f)
			}
			idx, err := strconv.Atoi(idxStr)
			if err != nil || idx < 1 {
				return nil, fmt.Errorf("%w: line %d: invalid index '%s'", ErrFormat, lineNum, idxStr)
			}
			val, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: invalid value '%s'", ErrFormat, lineNum, valStr)
			}
			for len(sv) < idx {
				sv = append(sv, 0)
			}
			sv[idx-1] = val
		}
		vectors = append(vectors, sv)
		weights = append(weights, weight)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading model file: %w", err)
	}
	if !inVectors {
		return nil, fmt.Errorf("%w: no support vector section", ErrFormat)
	}

	var rng *Range
	if scaling != nil {
		var err error
		if rng, err = ParseRange(scaling); err != nil {
			return nil, err
		}
	}
	return NewKernelMachine(gamma, rho, vectors, weights, rng)
}

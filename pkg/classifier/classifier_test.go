package classifier

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const rangeFile = `x
-1 0 0
1 0 2
2 0 2
`

const kernelFile = `svm_type c_svc
kernel_type rbf
gamma 0.5
rho 0.1
sv
1.0 1:-1 2:-1
-0.5 2:1
`

func TestParseRange(t *testing.T) {
	rng, err := ParseRange(strings.NewReader(rangeFile))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, rng.Min)
	assert.Equal(t, []float64{2, 2}, rng.Max)

	_, err = ParseRange(strings.NewReader("1 5 2\n"))
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestRangeScale(t *testing.T) {
	rng, err := NewRange([]float64{0, 10}, []float64{2, 20})
	require.NoError(t, err)

	tests := []struct {
		name     string
		features []float64
		clamp    bool
		want     []float64
	}{
		{"midpoint", []float64{1, 15}, true, []float64{0, 0}},
		{"extrema", []float64{0, 20}, true, []float64{-1, 1}},
		{"clamped", []float64{5, 0}, true, []float64{1, -1}},
		{"unclamped", []float64{4, 15}, false, []float64{3, 0}},
		{"unranged feature passes through", []float64{1, 15, 7}, true, []float64{0, 0, 7}},
		{"missing feature is zero", []float64{1}, true, []float64{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rng.Scale(tt.features, len(tt.want), tt.clamp)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestKernelMachine(t *testing.T) {
	k, err := ParseKernelMachine(strings.NewReader(kernelFile), strings.NewReader(rangeFile))
	require.NoError(t, err)
	assert.Equal(t, 2, k.Dims())
	assert.Equal(t, []float64{0, 1}, k.Vectors[1])

	tests := []struct {
		name     string
		features []float64
	}{
		{"origin", []float64{0, 0}},
		{"centre", []float64{1, 1}},
		{"clamped", []float64{9, -3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scaled := k.Range.Scale(tt.features, 2, true)
			want := -0.1
			for i, sv := range k.Vectors {
				d := 0.0
				for j := range sv {
					d += (scaled[j] - sv[j]) * (scaled[j] - sv[j])
				}
				want += k.Weights[i] * math.Exp(-0.5*d)
			}
			got := k.Score(tt.features)
			assert.InDelta(t, want, got, 1e-12)
			assert.Equal(t, got, k.Score(tt.features), "score must be deterministic")
		})
	}

	// At the first support vector the kernel contributes its full weight
	atFirst := k.Score([]float64{0, 0})
	assert.InDelta(t, 1.0-0.5*math.Exp(-0.5*5)-0.1, atFirst, 1e-12)
}

func TestParseKernelMachineErrors(t *testing.T) {
	tests := []struct {
		name  string
		model string
	}{
		{"no vectors section", "gamma 0.5\nrho 1\n"},
		{"bad weight", "sv\nabc 1:1\n"},
		{"bad pair", "sv\n1.0 1-1\n"},
		{"zero index", "sv\n1.0 0:1\n"},
		{"header without value", "gamma\nsv\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKernelMachine(strings.NewReader(tt.model), nil)
			assert.True(t, errors.Is(err, ErrFormat), "got %v", err)
		})
	}
}

const discriminantFile = `# charge 2 parent mass model
features 2
mean_true 1 0
mean_false 0 0
covinv
2 0
0 1
const_true 0.5
const_false 0.2
`

func TestLinearDiscriminant(t *testing.T) {
	lda, err := ParseLinearDiscriminant(strings.NewReader(discriminantFile), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, lda.Dims())

	tests := []struct {
		features []float64
		want     float64
	}{
		{[]float64{0, 0}, 0.3},
		{[]float64{1, 5}, 2.3},
		{[]float64{-2, 1}, -3.7},
	}

	for _, tt := range tests {
		got := lda.Score(tt.features)
		assert.InDelta(t, tt.want, got, 1e-12, "features %v", tt.features)
		assert.Equal(t, got, lda.Score(tt.features))
	}
}

func TestLinearDiscriminantScaled(t *testing.T) {
	rng, err := NewRange([]float64{0}, []float64{4})
	require.NoError(t, err)
	lda, err := NewLinearDiscriminant([]float64{3}, []float64{1}, mat.NewDense(1, 1, []float64{0.5}), 0, 1, rng)
	require.NoError(t, err)

	// x = 6 scales to 2 (no clamping); weight = 0.5 * (3 - 1) = 1
	assert.InDelta(t, 2.0-1.0, lda.Score([]float64{6}), 1e-12)
}

func TestParseLinearDiscriminantErrors(t *testing.T) {
	tests := []struct {
		name  string
		model string
	}{
		{"missing rows", "features 2\nmean_true 1 0\nmean_false 0 0\ncovinv\n1 0\n"},
		{"short row", "features 2\ncovinv\n1\n0 1\n"},
		{"mean size", "features 2\nmean_true 1\nmean_false 0 0\ncovinv\n1 0\n0 1\n"},
		{"unknown key", "features 1\nbias 2\n"},
		{"bad count", "features 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLinearDiscriminant(strings.NewReader(tt.model), nil)
			assert.True(t, errors.Is(err, ErrFormat), "got %v", err)
		})
	}
}

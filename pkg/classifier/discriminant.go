package classifier

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// LinearDiscriminant scores features as (meanTrue - meanFalse)^T CovInv x +
// (constTrue - constFalse), where x is the range-scaled feature vector.
type LinearDiscriminant struct {
	MeanTrue   []float64
	MeanFalse  []float64
	CovInv     *mat.Dense
	ConstTrue  float64
	ConstFalse float64
	Range      *Range

	weights *mat.VecDense
}

// NewLinearDiscriminant validates dimensions and precomputes the weight vector.
func NewLinearDiscriminant(meanTrue, meanFalse []float64, covInv *mat.Dense, constTrue, constFalse float64, rng *Range) (*LinearDiscriminant, error) {
	n := len(meanTrue)
	if n == 0 || len(meanFalse) != n {
		return nil, fmt.Errorf("%w: class means have %d and %d features", ErrFormat, len(meanTrue), len(meanFalse))
	}
	if r, c := covInv.Dims(); r != n || c != n {
		return nil, fmt.Errorf("%w: inverse covariance is %dx%d, want %dx%d", ErrFormat, r, c, n, n)
	}

	diff := mat.NewVecDense(n, nil)
	diff.SubVec(mat.NewVecDense(n, meanTrue), mat.NewVecDense(n, meanFalse))

	w := mat.NewVecDense(n, nil)
	w.MulVec(covInv.T(), diff)

	return &LinearDiscriminant{
		MeanTrue:   meanTrue,
		MeanFalse:  meanFalse,
		CovInv:     covInv,
		ConstTrue:  constTrue,
		ConstFalse: constFalse,
		Range:      rng,
		weights:    w,
	}, nil
}

// Dims returns the number of features.
func (l *LinearDiscriminant) Dims() int {
	return len(l.MeanTrue)
}

// Score returns the discriminant value; positive favours the true class.
func (l *LinearDiscriminant) Score(features []float64) float64 {
	x := mat.NewVecDense(l.Dims(), l.Range.Scale(features, l.Dims(), false))
	return mat.Dot(l.weights, x) + l.ConstTrue - l.ConstFalse
}

// ParseLinearDiscriminant reads the discriminant text format:
//
//	features N
//	mean_true v1 ... vN
//	mean_false v1 ... vN
//	covinv
//	<N rows of N values>
//	const_true X
//	const_false X
//
// followed by an optional range file.
func ParseLinearDiscriminant(model io.Reader, scaling io.Reader) (*LinearDiscriminant, error) {
	var (
		n                     int
		meanTrue, meanFalse   []float64
		rows                  [][]float64
		constTrue, constFalse float64
		inMatrix              bool
	)

	scanner := bufio.NewScanner(model)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		if inMatrix && len(rows) < n {
			row, err := parseFloats(fields)
			if err != nil || len(row) != n {
				return nil, fmt.Errorf("%w: line %d: covinv row needs %d values", ErrFormat, lineNum, n)
			}
			rows = append(rows, row)
			continue
		}

		var err error
		switch fields[0] {
		case "features":
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: line %d: features needs a count", ErrFormat, lineNum)
			}
			n, err = strconv.Atoi(fields[1])
			if err == nil && n < 1 {
				err = fmt.Errorf("count %d", n)
			}
		case "mean_true":
			meanTrue, err = parseFloats(fields[1:])
		case "mean_false":
			meanFalse, err = parseFloats(fields[1:])
		case "covinv":
			inMatrix = true
		case "const_true":
			constTrue, err = parseScalar(fields)
		case "const_false":
			constFalse, err = parseScalar(fields)
		default:
			err = fmt.Errorf("unknown key '%s'", fields[0])
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading model file: %w", err)
	}
	if n == 0 || len(rows) != n {
		return nil, fmt.Errorf("%w: expected %d covinv rows, got %d", ErrFormat, n, len(rows))
	}

	data := make([]float64, 0, n*n)
	for _, row := range rows {
		data = append(data, row...)
	}

	var rng *Range
	if scaling != nil {
		var err error
		if rng, err = ParseRange(scaling); err != nil {
			return nil, err
		}
	}
	return NewLinearDiscriminant(meanTrue, meanFalse, mat.NewDense(n, n, data), constTrue, constFalse, rng)
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseScalar(fields []string) (float64, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("%s needs one value", fields[0])
	}
	return strconv.ParseFloat(fields[1], 64)
}

package modelstore

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxSkewBins bounds the bin count read from a skew file.
const maxSkewBins = 1 << 20

// ReadSkewTables reads a little-endian int32 bin count followed by that many
// float32 skew scores and as many float32 total absolute skew scores.
func ReadSkewTables(r io.Reader) (skew, abs []float64, err error) {
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, nil, fmt.Errorf("reading skew bin count: %w", err)
	}
	if count <= 0 || count > maxSkewBins {
		return nil, nil, fmt.Errorf("skew table of %d bins", count)
	}

	raw := make([]float32, 2*int(count))
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, nil, fmt.Errorf("reading skew tables: %w", err)
	}
	skew = make([]float64, count)
	abs = make([]float64, count)
	for i := range skew {
		skew[i] = float64(raw[i])
		abs[i] = float64(raw[int(count)+i])
	}
	return skew, abs, nil
}

// WriteSkewTables writes tables in the format ReadSkewTables reads.
func WriteSkewTables(w io.Writer, skew, abs []float64) error {
	if len(skew) == 0 || len(skew) != len(abs) {
		return fmt.Errorf("skew tables of %d and %d bins", len(skew), len(abs))
	}
	raw := make([]float32, 0, 2*len(skew))
	for _, v := range skew {
		raw = append(raw, float32(v))
	}
	for _, v := range abs {
		raw = append(raw, float32(v))
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(skew))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, raw)
}

// Package mgf provides a streaming reader for Mascot Generic Format peak lists.
package mgf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/peptag/pkg/core"
)

// Reader provides streaming access to the BEGIN IONS ... END IONS blocks of an MGF file.
type Reader struct {
	scanner *bufio.Scanner
	lineNum int
	current *core.Spectrum
	err     error
}

// NewReader creates a new MGF reader.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: sc}
}

// Next advances to the next spectrum. It returns false at the end of input or on error.
func (r *Reader) Next() bool {
	r.current = nil
	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	r.current = spec
	return true
}

// Spectrum returns the current spectrum.
func (r *Reader) Spectrum() *core.Spectrum {
	return r.current
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

// readSpectrum skips to the next BEGIN IONS and reads up to its END IONS.
// Lines outside blocks, such as global parameters and comments, are ignored.
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	var spec *core.Spectrum
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' || line[0] == '!' {
			continue
		}

		if spec == nil {
			if strings.EqualFold(line, "BEGIN IONS") {
				spec = &core.Spectrum{SourceFormat: "mgf"}
			}
			continue
		}

		switch {
		case strings.EqualFold(line, "END IONS"):
			if len(spec.FileCharges) == 1 {
				spec.SetCharge(spec.FileCharges[0])
			}
			return spec, nil
		case line[0] >= '0' && line[0] <= '9':
			peak, err := parsePeak(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			spec.Peaks = append(spec.Peaks, peak)
		default:
			if err := parseField(spec, line); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if spec != nil {
		return nil, fmt.Errorf("line %d: missing END IONS", r.lineNum)
	}
	return nil, io.EOF
}

// parseField reads a KEY=value line of a block. Unknown keys are ignored.
func parseField(spec *core.Spectrum, line string) error {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return fmt.Errorf("expected KEY=value, got %q", line)
	}
	value = strings.TrimSpace(value)

	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "TITLE":
		spec.Title = value
	case "PEPMASS":
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return fmt.Errorf("empty PEPMASS")
		}
		mz, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("invalid PEPMASS %q: %w", value, err)
		}
		spec.PrecursorMZ = mz
	case "CHARGE":
		charges, err := ParseCharges(value)
		if err != nil {
			return err
		}
		spec.FileCharges = charges
	case "SEQ":
		spec.Sequence = value
	case "RTINSECONDS":
		if rt, err := strconv.ParseFloat(value, 64); err == nil {
			spec.RetentionTime = &rt
		}
	case "SCANS":
		first, _, _ := strings.Cut(value, "-")
		if scan, err := strconv.Atoi(first); err == nil {
			spec.ScanNumber = scan
		}
	}
	return nil
}

// ParseCharges reads charge lists such as "2+", "3-", "2+ and 3+" or "2,3".
// Signs are dropped.
func ParseCharges(value string) ([]int, error) {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ','
	})
	var charges []int
	for _, f := range fields {
		if strings.EqualFold(f, "and") {
			continue
		}
		z, err := strconv.Atoi(strings.Trim(f, "+-"))
		if err != nil || z < 1 {
			return nil, fmt.Errorf("invalid charge %q", value)
		}
		charges = append(charges, z)
	}
	return charges, nil
}

// parsePeak reads "mass intensity [charge]".
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak %q, expected mass and intensity", line)
	}
	mass, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid peak mass: %w", err)
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid peak intensity: %w", err)
	}
	return core.Peak{Mass: mass, Intensity: intensity}, nil
}

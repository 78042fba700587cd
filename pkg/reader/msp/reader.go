// Package msp provides a streaming reader for annotated MSP spectral libraries.
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/peptag/pkg/core"
)

// Reader provides streaming access to MSP entries.
type Reader struct {
	scanner *bufio.Scanner
	modDB   *core.ModDatabase
	lineNum int
	current *core.Spectrum
	err     error
}

// NewReader creates a reader; a nil modDB uses the default database.
func NewReader(r io.Reader, modDB *core.ModDatabase) *Reader {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: sc, modDB: modDB}
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

// readSpectrum reads one entry: header lines up to "Num peaks", then that many peak lines.
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	spec := &core.Spectrum{SourceFormat: "msp"}
	started := false
	numPeaks := -1

	for numPeaks != len(spec.Peaks) && r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			if started && numPeaks < 0 {
				return nil, fmt.Errorf("line %d: entry %q ends before its peak list", r.lineNum, spec.Title)
			}
			continue
		}
		started = true

		if numPeaks >= 0 {
			peak, err := parsePeak(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			spec.Peaks = append(spec.Peaks, peak)
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected a header field, got %q", r.lineNum, line)
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "name":
			if err := parseName(spec, value); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
		case "comment":
			r.parseComment(spec, value)
		case "precursormz":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				spec.PrecursorMZ = mz
			}
		case "num peaks":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("line %d: invalid peak count %q", r.lineNum, value)
			}
			numPeaks = n
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if !started {
		return nil, io.EOF
	}
	if numPeaks != len(spec.Peaks) {
		return nil, fmt.Errorf("entry %q: expected %d peaks, read %d", spec.Title, numPeaks, len(spec.Peaks))
	}
	if spec.PrecursorMZ == 0 && spec.Sequence != "" && spec.Charge > 0 {
		spec.PrecursorMZ = core.CalculatePeptideMass(spec.Sequence, spec.Charge, spec.Modifications)
	}
	if spec.Charge > 0 {
		spec.SetCharge(spec.Charge)
	}
	return spec, nil
}

// parseName reads "SEQUENCE/CHARGE"; the charge becomes the file charge.
func parseName(spec *core.Spectrum, name string) error {
	spec.Title = name
	seq, chargeStr, ok := strings.Cut(name, "/")
	if !ok {
		return fmt.Errorf("invalid name %q, expected SEQUENCE/CHARGE", name)
	}
	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name %q: %w", name, err)
	}
	spec.Sequence = seq
	spec.Charge = charge
	spec.FileCharges = []int{charge}
	return nil
}

// parseComment reads the key=value pairs of a Comment line. Unknown keys and
// unparsable values are ignored.
func (r *Reader) parseComment(spec *core.Spectrum, comment string) {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				spec.PrecursorMZ = mz
			}
		case "Collision_energy", "CollisionEnergy":
			if ce, err := strconv.ParseFloat(value, 64); err == nil {
				spec.CollisionEnergy = &ce
			}
		case "iRT", "RetentionTime":
			if rt, err := strconv.ParseFloat(value, 64); err == nil {
				spec.RetentionTime = &rt
			}
		case "Scan":
			if scan, err := strconv.Atoi(value); err == nil {
				spec.ScanNumber = scan
			}
		case "ModString":
			r.parseModString(spec, value)
		}
	}
}

// parseModString reads "SEQUENCE//Name@Pos;Name@Pos/Charge" with 1-based
// positions. A string naming an unknown modification is dropped whole.
func (r *Reader) parseModString(spec *core.Spectrum, modString string) {
	seq, mods, ok := strings.Cut(modString, "//")
	if !ok {
		return
	}
	mods, _, _ = strings.Cut(mods, "/")
	if parsed, err := r.modDB.ParseModString(mods, seq); err == nil {
		spec.Modifications = parsed
	}
}

// parsePeak reads "mass intensity [\"annotation/error\"]".
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak %q, expected at least 2 fields", line)
	}
	mass, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid peak mass: %w", err)
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid peak intensity: %w", err)
	}
	peak := core.Peak{Mass: mass, Intensity: intensity}
	if len(fields) >= 3 {
		ann := strings.Trim(fields[2], "\"")
		ann, _, _ = strings.Cut(ann, "/")
		peak.Annotation = ann
	}
	return peak, nil
}

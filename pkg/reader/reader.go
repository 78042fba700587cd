// Package reader opens spectrum files by extension.
package reader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/reader/mgf"
	"github.com/ChrisMcGann/peptag/pkg/reader/msp"
)

// Iterator is the streaming interface shared by the format readers.
type Iterator interface {
	Next() bool
	Spectrum() *core.Spectrum
	Err() error
}

// New returns the reader for format ("mgf" or "msp").
func New(r io.Reader, format string, modDB *core.ModDatabase) (Iterator, error) {
	switch strings.ToLower(format) {
	case "mgf":
		return mgf.NewReader(r), nil
	case "msp":
		return msp.NewReader(r, modDB), nil
	}
	return nil, fmt.Errorf("unsupported spectrum format %q", format)
}

// Format returns the format implied by a file extension.
func Format(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// ReadFile reads every spectrum of path, recording the file name on each.
func ReadFile(path string, modDB *core.ModDatabase) ([]*core.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spectra: %w", err)
	}
	defer f.Close()

	it, err := New(f, Format(path), modDB)
	if err != nil {
		return nil, err
	}
	return Collect(it, filepath.Base(path))
}

// Collect drains it.
func Collect(it Iterator, source string) ([]*core.Spectrum, error) {
	var spectra []*core.Spectrum
	for it.Next() {
		spec := it.Spectrum()
		spec.SourceFile = source
		spectra = append(spectra, spec)
	}
	if err := it.Err(); err != nil {
		return spectra, fmt.Errorf("%s: %w", source, err)
	}
	return spectra, nil
}

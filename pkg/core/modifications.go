// Package core provides modification parsing and management
package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Terminus restricts where a modification may sit on a peptide.
type Terminus int

const (
	AnyPosition Terminus = iota
	NTerminus
	CTerminus
)

// ModSpec is a searchable modification: mass shift, allowed residues and terminus.
type ModSpec struct {
	Name     string
	Mass     float64
	Residues string // Allowed residues; empty allows any
	Terminus Terminus
	Fixed    bool
}

// Allows reports whether the modification may sit on residue aa.
func (m ModSpec) Allows(aa byte) bool {
	return m.Residues == "" || strings.IndexByte(m.Residues, aa) >= 0
}

// IsPhospho reports whether the modification is a phosphorylation.
func (m ModSpec) IsPhospho() bool {
	return IsPhospho(Modification{Name: m.Name, Mass: m.Mass})
}

// ModDatabase stores modification definitions
type ModDatabase struct {
	mods     map[string]float64 // name -> mass shift
	residues map[string]string  // name -> allowed residues
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods:     make(map[string]float64),
		residues: make(map[string]string),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift,aa)
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// header
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		residues := ""
		if len(parts) > 2 {
			residues = strings.ToUpper(strings.TrimSpace(parts[2]))
		}
		db.AddSpecific(modName, mass, residues)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// Residues returns the residues a named modification is known to target.
func (db *ModDatabase) Residues(name string) string {
	return db.residues[name]
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// AddSpecific adds a modification with its residue specificity.
func (db *ModDatabase) AddSpecific(name string, mass float64, residues string) {
	db.mods[name] = mass
	if residues != "" {
		db.residues[name] = residues
	}
}

// NameForMass returns the modification whose mass is closest to mass within tol, or "".
func (db *ModDatabase) NameForMass(mass, tol float64) string {
	names := make([]string, 0, len(db.mods))
	for name := range db.mods {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestDiff := "", tol
	for _, name := range names {
		if diff := math.Abs(db.mods[name] - mass); diff <= bestDiff {
			if best == "" || diff < bestDiff {
				best, bestDiff = name, diff
			}
		}
	}
	return best
}

// ParseModSpec parses "Phospho@STY", "Acetyl@nterm", "Amidated@cterm", "15.9949@M" or a bare name.
func (db *ModDatabase) ParseModSpec(s string, fixed bool) (ModSpec, error) {
	s = strings.TrimSpace(s)
	nameOrMass, target, hasTarget := strings.Cut(s, "@")
	nameOrMass = strings.TrimSpace(nameOrMass)

	spec := ModSpec{Name: nameOrMass, Fixed: fixed}
	if mass, err := strconv.ParseFloat(nameOrMass, 64); err == nil {
		spec.Mass = mass
		if name := db.NameForMass(mass, 0.01); name != "" {
			spec.Name = name
		}
	} else {
		mass, ok := db.GetMass(nameOrMass)
		if !ok {
			return ModSpec{}, fmt.Errorf("unknown modification '%s'", nameOrMass)
		}
		spec.Mass = mass
		spec.Residues = db.Residues(nameOrMass)
	}

	if hasTarget {
		switch t := strings.TrimSpace(target); strings.ToLower(t) {
		case "nterm", "n-term":
			spec.Terminus = NTerminus
			spec.Residues = ""
		case "cterm", "c-term":
			spec.Terminus = CTerminus
			spec.Residues = ""
		default:
			t = strings.ToUpper(t)
			for i := 0; i < len(t); i++ {
				if _, ok := ResidueMass(t[i]); !ok {
					return ModSpec{}, fmt.Errorf("invalid residue '%c' in modification '%s'", t[i], s)
				}
			}
			spec.Residues = t
		}
	}
	return spec, nil
}

// ParseModString parses a modification string like "57.021464@2;15.994915@8" or "Carbamidomethyl@C2;Oxidation@M8"
// Returns a list of modifications
func (db *ModDatabase) ParseModString(modStr string, sequence string) ([]Modification, error) {
	if modStr == "" {
		return nil, nil
	}

	var mods []Modification
	parts := strings.Split(modStr, ";")

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		atParts := strings.Split(part, "@")
		if len(atParts) != 2 {
			return nil, fmt.Errorf("invalid modification format '%s', expected 'name@position' or 'mass@position'", part)
		}

		nameOrMass := strings.TrimSpace(atParts[0])
		posStr := strings.TrimSpace(atParts[1])

		mass, err := strconv.ParseFloat(nameOrMass, 64)
		if err != nil {
			var ok bool
			mass, ok = db.GetMass(nameOrMass)
			if !ok {
				return nil, fmt.Errorf("unknown modification '%s'", nameOrMass)
			}
		}

		position, err := parsePosition(posStr, sequence)
		if err != nil {
			return nil, fmt.Errorf("invalid position '%s': %w", posStr, err)
		}

		mods = append(mods, Modification{
			Mass:     mass,
			Position: position,
			Name:     nameOrMass,
		})
	}

	return mods, nil
}

// parsePosition parses a position string that may be just a number or include an amino acid
// Examples: "2", "C2", "R-1" (N-terminal)
func parsePosition(posStr string, sequence string) (int, error) {
	posStr = strings.TrimSpace(posStr)

	if posStr == "-1" || strings.HasSuffix(posStr, "-1") {
		return -1, nil
	}

	posStr = strings.TrimLeft(posStr, "ACDEFGHIKLMNPQRSTVWY")

	pos, err := strconv.Atoi(posStr)
	if err != nil {
		return 0, fmt.Errorf("invalid position number: %w", err)
	}

	// 1-based input
	if pos > 0 {
		pos = pos - 1
	}
	if pos >= len(sequence) && sequence != "" {
		return 0, fmt.Errorf("position %d beyond sequence of length %d", pos+1, len(sequence))
	}

	return pos, nil
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	// Common modifications from unimod
	db.Add("Acetyl", 42.010565)
	db.Add("Amidated", -0.984016)
	db.AddSpecific("Carbamidomethyl", 57.021464, "C")
	db.AddSpecific("Carbamyl", 43.005814, "K")
	db.AddSpecific("Carboxymethyl", 58.005479, "C")
	db.AddSpecific("Deamidated", 0.984016, "NQ")
	db.AddSpecific("Phospho", 79.966331, "STY")
	db.AddSpecific("Dehydrated", -18.010565, "ST")
	db.AddSpecific("Propionamide", 71.037114, "C")
	db.AddSpecific("Glu->pyro-Glu", -18.010565, "E")
	db.AddSpecific("Gln->pyro-Glu", -17.026549, "Q")
	db.AddSpecific("Methyl", 14.01565, "DEKR")
	db.AddSpecific("Oxidation", 15.994915, "MW")
	db.AddSpecific("Dimethyl", 28.0313, "KR")
	db.AddSpecific("Trimethyl", 42.04695, "K")
	db.AddSpecific("Sulfo", 79.956815, "Y")
	db.AddSpecific("HexNAc", 203.079373, "NST")
	db.AddSpecific("TMT6plex", 229.162932, "K")
	db.AddSpecific("TMTPro", 304.207146, "K")
	db.AddSpecific("iTRAQ4plex", 144.102063, "K")

	return db
}

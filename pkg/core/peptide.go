package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxPeptideMods is the largest number of modifications a peptide may carry.
const MaxPeptideMods = 8

// phosphoMass is the Phospho delta; used to recognise unnamed phosphorylations.
const phosphoMass = 79.966331

// Peptide is a residue sequence with its modifications and protein flanks.
type Peptide struct {
	Residues string
	Mods     []Modification // Position indexes Residues
	PrefixAA byte           // Residue preceding the peptide, 0 if unknown
	SuffixAA byte           // Residue following the peptide, 0 if unknown
}

// ParsePeptide parses annotations such as "K.PEPS+80TIDE.R", "PEPS(Phospho)TIDE" or "PEPTIDE".
func ParsePeptide(annotation string, db *ModDatabase) (*Peptide, error) {
	if db == nil {
		db = DefaultModDatabase()
	}
	s := strings.TrimSpace(annotation)
	pep := &Peptide{}

	if len(s) > 3 && s[1] == '.' && isFlank(s[0]) {
		pep.PrefixAA = flankByte(s[0])
		s = s[2:]
	}
	if n := len(s); n > 3 && s[n-2] == '.' && isFlank(s[n-1]) {
		pep.SuffixAA = flankByte(s[n-1])
		s = s[:n-2]
	}

	var residues strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			if _, ok := ResidueMass(c); !ok {
				return nil, fmt.Errorf("invalid residue '%c' in %q", c, annotation)
			}
			residues.WriteByte(c)
			i++
		case c == '+' || c == '-':
			j := i + 1
			for j < len(s) && (s[j] == '.' || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			mass, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid modification mass in %q: %w", annotation, err)
			}
			pep.Mods = append(pep.Mods, Modification{
				Mass:     mass,
				Position: modPosition(residues.Len()),
				Name:     db.NameForMass(mass, 0.5),
			})
			i = j
		case c == '(':
			end := strings.IndexByte(s[i:], ')')
			if end < 0 {
				return nil, fmt.Errorf("unterminated modification in %q", annotation)
			}
			name := s[i+1 : i+end]
			mass, ok := db.GetMass(name)
			if !ok {
				return nil, fmt.Errorf("unknown modification '%s'", name)
			}
			pep.Mods = append(pep.Mods, Modification{
				Mass:     mass,
				Position: modPosition(residues.Len()),
				Name:     name,
			})
			i += end + 1
		default:
			return nil, fmt.Errorf("unexpected character '%c' in %q", c, annotation)
		}
	}

	pep.Residues = residues.String()
	if pep.Residues == "" {
		return nil, fmt.Errorf("peptide %q has no residues", annotation)
	}
	if len(pep.Mods) > MaxPeptideMods {
		return nil, fmt.Errorf("peptide %q has %d modifications, at most %d supported", annotation, len(pep.Mods), MaxPeptideMods)
	}
	return pep, nil
}

// modPosition attaches a modification to the residue just read; a leading mod sits on residue 0.
func modPosition(residuesRead int) int {
	if residuesRead == 0 {
		return 0
	}
	return residuesRead - 1
}

func isFlank(c byte) bool {
	return (c >= 'A' && c <= 'Z') || c == '-' || c == '*'
}

func flankByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c
	}
	return 0
}

// Len returns the number of residues.
func (p *Peptide) Len() int {
	return len(p.Residues)
}

// ModMassAt returns the summed modification mass on residue i.
func (p *Peptide) ModMassAt(i int) float64 {
	total := 0.0
	for _, m := range p.Mods {
		if m.Position == i {
			total += m.Mass
		}
	}
	return total
}

// ResidueMassAt returns the modified mass of residue i.
func (p *Peptide) ResidueMassAt(i int) float64 {
	m, _ := ResidueMass(p.Residues[i])
	return m + p.ModMassAt(i)
}

// ParentMass returns the singly protonated mass of the peptide.
func (p *Peptide) ParentMass() float64 {
	return sequenceMass(p.Residues, p.Mods) + ProtonMass
}

// PhosphoSites returns the residue indices carrying a phosphorylation, in order.
func (p *Peptide) PhosphoSites() []int {
	var sites []int
	for _, m := range p.Mods {
		if IsPhospho(m) {
			sites = append(sites, m.Position)
		}
	}
	return sites
}

// IsPhosphorylated reports whether any modification is a phosphorylation.
func (p *Peptide) IsPhosphorylated() bool {
	return len(p.PhosphoSites()) > 0
}

// IsPhospho reports whether a modification is a phosphorylation.
func IsPhospho(m Modification) bool {
	return m.Name == "Phospho" || math.Abs(m.Mass-phosphoMass) < 0.01
}

// String renders the peptide in the "K.PEPS+80TIDE.R" notation.
func (p *Peptide) String() string {
	var b strings.Builder
	if p.PrefixAA != 0 {
		b.WriteByte(p.PrefixAA)
		b.WriteByte('.')
	} else if p.SuffixAA != 0 {
		b.WriteString("-.")
	}
	for i := 0; i < len(p.Residues); i++ {
		b.WriteByte(p.Residues[i])
		if m := p.ModMassAt(i); m != 0 {
			fmt.Fprintf(&b, "%+d", int(math.Round(m)))
		}
	}
	if p.SuffixAA != 0 {
		b.WriteByte('.')
		b.WriteByte(p.SuffixAA)
	} else if p.PrefixAA != 0 {
		b.WriteString(".-")
	}
	return b.String()
}

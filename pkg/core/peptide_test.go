package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeptide(t *testing.T) {
	tests := []struct {
		name       string
		annotation string
		residues   string
		prefix     byte
		suffix     byte
		mods       []Modification
	}{
		{
			name:       "plain sequence",
			annotation: "PEPTIDE",
			residues:   "PEPTIDE",
		},
		{
			name:       "flanked",
			annotation: "K.PEPTIDE.R",
			residues:   "PEPTIDE",
			prefix:     'K',
			suffix:     'R',
		},
		{
			name:       "missing flank",
			annotation: "-.PEPTIDE.R",
			residues:   "PEPTIDE",
			suffix:     'R',
		},
		{
			name:       "inline phospho",
			annotation: "K.PEPS+80TIDE.R",
			residues:   "PEPSTIDE",
			prefix:     'K',
			suffix:     'R',
			mods:       []Modification{{Mass: 80, Position: 3, Name: "Phospho"}},
		},
		{
			name:       "named oxidation",
			annotation: "PEM(Oxidation)K",
			residues:   "PEMK",
			mods:       []Modification{{Mass: 15.994915, Position: 2, Name: "Oxidation"}},
		},
		{
			name:       "decimal mod on last residue",
			annotation: "PEPTM+15.995",
			residues:   "PEPTM",
			mods:       []Modification{{Mass: 15.995, Position: 4, Name: "Oxidation"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pep, err := ParsePeptide(tt.annotation, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.residues, pep.Residues)
			assert.Equal(t, tt.prefix, pep.PrefixAA)
			assert.Equal(t, tt.suffix, pep.SuffixAA)
			assert.Equal(t, tt.mods, pep.Mods)
		})
	}
}

func TestParsePeptideErrors(t *testing.T) {
	tests := []struct {
		name       string
		annotation string
	}{
		{"empty", ""},
		{"bad residue", "PEPXB"},
		{"unknown named mod", "PEP(Nonsense)K"},
		{"unterminated mod", "PEP(Oxidation"},
		{"too many mods", "S+80S+80S+80S+80S+80S+80S+80S+80S+80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePeptide(tt.annotation, nil)
			assert.Error(t, err)
		})
	}
}

func TestPeptideMasses(t *testing.T) {
	pep, err := ParsePeptide("K.GAS+80K.R", nil)
	require.NoError(t, err)

	assert.InDelta(t, 87.032+80, pep.ResidueMassAt(2), 0.001)
	assert.InDelta(t, 0.0, pep.ModMassAt(0), 1e-12)

	want := 57.02146 + 71.03711 + 87.03203 + 128.09496 + 80 + WaterMass + ProtonMass
	if got := pep.ParentMass(); math.Abs(got-want) > 0.001 {
		t.Errorf("ParentMass() = %.4f, want %.4f", got, want)
	}

	assert.Equal(t, []int{2}, pep.PhosphoSites())
	assert.True(t, pep.IsPhosphorylated())
	assert.Equal(t, "K.GAS+80K.R", pep.String())
}

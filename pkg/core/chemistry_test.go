package core

import (
	"math"
	"testing"
)

func TestCalculatePeptideMass(t *testing.T) {
	tests := []struct {
		name          string
		sequence      string
		charge        int
		modifications []Modification
		wantMZ        float64
		tolerance     float64
	}{
		{
			name:          "simple peptide charge 1",
			sequence:      "AAA",
			charge:        1,
			modifications: nil,
			wantMZ:        232.129, // Approximate
			tolerance:     0.1,
		},
		{
			name:          "simple peptide charge 2",
			sequence:      "AAA",
			charge:        2,
			modifications: nil,
			wantMZ:        116.569, // Approximate
			tolerance:     0.1,
		},
		{
			name:     "peptide with modification",
			sequence: "PEPTIDE",
			charge:   2,
			modifications: []Modification{
				{Mass: 57.021464, Position: 0}, // Carbamidomethyl on first residue
			},
			wantMZ:    429.2, // Approximate
			tolerance: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePeptideMass(tt.sequence, tt.charge, tt.modifications)
			if math.Abs(got-tt.wantMZ) > tt.tolerance {
				t.Errorf("CalculatePeptideMass() = %.3f, want %.3f (within %.3f)", got, tt.wantMZ, tt.tolerance)
			}
		})
	}
}

func TestResidueMass(t *testing.T) {
	tests := []struct {
		aa     byte
		want   float64
		wantOK bool
	}{
		{'G', 57.02146, true},
		{'W', 186.07931, true},
		{'S', 87.03203, true},
		{'B', 0, false},
		{'a', 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.aa), func(t *testing.T) {
			got, ok := ResidueMass(tt.aa)
			if ok != tt.wantOK {
				t.Fatalf("ResidueMass(%c) ok = %v, want %v", tt.aa, ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("ResidueMass(%c) = %.5f, want %.5f", tt.aa, got, tt.want)
			}
		})
	}
}

func TestDerivedMasses(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"water", WaterMass, 18.0106},
		{"ammonia", AmmoniaMass, 17.0265},
		{"parent mass boost", ParentMassBoost, 19.0178},
		{"phosphate loss", PhosphateLoss, 97.9769},
		{"glycine", GlycineMass, 57.0215},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 0.001 {
				t.Errorf("%s = %.4f, want %.4f", tt.name, tt.got, tt.want)
			}
		})
	}
}

package core

import (
	"math"
	"testing"
)

func TestSpectrumValidation(t *testing.T) {
	tests := []struct {
		name    string
		spec    *Spectrum
		wantErr bool
	}{
		{
			name: "valid spectrum",
			spec: &Spectrum{
				Sequence:    "PEPTIDE",
				Charge:      2,
				PrecursorMZ: 400.5,
				Peaks: []Peak{
					{Mass: 100.0, Intensity: 1000.0},
					{Mass: 200.0, Intensity: 2000.0},
				},
			},
			wantErr: false,
		},
		{
			name: "unknown charge is allowed",
			spec: &Spectrum{
				PrecursorMZ: 400.5,
				Peaks: []Peak{
					{Mass: 100.0, Intensity: 1000.0},
				},
			},
			wantErr: false,
		},
		{
			name: "charge above maximum",
			spec: &Spectrum{
				Charge:      7,
				PrecursorMZ: 400.5,
				Peaks: []Peak{
					{Mass: 100.0, Intensity: 1000.0},
				},
			},
			wantErr: true,
		},
		{
			name: "no precursor",
			spec: &Spectrum{
				Charge: 2,
				Peaks: []Peak{
					{Mass: 100.0, Intensity: 1000.0},
				},
			},
			wantErr: true,
		},
		{
			name: "no peaks",
			spec: &Spectrum{
				Charge:      2,
				PrecursorMZ: 400.5,
				Peaks:       []Peak{},
			},
			wantErr: true,
		},
		{
			name: "unsorted peaks",
			spec: &Spectrum{
				Charge:      2,
				PrecursorMZ: 400.5,
				Peaks: []Peak{
					{Mass: 200.0, Intensity: 2000.0},
					{Mass: 100.0, Intensity: 1000.0},
				},
			},
			wantErr: true,
		},
		{
			name: "infinite precursor",
			spec: &Spectrum{
				Charge:      2,
				PrecursorMZ: math.Inf(1),
				Peaks:       []Peak{{Mass: 100.0, Intensity: 1000.0}},
			},
			wantErr: true,
		},
		{
			name: "NaN precursor",
			spec: &Spectrum{
				Charge:      2,
				PrecursorMZ: math.NaN(),
				Peaks:       []Peak{{Mass: 100.0, Intensity: 1000.0}},
			},
			wantErr: true,
		},
		{
			name: "precursor above limit",
			spec: &Spectrum{
				Charge:      2,
				PrecursorMZ: 1e12,
				Peaks:       []Peak{{Mass: 100.0, Intensity: 1000.0}},
			},
			wantErr: true,
		},
		{
			name: "NaN parent mass",
			spec: &Spectrum{
				Charge:      2,
				PrecursorMZ: 400.5,
				ParentMass:  math.NaN(),
				Peaks:       []Peak{{Mass: 100.0, Intensity: 1000.0}},
			},
			wantErr: true,
		},
		{
			name: "NaN mass",
			spec: &Spectrum{
				Charge:      2,
				PrecursorMZ: 400.5,
				Peaks: []Peak{
					{Mass: math.NaN(), Intensity: 1000.0},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSortPeaks(t *testing.T) {
	spec := &Spectrum{
		Peaks: []Peak{
			{Mass: 300.0, Intensity: 100.0},
			{Mass: 100.0, Intensity: 200.0},
			{Mass: 200.0, Intensity: 150.0},
		},
	}

	spec.SortPeaks()

	if len(spec.Peaks) != 3 {
		t.Fatalf("Expected 3 peaks, got %d", len(spec.Peaks))
	}

	expected := []float64{100.0, 200.0, 300.0}
	for i, peak := range spec.Peaks {
		if peak.Mass != expected[i] {
			t.Errorf("Peak %d: expected mass %.1f, got %.1f", i, expected[i], peak.Mass)
		}
	}
}

func TestRankPeaks(t *testing.T) {
	spec := &Spectrum{
		Peaks: []Peak{
			{Mass: 100.0, Intensity: 50.0},
			{Mass: 200.0, Intensity: 300.0},
			{Mass: 300.0, Intensity: 50.0},
			{Mass: 400.0, Intensity: 100.0},
		},
	}

	spec.RankPeaks()

	want := []int{2, 0, 3, 1}
	for i, peak := range spec.Peaks {
		if peak.Rank != want[i] {
			t.Errorf("Peak %d: expected rank %d, got %d", i, want[i], peak.Rank)
		}
	}
}

func TestSetCharge(t *testing.T) {
	tests := []struct {
		name   string
		mz     float64
		charge int
		want   float64
	}{
		{"singly charged", 1000.0, 1, 1000.0},
		{"doubly charged", 1000.5, 2, 2001.0 - ProtonMass},
		{"triply charged", 667.0, 3, 2001.0 - 2*ProtonMass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &Spectrum{PrecursorMZ: tt.mz}
			spec.SetCharge(tt.charge)
			if math.Abs(spec.ParentMass-tt.want) > 1e-9 {
				t.Errorf("SetCharge(%d) parent mass = %.4f, want %.4f", tt.charge, spec.ParentMass, tt.want)
			}
			if back := MZFromParentMass(spec.ParentMass, tt.charge); math.Abs(back-tt.mz) > 1e-9 {
				t.Errorf("MZFromParentMass() = %.4f, want %.4f", back, tt.mz)
			}
		})
	}
}

func TestClone(t *testing.T) {
	spec := &Spectrum{
		FileCharges: []int{2, 3},
		Peaks:       []Peak{{Mass: 100.0, Intensity: 1.0}},
	}

	c := spec.Clone()
	c.Peaks[0].Intensity = 5.0
	c.FileCharges[0] = 4

	if spec.Peaks[0].Intensity != 1.0 || spec.FileCharges[0] != 2 {
		t.Error("Clone() shares slices with the original")
	}
}

func TestModString(t *testing.T) {
	spec := &Spectrum{
		Modifications: []Modification{
			{Mass: 57.021464, Position: 3},
			{Mass: 15.994915, Position: 7},
		},
	}

	want := "57.021464@3;15.994915@7"
	if got := spec.ModString(); got != want {
		t.Errorf("ModString() = %q, want %q", got, want)
	}
}

func TestSpectrumName(t *testing.T) {
	tests := []struct {
		name string
		spec *Spectrum
		want string
	}{
		{"untitled", &Spectrum{Sequence: "PEPTIDE", Charge: 2}, "PEPTIDE/2"},
		{"titled", &Spectrum{Title: "scan.100.100.2", Sequence: "PEPTIDE", Charge: 2}, "scan.100.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.Name(); got != tt.want {
				t.Errorf("Name() = %s, want %s", got, tt.want)
			}
		})
	}
}

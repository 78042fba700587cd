// Package core provides chemistry constants and residue masses for peptide scoring
package core

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900
	MassP = 30.9737615100

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688
)

// Derived masses used throughout scoring
const (
	WaterMass   = 2*MassH + MassO
	AmmoniaMass = 3*MassH + MassN
	COMass      = MassC + MassO

	// ParentMassBoost converts a summed residue mass to a singly protonated parent mass.
	ParentMassBoost = WaterMass + ProtonMass

	// PhosphateLoss is the neutral loss of H3PO4 from a phosphorylated residue.
	PhosphateLoss = 3*MassH + MassP + 4*MassO

	GlycineMass = 57.0214637
)

// MaxCharge is the largest precursor charge the scorer considers.
const MaxCharge = 6

// MaxPrecursorMZ bounds the precursor m/z of a scorable spectrum. MaxParentMass
// is the matching M+H bound at MaxCharge.
const (
	MaxPrecursorMZ = 10000.0
	MaxParentMass  = MaxPrecursorMZ * MaxCharge
)

// AminoAcidComposition stores elemental composition
type AminoAcidComposition struct {
	C, H, N, O, S int
}

// Mass returns the monoisotopic mass of the composition.
func (c AminoAcidComposition) Mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS
}

// AminoAcidMasses maps amino acid one-letter codes to residue composition
var AminoAcidMasses = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1},
	'R': {C: 6, H: 12, N: 4, O: 1},
	'N': {C: 4, H: 6, N: 2, O: 2},
	'D': {C: 4, H: 5, N: 1, O: 3},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3},
	'Q': {C: 5, H: 8, N: 2, O: 2},
	'G': {C: 2, H: 3, N: 1, O: 1},
	'H': {C: 6, H: 7, N: 3, O: 1},
	'I': {C: 6, H: 11, N: 1, O: 1},
	'L': {C: 6, H: 11, N: 1, O: 1},
	'K': {C: 6, H: 12, N: 2, O: 1},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1},
	'P': {C: 5, H: 7, N: 1, O: 1},
	'S': {C: 3, H: 5, N: 1, O: 2},
	'T': {C: 4, H: 7, N: 1, O: 2},
	'W': {C: 11, H: 10, N: 2, O: 1},
	'Y': {C: 9, H: 9, N: 1, O: 2},
	'V': {C: 5, H: 9, N: 1, O: 1},
}

// residueMass is indexed by letter - 'A'; zero marks a non-residue letter.
var residueMass [26]float64

func init() {
	for aa, comp := range AminoAcidMasses {
		residueMass[aa-'A'] = comp.Mass()
	}
}

// ResidueMass returns the residue mass of a one-letter amino acid code.
func ResidueMass(aa byte) (float64, bool) {
	if aa < 'A' || aa > 'Z' {
		return 0, false
	}
	m := residueMass[aa-'A']
	return m, m > 0
}

func sequenceMass(sequence string, modifications []Modification) float64 {
	mass := WaterMass
	for i := 0; i < len(sequence); i++ {
		if m, ok := ResidueMass(sequence[i]); ok {
			mass += m
		}
	}
	for _, mod := range modifications {
		mass += mod.Mass
	}
	return mass
}

// CalculatePeptideMass computes monoisotopic mass of a peptide sequence
// including modifications, then returns the m/z for a given charge state.
func CalculatePeptideMass(sequence string, charge int, modifications []Modification) float64 {
	mass := sequenceMass(sequence, modifications)
	return (mass + float64(charge)*ProtonMass) / float64(charge)
}

// ParentMassFromMZ converts a precursor m/z at the given charge to a singly protonated mass.
func ParentMassFromMZ(mz float64, charge int) float64 {
	return mz*float64(charge) - ProtonMass*float64(charge-1)
}

// MZFromParentMass converts a singly protonated mass to the m/z at the given charge.
func MZFromParentMass(parentMass float64, charge int) float64 {
	return (parentMass + float64(charge-1)*ProtonMass) / float64(charge)
}

package core

import "fmt"

// IonKind identifies the fragment ion type that explains a peak.
type IonKind int

const (
	IonNone IonKind = iota
	IonParentLoss
	IonB
	IonY
	IonBIsotope
	IonYIsotope
	IonB2
	IonY2
	IonBH2O
	IonYH2O
	IonBNH3
	IonYNH3
	IonA
	IonOther
)

var ionNames = map[IonKind]string{
	IonNone:       "none",
	IonParentLoss: "parent-loss",
	IonB:          "b",
	IonY:          "y",
	IonBIsotope:   "b-isotope",
	IonYIsotope:   "y-isotope",
	IonB2:         "b2",
	IonY2:         "y2",
	IonBH2O:       "b-H2O",
	IonYH2O:       "y-H2O",
	IonBNH3:       "b-NH3",
	IonYNH3:       "y-NH3",
	IonA:          "a",
	IonOther:      "other",
}

func (k IonKind) String() string {
	if name, ok := ionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ion(%d)", int(k))
}

// ParseIonKind returns the ion kind with the given name.
func ParseIonKind(name string) (IonKind, error) {
	for k, n := range ionNames {
		if n == name {
			return k, nil
		}
	}
	return IonNone, fmt.Errorf("unknown ion kind '%s'", name)
}

// ClaimRank orders peak claiming: parent loss first, then b/y, isotopes,
// doubly charged, water loss, ammonia loss, a ions and anything else.
func (k IonKind) ClaimRank() int {
	switch k {
	case IonParentLoss:
		return 0
	case IonB, IonY:
		return 1
	case IonBIsotope, IonYIsotope:
		return 2
	case IonB2, IonY2:
		return 3
	case IonBH2O, IonYH2O:
		return 4
	case IonBNH3, IonYNH3:
		return 5
	case IonA:
		return 6
	default:
		return 7
	}
}

// IsPrefix reports whether the ion carries the N-terminal fragment.
func (k IonKind) IsPrefix() bool {
	switch k {
	case IonB, IonBIsotope, IonB2, IonBH2O, IonBNH3, IonA:
		return true
	}
	return false
}

// DefaultOffset returns the usual mass offset of the ion. Prefix ions add it to the
// prefix residue mass; suffix ions add it to parent mass minus prefix residue mass,
// which already carries the water and proton of a y ion.
func (k IonKind) DefaultOffset() float64 {
	switch k {
	case IonB, IonB2:
		return ProtonMass
	case IonBIsotope:
		return ProtonMass + isotopeSpacing
	case IonYIsotope:
		return isotopeSpacing
	case IonBH2O:
		return ProtonMass - WaterMass
	case IonYH2O:
		return -WaterMass
	case IonBNH3:
		return ProtonMass - AmmoniaMass
	case IonYNH3:
		return -AmmoniaMass
	case IonA:
		return ProtonMass - COMass
	}
	return 0
}

const isotopeSpacing = 1.00335

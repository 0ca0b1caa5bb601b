package entities

import (
	"fmt"
	"strings"
)

// PatientCategory is a bitmask of the patient groups an item or service is
// eligible for.
type PatientCategory int16

const (
	PatientCategoryAdult  PatientCategory = 1
	PatientCategoryMinor  PatientCategory = 2
	PatientCategoryMale   PatientCategory = 4
	PatientCategoryFemale PatientCategory = 8

	// PatientCategoryAll covers every group.
	PatientCategoryAll = PatientCategoryAdult | PatientCategoryMinor | PatientCategoryMale | PatientCategoryFemale
)

var patientCategoryNames = map[string]PatientCategory{
	"ADULT":  PatientCategoryAdult,
	"MINOR":  PatientCategoryMinor,
	"MALE":   PatientCategoryMale,
	"FEMALE": PatientCategoryFemale,
}

// ParsePatientCategory maps a flag name (ADULT, MINOR, MALE, FEMALE) to its mask.
func ParsePatientCategory(name string) (PatientCategory, error) {
	mask, ok := patientCategoryNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown patient category %q", name)
	}
	return mask, nil
}

// CombinePatientCategories ORs the given flags together.
func CombinePatientCategories(flags ...PatientCategory) PatientCategory {
	var mask PatientCategory
	for _, f := range flags {
		mask |= f
	}
	return mask
}

// Has reports whether every bit of flag is set.
func (c PatientCategory) Has(flag PatientCategory) bool {
	return c&flag == flag
}

// Names lists the groups set in the mask, in ADULT, MINOR, MALE, FEMALE order
func (c PatientCategory) Names() []string {
	var names []string
	for _, name := range []string{"ADULT", "MINOR", "MALE", "FEMALE"} {
		if c.Has(patientCategoryNames[name]) {
			names = append(names, name)
		}
	}
	return names
}

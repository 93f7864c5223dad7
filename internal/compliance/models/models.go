package models

import (
	id "vaxtrack/pkg/domain"
)

// DoseSchedule is static reference data: the recommended age for one dose of
// one vaccine. The evaluators read it; nothing in this system mutates it
// after load.
type DoseSchedule struct {
	VaccineID            id.VaccineID
	DoseNumber           int
	RecommendedAgeMonths int
	Mandatory            bool
}

package models

import (
	"time"

	id "vaxtrack/pkg/domain"
)

// AdministrationRecord is the immutable fact that a patient received a dose
// of a vaccine from a specific batch. Records are never deleted; only the
// site and notes fields may be corrected after the fact.
type AdministrationRecord struct {
	ID          id.RecordID
	PatientID   id.PatientID
	VaccineID   id.VaccineID
	DoseNumber  int
	BatchNumber id.BatchNumber
	OperatorID  id.OperatorID

	AdministeredAt time.Time
	Site           string
	Notes          string

	// NextDoseAt is the recommended date for the following dose, when the
	// dosing schedule defines one.
	NextDoseAt *time.Time

	CreatedAt time.Time
}

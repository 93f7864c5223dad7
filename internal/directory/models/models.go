package models

import (
	"time"

	id "vaxtrack/pkg/domain"
)

// Patient is reference data owned by the surrounding registry; this service
// needs the birth date for overdue math and the soft-delete marker for
// population counts.
type Patient struct {
	ID        id.PatientID
	FullName  string
	BirthDate time.Time
	CreatedAt time.Time
	DeletedAt *time.Time
}

func (p Patient) Deleted() bool {
	return p.DeletedAt != nil
}

// AgeInMonths returns the patient's age in whole months at the given instant.
// A month only counts once the day-of-month has been reached, so a patient
// born on the 15th turns "one month old" on the 15th of the next month.
func (p Patient) AgeInMonths(at time.Time) int {
	if at.Before(p.BirthDate) {
		return 0
	}
	months := (at.Year()-p.BirthDate.Year())*12 + int(at.Month()) - int(p.BirthDate.Month())
	if at.Day() < p.BirthDate.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// Vaccine is a vaccine product. Inactive vaccines stay resolvable for
// historical records but reject new administrations.
type Vaccine struct {
	ID        id.VaccineID
	Code      string // short clinical code, e.g. "BCG"
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Operator is a staff member allowed to administer doses and mutate stock.
type Operator struct {
	ID        id.OperatorID
	FullName  string
	Active    bool
	CreatedAt time.Time
}

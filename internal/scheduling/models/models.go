package models

import (
	"time"

	id "vaxtrack/pkg/domain"
)

type VisitStatus string

const (
	VisitScheduled VisitStatus = "SCHEDULED"
	VisitConfirmed VisitStatus = "CONFIRMED"
	VisitCompleted VisitStatus = "COMPLETED"
	VisitCancelled VisitStatus = "CANCELLED"
	VisitNoShow    VisitStatus = "NO_SHOW"
)

// Linkable reports whether an administration may close out this visit.
func (s VisitStatus) Linkable() bool {
	return s == VisitScheduled || s == VisitConfirmed
}

// Terminal visits accept no further status transitions.
func (s VisitStatus) Terminal() bool {
	return s == VisitCompleted || s == VisitCancelled || s == VisitNoShow
}

// ScheduledVisit is a planned appointment and the vaccines it anticipates
// administering.
type ScheduledVisit struct {
	ID          id.VisitID
	PatientID   id.PatientID
	ScheduledAt time.Time
	Status      VisitStatus

	// Vaccines anticipated at this visit. Administration of any one of them
	// may complete the visit.
	Vaccines []id.VaccineID

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Anticipates reports whether the visit planned for the given vaccine.
func (v ScheduledVisit) Anticipates(vaccineID id.VaccineID) bool {
	for _, candidate := range v.Vaccines {
		if candidate == vaccineID {
			return true
		}
	}
	return false
}

// Package domain defines the typed identifiers shared across the service.
//
// IDs are distinct named types over uuid.UUID so a PatientID can never be
// passed where a VaccineID is expected. Batch numbers are not UUIDs: they are
// the human-assigned lot numbers printed on vials, so they stay strings with
// their own validation.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "vaxtrack/pkg/domain-errors"
)

type (
	// PatientID identifies a registered patient.
	PatientID uuid.UUID

	// VaccineID identifies a vaccine product.
	VaccineID uuid.UUID

	// OperatorID identifies the staff member performing an action.
	OperatorID uuid.UUID

	// RecordID identifies an administration record.
	RecordID uuid.UUID

	// VisitID identifies a scheduled visit.
	VisitID uuid.UUID
)

func (id PatientID) String() string  { return uuid.UUID(id).String() }
func (id VaccineID) String() string  { return uuid.UUID(id).String() }
func (id OperatorID) String() string { return uuid.UUID(id).String() }
func (id RecordID) String() string   { return uuid.UUID(id).String() }
func (id VisitID) String() string    { return uuid.UUID(id).String() }

func (id PatientID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id VaccineID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id OperatorID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id VisitID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

func ParsePatientID(raw string) (PatientID, error) {
	parsed, err := parseUUID(raw)
	return PatientID(parsed), err
}

func ParseVaccineID(raw string) (VaccineID, error) {
	parsed, err := parseUUID(raw)
	return VaccineID(parsed), err
}

func ParseOperatorID(raw string) (OperatorID, error) {
	parsed, err := parseUUID(raw)
	return OperatorID(parsed), err
}

func ParseRecordID(raw string) (RecordID, error) {
	parsed, err := parseUUID(raw)
	return RecordID(parsed), err
}

func ParseVisitID(raw string) (VisitID, error) {
	parsed, err := parseUUID(raw)
	return VisitID(parsed), err
}

// BatchNumber is the manufacturer lot number of a stock batch, unique per
// vaccine. Comparison is plain lexicographic byte order, which is what the
// allocator's deterministic tie-break relies on.
type BatchNumber string

func (b BatchNumber) String() string { return string(b) }

const maxBatchNumberLen = 64

// ParseBatchNumber validates a raw lot number. Lot numbers are uppercased so
// "b001" and "B001" refer to the same physical batch.
func ParseBatchNumber(raw string) (BatchNumber, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "batch number must not be empty")
	}
	if len(raw) > maxBatchNumberLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "batch number must be 64 characters or less")
	}
	for _, r := range raw {
		if r < '0' || (r > '9' && r < 'A') || (r > 'Z' && r < 'a') || r > 'z' {
			if r != '-' && r != '_' && r != '.' {
				return "", dErrors.New(dErrors.CodeInvalidInput, "batch number may only contain letters, digits, '-', '_' and '.'")
			}
		}
	}
	return BatchNumber(strings.ToUpper(raw)), nil
}

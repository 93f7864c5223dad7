package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// payload is the canonical JSON form of an event, shared by the postgres
// outbox store, the kafka sink, and the hash chain. Field names are part of
// the wire contract with downstream consumers.
type payload struct {
	ID          string `json:"ID"`
	Category    string `json:"Category"`
	Timestamp   string `json:"Timestamp"`
	Action      string `json:"Action"`
	OperatorID  string `json:"OperatorID,omitempty"`
	PatientID   string `json:"PatientID,omitempty"`
	VaccineID   string `json:"VaccineID,omitempty"`
	BatchNumber string `json:"BatchNumber,omitempty"`
	Quantity    int    `json:"Quantity,omitempty"`
	Reason      string `json:"Reason,omitempty"`
	Outcome     string `json:"Outcome,omitempty"`
	RequestID   string `json:"RequestID,omitempty"`
}

// Encode serializes an event with an assigned event ID. The category is
// always re-derived from the action so the eventCategories map stays the
// single source of truth.
func Encode(eventID uuid.UUID, event Event) ([]byte, error) {
	p := payload{
		ID:          eventID.String(),
		Category:    string(AuditEvent(event.Action).Category()),
		Timestamp:   event.Timestamp.Format(time.RFC3339Nano),
		Action:      event.Action,
		BatchNumber: event.BatchNumber.String(),
		Quantity:    event.Quantity,
		Reason:      event.Reason,
		Outcome:     event.Outcome,
		RequestID:   event.RequestID,
	}
	if !event.OperatorID.IsNil() {
		p.OperatorID = event.OperatorID.String()
	}
	if !event.PatientID.IsNil() {
		p.PatientID = event.PatientID.String()
	}
	if !event.VaccineID.IsNil() {
		p.VaccineID = event.VaccineID.String()
	}
	return json.Marshal(p)
}

package audit

import (
	"context"
	"time"

	id "vaxtrack/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// Immunization records and stock removals require tamper-evident storage
	// and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers deliberate operator interventions on stock
	// integrity, such as quarantining a suspect batch.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Action    string

	// OperatorID is whoever performed or attempted the action.
	OperatorID id.OperatorID

	// Subject fields: which patient/vaccine/batch the action touched.
	// Zero values mean "not applicable" (e.g. a deduction has no patient).
	PatientID   id.PatientID
	VaccineID   id.VaccineID
	BatchNumber id.BatchNumber

	// Quantity is the number of units removed, 1 for an administration.
	Quantity int

	// Reason carries the deduction reason or the abort error code.
	Reason string

	// Outcome is "success" or "aborted" for workflow-level events.
	Outcome string

	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
}

// Store persists audit events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	// Ledger events
	EventBatchReceived    AuditEvent = "batch_received"
	EventBatchQuarantined AuditEvent = "batch_quarantined"
	EventBatchReleased    AuditEvent = "batch_released"
	EventBatchExpired     AuditEvent = "batch_expired"
	EventStockDeducted    AuditEvent = "stock_deducted"

	// Administration events
	EventDoseAdministered      AuditEvent = "dose_administered"
	EventAdministrationAborted AuditEvent = "administration_aborted"
	EventRecordCorrected       AuditEvent = "record_corrected"

	// Scheduling events
	EventVisitCompleted AuditEvent = "visit_completed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - the regulated audit trail
	EventDoseAdministered:      CategoryCompliance,
	EventStockDeducted:         CategoryCompliance,
	EventRecordCorrected:       CategoryCompliance,
	EventAdministrationAborted: CategoryCompliance,

	// Security events - operator interventions on stock integrity
	EventBatchQuarantined: CategorySecurity,
	EventBatchReleased:    CategorySecurity,

	// Operations events - routine activity
	EventBatchReceived:  CategoryOperations,
	EventBatchExpired:   CategoryOperations,
	EventVisitCompleted: CategoryOperations,
}

// Category returns the event's category, defaulting to operations for
// unmapped actions so nothing is silently dropped by category routing.
func (e AuditEvent) Category() EventCategory {
	if category, ok := eventCategories[e]; ok {
		return category
	}
	return CategoryOperations
}

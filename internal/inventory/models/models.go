package models

import (
	"time"

	id "vaxtrack/pkg/domain"
)

// BatchStatus is the lifecycle state of a stock batch. EXHAUSTED and EXPIRED
// are terminal; batches are never deleted.
type BatchStatus string

const (
	BatchAvailable   BatchStatus = "AVAILABLE"
	BatchQuarantined BatchStatus = "QUARANTINED"
	BatchExhausted   BatchStatus = "EXHAUSTED"
	BatchExpired     BatchStatus = "EXPIRED"
)

// StockBatch is a physically received lot of one vaccine. The pair
// (VaccineID, BatchNumber) is unique; QuantityOnHand never goes negative.
type StockBatch struct {
	VaccineID      id.VaccineID
	BatchNumber    id.BatchNumber
	QuantityOnHand int
	ExpirationDate time.Time
	Status         BatchStatus
	ReceivedBy     id.OperatorID
	ReceivedAt     time.Time
}

// EligibleAt reports whether the batch may supply a dose at the given
// instant. The expiry comparison is strict: a batch expiring today is
// already out, regardless of its stored status.
func (b StockBatch) EligibleAt(now time.Time) bool {
	return b.Status == BatchAvailable &&
		b.QuantityOnHand >= 1 &&
		b.ExpirationDate.After(now)
}

// DeductionReason classifies a manual stock removal.
type DeductionReason string

const (
	ReasonWastage  DeductionReason = "WASTAGE"
	ReasonLoss     DeductionReason = "LOSS"
	ReasonTransfer DeductionReason = "TRANSFER"
)

// Valid reports whether the reason is one of the recognized kinds.
func (r DeductionReason) Valid() bool {
	switch r {
	case ReasonWastage, ReasonLoss, ReasonTransfer:
		return true
	}
	return false
}

package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors without
// the stores knowing about the domain error taxonomy.
//
// These represent factual states about stored resources, not validation
// failures:
// - ErrNotFound: row does not exist, or is soft-deleted
// - ErrDuplicate: a uniqueness constraint was violated on insert
// - ErrConflict: a guarded update lost a race (compare-and-decrement failed)
// - ErrInsufficient: a guarded decrement asked for more than is on hand
// - ErrInvalidState: row exists but is in a state the operation forbids
// - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("duplicate")
	ErrConflict     = errors.New("conflict")
	ErrInsufficient = errors.New("insufficient")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

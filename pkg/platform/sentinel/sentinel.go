package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrMalformedID: an id string cannot be parsed as a record reference
// - ErrConflict: a uniqueness or state-transition constraint was violated,
//   e.g. claiming an already-consumed donor or reusing a block id
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrMalformedID = errors.New("malformed identifier")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)

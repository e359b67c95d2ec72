package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures.
// Absence of a baseline is not an error (stores return nil, nil), so only the
// availability fact is needed here. For validation errors (bad input, missing
// fields), use pkg/domain-errors directly.
var (
	// ErrUnavailable: backing service or resource temporarily unreachable.
	ErrUnavailable = errors.New("unavailable")
)

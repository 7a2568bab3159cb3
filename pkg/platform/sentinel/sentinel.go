package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in the store, or the store is empty
//     when a nearest-candidate query runs
//   - ErrAlreadyUsed: a unique attribute (user email) is taken
//   - ErrUnavailable: the backing store or index cannot be reached
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
